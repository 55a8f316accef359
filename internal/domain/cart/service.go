package cart

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Service keeps carts as Redis hashes keyed by user, field per product.
type Service struct {
	rdb *redis.Client
}

func NewService(rdb *redis.Client) *Service {
	return &Service{rdb: rdb}
}

func cartKey(userID string) string {
	return "cart:" + userID
}

// RemoveItems clears purchased products from the user's cart. HDEL of a
// missing field is a no-op, so repeat deliveries are harmless.
func (s *Service) RemoveItems(ctx context.Context, userID string, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}
	fields := make([]string, len(productIDs))
	for i, id := range productIDs {
		fields[i] = strconv.FormatInt(id, 10)
	}
	return s.rdb.HDel(ctx, cartKey(userID), fields...).Err()
}

func (s *Service) AddItem(ctx context.Context, userID string, productID int64, qty int) error {
	return s.rdb.HIncrBy(ctx, cartKey(userID), strconv.FormatInt(productID, 10), int64(qty)).Err()
}

func (s *Service) Items(ctx context.Context, userID string) (map[int64]int, error) {
	raw, err := s.rdb.HGetAll(ctx, cartKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	items := make(map[int64]int, len(raw))
	for field, value := range raw {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			continue
		}
		qty, err := strconv.Atoi(value)
		if err != nil {
			continue
		}
		items[id] = qty
	}
	return items, nil
}
