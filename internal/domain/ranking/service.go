package ranking

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const salesKey = "ranking:product:sales"

// Service maintains the product sales ranking in a Redis sorted set.
type Service struct {
	rdb *redis.Client
}

func NewService(rdb *redis.Client) *Service {
	return &Service{rdb: rdb}
}

func (s *Service) IncrementSales(ctx context.Context, productID int64, qty int) error {
	return s.rdb.ZIncrBy(ctx, salesKey, float64(qty), strconv.FormatInt(productID, 10)).Err()
}

// IncrementSalesBulk applies a whole batch of counters in one round trip.
func (s *Service) IncrementSalesBulk(ctx context.Context, counts map[int64]int) error {
	if len(counts) == 0 {
		return nil
	}
	pipe := s.rdb.Pipeline()
	for productID, qty := range counts {
		pipe.ZIncrBy(ctx, salesKey, float64(qty), strconv.FormatInt(productID, 10))
	}
	_, err := pipe.Exec(ctx)
	return err
}

type Entry struct {
	ProductID int64
	Sales     int64
}

func (s *Service) Top(ctx context.Context, n int64) ([]Entry, error) {
	zs, err := s.rdb.ZRevRangeWithScores(ctx, salesKey, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		id, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{ProductID: id, Sales: int64(z.Score)})
	}
	return entries, nil
}
