package coupon

import (
	"context"
	"errors"

	"github.com/dayeon-kim/shopflow/libs/db"
)

var ErrNotFound = errors.New("coupon not found")

type Service struct {
	pool *db.Pool
}

func NewService(pool *db.Pool) *Service {
	return &Service{pool: pool}
}

// MarkUsed binds the coupon to the paying order. Re-marking for the same
// order is a no-op, so the call is idempotent on its own.
func (s *Service) MarkUsed(ctx context.Context, couponID string, orderID int64) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE coupons
		SET used = true, order_id = $2
		WHERE id = $1 AND (used = false OR order_id = $2)
	`, couponID, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) Release(ctx context.Context, couponID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE coupons
		SET used = false, order_id = NULL
		WHERE id = $1
	`, couponID)
	return err
}
