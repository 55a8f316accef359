package point

import (
	"context"
	"errors"

	"github.com/dayeon-kim/shopflow/libs/db"
)

var ErrInsufficientPoints = errors.New("insufficient points")

type Service struct {
	pool *db.Pool
}

func NewService(pool *db.Pool) *Service {
	return &Service{pool: pool}
}

func (s *Service) Deduct(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return nil
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE points
		SET balance = balance - $2
		WHERE user_id = $1 AND balance >= $2
	`, userID, amount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInsufficientPoints
	}
	return nil
}

func (s *Service) Refund(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO points (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = points.balance + $2
	`, userID, amount)
	return err
}
