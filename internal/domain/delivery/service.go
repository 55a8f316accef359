package delivery

import (
	"context"

	"github.com/google/uuid"

	"github.com/dayeon-kim/shopflow/libs/db"
)

type Service struct {
	pool *db.Pool
}

func NewService(pool *db.Pool) *Service {
	return &Service{pool: pool}
}

// Start creates the shipment for a confirmed order and returns its tracking
// number. Starting the same order twice returns the existing tracking
// number instead of a second shipment.
func (s *Service) Start(ctx context.Context, orderID int64, address string) (string, error) {
	tracking := uuid.NewString()
	var existing string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO deliveries (order_id, address, tracking_number, status)
		VALUES ($1, $2, $3, 'started')
		ON CONFLICT (order_id) DO UPDATE SET order_id = deliveries.order_id
		RETURNING tracking_number
	`, orderID, address, tracking).Scan(&existing)
	if err != nil {
		return "", err
	}
	return existing, nil
}

func (s *Service) Cancel(ctx context.Context, orderID int64) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE deliveries
		SET status = 'cancelled'
		WHERE order_id = $1 AND status = 'started'
	`, orderID)
	return err
}
