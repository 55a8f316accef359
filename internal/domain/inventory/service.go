package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dayeon-kim/shopflow/libs/db"
)

var (
	ErrNotFound     = errors.New("inventory not found")
	ErrInsufficient = errors.New("insufficient stock")
)

// InsufficientStockError carries what a compensating event needs.
type InsufficientStockError struct {
	ProductID int64
	Available int
	Requested int
	cause     error
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("product %d: requested %d, available %d: %v",
		e.ProductID, e.Requested, e.Available, e.cause)
}

func (e *InsufficientStockError) Unwrap() error { return e.cause }

type Service struct {
	pool *db.Pool
}

func NewService(pool *db.Pool) *Service {
	return &Service{pool: pool}
}

// Deduct removes qty units of the product. The conditional update keeps the
// quantity non-negative under concurrent deductions.
func (s *Service) Deduct(ctx context.Context, productID int64, qty int) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE inventory
		SET quantity = quantity - $2
		WHERE product_id = $1 AND quantity >= $2
	`, productID, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var available int
	err = s.pool.QueryRow(ctx, `
		SELECT quantity FROM inventory WHERE product_id = $1
	`, productID).Scan(&available)
	if err == pgx.ErrNoRows {
		return &InsufficientStockError{ProductID: productID, Available: 0, Requested: qty, cause: ErrNotFound}
	}
	if err != nil {
		return err
	}
	return &InsufficientStockError{ProductID: productID, Available: available, Requested: qty, cause: ErrInsufficient}
}

func (s *Service) Restock(ctx context.Context, productID int64, qty int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO inventory (product_id, quantity)
		VALUES ($1, $2)
		ON CONFLICT (product_id) DO UPDATE SET quantity = inventory.quantity + $2
	`, productID, qty)
	return err
}

func (s *Service) Available(ctx context.Context, productID int64) (int, error) {
	var qty int
	err := s.pool.QueryRow(ctx, `
		SELECT quantity FROM inventory WHERE product_id = $1
	`, productID).Scan(&qty)
	if err == pgx.ErrNoRows {
		return 0, ErrNotFound
	}
	return qty, err
}
