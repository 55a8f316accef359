package order

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/dayeon-kim/shopflow/libs/db"
)

var ErrNotFound = errors.New("order not found")

type Item struct {
	ProductID int64
	Quantity  int
}

// Cancelled is what the saga needs to publish compensations for a cancelled
// order.
type Cancelled struct {
	OrderID    int64
	UserID     string
	UsedPoints int64
	CouponID   string
	Items      []Item
}

type Service struct {
	pool *db.Pool
}

func NewService(pool *db.Pool) *Service {
	return &Service{pool: pool}
}

// Cancel flips the order to cancelled and returns its compensation data.
// Cancelling an already-cancelled order returns the same data again.
func (s *Service) Cancel(ctx context.Context, orderID int64, reason string) (Cancelled, error) {
	_, err := s.pool.Exec(ctx, `
		UPDATE orders
		SET status = 'cancelled', cancel_reason = $2
		WHERE id = $1 AND status <> 'cancelled'
	`, orderID, reason)
	if err != nil {
		return Cancelled{}, err
	}

	var c Cancelled
	c.OrderID = orderID
	err = s.pool.QueryRow(ctx, `
		SELECT user_id, used_points, COALESCE(coupon_id, '')
		FROM orders
		WHERE id = $1
	`, orderID).Scan(&c.UserID, &c.UsedPoints, &c.CouponID)
	if err == pgx.ErrNoRows {
		return Cancelled{}, ErrNotFound
	}
	if err != nil {
		return Cancelled{}, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT product_id, quantity
		FROM order_items
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return Cancelled{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ProductID, &item.Quantity); err != nil {
			return Cancelled{}, err
		}
		c.Items = append(c.Items, item)
	}
	return c, rows.Err()
}
