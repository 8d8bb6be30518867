package store

import (
	"context"
	"fmt"

	"market-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const orderColumns = `id, user_id, total_amount, shipping_address, phone, payment_status,
	razorpay_order_id, razorpay_payment_id, created_at, updated_at`

// CreateOrderTx creates the order, one item per cart line at the line's
// current price and the initial pending tracking row in one transaction
func (s *Store) CreateOrderTx(ctx context.Context, order *models.Order, lines []models.CartLine) ([]models.OrderItem, error) {
	items := make([]models.OrderItem, 0, len(lines))

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO orders (user_id, total_amount, shipping_address, phone, payment_status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at, updated_at`

		err := tx.GetContext(ctx, order, query,
			order.UserID, order.TotalAmount, order.ShippingAddress, order.Phone, models.PaymentStatusPending)
		if err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		order.PaymentStatus = models.PaymentStatusPending

		for _, line := range lines {
			item := models.OrderItem{
				OrderID:     order.ID,
				ProductID:   line.ProductID,
				ShopID:      line.ShopID,
				Quantity:    line.Quantity,
				Price:       line.Price,
				ProductName: line.ProductName,
				ShopName:    line.ShopName,
			}
			err := tx.GetContext(ctx, &item.ID,
				"INSERT INTO order_items (order_id, product_id, shop_id, quantity, price) VALUES ($1, $2, $3, $4, $5) RETURNING id",
				item.OrderID, item.ProductID, item.ShopID, item.Quantity, item.Price)
			if err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
			items = append(items, item)
		}

		return insertTracking(ctx, tx, order.ID, models.TrackingPending)
	})
	if err != nil {
		return nil, err
	}
	return items, nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "order not found: %d", id)
	}
	return &order, nil
}

// GetOrderItems retrieves all items for an order with product and shop names
func (s *Store) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := s.db.SelectContext(ctx, &items,
		`SELECT oi.id, oi.order_id, oi.product_id, oi.shop_id, oi.quantity, oi.price,
		        p.name AS product_name, s.name AS shop_name
		 FROM order_items oi
		 JOIN products p ON p.id = oi.product_id
		 JOIN shops s ON s.id = oi.shop_id
		 WHERE oi.order_id = $1
		 ORDER BY oi.id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	return items, nil
}

// GetOrderTracking retrieves the tracking history of an order, newest first
func (s *Store) GetOrderTracking(ctx context.Context, orderID int64) ([]models.OrderTracking, error) {
	tracking := []models.OrderTracking{}
	err := s.db.SelectContext(ctx, &tracking,
		"SELECT id, order_id, status, updated_at FROM order_tracking WHERE order_id = $1 ORDER BY updated_at DESC, id DESC",
		orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order tracking: %w", err)
	}
	return tracking, nil
}

// ListOrdersByUser retrieves a user's orders, newest first, with their
// latest tracking status
func (s *Store) ListOrdersByUser(ctx context.Context, userID int64) ([]models.OrderSummary, error) {
	orders := []models.OrderSummary{}
	err := s.db.SelectContext(ctx, &orders,
		`SELECT o.id, o.user_id, o.total_amount, o.shipping_address, o.phone, o.payment_status,
		        o.razorpay_order_id, o.razorpay_payment_id, o.created_at, o.updated_at,
		        COALESCE((SELECT t.status FROM order_tracking t
		                  WHERE t.order_id = o.id
		                  ORDER BY t.updated_at DESC, t.id DESC LIMIT 1), 'pending') AS current_status
		 FROM orders o
		 WHERE o.user_id = $1
		 ORDER BY o.created_at DESC, o.id DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// ConfirmPaymentTx marks a pending or failed order paid, appends the
// confirmed tracking row and clears the buyer's cart. It reports false
// without changing anything when the order was already paid.
func (s *Store) ConfirmPaymentTx(ctx context.Context, orderID, userID int64, gatewayOrderID, gatewayPaymentID string) (bool, error) {
	applied := false

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE orders
			 SET payment_status = $1,
			     razorpay_order_id = COALESCE(NULLIF($2, ''), razorpay_order_id),
			     razorpay_payment_id = COALESCE(NULLIF($3, ''), razorpay_payment_id),
			     updated_at = NOW()
			 WHERE id = $4 AND payment_status <> $1`,
			models.PaymentStatusPaid, gatewayOrderID, gatewayPaymentID, orderID)
		if err != nil {
			return fmt.Errorf("failed to mark order paid: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			return nil
		}

		if err := insertTracking(ctx, tx, orderID, models.TrackingConfirmed); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID); err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// MarkPaymentFailed flags a pending order as failed and appends a failed
// tracking row. It reports false when the order was not pending.
func (s *Store) MarkPaymentFailed(ctx context.Context, orderID int64) (bool, error) {
	applied := false

	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE orders SET payment_status = $1, updated_at = NOW() WHERE id = $2 AND payment_status = $3",
			models.PaymentStatusFailed, orderID, models.PaymentStatusPending)
		if err != nil {
			return fmt.Errorf("failed to mark order failed: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			return nil
		}

		applied = true
		return insertTracking(ctx, tx, orderID, models.TrackingFailed)
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

// CountOrdersByPaymentStatus returns order counts keyed by payment status
func (s *Store) CountOrdersByPaymentStatus(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Status string `db:"payment_status"`
		Count  int    `db:"count"`
	}
	err := s.db.SelectContext(ctx, &rows,
		"SELECT payment_status, COUNT(*) AS count FROM orders GROUP BY payment_status")
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}

	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Count
	}
	return counts, nil
}

func insertTracking(ctx context.Context, tx *sqlx.Tx, orderID int64, status string) error {
	_, err := tx.ExecContext(ctx,
		"INSERT INTO order_tracking (order_id, status) VALUES ($1, $2)", orderID, status)
	if err != nil {
		return fmt.Errorf("failed to append order tracking: %w", err)
	}
	return nil
}
