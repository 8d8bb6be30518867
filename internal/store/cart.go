package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"market-service/internal/apperr"
	"market-service/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// AddCartItem inserts a cart row or increments the quantity of the existing
// row for the same (user, product, shop)
func (s *Store) AddCartItem(ctx context.Context, userID, productID, shopID int64, quantity int) (*models.CartItem, error) {
	query := `
		INSERT INTO cart_items (user_id, product_id, shop_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id, shop_id)
		DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity
		RETURNING id, user_id, product_id, shop_id, quantity`

	var item models.CartItem
	if err := s.db.GetContext(ctx, &item, query, userID, productID, shopID, quantity); err != nil {
		if apperr.IsPGCode(err, apperr.PGForeignKeyViolation) {
			return nil, apperr.NotFound("product or shop no longer exists")
		}
		return nil, fmt.Errorf("failed to add cart item: %w", err)
	}
	return &item, nil
}

const cartLineQuery = `
	SELECT ci.id, ci.user_id, ci.product_id, ci.shop_id, ci.quantity,
	       p.price, p.name AS product_name, s.name AS shop_name, p.image_url
	FROM cart_items ci
	JOIN products p ON p.id = ci.product_id
	JOIN shops s ON s.id = ci.shop_id`

// GetCartLines returns the user's cart joined with current product prices
func (s *Store) GetCartLines(ctx context.Context, userID int64) ([]models.CartLine, error) {
	lines := []models.CartLine{}
	err := s.db.SelectContext(ctx, &lines, cartLineQuery+" WHERE ci.user_id = $1 ORDER BY ci.id", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return lines, nil
}

// GetCartLine returns one line of the user's cart
func (s *Store) GetCartLine(ctx context.Context, userID, itemID int64) (*models.CartLine, error) {
	var line models.CartLine
	err := s.db.GetContext(ctx, &line, cartLineQuery+" WHERE ci.id = $1 AND ci.user_id = $2", itemID, userID)
	if err != nil {
		return nil, notFound(err, "cart item not found: %d", itemID)
	}
	return &line, nil
}

// UpdateCartItemQuantity sets the quantity of one of the user's cart rows
func (s *Store) UpdateCartItemQuantity(ctx context.Context, userID, itemID int64, quantity int) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE cart_items SET quantity = $1 WHERE id = $2 AND user_id = $3",
		quantity, itemID, userID)
	if err != nil {
		return fmt.Errorf("failed to update cart item: %w", err)
	}
	return requireAffected(res, "cart item not found: %d", itemID)
}

// SwitchCartItem moves a cart row to another (product, shop) pair. If the
// user already holds that pair, the quantities are merged into it.
func (s *Store) SwitchCartItem(ctx context.Context, userID, itemID, productID, shopID int64) (*models.CartItem, error) {
	var result models.CartItem
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		var current models.CartItem
		err := tx.GetContext(ctx, &current,
			"SELECT id, user_id, product_id, shop_id, quantity FROM cart_items WHERE id = $1 AND user_id = $2 FOR UPDATE",
			itemID, userID)
		if err != nil {
			return notFound(err, "cart item not found: %d", itemID)
		}

		if current.ProductID == productID && current.ShopID == shopID {
			result = current
			return nil
		}

		var existing models.CartItem
		err = tx.GetContext(ctx, &existing,
			"SELECT id, user_id, product_id, shop_id, quantity FROM cart_items WHERE user_id = $1 AND product_id = $2 AND shop_id = $3 FOR UPDATE",
			userID, productID, shopID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			err = tx.GetContext(ctx, &result,
				`UPDATE cart_items SET product_id = $1, shop_id = $2 WHERE id = $3
				 RETURNING id, user_id, product_id, shop_id, quantity`,
				productID, shopID, itemID)
			if err != nil {
				return fmt.Errorf("failed to switch cart item: %w", err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("failed to look up target cart item: %w", err)
		}

		err = tx.GetContext(ctx, &result,
			`UPDATE cart_items SET quantity = quantity + $1 WHERE id = $2
			 RETURNING id, user_id, product_id, shop_id, quantity`,
			current.Quantity, existing.ID)
		if err != nil {
			return fmt.Errorf("failed to merge cart items: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM cart_items WHERE id = $1", current.ID); err != nil {
			return fmt.Errorf("failed to remove merged cart item: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// RemoveCartItem deletes one of the user's cart rows
func (s *Store) RemoveCartItem(ctx context.Context, userID, itemID int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE id = $1 AND user_id = $2", itemID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove cart item: %w", err)
	}
	return requireAffected(res, "cart item not found: %d", itemID)
}

// ClearCart deletes all of the user's cart rows
func (s *Store) ClearCart(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM cart_items WHERE user_id = $1", userID); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// CountCartItems returns the number of lines in the user's cart
func (s *Store) CountCartItems(ctx context.Context, userID int64) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM cart_items WHERE user_id = $1", userID); err != nil {
		return 0, fmt.Errorf("failed to count cart items: %w", err)
	}
	return count, nil
}

// CartTotal returns the sum of price × quantity over the user's cart
func (s *Store) CartTotal(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.db.GetContext(ctx, &total,
		`SELECT COALESCE(SUM(p.price * ci.quantity), 0)
		 FROM cart_items ci JOIN products p ON p.id = ci.product_id
		 WHERE ci.user_id = $1`, userID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to compute cart total: %w", err)
	}
	return total, nil
}

func requireAffected(res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return apperr.NotFound(fmt.Sprintf(format, args...))
	}
	return nil
}
