package store

import (
	"context"
	"fmt"

	"market-service/internal/models"
)

const shopColumns = "id, name, address, contact, logo, created_at"

// ListShops returns one page of shops ordered by name
func (s *Store) ListShops(ctx context.Context, limit, offset int) ([]models.Shop, error) {
	shops := []models.Shop{}
	err := s.db.SelectContext(ctx, &shops,
		"SELECT "+shopColumns+" FROM shops ORDER BY name, id LIMIT $1 OFFSET $2", limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list shops: %w", err)
	}
	return shops, nil
}

// CountShops returns the total number of shops
func (s *Store) CountShops(ctx context.Context) (int, error) {
	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM shops"); err != nil {
		return 0, fmt.Errorf("failed to count shops: %w", err)
	}
	return total, nil
}

// GetShopByID retrieves a shop by ID
func (s *Store) GetShopByID(ctx context.Context, id int64) (*models.Shop, error) {
	var shop models.Shop
	err := s.db.GetContext(ctx, &shop, "SELECT "+shopColumns+" FROM shops WHERE id = $1", id)
	if err != nil {
		return nil, notFound(err, "shop not found: %d", id)
	}
	return &shop, nil
}

// ListCategoriesByShop returns the distinct product categories of a shop
func (s *Store) ListCategoriesByShop(ctx context.Context, shopID int64) ([]string, error) {
	categories := []string{}
	err := s.db.SelectContext(ctx, &categories,
		`SELECT DISTINCT category FROM products
		 WHERE shop_id = $1 AND category IS NOT NULL AND category <> ''
		 ORDER BY category`, shopID)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}
