package store

import (
	"context"
	"fmt"
	"strings"

	"market-service/internal/models"

	"github.com/jmoiron/sqlx"
)

const productColumns = `p.id, p.name, p.description, p.price, p.shop_id, s.name AS shop_name,
	p.image_url, p.category, p.created_at`

// GetProductByID retrieves a product with its shop name
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"SELECT "+productColumns+" FROM products p JOIN shops s ON s.id = p.shop_id WHERE p.id = $1", id)
	if err != nil {
		return nil, notFound(err, "product not found: %d", id)
	}
	return &product, nil
}

// FindSimilarProducts returns every product whose name contains name,
// case-insensitively, cheapest first. The caller excludes its own row.
func (s *Store) FindSimilarProducts(ctx context.Context, name string) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		`SELECT `+productColumns+`
		 FROM products p JOIN shops s ON s.id = p.shop_id
		 WHERE p.name ILIKE $1
		 ORDER BY p.price ASC, p.shop_id ASC, p.id ASC`, likePattern(name))
	if err != nil {
		return nil, fmt.Errorf("failed to find similar products: %w", err)
	}
	return products, nil
}

// FindProductInShopByName finds the cheapest product in shopID whose name
// contains name
func (s *Store) FindProductInShopByName(ctx context.Context, shopID int64, name string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		`SELECT `+productColumns+`
		 FROM products p JOIN shops s ON s.id = p.shop_id
		 WHERE p.shop_id = $1 AND p.name ILIKE $2
		 ORDER BY p.price ASC, p.id ASC
		 LIMIT 1`, shopID, likePattern(name))
	if err != nil {
		return nil, notFound(err, "product %q not available in shop %d", name, shopID)
	}
	return &product, nil
}

// ListShopProducts returns one filtered page of a shop's products and the
// total matching count
func (s *Store) ListShopProducts(ctx context.Context, shopID int64, f models.ProductFilter) ([]models.Product, int, error) {
	where, args := productFilterClause(shopID, f)

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM products p WHERE "+where, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM products p JOIN shops s ON s.id = p.shop_id
		WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		productColumns, where, productOrder(f.Sort), len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	products := []models.Product{}
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list products: %w", err)
	}
	return products, total, nil
}

// ListLatestProducts returns the newest products across all shops
func (s *Store) ListLatestProducts(ctx context.Context, limit int) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products p JOIN shops s ON s.id = p.shop_id ORDER BY p.created_at DESC, p.id DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest products: %w", err)
	}
	return products, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In(
		"SELECT "+productColumns+" FROM products p JOIN shops s ON s.id = p.shop_id WHERE p.id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	products := []models.Product{}
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get products: %w", err)
	}
	return products, nil
}

func productFilterClause(shopID int64, f models.ProductFilter) (string, []any) {
	clauses := []string{"p.shop_id = $1"}
	args := []any{shopID}

	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if f.Category != "" {
		add("p.category = $%d", f.Category)
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		add("p.name ILIKE $%d", likePattern(search))
	}
	if f.MinPrice != nil {
		add("p.price >= $%d", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		add("p.price <= $%d", *f.MaxPrice)
	}
	return strings.Join(clauses, " AND "), args
}

func productOrder(sort string) string {
	switch sort {
	case models.SortPriceLow:
		return "p.price ASC, p.id ASC"
	case models.SortPriceHigh:
		return "p.price DESC, p.id ASC"
	case models.SortName:
		return "p.name ASC, p.id ASC"
	default:
		return "p.created_at DESC, p.id DESC"
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
