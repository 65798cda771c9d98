package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const (
	upsertProductSQL = `INSERT INTO products (id, name, category, image, price)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = $2, category = $3, image = $4, price = $5`

	listProductsSQL = `SELECT id, name, category, image, price FROM products ORDER BY name`
)

// Product is a catalog row. The pricing engine never reads it directly;
// carts join against it and checkout freezes the price into the order.
type Product struct {
	ID       string
	Name     string
	Category string
	Image    string
	Price    decimal.Decimal
}

// ProductRepository manages the catalog rows carts join against.
type ProductRepository struct {
	pool *pgxpool.Pool
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

// Upsert inserts or replaces a catalog row. Used by the seeding tool.
func (r *ProductRepository) Upsert(ctx context.Context, p Product) error {
	_, err := r.pool.Exec(ctx, upsertProductSQL, p.ID, p.Name, p.Category, p.Image, p.Price)
	if err != nil {
		return fmt.Errorf("upserting product %q: %w", p.ID, err)
	}
	return nil
}

// List returns the full catalog ordered by name.
func (r *ProductRepository) List(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowToStructByPos[Product])
}
