package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/furnicart/internal/domain/cart"
)

const (
	// Prices come from the products table at read time; the checkout must
	// copy them into the order so later catalog edits don't reprice it.
	getCartSnapshotSQL = `SELECT ci.product_id, p.name, p.image, ci.quantity, p.price
		FROM cart_items ci
		JOIN products p ON p.id = ci.product_id
		WHERE ci.user_id = $1
		ORDER BY ci.created_at`

	clearCartSQL = `DELETE FROM cart_items WHERE user_id = $1`

	upsertCartItemSQL = `INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart_items.quantity + $3`
)

var _ cart.Provider = (*CartRepository)(nil)

// CartRepository reads and clears per-user carts stored in PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Snapshot returns the user's cart joined with current product data. An
// empty cart yields a snapshot with no lines, not an error.
func (r *CartRepository) Snapshot(ctx context.Context, userID string) (*cart.Snapshot, error) {
	rows, err := r.pool.Query(ctx, getCartSnapshotSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("reading cart for user %q: %w", userID, err)
	}

	lines, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Line, error) {
		var l cart.Line
		err := row.Scan(&l.ProductID, &l.Name, &l.Image, &l.Quantity, &l.UnitPrice)
		return l, err
	})
	if err != nil {
		return nil, fmt.Errorf("reading cart for user %q: %w", userID, err)
	}
	return &cart.Snapshot{Lines: lines}, nil
}

// Clear removes all of the user's cart items.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, clearCartSQL, userID); err != nil {
		return fmt.Errorf("clearing cart for user %q: %w", userID, err)
	}
	return nil
}

// AddItem inserts a cart line or bumps the quantity of an existing one.
// Used by seeding and tests; the checkout path only reads and clears.
func (r *CartRepository) AddItem(ctx context.Context, userID, productID string, quantity int) error {
	if _, err := r.pool.Exec(ctx, upsertCartItemSQL, userID, productID, quantity); err != nil {
		return fmt.Errorf("adding cart item for user %q: %w", userID, err)
	}
	return nil
}
