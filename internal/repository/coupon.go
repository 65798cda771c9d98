package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/furnicart/internal/domain/coupon"
)

const (
	couponColumns = `id, code, discount_type, discount_value, min_purchase,
		COALESCE(max_discount, 0), valid_from, valid_until,
		COALESCE(usage_limit, 0), used_count, is_active, created_at`

	getCouponByCodeSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	insertCouponSQL = `INSERT INTO coupons
		(id, code, discount_type, discount_value, min_purchase, max_discount,
		 valid_from, valid_until, usage_limit, used_count, is_active, created_at)
		VALUES ($1, UPPER($2), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	updateCouponSQL = `UPDATE coupons SET
		discount_type = $2, discount_value = $3, min_purchase = $4,
		max_discount = $5, valid_from = $6, valid_until = $7,
		usage_limit = $8, is_active = $9
		WHERE id = $1`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`

	listActiveCouponsSQL = `SELECT ` + couponColumns + `
		FROM coupons
		WHERE is_active = TRUE AND valid_from <= $1 AND valid_until >= $1
		ORDER BY created_at DESC`

	// redeemCouponSQL is the conditional increment that makes coupon
	// consumption safe under concurrency: the usage counter only advances
	// when the limit has not been reached at write time, so two concurrent
	// checkouts can never both take the last use. Runs inside the order
	// creation transaction.
	redeemCouponSQL = `UPDATE coupons
		SET used_count = used_count + 1
		WHERE UPPER(code) = UPPER($1)
		  AND is_active = TRUE
		  AND (usage_limit IS NULL OR used_count < usage_limit)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive). Inactive
// coupons are returned too: the validator distinguishes "not found" from
// "inactive" in its error taxonomy.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, getCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanCouponRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &rule, nil
}

// Create inserts a new coupon rule. Returns coupon.ErrCodeExists when the
// code is already taken.
func (r *CouponRepository) Create(ctx context.Context, rule *coupon.Rule) error {
	_, err := r.pool.Exec(ctx, insertCouponSQL,
		rule.ID, rule.Code, string(rule.DiscountType), rule.DiscountValue,
		rule.MinPurchase, nullableDecimal(rule.MaxDiscount),
		rule.ValidFrom, rule.ValidUntil,
		nullableInt(rule.UsageLimit), rule.UsedCount, rule.Active, rule.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrCodeExists
		}
		return fmt.Errorf("creating coupon %q: %w", rule.Code, err)
	}
	return nil
}

// Update rewrites a coupon's mutable fields. The code and usage counter are
// not touched here; redemption owns the counter.
func (r *CouponRepository) Update(ctx context.Context, rule *coupon.Rule) error {
	tag, err := r.pool.Exec(ctx, updateCouponSQL,
		rule.ID, string(rule.DiscountType), rule.DiscountValue,
		rule.MinPurchase, nullableDecimal(rule.MaxDiscount),
		rule.ValidFrom, rule.ValidUntil,
		nullableInt(rule.UsageLimit), rule.Active,
	)
	if err != nil {
		return fmt.Errorf("updating coupon %q: %w", rule.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// Delete removes a coupon by id.
func (r *CouponRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return fmt.Errorf("deleting coupon %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// List returns coupons for the admin back office, newest first.
func (r *CouponRepository) List(ctx context.Context, filter coupon.ListFilter) ([]coupon.Rule, int, error) {
	where := ""
	args := []any{}
	if filter.Active != nil {
		where = " WHERE is_active = $1"
		args = append(args, *filter.Active)
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM coupons"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting coupons: %w", err)
	}

	query := "SELECT " + couponColumns + " FROM coupons" + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, filter.Limit, (filter.Page-1)*filter.Limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing coupons: %w", err)
	}

	rules, err := pgx.CollectRows(rows, scanCouponRule)
	if err != nil {
		return nil, 0, fmt.Errorf("listing coupons: %w", err)
	}
	return rules, total, nil
}

// ListActive returns coupons currently valid at the given time.
func (r *CouponRepository) ListActive(ctx context.Context, now time.Time) ([]coupon.Rule, error) {
	rows, err := r.pool.Query(ctx, listActiveCouponsSQL, now)
	if err != nil {
		return nil, fmt.Errorf("listing active coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCouponRule)
}

// redeemCoupon consumes one use of the coupon inside tx. Returns
// coupon.ErrExhausted when the conditional update matches no row: the
// counter hit its limit (or the coupon was deactivated) after validation.
func redeemCoupon(ctx context.Context, tx pgx.Tx, code string) error {
	tag, err := tx.Exec(ctx, redeemCouponSQL, code)
	if err != nil {
		return fmt.Errorf("redeeming coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrExhausted
	}
	return nil
}

func scanCouponRule(row pgx.CollectableRow) (coupon.Rule, error) {
	var (
		rule         coupon.Rule
		discountType string
		usageLimit   int32
		usedCount    int32
	)
	err := row.Scan(
		&rule.ID, &rule.Code, &discountType, &rule.DiscountValue,
		&rule.MinPurchase, &rule.MaxDiscount,
		&rule.ValidFrom, &rule.ValidUntil,
		&usageLimit, &usedCount, &rule.Active, &rule.CreatedAt,
	)
	rule.DiscountType = coupon.DiscountType(discountType)
	rule.UsageLimit = int(usageLimit)
	rule.UsedCount = int(usedCount)
	return rule, err
}

// nullableInt maps the zero value (unlimited/unset) to SQL NULL.
func nullableInt(v int) *int32 {
	if v <= 0 {
		return nil
	}
	n := int32(v)
	return &n
}

// nullableDecimal maps the zero value (no cap) to SQL NULL.
func nullableDecimal(d decimal.Decimal) *decimal.Decimal {
	if d.IsZero() {
		return nil
	}
	return &d
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
