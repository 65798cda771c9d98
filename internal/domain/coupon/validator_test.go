package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCouponRepo struct {
	rule       *Rule
	err        error
	lookedCode string
}

func (m *mockCouponRepo) FindByCode(_ context.Context, code string) (*Rule, error) {
	m.lookedCode = code
	if m.err != nil {
		return nil, m.err
	}
	return m.rule, nil
}

func (m *mockCouponRepo) Create(_ context.Context, _ *Rule) error  { return nil }
func (m *mockCouponRepo) Update(_ context.Context, _ *Rule) error  { return nil }
func (m *mockCouponRepo) Delete(_ context.Context, _ string) error { return nil }
func (m *mockCouponRepo) List(_ context.Context, _ ListFilter) ([]Rule, int, error) {
	return nil, 0, nil
}
func (m *mockCouponRepo) ListActive(_ context.Context, _ time.Time) ([]Rule, error) {
	return nil, nil
}

func newValidator(repo Repository, now time.Time) *RepoValidator {
	v := NewRepoValidator(repo)
	v.now = func() time.Time { return now }
	return v
}

func TestRepoValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	pastTime := fixedNow.Add(-24 * time.Hour)
	futureTime := fixedNow.Add(24 * time.Hour)

	activeRule := func(mutate func(*Rule)) *Rule {
		r := &Rule{
			Code:          "SAVE10",
			DiscountType:  DiscountPercentage,
			DiscountValue: decimal.NewFromInt(10),
			ValidFrom:     pastTime,
			ValidUntil:    futureTime,
			Active:        true,
		}
		if mutate != nil {
			mutate(r)
		}
		return r
	}

	tests := []struct {
		name       string
		repo       *mockCouponRepo
		subtotal   decimal.Decimal
		wantAmount decimal.Decimal
		wantErr    error
	}{
		{
			name:       "percentage discount",
			repo:       &mockCouponRepo{rule: activeRule(nil)},
			subtotal:   decimal.NewFromInt(5000),
			wantAmount: decimal.NewFromInt(500),
		},
		{
			name: "percentage clamped to max discount",
			repo: &mockCouponRepo{rule: activeRule(func(r *Rule) {
				r.MaxDiscount = decimal.NewFromInt(1500)
			})},
			subtotal:   decimal.NewFromInt(20000),
			wantAmount: decimal.NewFromInt(1500),
		},
		{
			name: "fixed discount",
			repo: &mockCouponRepo{rule: activeRule(func(r *Rule) {
				r.DiscountType = DiscountFixed
				r.DiscountValue = decimal.NewFromInt(300)
			})},
			subtotal:   decimal.NewFromInt(5000),
			wantAmount: decimal.NewFromInt(300),
		},
		{
			name: "fixed discount clamped to subtotal",
			repo: &mockCouponRepo{rule: activeRule(func(r *Rule) {
				r.DiscountType = DiscountFixed
				r.DiscountValue = decimal.NewFromInt(9000)
			})},
			subtotal:   decimal.NewFromInt(500),
			wantAmount: decimal.NewFromInt(500),
		},
		{
			name:     "not found",
			repo:     &mockCouponRepo{err: ErrNotFound},
			subtotal: decimal.NewFromInt(5000),
			wantErr:  ErrNotFound,
		},
		{
			name: "inactive",
			repo: &mockCouponRepo{rule: activeRule(func(r *Rule) {
				r.Active = false
			})},
			subtotal: decimal.NewFromInt(5000),
			wantErr:  ErrInactive,
		},
		{
			name: "not yet valid",
			repo: &mockCouponRepo{rule: activeRule(func(r *Rule) {
				r.ValidFrom = futureTime
				r.ValidUntil = futureTime.Add(24 * time.Hour)
			})},
			subtotal: decimal.NewFromInt(5000),
			wantErr:  ErrExpired,
		},
		{
			name: "expired",
			repo: &mockCouponRepo{rule: activeRule(func(r *Rule) {
				r.ValidFrom = pastTime.Add(-24 * time.Hour)
				r.ValidUntil = pastTime
			})},
			subtotal: decimal.NewFromInt(5000),
			wantErr:  ErrExpired,
		},
		{
			name: "usage limit reached",
			repo: &mockCouponRepo{rule: activeRule(func(r *Rule) {
				r.UsageLimit = 5
				r.UsedCount = 5
			})},
			subtotal: decimal.NewFromInt(5000),
			wantErr:  ErrExhausted,
		},
		{
			name: "unlimited usage ignores used count",
			repo: &mockCouponRepo{rule: activeRule(func(r *Rule) {
				r.UsedCount = 9999
			})},
			subtotal:   decimal.NewFromInt(5000),
			wantAmount: decimal.NewFromInt(500),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newValidator(tt.repo, fixedNow)

			d, err := v.Validate(context.Background(), "SAVE10", tt.subtotal)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}

			require.NoError(t, err)
			assert.True(t, tt.wantAmount.Equal(d.Amount),
				"want %s, got %s", tt.wantAmount, d.Amount)
		})
	}
}

func TestRepoValidator_MinPurchase(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := &mockCouponRepo{rule: &Rule{
		Code:          "BIGSPEND",
		DiscountType:  DiscountFixed,
		DiscountValue: decimal.NewFromInt(500),
		MinPurchase:   decimal.NewFromInt(2000),
		ValidFrom:     fixedNow.Add(-time.Hour),
		ValidUntil:    fixedNow.Add(time.Hour),
		Active:        true,
	}}
	v := newValidator(repo, fixedNow)

	_, err := v.Validate(context.Background(), "BIGSPEND", decimal.NewFromInt(1999))

	var mpErr *MinPurchaseError
	require.ErrorAs(t, err, &mpErr)
	assert.True(t, decimal.NewFromInt(2000).Equal(mpErr.Min))
	assert.Contains(t, err.Error(), "2000")
}

func TestRepoValidator_UppercasesCode(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := &mockCouponRepo{err: ErrNotFound}
	v := newValidator(repo, fixedNow)

	_, err := v.Validate(context.Background(), "save10", decimal.NewFromInt(100))
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "SAVE10", repo.lookedCode)
}

func TestRepoValidator_RepoErrorWrapped(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	repo := &mockCouponRepo{err: errors.New("connection refused")}
	v := newValidator(repo, fixedNow)

	_, err := v.Validate(context.Background(), "SAVE10", decimal.NewFromInt(100))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup coupon")
}

func TestApply_UnsupportedType(t *testing.T) {
	_, err := Apply(&Rule{DiscountType: "bogus"}, decimal.NewFromInt(100))
	require.Error(t, err)
}

func TestApply_RoundsToWholeUnit(t *testing.T) {
	// 7.5% of 1001 = 75.075 → 75.
	d, err := Apply(&Rule{
		Code:          "ODD",
		DiscountType:  DiscountPercentage,
		DiscountValue: decimal.RequireFromString("7.5"),
	}, decimal.NewFromInt(1001))
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(75).Equal(d.Amount))
}
