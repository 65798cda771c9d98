// Command seed-db populates a development database with a small furniture
// catalog, demo coupons, and API keys for a storefront user and an admin.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/furnicart/internal/domain/auth"
	"github.com/xenking/furnicart/internal/domain/coupon"
	"github.com/xenking/furnicart/internal/repository"
)

func main() {
	var (
		databaseURL  string
		customerKey  string
		adminKey     string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&customerKey, "customer-key", "", "storefront API key to seed (or FURNI_SEED_CUSTOMER_KEY env)")
	flag.StringVar(&adminKey, "admin-key", "", "admin API key to seed (or FURNI_SEED_ADMIN_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or FURNI_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if customerKey == "" {
		customerKey = os.Getenv("FURNI_SEED_CUSTOMER_KEY")
	}
	if adminKey == "" {
		adminKey = os.Getenv("FURNI_SEED_ADMIN_KEY")
	}
	if customerKey == "" || adminKey == "" {
		slog.Error("API keys are required: set --customer-key/--admin-key or the FURNI_SEED_* envs")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("FURNI_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, customerKey, adminKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, customerKey, adminKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedAPIKeys(ctx, pool, customerKey, adminKey, pepper); err != nil {
		return errors.Wrap(err, "seed api keys")
	}
	if err := seedCart(ctx, pool); err != nil {
		return errors.Wrap(err, "seed cart")
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool) error {
	products := []repository.Product{
		{ID: "oak-desk", Name: "Solid Oak Writing Desk", Category: "desks", Image: "/images/oak-desk.jpg", Price: decimal.NewFromInt(12500)},
		{ID: "walnut-bookshelf", Name: "Walnut Bookshelf", Category: "storage", Image: "/images/walnut-bookshelf.jpg", Price: decimal.NewFromInt(8900)},
		{ID: "linen-sofa", Name: "Three-Seater Linen Sofa", Category: "sofas", Image: "/images/linen-sofa.jpg", Price: decimal.NewFromInt(32000)},
		{ID: "rattan-chair", Name: "Rattan Accent Chair", Category: "chairs", Image: "/images/rattan-chair.jpg", Price: decimal.NewFromInt(5400)},
		{ID: "teak-side-table", Name: "Teak Side Table", Category: "tables", Image: "/images/teak-side-table.jpg", Price: decimal.NewFromInt(3200)},
		{ID: "floor-lamp", Name: "Brass Floor Lamp", Category: "lighting", Image: "/images/floor-lamp.jpg", Price: decimal.NewFromInt(2600)},
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	repo := repository.NewProductRepository(pool)
	for _, p := range products {
		if err := repo.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}
	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	now := time.Now()
	coupons := []*coupon.Rule{
		{
			ID:            "seed-save10",
			Code:          "SAVE10",
			DiscountType:  coupon.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(10),
			MaxDiscount:   decimal.NewFromInt(1500),
			ValidFrom:     now,
			ValidUntil:    now.AddDate(1, 0, 0),
			Active:        true,
			CreatedAt:     now,
		},
		{
			ID:            "seed-flat500",
			Code:          "FLAT500",
			DiscountType:  coupon.DiscountFixed,
			DiscountValue: decimal.NewFromInt(500),
			MinPurchase:   decimal.NewFromInt(2000),
			ValidFrom:     now,
			ValidUntil:    now.AddDate(0, 3, 0),
			Active:        true,
			CreatedAt:     now,
		},
		{
			ID:            "seed-welcome",
			Code:          "WELCOME15",
			DiscountType:  coupon.DiscountPercentage,
			DiscountValue: decimal.NewFromInt(15),
			MinPurchase:   decimal.NewFromInt(5000),
			MaxDiscount:   decimal.NewFromInt(3000),
			ValidFrom:     now,
			ValidUntil:    now.AddDate(0, 1, 0),
			UsageLimit:    100,
			Active:        true,
			CreatedAt:     now,
		},
	}

	slog.Info("seeding demo coupons", slog.Int("count", len(coupons)))

	repo := repository.NewCouponRepository(pool)
	for _, c := range coupons {
		err := repo.Create(ctx, c)
		if errors.Is(err, coupon.ErrCodeExists) {
			slog.Info("coupon already present", slog.String("code", c.Code))
			continue
		}
		if err != nil {
			return errors.Wrapf(err, "create coupon %s", c.Code)
		}
		slog.Info("created coupon", slog.String("code", c.Code))
	}
	return nil
}

func seedAPIKeys(ctx context.Context, pool *pgxpool.Pool, customerKey, adminKey, pepper string) error {
	slog.Info("seeding API keys")

	repo := repository.NewAPIKeyRepository(pool)
	keys := []struct {
		raw string
		key auth.Key
	}{
		{raw: customerKey, key: auth.Key{ID: "seed-customer", UserID: "demo-user", Name: "Demo storefront key"}},
		{raw: adminKey, key: auth.Key{ID: "seed-admin", UserID: "demo-admin", Name: "Demo admin key", Scopes: []string{auth.ScopeAdmin}}},
	}

	for _, k := range keys {
		mac := hmac.New(sha256.New, []byte(pepper))
		mac.Write([]byte(k.raw))
		k.key.KeyHash = hex.EncodeToString(mac.Sum(nil))

		if err := repo.Upsert(ctx, k.key); err != nil {
			return errors.Wrapf(err, "upsert api key %s", k.key.ID)
		}
		slog.Info("upserted API key", slog.String("id", k.key.ID), slog.String("name", k.key.Name))
	}
	return nil
}

// seedCart fills the demo user's cart so a checkout can be exercised right
// after seeding.
func seedCart(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo cart")

	repo := repository.NewCartRepository(pool)
	if err := repo.Clear(ctx, "demo-user"); err != nil {
		return err
	}
	return repo.AddItem(ctx, "demo-user", "oak-desk", 1)
}
