// Command seed-db loads a JSON fixture of coupons, product scopes, and
// historical orders into PostgreSQL. It is idempotent: rerunning upserts the
// same rows.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/storage/postgres"
)

type seedFile struct {
	Coupons []couponJSON `json:"coupons"`
	Orders  []orderJSON  `json:"orders"`
}

type couponJSON struct {
	ID              string          `json:"id"`
	Code            string          `json:"code"`
	DiscountType    string          `json:"discount_type"`
	Value           decimal.Decimal `json:"value"`
	MinimumOrder    decimal.Decimal `json:"minimum_order_amount"`
	UsageLimit      *int            `json:"usage_limit"`
	FirstTimeOnly   bool            `json:"first_time_only"`
	Active          bool            `json:"is_active"`
	StartsAt        *time.Time      `json:"starts_at"`
	ExpiresAt       *time.Time      `json:"expires_at"`
	ProductSpecific bool            `json:"is_product_specific"`
	Inclusion       string          `json:"product_inclusion_type"`
	Products        []string        `json:"products"`
}

type orderJSON struct {
	ID            string `json:"id"`
	CustomerEmail string `json:"customer_email"`
	Status        string `json:"status"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/coupons.json", "path to seed JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("reading seed file", slog.String("path", seedPath))

	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed JSON")
	}

	if err := seedCoupons(ctx, pool, seed.Coupons); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedOrders(ctx, pool, seed.Orders); err != nil {
		return errors.Wrap(err, "seed orders")
	}

	return nil
}

const upsertCouponSQL = `
INSERT INTO coupons (
    id, code, discount_type, value, minimum_order_amount, usage_limit,
    first_time_only, is_active, starts_at, expires_at,
    is_product_specific, product_inclusion_type
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
    code = EXCLUDED.code,
    discount_type = EXCLUDED.discount_type,
    value = EXCLUDED.value,
    minimum_order_amount = EXCLUDED.minimum_order_amount,
    usage_limit = EXCLUDED.usage_limit,
    first_time_only = EXCLUDED.first_time_only,
    is_active = EXCLUDED.is_active,
    starts_at = EXCLUDED.starts_at,
    expires_at = EXCLUDED.expires_at,
    is_product_specific = EXCLUDED.is_product_specific,
    product_inclusion_type = EXCLUDED.product_inclusion_type
`

const upsertScopeSQL = `
INSERT INTO coupon_products (coupon_id, product_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING
`

const upsertOrderSQL = `
INSERT INTO orders (id, customer_email, status)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET
    customer_email = EXCLUDED.customer_email,
    status = EXCLUDED.status
`

func seedCoupons(ctx context.Context, pool *pgxpool.Pool, coupons []couponJSON) error {
	slog.Info("upserting coupons", slog.Int("count", len(coupons)))

	for _, c := range coupons {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		if c.Inclusion == "" {
			c.Inclusion = "include"
		}

		if _, err := pool.Exec(ctx, upsertCouponSQL,
			c.ID, c.Code, c.DiscountType, c.Value, c.MinimumOrder, c.UsageLimit,
			c.FirstTimeOnly, c.Active, c.StartsAt, c.ExpiresAt,
			c.ProductSpecific, c.Inclusion,
		); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		for _, productID := range c.Products {
			if _, err := pool.Exec(ctx, upsertScopeSQL, c.ID, productID); err != nil {
				return errors.Wrapf(err, "upsert scope %s/%s", c.Code, productID)
			}
		}

		slog.Info("upserted coupon",
			slog.String("code", c.Code),
			slog.String("type", c.DiscountType),
			slog.Int("products", len(c.Products)),
		)
	}

	return nil
}

func seedOrders(ctx context.Context, pool *pgxpool.Pool, orders []orderJSON) error {
	slog.Info("upserting orders", slog.Int("count", len(orders)))

	for _, o := range orders {
		if o.Status == "" {
			o.Status = "completed"
		}
		if _, err := pool.Exec(ctx, upsertOrderSQL, o.ID, o.CustomerEmail, o.Status); err != nil {
			return errors.Wrapf(err, "upsert order %s", o.ID)
		}
	}

	return nil
}
