package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/coupon-engine/internal/domain/coupon"
)

const (
	findCouponByCodeSQL = `SELECT id, code, discount_type, value, minimum_order_amount,
		COALESCE(usage_limit, 0), usage_count, first_time_only, is_active,
		starts_at, expires_at, is_product_specific, product_inclusion_type
		FROM coupons WHERE UPPER(code) = UPPER($1)`

	getScopeSQL = `SELECT product_id FROM coupon_products WHERE coupon_id = $1`

	hasPriorPurchaseSQL = `SELECT EXISTS (
		SELECT 1 FROM orders WHERE LOWER(customer_email) = LOWER($1) AND status = 'completed')`

	// The guard re-checks the usage limit inside the transaction: zero rows
	// updated means a concurrent redemption got there first.
	incrementUsageSQL = `UPDATE coupons SET usage_count = usage_count + 1
		WHERE id = $1 AND (usage_limit IS NULL OR usage_count < usage_limit)`

	insertUsageSQL = `INSERT INTO coupon_usages (coupon_id, order_id, customer_email, discount_amount, used_at)
		VALUES ($1, $2, $3, $4, $5)`
)

var _ coupon.Store = (*CouponStore)(nil)

// CouponStore implements coupon.Store backed by PostgreSQL.
type CouponStore struct {
	pool *pgxpool.Pool
}

// NewCouponStore returns a CouponStore that uses the given pool.
func NewCouponStore(pool *pgxpool.Pool) *CouponStore {
	return &CouponStore{pool: pool}
}

// FindByCode looks up a coupon by its code (case-insensitive).
// Returns coupon.ErrCodeNotFound when no coupon exists for the code.
func (s *CouponStore) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	rows, err := s.pool.Query(ctx, findCouponByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrCodeNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return &c, nil
}

// GetScope returns the product ids scoped to the coupon, empty when none.
func (s *CouponStore) GetScope(ctx context.Context, couponID string) ([]string, error) {
	rows, err := s.pool.Query(ctx, getScopeSQL, couponID)
	if err != nil {
		return nil, fmt.Errorf("fetching scope for coupon %q: %w", couponID, err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("fetching scope for coupon %q: %w", couponID, err)
	}
	return ids, nil
}

// HasPriorCompletedPurchase reports whether the customer has at least one
// completed order on record.
func (s *CouponStore) HasPriorCompletedPurchase(ctx context.Context, customerEmail string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, hasPriorPurchaseSQL, customerEmail).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking prior purchases for %q: %w", customerEmail, err)
	}
	return exists, nil
}

// RecordUsage commits a redemption as one transaction: the guarded counter
// increment first, then the usage insert. A zero-row increment means the
// usage limit raced and the transaction rolls back with
// coupon.ErrUsageConflict; a unique violation on (coupon_id, order_id) rolls
// back with coupon.ErrOrderAlreadyRedeemed.
func (s *CouponStore) RecordUsage(ctx context.Context, couponID, orderID, customerEmail string, amount decimal.Decimal) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning usage transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, incrementUsageSQL, couponID)
	if err != nil {
		return fmt.Errorf("incrementing usage for coupon %q: %w", couponID, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrUsageConflict
	}

	_, err = tx.Exec(ctx, insertUsageSQL, couponID, orderID, strings.ToLower(customerEmail), amount, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return coupon.ErrOrderAlreadyRedeemed
		}
		return fmt.Errorf("inserting usage for coupon %q order %q: %w", couponID, orderID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing usage for coupon %q: %w", couponID, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c             coupon.Coupon
		discountType  string
		value         decimal.Decimal
		minimumOrder  decimal.Decimal
		usageLimit    int32
		usageCount    int32
		startsAt      *time.Time
		expiresAt     *time.Time
		inclusionType string
	)
	err := row.Scan(
		&c.ID, &c.Code, &discountType, &value, &minimumOrder,
		&usageLimit, &usageCount, &c.FirstTimeOnly, &c.Active,
		&startsAt, &expiresAt, &c.ProductSpecific, &inclusionType,
	)
	c.DiscountType = coupon.DiscountType(discountType)
	c.Value = value
	c.MinimumOrder = minimumOrder
	c.UsageLimit = int(usageLimit)
	c.UsageCount = int(usageCount)
	c.StartsAt = startsAt
	c.ExpiresAt = expiresAt
	c.Inclusion = coupon.InclusionType(inclusionType)
	return c, err
}
