// Package coupon implements the coupon eligibility and redemption engine:
// pure eligibility evaluation, discount calculation, and the redemption
// coordinator that commits usage atomically through a Store.
package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported coupon discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the eligible subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixedAmount applies a fixed monetary discount capped at the
	// eligible subtotal.
	DiscountFixedAmount DiscountType = "fixed_amount"
	// DiscountFreeShipping zeroes the shipping line. The engine only signals
	// the type; the caller owns the shipping fee.
	DiscountFreeShipping DiscountType = "free_shipping"
)

// InclusionType defines how a product-specific coupon interprets its scope set.
type InclusionType string

const (
	// InclusionInclude restricts the coupon to orders containing at least one
	// scoped product.
	InclusionInclude InclusionType = "include"
	// InclusionExclude blocks the coupon from orders made up entirely of
	// scoped products.
	InclusionExclude InclusionType = "exclude"
)

// Reason identifies the first eligibility precondition an order violates.
type Reason string

const (
	ReasonInactive             Reason = "inactive"
	ReasonNotYetStarted        Reason = "not_yet_started"
	ReasonExpired              Reason = "expired"
	ReasonUsageLimitReached    Reason = "usage_limit_reached"
	ReasonNotFirstTimeCustomer Reason = "not_first_time_customer"
	ReasonBelowMinimumOrder    Reason = "below_minimum_order"
	ReasonNoEligibleProducts   Reason = "no_eligible_products"
	ReasonAllProductsExcluded  Reason = "all_products_excluded"
)

var (
	// ErrCodeNotFound is returned when no coupon exists for the given code.
	ErrCodeNotFound = errors.New("coupon code not found")
	// ErrUsageConflict is returned by Store.RecordUsage when a concurrent
	// redemption exhausted the usage limit between evaluation and commit.
	ErrUsageConflict = errors.New("coupon usage limit raced at commit")
	// ErrOrderAlreadyRedeemed is returned by Store.RecordUsage when the order
	// already holds a usage record for this coupon.
	ErrOrderAlreadyRedeemed = errors.New("order already redeemed this coupon")
)

// IneligibleError reports why a coupon cannot be applied to an order.
// It is an expected, user-facing outcome rather than a failure.
type IneligibleError struct {
	Reason Reason
}

func (e *IneligibleError) Error() string {
	return "coupon ineligible: " + string(e.Reason)
}

// Coupon is a redeemable code with its eligibility rules and value.
type Coupon struct {
	ID            string
	Code          string
	DiscountType  DiscountType
	Value         decimal.Decimal
	MinimumOrder  decimal.Decimal
	UsageLimit    int // 0 means unlimited
	UsageCount    int
	FirstTimeOnly bool
	Active        bool
	StartsAt      *time.Time
	ExpiresAt     *time.Time

	// ProductSpecific marks the coupon as scoped to a product set; Inclusion
	// controls whether the set includes or excludes.
	ProductSpecific bool
	Inclusion       InclusionType
}

// OrderLine is a single line of the order under evaluation.
type OrderLine struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Total returns quantity * unit price for the line.
func (l OrderLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderContext is the read-only order snapshot a redemption runs against.
// The engine never mutates the order; the caller applies the returned
// discount amount to the order total.
type OrderContext struct {
	OrderID       string
	CustomerEmail string
	Subtotal      decimal.Decimal
	Lines         []OrderLine

	// HasPriorCompletedPurchase is filled by the coordinator from the Store
	// when the coupon is first-time-only.
	HasPriorCompletedPurchase bool
}

// Redemption is the successful outcome of applying a coupon to an order.
type Redemption struct {
	Code         string
	DiscountType DiscountType
	Amount       decimal.Decimal
	FreeShipping bool
}

// Store is the persistence boundary of the engine. RecordUsage is the sole
// writer of usage records and the usage counter, and must re-check the usage
// limit inside its atomic unit.
type Store interface {
	// FindByCode looks up a coupon by its normalized (upper-case) code.
	// Returns ErrCodeNotFound when no coupon exists.
	FindByCode(ctx context.Context, code string) (*Coupon, error)

	// GetScope returns the product ids scoped to the coupon. Empty when the
	// coupon is not product-specific.
	GetScope(ctx context.Context, couponID string) ([]string, error)

	// HasPriorCompletedPurchase reports whether the customer has at least one
	// completed order.
	HasPriorCompletedPurchase(ctx context.Context, customerEmail string) (bool, error)

	// RecordUsage inserts the usage record and increments the usage counter
	// as one atomic unit. Returns ErrUsageConflict when the post-evaluation
	// limit re-check fails, and ErrOrderAlreadyRedeemed on a duplicate
	// (coupon, order) pair.
	RecordUsage(ctx context.Context, couponID, orderID, customerEmail string, amount decimal.Decimal) error
}

// NormalizeCode canonicalizes a coupon code for lookup and storage:
// surrounding whitespace stripped, upper-cased.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
