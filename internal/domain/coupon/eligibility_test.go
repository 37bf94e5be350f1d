package coupon

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	dec, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return dec
}

// baseCoupon returns a coupon that passes every check so each test can break
// exactly one precondition.
func baseCoupon() *Coupon {
	return &Coupon{
		ID:           "c-1",
		Code:         "SAVE10",
		DiscountType: DiscountPercentage,
		Value:        d("10"),
		MinimumOrder: decimal.Zero,
		Active:       true,
	}
}

func baseOrder() OrderContext {
	return OrderContext{
		OrderID:       "o-1",
		CustomerEmail: "alice@example.com",
		Subtotal:      d("100.00"),
		Lines: []OrderLine{
			{ProductID: "P1", Quantity: 1, UnitPrice: d("60.00")},
			{ProductID: "P2", Quantity: 2, UnitPrice: d("20.00")},
		},
	}
}

func TestEvaluate(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-24 * time.Hour)
	future := now.Add(24 * time.Hour)

	tests := []struct {
		name       string
		mutate     func(c *Coupon, o *OrderContext)
		scope      []string
		wantReason Reason
	}{
		{
			name:   "all checks pass",
			mutate: func(c *Coupon, o *OrderContext) {},
		},
		{
			name:       "inactive",
			mutate:     func(c *Coupon, o *OrderContext) { c.Active = false },
			wantReason: ReasonInactive,
		},
		{
			name:       "not yet started",
			mutate:     func(c *Coupon, o *OrderContext) { c.StartsAt = &future },
			wantReason: ReasonNotYetStarted,
		},
		{
			name:       "expired",
			mutate:     func(c *Coupon, o *OrderContext) { c.ExpiresAt = &past },
			wantReason: ReasonExpired,
		},
		{
			name: "inside validity window",
			mutate: func(c *Coupon, o *OrderContext) {
				c.StartsAt = &past
				c.ExpiresAt = &future
			},
		},
		{
			name: "starts exactly now is valid",
			mutate: func(c *Coupon, o *OrderContext) {
				startsNow := now
				c.StartsAt = &startsNow
			},
		},
		{
			name: "expires exactly now is still valid",
			mutate: func(c *Coupon, o *OrderContext) {
				expiresNow := now
				c.ExpiresAt = &expiresNow
			},
		},
		{
			name: "usage limit reached",
			mutate: func(c *Coupon, o *OrderContext) {
				c.UsageLimit = 1
				c.UsageCount = 1
			},
			wantReason: ReasonUsageLimitReached,
		},
		{
			name: "usage under limit",
			mutate: func(c *Coupon, o *OrderContext) {
				c.UsageLimit = 100
				c.UsageCount = 99
			},
		},
		{
			name: "zero limit means unlimited",
			mutate: func(c *Coupon, o *OrderContext) {
				c.UsageCount = 9999
			},
		},
		{
			name: "first time only with prior purchase",
			mutate: func(c *Coupon, o *OrderContext) {
				c.FirstTimeOnly = true
				o.HasPriorCompletedPurchase = true
			},
			wantReason: ReasonNotFirstTimeCustomer,
		},
		{
			name: "first time only without prior purchase",
			mutate: func(c *Coupon, o *OrderContext) {
				c.FirstTimeOnly = true
			},
		},
		{
			name: "below minimum order",
			mutate: func(c *Coupon, o *OrderContext) {
				c.MinimumOrder = d("150.00")
			},
			wantReason: ReasonBelowMinimumOrder,
		},
		{
			name: "subtotal exactly at minimum passes",
			mutate: func(c *Coupon, o *OrderContext) {
				c.MinimumOrder = d("100.00")
			},
		},
		{
			name: "include scope with matching line",
			mutate: func(c *Coupon, o *OrderContext) {
				c.ProductSpecific = true
				c.Inclusion = InclusionInclude
			},
			scope: []string{"P1"},
		},
		{
			name: "include scope without matching line",
			mutate: func(c *Coupon, o *OrderContext) {
				c.ProductSpecific = true
				c.Inclusion = InclusionInclude
			},
			scope:      []string{"P9"},
			wantReason: ReasonNoEligibleProducts,
		},
		{
			name: "empty include scope matches nothing",
			mutate: func(c *Coupon, o *OrderContext) {
				c.ProductSpecific = true
				c.Inclusion = InclusionInclude
			},
			wantReason: ReasonNoEligibleProducts,
		},
		{
			name: "exclude scope with non-excluded line",
			mutate: func(c *Coupon, o *OrderContext) {
				c.ProductSpecific = true
				c.Inclusion = InclusionExclude
			},
			scope: []string{"P1"},
		},
		{
			name: "exclude scope covering every line",
			mutate: func(c *Coupon, o *OrderContext) {
				c.ProductSpecific = true
				c.Inclusion = InclusionExclude
			},
			scope:      []string{"P1", "P2"},
			wantReason: ReasonAllProductsExcluded,
		},
		{
			name: "check order: inactive wins over expired",
			mutate: func(c *Coupon, o *OrderContext) {
				c.Active = false
				c.ExpiresAt = &past
			},
			wantReason: ReasonInactive,
		},
		{
			name: "check order: expiry wins over usage limit",
			mutate: func(c *Coupon, o *OrderContext) {
				c.ExpiresAt = &past
				c.UsageLimit = 1
				c.UsageCount = 1
			},
			wantReason: ReasonExpired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := baseCoupon()
			o := baseOrder()
			tt.mutate(c, &o)

			err := Evaluate(c, o, BuildScope(tt.scope), now)

			if tt.wantReason == "" {
				require.NoError(t, err)
				return
			}

			var ie *IneligibleError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, tt.wantReason, ie.Reason)
		})
	}
}

// TestEvaluate_Idempotent verifies that repeated evaluation of the same
// inputs always produces the same verdict.
func TestEvaluate_Idempotent(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	c := baseCoupon()
	c.UsageLimit = 5
	c.UsageCount = 4
	o := baseOrder()

	for range 10 {
		require.NoError(t, Evaluate(c, o, nil, now))
	}

	c.UsageCount = 5
	for range 10 {
		var ie *IneligibleError
		require.ErrorAs(t, Evaluate(c, o, nil, now), &ie)
		assert.Equal(t, ReasonUsageLimitReached, ie.Reason)
	}
}

// TestEvaluate_FlipSinglePrecondition encodes the round-trip property: each
// reason corresponds to exactly one violated precondition, and repairing only
// that precondition makes the coupon eligible again.
func TestEvaluate_FlipSinglePrecondition(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)

	violations := map[Reason]struct {
		breakIt func(c *Coupon, o *OrderContext)
		fixIt   func(c *Coupon, o *OrderContext)
	}{
		ReasonInactive: {
			breakIt: func(c *Coupon, o *OrderContext) { c.Active = false },
			fixIt:   func(c *Coupon, o *OrderContext) { c.Active = true },
		},
		ReasonExpired: {
			breakIt: func(c *Coupon, o *OrderContext) { c.ExpiresAt = &past },
			fixIt:   func(c *Coupon, o *OrderContext) { c.ExpiresAt = nil },
		},
		ReasonUsageLimitReached: {
			breakIt: func(c *Coupon, o *OrderContext) { c.UsageLimit, c.UsageCount = 3, 3 },
			fixIt:   func(c *Coupon, o *OrderContext) { c.UsageCount = 2 },
		},
		ReasonNotFirstTimeCustomer: {
			breakIt: func(c *Coupon, o *OrderContext) {
				c.FirstTimeOnly = true
				o.HasPriorCompletedPurchase = true
			},
			fixIt: func(c *Coupon, o *OrderContext) { o.HasPriorCompletedPurchase = false },
		},
		ReasonBelowMinimumOrder: {
			breakIt: func(c *Coupon, o *OrderContext) { c.MinimumOrder = d("500") },
			fixIt:   func(c *Coupon, o *OrderContext) { o.Subtotal = d("500") },
		},
	}

	for reason, v := range violations {
		t.Run(string(reason), func(t *testing.T) {
			c := baseCoupon()
			o := baseOrder()

			v.breakIt(c, &o)
			var ie *IneligibleError
			require.ErrorAs(t, Evaluate(c, o, nil, now), &ie)
			require.Equal(t, reason, ie.Reason)

			v.fixIt(c, &o)
			require.NoError(t, Evaluate(c, o, nil, now))
		})
	}
}
