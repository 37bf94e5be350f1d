package coupon

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Calculate computes the discount amount for an eligible coupon. The result
// is never negative and, for fixed-amount coupons, never exceeds the eligible
// subtotal. Rounding to 2 decimal places (half-up) happens once, at the end —
// no intermediate rounding.
//
// Calculate assumes Evaluate already passed; it does not re-run eligibility.
func Calculate(c *Coupon, octx OrderContext, scope map[string]struct{}) (decimal.Decimal, error) {
	base := eligibleSubtotal(c, octx, scope)

	switch c.DiscountType {
	case DiscountPercentage:
		amount := base.Mul(c.Value).Div(hundred)
		return clampRound(amount), nil
	case DiscountFixedAmount:
		return clampRound(decimal.Min(c.Value, base)), nil
	case DiscountFreeShipping:
		// The merchandise discount is zero; the caller zeroes the shipping
		// line based on the redemption's discount type.
		return decimal.Zero, nil
	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", c.DiscountType)
	}
}

// eligibleSubtotal is the discount base. Include-mode scoping narrows it to
// the scoped lines; exclude mode only gates eligibility and keeps the full
// subtotal as the base.
func eligibleSubtotal(c *Coupon, octx OrderContext, scope map[string]struct{}) decimal.Decimal {
	if !c.ProductSpecific || c.Inclusion != InclusionInclude {
		return octx.Subtotal
	}
	sum := decimal.Zero
	for _, l := range octx.Lines {
		if _, ok := scope[l.ProductID]; ok {
			sum = sum.Add(l.Total())
		}
	}
	return sum
}

func clampRound(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(2)
}
