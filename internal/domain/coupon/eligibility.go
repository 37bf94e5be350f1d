package coupon

import "time"

// Evaluate runs the eligibility checks for the coupon against the order,
// fail-fast in a fixed order, and returns an IneligibleError naming the first
// violated precondition. A nil return means the coupon is eligible.
//
// Evaluate is pure: it performs no I/O and consults no clock of its own —
// the caller supplies the evaluation timestamp. Repeated calls with the same
// inputs always return the same verdict.
func Evaluate(c *Coupon, octx OrderContext, scope map[string]struct{}, now time.Time) error {
	if !c.Active {
		return &IneligibleError{Reason: ReasonInactive}
	}

	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return &IneligibleError{Reason: ReasonNotYetStarted}
	}
	if c.ExpiresAt != nil && now.After(*c.ExpiresAt) {
		return &IneligibleError{Reason: ReasonExpired}
	}

	if c.UsageLimit > 0 && c.UsageCount >= c.UsageLimit {
		return &IneligibleError{Reason: ReasonUsageLimitReached}
	}

	if c.FirstTimeOnly && octx.HasPriorCompletedPurchase {
		return &IneligibleError{Reason: ReasonNotFirstTimeCustomer}
	}

	if octx.Subtotal.LessThan(c.MinimumOrder) {
		return &IneligibleError{Reason: ReasonBelowMinimumOrder}
	}

	if c.ProductSpecific {
		if err := evaluateScope(c, octx.Lines, scope); err != nil {
			return err
		}
	}

	return nil
}

// evaluateScope applies the include/exclude interpretation of the scope set.
// An empty include set matches nothing, so such a coupon never applies.
func evaluateScope(c *Coupon, lines []OrderLine, scope map[string]struct{}) error {
	switch c.Inclusion {
	case InclusionInclude:
		for _, l := range lines {
			if _, ok := scope[l.ProductID]; ok {
				return nil
			}
		}
		return &IneligibleError{Reason: ReasonNoEligibleProducts}
	case InclusionExclude:
		for _, l := range lines {
			if _, ok := scope[l.ProductID]; !ok {
				return nil
			}
		}
		return &IneligibleError{Reason: ReasonAllProductsExcluded}
	default:
		// Unknown inclusion mode on a product-specific coupon: treat as
		// matching nothing rather than silently applying to everything.
		return &IneligibleError{Reason: ReasonNoEligibleProducts}
	}
}

// BuildScope converts a product id list into the set form Evaluate and
// Calculate consume.
func BuildScope(productIDs []string) map[string]struct{} {
	if len(productIDs) == 0 {
		return nil
	}
	scope := make(map[string]struct{}, len(productIDs))
	for _, id := range productIDs {
		scope[id] = struct{}{}
	}
	return scope
}
