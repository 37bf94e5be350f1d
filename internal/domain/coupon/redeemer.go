package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Applier is the engine's inbound contract: apply a coupon to an order, or
// preview the outcome without recording usage.
type Applier interface {
	Apply(ctx context.Context, code string, octx OrderContext) (*Redemption, error)
	Preview(ctx context.Context, code string, octx OrderContext) (*Redemption, error)
}

// Redeemer coordinates a redemption: fetch coupon and scope, evaluate,
// calculate, then commit the usage record and counter increment as one
// atomic unit through the Store.
//
// Steps before the commit run on a snapshot with no locking; the Store's
// RecordUsage re-checks the usage limit inside its transaction, which is the
// only place concurrent redemptions of the same coupon can race. The Redeemer
// never retries — a Conflict outcome is returned to the caller as
// usage_limit_reached.
type Redeemer struct {
	store Store
	now   func() time.Time
}

var _ Applier = (*Redeemer)(nil)

// NewRedeemer creates a Redeemer backed by the given Store.
func NewRedeemer(store Store) *Redeemer {
	return &Redeemer{store: store, now: time.Now}
}

// Apply redeems the coupon for the order. On success, exactly one usage
// record exists for (coupon, order) and the usage counter has been
// incremented. Expected outcomes surface as typed errors: ErrCodeNotFound,
// *IneligibleError, ErrOrderAlreadyRedeemed.
func (r *Redeemer) Apply(ctx context.Context, code string, octx OrderContext) (*Redemption, error) {
	c, red, err := r.evaluate(ctx, code, &octx)
	if err != nil {
		return nil, err
	}

	err = r.store.RecordUsage(ctx, c.ID, octx.OrderID, octx.CustomerEmail, red.Amount)
	switch {
	case err == nil:
	case errors.Is(err, ErrUsageConflict):
		// The limit raced between evaluation and commit. From the caller's
		// perspective this is the same verdict evaluation would have given a
		// moment later.
		return nil, &IneligibleError{Reason: ReasonUsageLimitReached}
	case errors.Is(err, ErrOrderAlreadyRedeemed):
		return nil, ErrOrderAlreadyRedeemed
	default:
		return nil, errors.Wrap(err, "record usage")
	}

	return red, nil
}

// Preview evaluates and calculates without recording usage. It is safe to
// call any number of times for the same order.
func (r *Redeemer) Preview(ctx context.Context, code string, octx OrderContext) (*Redemption, error) {
	_, red, err := r.evaluate(ctx, code, &octx)
	if err != nil {
		return nil, err
	}
	return red, nil
}

// evaluate runs the shared advisory phase: lookup, scope fetch, first-time
// check, eligibility, calculation. octx is mutated in place to carry the
// prior-purchase flag fetched from the Store.
func (r *Redeemer) evaluate(ctx context.Context, code string, octx *OrderContext) (*Coupon, *Redemption, error) {
	code = NormalizeCode(code)

	c, err := r.store.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrCodeNotFound) {
			return nil, nil, ErrCodeNotFound
		}
		return nil, nil, errors.Wrap(err, "lookup coupon")
	}

	var scope map[string]struct{}
	if c.ProductSpecific {
		ids, err := r.store.GetScope(ctx, c.ID)
		if err != nil {
			return nil, nil, errors.Wrap(err, "fetch coupon scope")
		}
		scope = BuildScope(ids)
	}

	if c.FirstTimeOnly {
		prior, err := r.store.HasPriorCompletedPurchase(ctx, octx.CustomerEmail)
		if err != nil {
			return nil, nil, errors.Wrap(err, "check prior purchases")
		}
		octx.HasPriorCompletedPurchase = prior
	}

	if err := Evaluate(c, *octx, scope, r.now()); err != nil {
		return nil, nil, err
	}

	amount, err := Calculate(c, *octx, scope)
	if err != nil {
		return nil, nil, errors.Wrap(err, "calculate discount")
	}

	return c, &Redemption{
		Code:         c.Code,
		DiscountType: c.DiscountType,
		Amount:       amount,
		FreeShipping: c.DiscountType == DiscountFreeShipping,
	}, nil
}
