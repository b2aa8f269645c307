package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoplane/shoplane-backend/pkg/config"
	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
)

var oneHundred = decimal.NewFromInt(100)

// Quote is the per-unit price outcome for a product at a point in time.
type Quote struct {
	UnitPriceCents    int
	UnitDiscountCents int
	Applied           *models.Discount
}

// EffectiveUnitCents returns the unit price after the discount.
func (q Quote) EffectiveUnitCents() int {
	return q.UnitPriceCents - q.UnitDiscountCents
}

// Resolver selects the best product discount for a line.
type Resolver struct {
	cfg config.PricingConfig
}

// NewResolver builds a pricing resolver.
func NewResolver(cfg config.PricingConfig) *Resolver {
	return &Resolver{cfg: cfg}
}

// Resolve computes the unit price and the largest eligible discount for the
// product. Discounts scoped to the product always compete; unscoped discounts
// only participate when the global flag is enabled. When several discounts
// produce the same amount the first one wins.
func (r *Resolver) Resolve(product *models.Product, qty int, globals []models.Discount, now time.Time) Quote {
	quote := Quote{UnitPriceCents: product.BasePriceCents()}
	if qty <= 0 {
		qty = 1
	}

	candidates := make([]models.Discount, 0, len(product.Discounts)+len(globals))
	candidates = append(candidates, product.Discounts...)
	if r.cfg.ApplyUnscopedGlobally {
		candidates = append(candidates, globals...)
	}

	lineBase := quote.UnitPriceCents * qty
	for i := range candidates {
		d := &candidates[i]
		if !d.ActiveAt(now) {
			continue
		}
		if d.MinPurchaseCents != nil && lineBase < *d.MinPurchaseCents {
			continue
		}
		amount := unitDiscountCents(d, quote.UnitPriceCents)
		if amount <= 0 {
			continue
		}
		if amount > quote.UnitDiscountCents {
			quote.UnitDiscountCents = amount
			quote.Applied = d
		}
	}
	return quote
}

// unitDiscountCents computes the per-unit reduction, clamped to the cap and
// to the unit price itself.
func unitDiscountCents(d *models.Discount, unitPriceCents int) int {
	var cents int
	switch d.Kind {
	case enums.DiscountKindPercentage:
		amount := decimal.NewFromInt(int64(unitPriceCents)).Mul(d.Value).Div(oneHundred)
		cents = int(amount.Round(0).IntPart())
	case enums.DiscountKindFixed:
		cents = int(d.Value.IntPart())
	default:
		return 0
	}
	if d.MaxDiscountCents != nil && cents > *d.MaxDiscountCents {
		cents = *d.MaxDiscountCents
	}
	if cents > unitPriceCents {
		cents = unitPriceCents
	}
	if cents < 0 {
		cents = 0
	}
	return cents
}
