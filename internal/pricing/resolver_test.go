package pricing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shoplane/shoplane-backend/pkg/config"
	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
)

func TestResolvePercentageDiscount(t *testing.T) {
	t.Parallel()

	product := &models.Product{
		PriceCents: 10000,
		Discounts: []models.Discount{
			activeDiscount(enums.DiscountKindPercentage, "20"),
		},
	}

	quote := NewResolver(config.PricingConfig{}).Resolve(product, 1, nil, time.Now())
	if quote.UnitPriceCents != 10000 {
		t.Fatalf("expected unit price 10000, got %d", quote.UnitPriceCents)
	}
	if quote.UnitDiscountCents != 2000 {
		t.Fatalf("expected discount 2000, got %d", quote.UnitDiscountCents)
	}
	if quote.EffectiveUnitCents() != 8000 {
		t.Fatalf("expected effective 8000, got %d", quote.EffectiveUnitCents())
	}
}

func TestResolvePercentageDiscountRespectsCap(t *testing.T) {
	t.Parallel()

	cap := 1500
	d := activeDiscount(enums.DiscountKindPercentage, "20")
	d.MaxDiscountCents = &cap
	product := &models.Product{
		PriceCents: 10000,
		Discounts:  []models.Discount{d},
	}

	quote := NewResolver(config.PricingConfig{}).Resolve(product, 1, nil, time.Now())
	if quote.UnitDiscountCents != 1500 {
		t.Fatalf("expected capped discount 1500, got %d", quote.UnitDiscountCents)
	}
}

func TestResolveFixedDiscountClampedToUnitPrice(t *testing.T) {
	t.Parallel()

	product := &models.Product{
		PriceCents: 500,
		Discounts: []models.Discount{
			activeDiscount(enums.DiscountKindFixed, "900"),
		},
	}

	quote := NewResolver(config.PricingConfig{}).Resolve(product, 1, nil, time.Now())
	if quote.UnitDiscountCents != 500 {
		t.Fatalf("expected clamp to 500, got %d", quote.UnitDiscountCents)
	}
	if quote.EffectiveUnitCents() != 0 {
		t.Fatalf("expected effective 0, got %d", quote.EffectiveUnitCents())
	}
}

func TestResolvePicksLargestDiscount(t *testing.T) {
	t.Parallel()

	product := &models.Product{
		PriceCents: 10000,
		Discounts: []models.Discount{
			activeDiscount(enums.DiscountKindFixed, "1000"),
			activeDiscount(enums.DiscountKindPercentage, "25"),
			activeDiscount(enums.DiscountKindFixed, "1200"),
		},
	}

	quote := NewResolver(config.PricingConfig{}).Resolve(product, 1, nil, time.Now())
	if quote.UnitDiscountCents != 2500 {
		t.Fatalf("expected best discount 2500, got %d", quote.UnitDiscountCents)
	}
	if quote.Applied == nil || quote.Applied.Kind != enums.DiscountKindPercentage {
		t.Fatalf("expected percentage discount to win")
	}
}

func TestResolveSkipsInactiveAndExpired(t *testing.T) {
	t.Parallel()

	now := time.Now()
	expired := activeDiscount(enums.DiscountKindPercentage, "50")
	past := now.Add(-time.Hour)
	expired.EndsAt = &past

	disabled := activeDiscount(enums.DiscountKindPercentage, "50")
	disabled.IsActive = false

	product := &models.Product{
		PriceCents: 10000,
		Discounts:  []models.Discount{expired, disabled},
	}

	quote := NewResolver(config.PricingConfig{}).Resolve(product, 1, nil, now)
	if quote.UnitDiscountCents != 0 {
		t.Fatalf("expected no discount, got %d", quote.UnitDiscountCents)
	}
	if quote.Applied != nil {
		t.Fatal("expected no applied discount")
	}
}

func TestResolveMinPurchaseUsesLineSubtotal(t *testing.T) {
	t.Parallel()

	min := 5000
	d := activeDiscount(enums.DiscountKindPercentage, "10")
	d.MinPurchaseCents = &min
	product := &models.Product{
		PriceCents: 2000,
		Discounts:  []models.Discount{d},
	}
	resolver := NewResolver(config.PricingConfig{})

	if quote := resolver.Resolve(product, 1, nil, time.Now()); quote.UnitDiscountCents != 0 {
		t.Fatalf("expected no discount below minimum, got %d", quote.UnitDiscountCents)
	}
	if quote := resolver.Resolve(product, 3, nil, time.Now()); quote.UnitDiscountCents != 200 {
		t.Fatalf("expected discount once line clears minimum, got %d", quote.UnitDiscountCents)
	}
}

func TestResolveUnscopedDiscountsRequireFlag(t *testing.T) {
	t.Parallel()

	product := &models.Product{PriceCents: 10000}
	globals := []models.Discount{activeDiscount(enums.DiscountKindPercentage, "10")}

	off := NewResolver(config.PricingConfig{}).Resolve(product, 1, globals, time.Now())
	if off.UnitDiscountCents != 0 {
		t.Fatalf("expected unscoped discount ignored, got %d", off.UnitDiscountCents)
	}

	on := NewResolver(config.PricingConfig{ApplyUnscopedGlobally: true}).Resolve(product, 1, globals, time.Now())
	if on.UnitDiscountCents != 1000 {
		t.Fatalf("expected unscoped discount applied, got %d", on.UnitDiscountCents)
	}
}

func activeDiscount(kind enums.DiscountKind, value string) models.Discount {
	return models.Discount{
		Name:     "test",
		Kind:     kind,
		Value:    decimal.RequireFromString(value),
		IsActive: true,
	}
}
