package cart

import "github.com/shoplane/shoplane-backend/pkg/db/models"

// CartView is the read model returned to callers. Aggregates are recomputed
// from the item snapshots on every read and never persisted.
type CartView struct {
	Cart               *models.Cart `json:"cart"`
	TotalItems         int          `json:"total_items"`
	SubtotalCents      int          `json:"subtotal_cents"`
	TotalDiscountCents int          `json:"total_discount_cents"`
	TotalCents         int          `json:"total_cents"`
}

// BuildView computes the aggregates for the provided cart.
func BuildView(cart *models.Cart) *CartView {
	view := &CartView{Cart: cart}
	if cart == nil {
		return view
	}
	for _, item := range cart.Items {
		view.TotalItems += item.Quantity
		view.SubtotalCents += item.PriceCents * item.Quantity
		view.TotalDiscountCents += item.DiscountCents * item.Quantity
	}
	view.TotalCents = view.SubtotalCents - view.TotalDiscountCents
	return view
}
