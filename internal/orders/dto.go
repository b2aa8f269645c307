package orders

import "github.com/shoplane/shoplane-backend/pkg/db/models"

// OrderList is a cursor page of orders.
type OrderList struct {
	Orders     []models.Order `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// ShippingPatch carries a partial update of the denormalized shipping fields.
// Nil fields are left untouched.
type ShippingPatch struct {
	Name       *string `json:"name,omitempty"`
	Email      *string `json:"email,omitempty"`
	Phone      *string `json:"phone,omitempty"`
	Line1      *string `json:"line1,omitempty"`
	Line2      *string `json:"line2,omitempty"`
	City       *string `json:"city,omitempty"`
	State      *string `json:"state,omitempty"`
	PostalCode *string `json:"postal_code,omitempty"`
	Country    *string `json:"country,omitempty"`
}

// Updates converts the patch to a column map, skipping nil fields.
func (p ShippingPatch) Updates() map[string]any {
	updates := map[string]any{}
	set := func(column string, value *string) {
		if value != nil {
			updates[column] = *value
		}
	}
	set("shipping_name", p.Name)
	set("shipping_email", p.Email)
	set("shipping_phone", p.Phone)
	set("shipping_line1", p.Line1)
	set("shipping_line2", p.Line2)
	set("shipping_city", p.City)
	set("shipping_state", p.State)
	set("shipping_postal_code", p.PostalCode)
	set("shipping_country", p.Country)
	return updates
}
