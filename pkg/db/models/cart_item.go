package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CartItem is one product line in a cart. PriceCents and DiscountCents are
// per-unit snapshots captured when the line was added or last updated; the
// cart shows the price the customer last saw, not the live price.
type CartItem struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CartID        uuid.UUID `gorm:"column:cart_id;type:uuid;not null;uniqueIndex:idx_cart_items_cart_product" json:"cart_id"`
	ProductID     uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_cart_items_cart_product" json:"product_id"`
	Quantity      int       `gorm:"column:quantity;not null" json:"quantity"`
	PriceCents    int       `gorm:"column:price_cents;not null" json:"price_cents"`
	DiscountCents int       `gorm:"column:discount_cents;not null;default:0" json:"discount_cents"`
	Product       *Product  `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	CreatedAt     time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (i *CartItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// LineSubtotalCents is the discounted line total.
func (i *CartItem) LineSubtotalCents() int {
	return (i.PriceCents - i.DiscountCents) * i.Quantity
}

// LineDiscountCents is the total discount across the line.
func (i *CartItem) LineDiscountCents() int {
	return i.DiscountCents * i.Quantity
}
