package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// OrderItem is the immutable snapshot of a cart line at order time.
// SubtotalCents = (PriceCents - DiscountCents) * Quantity.
type OrderItem struct {
	ID            uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID       uuid.UUID  `gorm:"column:order_id;type:uuid;not null;index" json:"order_id"`
	ProductID     *uuid.UUID `gorm:"column:product_id;type:uuid" json:"product_id,omitempty"`
	ProductName   string     `gorm:"column:product_name;not null" json:"product_name"`
	ProductSKU    string     `gorm:"column:product_sku;not null" json:"product_sku"`
	Quantity      int        `gorm:"column:quantity;not null" json:"quantity"`
	PriceCents    int        `gorm:"column:price_cents;not null" json:"price_cents"`
	DiscountCents int        `gorm:"column:discount_cents;not null;default:0" json:"discount_cents"`
	SubtotalCents int        `gorm:"column:subtotal_cents;not null" json:"subtotal_cents"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
