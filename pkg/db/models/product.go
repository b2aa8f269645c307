package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Product is the canonical catalog listing. Checkout reads products and
// mutates only the stock counters; all other fields are admin-owned.
type Product struct {
	ID             uuid.UUID      `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	SKU            string         `gorm:"column:sku;not null;uniqueIndex" json:"sku"`
	Name           string         `gorm:"column:name;not null" json:"name"`
	Description    *string        `gorm:"column:description" json:"description,omitempty"`
	PriceCents     int            `gorm:"column:price_cents;not null" json:"price_cents"`
	SalePriceCents *int           `gorm:"column:sale_price_cents" json:"sale_price_cents,omitempty"`
	StockQuantity  int            `gorm:"column:stock_quantity;not null;default:0" json:"stock_quantity"`
	ManageStock    bool           `gorm:"column:manage_stock;not null;default:false" json:"manage_stock"`
	InStock        bool           `gorm:"column:in_stock;not null;default:true" json:"in_stock"`
	IsActive       bool           `gorm:"column:is_active;not null;default:true" json:"is_active"`
	Tags           pq.StringArray `gorm:"column:tags;type:text[]" json:"tags,omitempty"`
	Discounts      []Discount     `gorm:"many2many:product_discounts" json:"discounts,omitempty"`
	CreatedAt      time.Time      `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// BasePriceCents is the price a unit sells at before promotional discounts:
// the sale price when one is set, otherwise the regular price.
func (p *Product) BasePriceCents() int {
	if p.SalePriceCents != nil {
		return *p.SalePriceCents
	}
	return p.PriceCents
}

// Purchasable reports whether the product can currently be added to a cart.
func (p *Product) Purchasable() bool {
	if !p.IsActive {
		return false
	}
	if p.ManageStock && !p.InStock {
		return false
	}
	return true
}
