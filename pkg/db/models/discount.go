package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/pkg/enums"
)

// Discount is an admin-managed promotional price reduction applied
// automatically to the products it is linked to. Value is a percent for
// percentage discounts and an amount in cents for fixed discounts.
type Discount struct {
	ID               uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name             string             `gorm:"column:name;not null" json:"name"`
	Kind             enums.DiscountKind `gorm:"column:kind;type:text;not null" json:"kind"`
	Value            decimal.Decimal    `gorm:"column:value;type:numeric(12,2);not null" json:"value"`
	MinPurchaseCents *int               `gorm:"column:min_purchase_cents" json:"min_purchase_cents,omitempty"`
	MaxDiscountCents *int               `gorm:"column:max_discount_cents" json:"max_discount_cents,omitempty"`
	StartsAt         *time.Time         `gorm:"column:starts_at" json:"starts_at,omitempty"`
	EndsAt           *time.Time         `gorm:"column:ends_at" json:"ends_at,omitempty"`
	UsageLimit       *int               `gorm:"column:usage_limit" json:"usage_limit,omitempty"`
	UsageCount       int                `gorm:"column:usage_count;not null;default:0" json:"usage_count"`
	IsActive         bool               `gorm:"column:is_active;not null;default:true" json:"is_active"`
	Products         []Product          `gorm:"many2many:product_discounts" json:"-"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (d *Discount) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// ActiveAt reports whether the discount may be applied at the given instant:
// the active flag is set, the optional window contains now (a missing bound
// is unbounded on that side), and the optional usage cap is not exhausted.
func (d *Discount) ActiveAt(now time.Time) bool {
	if !d.IsActive {
		return false
	}
	if d.StartsAt != nil && now.Before(*d.StartsAt) {
		return false
	}
	if d.EndsAt != nil && now.After(*d.EndsAt) {
		return false
	}
	if d.UsageLimit != nil && d.UsageCount >= *d.UsageLimit {
		return false
	}
	return true
}
