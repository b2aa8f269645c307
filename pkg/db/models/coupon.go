package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/pkg/enums"
)

// Coupon is a customer-entered promotional code applied once against the
// cart subtotal at checkout. UsageCount is incremented transactionally with
// order creation and never exceeds UsageLimit once set.
type Coupon struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Code              string             `gorm:"column:code;not null;uniqueIndex" json:"code"`
	Description       *string            `gorm:"column:description" json:"description,omitempty"`
	Kind              enums.DiscountKind `gorm:"column:kind;type:text;not null" json:"kind"`
	Value             decimal.Decimal    `gorm:"column:value;type:numeric(12,2);not null" json:"value"`
	MinPurchaseCents  *int               `gorm:"column:min_purchase_cents" json:"min_purchase_cents,omitempty"`
	MaxDiscountCents  *int               `gorm:"column:max_discount_cents" json:"max_discount_cents,omitempty"`
	StartsAt          *time.Time         `gorm:"column:starts_at" json:"starts_at,omitempty"`
	EndsAt            *time.Time         `gorm:"column:ends_at" json:"ends_at,omitempty"`
	UsageLimit        *int               `gorm:"column:usage_limit" json:"usage_limit,omitempty"`
	UsageLimitPerUser *int               `gorm:"column:usage_limit_per_user" json:"usage_limit_per_user,omitempty"`
	UsageCount        int                `gorm:"column:usage_count;not null;default:0" json:"usage_count"`
	IsActive          bool               `gorm:"column:is_active;not null;default:true" json:"is_active"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (c *Coupon) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ActiveAt mirrors Discount.ActiveAt for coupon codes.
func (c *Coupon) ActiveAt(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.StartsAt != nil && now.Before(*c.StartsAt) {
		return false
	}
	if c.EndsAt != nil && now.After(*c.EndsAt) {
		return false
	}
	if c.UsageLimit != nil && c.UsageCount >= *c.UsageLimit {
		return false
	}
	return true
}
