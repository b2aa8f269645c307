package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/pkg/enums"
	"github.com/shoplane/shoplane-backend/pkg/types"
)

// Order is the immutable snapshot of a completed checkout. Financial fields
// are frozen at creation; only Status and the shipping fields may change.
// TotalCents = SubtotalCents - DiscountCents - CouponDiscountCents
// + TaxCents + ShippingCents.
type Order struct {
	ID                  uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID              *uuid.UUID        `gorm:"column:user_id;type:uuid;index" json:"user_id,omitempty"`
	SessionID           *string           `gorm:"column:session_id;index" json:"session_id,omitempty"`
	Status              enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	ShippingName        string            `gorm:"column:shipping_name;not null" json:"shipping_name"`
	ShippingEmail       string            `gorm:"column:shipping_email;not null" json:"shipping_email"`
	ShippingPhone       *string           `gorm:"column:shipping_phone" json:"shipping_phone,omitempty"`
	ShippingLine1       string            `gorm:"column:shipping_line1;not null" json:"shipping_line1"`
	ShippingLine2       *string           `gorm:"column:shipping_line2" json:"shipping_line2,omitempty"`
	ShippingCity        string            `gorm:"column:shipping_city;not null" json:"shipping_city"`
	ShippingState       *string           `gorm:"column:shipping_state" json:"shipping_state,omitempty"`
	ShippingPostalCode  string            `gorm:"column:shipping_postal_code;not null" json:"shipping_postal_code"`
	ShippingCountry     string            `gorm:"column:shipping_country;not null" json:"shipping_country"`
	SubtotalCents       int               `gorm:"column:subtotal_cents;not null" json:"subtotal_cents"`
	DiscountCents       int               `gorm:"column:discount_cents;not null;default:0" json:"discount_cents"`
	CouponCode          *string           `gorm:"column:coupon_code" json:"coupon_code,omitempty"`
	CouponDiscountCents int               `gorm:"column:coupon_discount_cents;not null;default:0" json:"coupon_discount_cents"`
	TaxCents            int               `gorm:"column:tax_cents;not null;default:0" json:"tax_cents"`
	ShippingCents       int               `gorm:"column:shipping_cents;not null;default:0" json:"shipping_cents"`
	TotalCents          int               `gorm:"column:total_cents;not null" json:"total_cents"`
	Items               []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	User                *User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// ApplyShipping copies the denormalized shipping fields from the input.
func (o *Order) ApplyShipping(details types.ShippingDetails) {
	o.ShippingName = details.Name
	o.ShippingEmail = details.Email
	o.ShippingPhone = optionalString(details.Phone)
	o.ShippingLine1 = details.Line1
	o.ShippingLine2 = optionalString(details.Line2)
	o.ShippingCity = details.City
	o.ShippingState = optionalString(details.State)
	o.ShippingPostalCode = details.PostalCode
	o.ShippingCountry = details.Country
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
