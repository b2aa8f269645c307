package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/shoplane/shoplane-backend/pkg/enums"
)

// OrderCreatedEvent signals a cart was converted into an order.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID  `json:"order_id"`
	UserID      *uuid.UUID `json:"user_id,omitempty"`
	SessionID   *string    `json:"session_id,omitempty"`
	ItemCount   int        `json:"item_count"`
	CouponCode  *string    `json:"coupon_code,omitempty"`
	TotalCents  int        `json:"total_cents"`
	CompletedAt time.Time  `json:"completed_at"`
}

// OrderStatusChangedEvent is emitted on fulfillment status updates.
type OrderStatusChangedEvent struct {
	OrderID   uuid.UUID         `json:"order_id"`
	OldStatus enums.OrderStatus `json:"old_status"`
	NewStatus enums.OrderStatus `json:"new_status"`
	ChangedAt time.Time         `json:"changed_at"`
}

// CartExpiredEvent reports an idle guest cart removed by the janitor.
type CartExpiredEvent struct {
	CartID    uuid.UUID `json:"cart_id"`
	SessionID string    `json:"session_id"`
	ItemCount int       `json:"item_count"`
	ExpiredAt time.Time `json:"expired_at"`
}
