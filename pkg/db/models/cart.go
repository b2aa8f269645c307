package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/pkg/types"
)

// Cart is the mutable pre-order container. Exactly one of UserID/SessionID
// is set: a user has at most one cart and a session has at most one cart.
// Guest carts are merged into the user cart when the session authenticates.
type Cart struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    *uuid.UUID `gorm:"column:user_id;type:uuid;uniqueIndex" json:"user_id,omitempty"`
	SessionID *string    `gorm:"column:session_id;uniqueIndex" json:"session_id,omitempty"`
	Items     []CartItem `gorm:"foreignKey:CartID;constraint:OnDelete:CASCADE" json:"items"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// Owner reconstructs the tagged owner variant from the persisted columns.
func (c *Cart) Owner() types.CartOwner {
	if c.UserID != nil {
		return types.UserOwner(*c.UserID)
	}
	if c.SessionID != nil {
		return types.GuestOwner(*c.SessionID)
	}
	return types.CartOwner{}
}
