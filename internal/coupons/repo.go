package coupons

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/pkg/db/models"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
)

// Repository exposes persistence operations for coupons.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a coupon repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx binds the repository to a transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByCode loads a coupon by its normalized code, or nil when none exists.
func (r *Repository) FindByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&coupon).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &coupon, nil
}

// CountRedemptionsByUser counts completed orders where the user already used
// the coupon code.
func (r *Repository) CountRedemptionsByUser(ctx context.Context, code string, userID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("user_id = ? AND coupon_code = ?", userID, code).
		Count(&count).Error
	return count, err
}

// RedeemInTx increments the coupon's usage count inside the checkout
// transaction. The guard clause makes concurrent redemptions of the last
// slot lose with zero rows affected, which surfaces as a retryable conflict.
func (r *Repository) RedeemInTx(tx *gorm.DB, couponID uuid.UUID) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	res := tx.Model(&models.Coupon{}).
		Where("id = ?", couponID).
		Where("usage_limit IS NULL OR usage_count < usage_limit").
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1"))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "coupon is no longer available")
	}
	return nil
}
