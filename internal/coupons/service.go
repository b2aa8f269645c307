package coupons

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
	"github.com/shoplane/shoplane-backend/pkg/types"
)

var oneHundred = decimal.NewFromInt(100)

// CouponRepository is the persistence surface the validator needs.
type CouponRepository interface {
	WithTx(tx *gorm.DB) *Repository
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
	CountRedemptionsByUser(ctx context.Context, code string, userID uuid.UUID) (int64, error)
	RedeemInTx(tx *gorm.DB, couponID uuid.UUID) error
}

// Validation is the outcome of a successful coupon check.
type Validation struct {
	Coupon        *models.Coupon
	DiscountCents int
}

// Service validates and redeems coupon codes.
type Service interface {
	Validate(ctx context.Context, code string, subtotalCents int, owner types.CartOwner) (*Validation, error)
	RedeemInTx(tx *gorm.DB, couponID uuid.UUID) error
}

type service struct {
	repo CouponRepository
	now  func() time.Time
}

// NewService builds the coupon service.
func NewService(repo CouponRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

// Validate checks the code against the active window, usage caps and minimum
// purchase, then computes the discount against the provided subtotal. Guests
// are exempt from the per-user cap since their redemptions cannot be tied to
// an account.
func (s *service) Validate(ctx context.Context, code string, subtotalCents int, owner types.CartOwner) (*Validation, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code required")
	}

	coupon, err := s.repo.FindByCode(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if coupon == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "coupon not found").
			WithDetails(map[string]any{"code": normalized})
	}
	if !coupon.ActiveAt(s.now()) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "coupon is not active").
			WithDetails(map[string]any{"code": normalized})
	}
	if coupon.MinPurchaseCents != nil && subtotalCents < *coupon.MinPurchaseCents {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "subtotal below coupon minimum").
			WithDetails(map[string]any{
				"code":               normalized,
				"min_purchase_cents": *coupon.MinPurchaseCents,
			})
	}
	if coupon.UsageLimitPerUser != nil {
		if userID, ok := owner.UserID(); ok {
			used, err := s.repo.CountRedemptionsByUser(ctx, normalized, userID)
			if err != nil {
				return nil, err
			}
			if used >= int64(*coupon.UsageLimitPerUser) {
				return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "coupon usage limit reached").
					WithDetails(map[string]any{"code": normalized})
			}
		}
	}

	return &Validation{
		Coupon:        coupon,
		DiscountCents: discountCents(coupon, subtotalCents),
	}, nil
}

func (s *service) RedeemInTx(tx *gorm.DB, couponID uuid.UUID) error {
	return s.repo.RedeemInTx(tx, couponID)
}

// NormalizeCode canonicalizes user-entered coupon codes.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// discountCents mirrors the product discount math against the subtotal.
func discountCents(coupon *models.Coupon, subtotalCents int) int {
	var cents int
	switch coupon.Kind {
	case enums.DiscountKindPercentage:
		amount := decimal.NewFromInt(int64(subtotalCents)).Mul(coupon.Value).Div(oneHundred)
		cents = int(amount.Round(0).IntPart())
	case enums.DiscountKindFixed:
		cents = int(coupon.Value.IntPart())
	default:
		return 0
	}
	if coupon.MaxDiscountCents != nil && cents > *coupon.MaxDiscountCents {
		cents = *coupon.MaxDiscountCents
	}
	if cents > subtotalCents {
		cents = subtotalCents
	}
	if cents < 0 {
		cents = 0
	}
	return cents
}
