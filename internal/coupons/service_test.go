package coupons

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
	"github.com/shoplane/shoplane-backend/pkg/types"
)

func setupCouponTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:coupons_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	coupons := `
CREATE TABLE IF NOT EXISTS coupons (
  id TEXT PRIMARY KEY,
  code TEXT NOT NULL UNIQUE,
  description TEXT,
  kind TEXT NOT NULL,
  value NUMERIC NOT NULL,
  min_purchase_cents INTEGER,
  max_discount_cents INTEGER,
  starts_at DATETIME,
  ends_at DATETIME,
  usage_limit INTEGER,
  usage_limit_per_user INTEGER,
  usage_count INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`
	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  user_id TEXT,
  session_id TEXT,
  coupon_code TEXT,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(coupons).Error)
	require.NoError(t, db.Exec(orders).Error)
	return db
}

func seedCoupon(t *testing.T, db *gorm.DB, coupon *models.Coupon) *models.Coupon {
	t.Helper()
	if coupon.ID == uuid.Nil {
		coupon.ID = uuid.New()
	}
	require.NoError(t, db.Create(coupon).Error)
	return coupon
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db))
	require.NoError(t, err)
	return svc
}

func TestValidateFixedCoupon(t *testing.T) {
	t.Parallel()

	db := setupCouponTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	min := 10000
	seedCoupon(t, db, &models.Coupon{
		Code:             "SAVE50",
		Kind:             enums.DiscountKindFixed,
		Value:            decimal.RequireFromString("5000"),
		MinPurchaseCents: &min,
		IsActive:         true,
	})

	got, err := svc.Validate(ctx, "save50", 12000, types.GuestOwner("sess-1"))
	require.NoError(t, err)
	assert.Equal(t, 5000, got.DiscountCents)
	assert.Equal(t, "SAVE50", got.Coupon.Code)

	// Below the minimum the coupon does not apply.
	_, err = svc.Validate(ctx, "SAVE50", 9000, types.GuestOwner("sess-1"))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestValidatePercentageCouponWithCap(t *testing.T) {
	t.Parallel()

	db := setupCouponTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	cap := 2500
	seedCoupon(t, db, &models.Coupon{
		Code:             "TEN",
		Kind:             enums.DiscountKindPercentage,
		Value:            decimal.RequireFromString("10"),
		MaxDiscountCents: &cap,
		IsActive:         true,
	})

	got, err := svc.Validate(ctx, "TEN", 20000, types.GuestOwner("sess-1"))
	require.NoError(t, err)
	assert.Equal(t, 2000, got.DiscountCents)

	capped, err := svc.Validate(ctx, "TEN", 50000, types.GuestOwner("sess-1"))
	require.NoError(t, err)
	assert.Equal(t, 2500, capped.DiscountCents)
}

func TestValidateRejectsUnknownAndInactive(t *testing.T) {
	t.Parallel()

	db := setupCouponTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	seedCoupon(t, db, &models.Coupon{
		Code:     "EXPIRED",
		Kind:     enums.DiscountKindFixed,
		Value:    decimal.RequireFromString("100"),
		EndsAt:   &past,
		IsActive: true,
	})

	_, err := svc.Validate(ctx, "MISSING", 10000, types.GuestOwner("sess-1"))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())

	_, err = svc.Validate(ctx, "EXPIRED", 10000, types.GuestOwner("sess-1"))
	require.Error(t, err)
	typed = pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())
}

func TestValidatePerUserCapSkipsGuests(t *testing.T) {
	t.Parallel()

	db := setupCouponTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()

	perUser := 1
	seedCoupon(t, db, &models.Coupon{
		Code:              "ONCE",
		Kind:              enums.DiscountKindFixed,
		Value:             decimal.RequireFromString("500"),
		UsageLimitPerUser: &perUser,
		IsActive:          true,
	})

	userID := uuid.New()
	require.NoError(t, db.Exec(
		"INSERT INTO orders (id, user_id, coupon_code, created_at) VALUES (?, ?, ?, ?)",
		uuid.NewString(), userID, "ONCE", time.Now(),
	).Error)

	_, err := svc.Validate(ctx, "ONCE", 10000, types.UserOwner(userID))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeStateConflict, typed.Code())

	// Guests cannot be tied to prior redemptions, so the cap does not apply.
	got, err := svc.Validate(ctx, "ONCE", 10000, types.GuestOwner("sess-1"))
	require.NoError(t, err)
	assert.Equal(t, 500, got.DiscountCents)
}

func TestRedeemInTxGuardsGlobalCap(t *testing.T) {
	t.Parallel()

	db := setupCouponTestDB(t)
	svc := newTestService(t, db)

	limit := 1
	coupon := seedCoupon(t, db, &models.Coupon{
		Code:       "LAST",
		Kind:       enums.DiscountKindFixed,
		Value:      decimal.RequireFromString("100"),
		UsageLimit: &limit,
		IsActive:   true,
	})

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.RedeemInTx(tx, coupon.ID)
	}))

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.RedeemInTx(tx, coupon.ID)
	})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeConflict, typed.Code())
	assert.True(t, pkgerrors.IsRetryable(err))

	var reloaded models.Coupon
	require.NoError(t, db.First(&reloaded, "id = ?", coupon.ID).Error)
	assert.Equal(t, 1, reloaded.UsageCount)
}
