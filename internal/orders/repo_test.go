package orders

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
	"github.com/shoplane/shoplane-backend/pkg/pagination"
	"github.com/shoplane/shoplane-backend/pkg/types"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	schemas := []string{
		`CREATE TABLE users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			first_name TEXT NOT NULL,
			last_name TEXT NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE orders (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			session_id TEXT,
			status TEXT NOT NULL DEFAULT 'pending',
			shipping_name TEXT NOT NULL,
			shipping_email TEXT NOT NULL,
			shipping_phone TEXT,
			shipping_line1 TEXT NOT NULL,
			shipping_line2 TEXT,
			shipping_city TEXT NOT NULL,
			shipping_state TEXT,
			shipping_postal_code TEXT NOT NULL,
			shipping_country TEXT NOT NULL,
			subtotal_cents INTEGER NOT NULL,
			discount_cents INTEGER NOT NULL DEFAULT 0,
			coupon_code TEXT,
			coupon_discount_cents INTEGER NOT NULL DEFAULT 0,
			tax_cents INTEGER NOT NULL DEFAULT 0,
			shipping_cents INTEGER NOT NULL DEFAULT 0,
			total_cents INTEGER NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE order_items (
			id TEXT PRIMARY KEY,
			order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
			product_id TEXT,
			product_name TEXT NOT NULL,
			product_sku TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			price_cents INTEGER NOT NULL,
			discount_cents INTEGER NOT NULL DEFAULT 0,
			subtotal_cents INTEGER NOT NULL,
			created_at DATETIME NOT NULL
		)`,
	}
	for _, schema := range schemas {
		require.NoError(t, gdb.Exec(schema).Error)
	}
	return gdb
}

func seedOrder(t *testing.T, gdb *gorm.DB, userID *uuid.UUID, sessionID *string, createdAt time.Time) *models.Order {
	t.Helper()

	order := &models.Order{
		UserID:             userID,
		SessionID:          sessionID,
		Status:             enums.OrderStatusPending,
		ShippingName:       "Ada Lovelace",
		ShippingEmail:      "ada@example.com",
		ShippingLine1:      "1 Analytical Way",
		ShippingCity:       "London",
		ShippingPostalCode: "EC1A",
		ShippingCountry:    "GB",
		SubtotalCents:      5000,
		TotalCents:         5000,
	}
	require.NoError(t, gdb.Create(order).Error)
	require.NoError(t, gdb.Model(&models.Order{}).
		Where("id = ?", order.ID).
		UpdateColumn("created_at", createdAt).Error)
	order.CreatedAt = createdAt
	return order
}

func TestRepositoryCreateAndFindByID(t *testing.T) {
	gdb := setupOrdersTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	userID := uuid.New()
	require.NoError(t, gdb.Create(&models.User{
		ID:        userID,
		Email:     "buyer@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
		IsActive:  true,
	}).Error)

	order := seedOrder(t, gdb, &userID, nil, time.Now().UTC())
	items := []models.OrderItem{
		{OrderID: order.ID, ProductName: "Desk Lamp", ProductSKU: "LAMP-1", Quantity: 2, PriceCents: 2000, SubtotalCents: 4000},
		{OrderID: order.ID, ProductName: "Mouse Pad", ProductSKU: "PAD-1", Quantity: 1, PriceCents: 1000, SubtotalCents: 1000},
	}
	require.NoError(t, repo.CreateItems(ctx, items))

	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)
	require.NotNil(t, got.User)
	assert.Equal(t, "buyer@example.com", got.User.Email)

	_, err = repo.FindByID(ctx, uuid.New())
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}

func TestRepositoryFindByOwnerFilters(t *testing.T) {
	gdb := setupOrdersTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	userID := uuid.New()
	sessionID := "sess-guest-1"
	now := time.Now().UTC()
	seedOrder(t, gdb, &userID, nil, now)
	seedOrder(t, gdb, &userID, nil, now.Add(-time.Hour))
	seedOrder(t, gdb, nil, &sessionID, now.Add(-2*time.Hour))

	userList, err := repo.FindByOwner(ctx, types.UserOwner(userID), pagination.Params{})
	require.NoError(t, err)
	assert.Len(t, userList.Orders, 2)

	guestList, err := repo.FindByOwner(ctx, types.GuestOwner(sessionID), pagination.Params{})
	require.NoError(t, err)
	require.Len(t, guestList.Orders, 1)
	require.NotNil(t, guestList.Orders[0].SessionID)
	assert.Equal(t, sessionID, *guestList.Orders[0].SessionID)

	_, err = repo.FindByOwner(ctx, types.CartOwner{}, pagination.Params{})
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestRepositoryListPaginates(t *testing.T) {
	gdb := setupOrdersTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	var seeded []*models.Order
	for i := 0; i < 5; i++ {
		seeded = append(seeded, seedOrder(t, gdb, nil, ptr(fmt.Sprintf("sess-%d", i)), base.Add(-time.Duration(i)*time.Minute)))
	}

	first, err := repo.List(ctx, pagination.Params{Limit: 2})
	require.NoError(t, err)
	require.Len(t, first.Orders, 2)
	require.NotEmpty(t, first.NextCursor)
	assert.Equal(t, seeded[0].ID, first.Orders[0].ID)
	assert.Equal(t, seeded[1].ID, first.Orders[1].ID)

	second, err := repo.List(ctx, pagination.Params{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	require.Len(t, second.Orders, 2)
	assert.Equal(t, seeded[2].ID, second.Orders[0].ID)
	assert.Equal(t, seeded[3].ID, second.Orders[1].ID)

	third, err := repo.List(ctx, pagination.Params{Limit: 2, Cursor: second.NextCursor})
	require.NoError(t, err)
	require.Len(t, third.Orders, 1)
	assert.Equal(t, seeded[4].ID, third.Orders[0].ID)
	assert.Empty(t, third.NextCursor)

	_, err = repo.List(ctx, pagination.Params{Cursor: "not-a-cursor"})
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestRepositoryUpdateStatusAndShipping(t *testing.T) {
	gdb := setupOrdersTestDB(t)
	repo := NewRepository(gdb)
	ctx := context.Background()

	order := seedOrder(t, gdb, nil, ptr("sess-update"), time.Now().UTC())

	require.NoError(t, repo.UpdateStatus(ctx, order.ID, enums.OrderStatusShipped))
	got, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusShipped, got.Status)

	patch := ShippingPatch{City: ptr("Manchester"), Line2: ptr("Unit 4")}
	require.NoError(t, repo.UpdateShipping(ctx, order.ID, patch.Updates()))
	got, err = repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Manchester", got.ShippingCity)
	require.NotNil(t, got.ShippingLine2)
	assert.Equal(t, "Unit 4", *got.ShippingLine2)
	assert.Equal(t, "Ada Lovelace", got.ShippingName)

	err = repo.UpdateStatus(ctx, uuid.New(), enums.OrderStatusShipped)
	appErr := pkgerrors.As(err)
	require.NotNil(t, appErr)
	assert.Equal(t, pkgerrors.CodeNotFound, appErr.Code())
}

func ptr(s string) *string { return &s }
