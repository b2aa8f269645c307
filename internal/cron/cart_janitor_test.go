package cron

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shoplane/shoplane-backend/internal/cart"
	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
	"github.com/shoplane/shoplane-backend/pkg/logger"
	"github.com/shoplane/shoplane-backend/pkg/outbox"
)

type janitorTxRunner struct {
	db *gorm.DB
}

func (r janitorTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func setupJanitorTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:janitor_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	schemas := []string{
		`CREATE TABLE carts (
			id TEXT PRIMARY KEY,
			user_id TEXT UNIQUE,
			session_id TEXT UNIQUE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE cart_items (
			id TEXT PRIMARY KEY,
			cart_id TEXT NOT NULL,
			product_id TEXT NOT NULL,
			quantity INTEGER NOT NULL,
			price_cents INTEGER NOT NULL,
			discount_cents INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE(cart_id, product_id)
		)`,
		`CREATE TABLE outbox_events (
			id TEXT PRIMARY KEY,
			event_type TEXT NOT NULL,
			aggregate_type TEXT NOT NULL,
			aggregate_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			published_at DATETIME,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			last_error TEXT
		)`,
	}
	for _, schema := range schemas {
		require.NoError(t, gdb.Exec(schema).Error)
	}
	return gdb
}

func seedJanitorCart(t *testing.T, gdb *gorm.DB, userID *uuid.UUID, sessionID *string, updatedAt time.Time, itemCount int) *models.Cart {
	t.Helper()

	record := &models.Cart{UserID: userID, SessionID: sessionID}
	require.NoError(t, gdb.Create(record).Error)
	for i := 0; i < itemCount; i++ {
		item := &models.CartItem{
			CartID:     record.ID,
			ProductID:  uuid.New(),
			Quantity:   1,
			PriceCents: 1000,
		}
		require.NoError(t, gdb.Create(item).Error)
	}
	require.NoError(t, gdb.Model(&models.Cart{}).
		Where("id = ?", record.ID).
		UpdateColumn("updated_at", updatedAt).Error)
	return record
}

func TestCartJanitorDeletesIdleGuestCarts(t *testing.T) {
	gdb := setupJanitorTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "cron-test"})

	stale := time.Now().UTC().Add(-40 * 24 * time.Hour)
	fresh := time.Now().UTC()

	staleSession := "sess-stale"
	freshSession := "sess-fresh"
	userID := uuid.New()

	staleCart := seedJanitorCart(t, gdb, nil, &staleSession, stale, 2)
	freshCart := seedJanitorCart(t, gdb, nil, &freshSession, fresh, 1)
	userCart := seedJanitorCart(t, gdb, &userID, nil, stale, 1)

	job, err := NewCartJanitorJob(CartJanitorJobParams{
		Logger:  logg,
		DB:      janitorTxRunner{db: gdb},
		Carts:   cart.NewRepository(gdb),
		Outbox:  outbox.NewService(outbox.NewRepository(gdb), logg),
		IdleTTL: 30 * 24 * time.Hour,
	})
	require.NoError(t, err)
	require.Equal(t, "cart-janitor", job.Name())

	require.NoError(t, job.Run(context.Background()))

	var remaining []models.Cart
	require.NoError(t, gdb.Find(&remaining).Error)
	require.Len(t, remaining, 2)
	ids := map[uuid.UUID]bool{}
	for _, record := range remaining {
		ids[record.ID] = true
	}
	assert.False(t, ids[staleCart.ID])
	assert.True(t, ids[freshCart.ID])
	assert.True(t, ids[userCart.ID])

	var orphanItems int64
	require.NoError(t, gdb.Model(&models.CartItem{}).
		Where("cart_id = ?", staleCart.ID).
		Count(&orphanItems).Error)
	assert.Zero(t, orphanItems)

	var events []models.OutboxEvent
	require.NoError(t, gdb.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, enums.EventCartExpired, events[0].EventType)
	assert.Equal(t, staleCart.ID, events[0].AggregateID)
}

func TestCartJanitorNoIdleCarts(t *testing.T) {
	gdb := setupJanitorTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "cron-test"})

	session := "sess-active"
	seedJanitorCart(t, gdb, nil, &session, time.Now().UTC(), 1)

	job, err := NewCartJanitorJob(CartJanitorJobParams{
		Logger: logg,
		DB:     janitorTxRunner{db: gdb},
		Carts:  cart.NewRepository(gdb),
	})
	require.NoError(t, err)

	require.NoError(t, job.Run(context.Background()))

	var count int64
	require.NoError(t, gdb.Model(&models.Cart{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
