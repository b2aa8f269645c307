package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/internal/cart"
	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
	"github.com/shoplane/shoplane-backend/pkg/logger"
	"github.com/shoplane/shoplane-backend/pkg/outbox"
	"github.com/shoplane/shoplane-backend/pkg/outbox/payloads"
)

const (
	defaultCartIdleTTL  = 30 * 24 * time.Hour
	janitorBatchSize    = 200
	janitorMaxBatchRuns = 50
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type idleCartRepo interface {
	WithTx(tx *gorm.DB) cart.CartRepository
	FindIdleGuestCarts(ctx context.Context, cutoff time.Time, limit int) ([]models.Cart, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// CartJanitorJobParams configure the idle guest cart cleanup.
type CartJanitorJobParams struct {
	Logger  *logger.Logger
	DB      txRunner
	Carts   idleCartRepo
	Outbox  outboxPublisher
	IdleTTL time.Duration
}

// NewCartJanitorJob builds the job that removes guest carts idle beyond the
// TTL. User carts are never touched; a signed-in customer keeps their cart
// until they empty it themselves.
func NewCartJanitorJob(params CartJanitorJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	idleTTL := params.IdleTTL
	if idleTTL <= 0 {
		idleTTL = defaultCartIdleTTL
	}
	return &cartJanitorJob{
		logg:    params.Logger,
		db:      params.DB,
		carts:   params.Carts,
		outbox:  params.Outbox,
		idleTTL: idleTTL,
		now:     time.Now,
	}, nil
}

type cartJanitorJob struct {
	logg    *logger.Logger
	db      txRunner
	carts   idleCartRepo
	outbox  outboxPublisher
	idleTTL time.Duration
	now     func() time.Time
}

func (j *cartJanitorJob) Name() string { return "cart-janitor" }

func (j *cartJanitorJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.idleTTL)
	deleted := 0
	var errs []error

	for batch := 0; batch < janitorMaxBatchRuns; batch++ {
		carts, err := j.carts.FindIdleGuestCarts(ctx, cutoff, janitorBatchSize)
		if err != nil {
			errs = append(errs, fmt.Errorf("find idle carts: %w", err))
			break
		}
		if len(carts) == 0 {
			break
		}
		for i := range carts {
			if err := j.expireCart(ctx, &carts[i]); err != nil {
				errs = append(errs, fmt.Errorf("expire cart %s: %w", carts[i].ID, err))
				continue
			}
			deleted++
		}
		if len(carts) < janitorBatchSize {
			break
		}
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"carts_deleted": deleted,
	})
	j.logg.Info(logCtx, "cart janitor sweep complete")
	return multierr.Combine(errs...)
}

func (j *cartJanitorJob) expireCart(ctx context.Context, record *models.Cart) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := j.carts.WithTx(tx).Delete(ctx, record.ID); err != nil {
			return err
		}
		if j.outbox == nil {
			return nil
		}
		sessionID := ""
		if record.SessionID != nil {
			sessionID = *record.SessionID
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventCartExpired,
			AggregateType: enums.AggregateCart,
			AggregateID:   record.ID,
			Data: payloads.CartExpiredEvent{
				CartID:    record.ID,
				SessionID: sessionID,
				ItemCount: len(record.Items),
				ExpiredAt: j.now(),
			},
			Version: 1,
		}
		return j.outbox.Emit(ctx, tx, event)
	})
}
