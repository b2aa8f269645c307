package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
	"github.com/shoplane/shoplane-backend/pkg/logger"
	"github.com/shoplane/shoplane-backend/pkg/outbox"
	"github.com/shoplane/shoplane-backend/pkg/outbox/payloads"
	"github.com/shoplane/shoplane-backend/pkg/pagination"
	"github.com/shoplane/shoplane-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines order reads and fulfillment updates.
type Service interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	GetForOwner(ctx context.Context, owner types.CartOwner, id uuid.UUID) (*models.Order, error)
	ListByOwner(ctx context.Context, owner types.CartOwner, params pagination.Params) (*OrderList, error)
	List(ctx context.Context, params pagination.Params) (*OrderList, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) (*models.Order, error)
	UpdateShippingDetails(ctx context.Context, id uuid.UUID, patch ShippingPatch) (*models.Order, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

// NewService builds the order service.
func NewService(repo Repository, tx txRunner, publisher outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: publisher, logg: logg}, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.repo.FindByID(ctx, id)
}

// GetForOwner loads an order only when it belongs to the caller. A mismatch
// reads the same as a missing order so ids cannot be probed.
func (s *service) GetForOwner(ctx context.Context, owner types.CartOwner, id uuid.UUID) (*models.Order, error) {
	order, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ownerMatches(owner, order) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListByOwner(ctx context.Context, owner types.CartOwner, params pagination.Params) (*OrderList, error) {
	if owner.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "order owner required")
	}
	return s.repo.FindByOwner(ctx, owner, params)
}

func (s *service) List(ctx context.Context, params pagination.Params) (*OrderList, error) {
	return s.repo.List(ctx, params)
}

// UpdateStatus overwrites the order status. Transitions are deliberately not
// enforced beyond enum validity so operators can correct mistakes; the change
// is emitted through the outbox for downstream consumers.
func (s *service) UpdateStatus(ctx context.Context, id uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]any{"status": string(status)})
	}

	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, id)
		if err != nil {
			return err
		}
		oldStatus := order.Status
		if oldStatus == status {
			out = order
			return nil
		}
		if err := repo.UpdateStatus(ctx, id, status); err != nil {
			return err
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   id,
			Data: payloads.OrderStatusChangedEvent{
				OrderID:   id,
				OldStatus: oldStatus,
				NewStatus: status,
				ChangedAt: time.Now(),
			},
			Version: 1,
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
		if s.logg != nil {
			logCtx := s.logg.WithFields(ctx, map[string]any{
				"order_id":   id.String(),
				"old_status": string(oldStatus),
				"new_status": string(status),
			})
			s.logg.Info(logCtx, "order status updated")
		}
		out, err = repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateShippingDetails patches the denormalized shipping fields. Financials
// and items stay frozen after checkout.
func (s *service) UpdateShippingDetails(ctx context.Context, id uuid.UUID, patch ShippingPatch) (*models.Order, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	updates := patch.Updates()
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no shipping fields provided")
	}

	var out *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.UpdateShipping(ctx, id, updates); err != nil {
			return err
		}
		var err error
		out, err = repo.FindByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func ownerMatches(owner types.CartOwner, order *models.Order) bool {
	if userID, ok := owner.UserID(); ok {
		return order.UserID != nil && *order.UserID == userID
	}
	if sessionID, ok := owner.SessionID(); ok {
		return order.SessionID != nil && *order.SessionID == sessionID
	}
	return false
}
