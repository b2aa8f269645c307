package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/internal/cart"
	"github.com/shoplane/shoplane-backend/internal/checkout/reservation"
	"github.com/shoplane/shoplane-backend/internal/coupons"
	"github.com/shoplane/shoplane-backend/internal/orders"
	"github.com/shoplane/shoplane-backend/pkg/db/models"
	"github.com/shoplane/shoplane-backend/pkg/enums"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
	"github.com/shoplane/shoplane-backend/pkg/logger"
	"github.com/shoplane/shoplane-backend/pkg/metrics"
	"github.com/shoplane/shoplane-backend/pkg/outbox"
	"github.com/shoplane/shoplane-backend/pkg/outbox/payloads"
	"github.com/shoplane/shoplane-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Product, error)
}

// cartResolver owns cart resolution, including the merge of a leftover guest
// cart into the user cart right after login. Checkout must go through it so an
// order placed in the login-transition window sees the merged cart, not
// whichever cart the bare owner lookup happens to hit.
type cartResolver interface {
	Resolve(ctx context.Context, identity types.Identity) (*models.Cart, error)
}

type reservationRunner interface {
	Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.StockReservationRequest) ([]reservation.StockReservationResult, error)
}

type couponValidator interface {
	Validate(ctx context.Context, code string, subtotalCents int, owner types.CartOwner) (*coupons.Validation, error)
	RedeemInTx(tx *gorm.DB, couponID uuid.UUID) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type reservationEngine struct{}

func (reservationEngine) Reserve(ctx context.Context, tx *gorm.DB, requests []reservation.StockReservationRequest) ([]reservation.StockReservationResult, error) {
	return reservation.ReserveStock(ctx, tx, requests)
}

// PlaceOrderInput carries the checkout form.
type PlaceOrderInput struct {
	Shipping   types.ShippingDetails
	CouponCode *string
}

// Service converts the caller's cart into an order.
type Service interface {
	PlaceOrder(ctx context.Context, identity types.Identity, input PlaceOrderInput) (*models.Order, error)
}

type service struct {
	tx          txRunner
	cartRepo    cart.CartRepository
	carts       cartResolver
	ordersRepo  orders.Repository
	products    productLoader
	coupons     couponValidator
	reservation reservationRunner
	outbox      outboxPublisher
	metrics     *metrics.CheckoutMetrics
	logg        *logger.Logger
	now         func() time.Time
}

// NewService builds the checkout service.
func NewService(
	tx txRunner,
	cartRepo cart.CartRepository,
	carts cartResolver,
	ordersRepo orders.Repository,
	products productLoader,
	couponSvc couponValidator,
	reservationRunner reservationRunner,
	publisher outboxPublisher,
	checkoutMetrics *metrics.CheckoutMetrics,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if cartRepo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart resolver required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if couponSvc == nil {
		return nil, fmt.Errorf("coupon service required")
	}
	if reservationRunner == nil {
		reservationRunner = reservationEngine{}
	}
	if publisher == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		tx:          tx,
		cartRepo:    cartRepo,
		carts:       carts,
		ordersRepo:  ordersRepo,
		products:    products,
		coupons:     couponSvc,
		reservation: reservationRunner,
		outbox:      publisher,
		metrics:     checkoutMetrics,
		logg:        logg,
		now:         time.Now,
	}, nil
}

// PlaceOrder runs checkout in two phases. The first phase is advisory: it
// validates the cart against live product state so most failures surface
// before any write. The second phase is one transaction whose row-locked
// stock decrement is the actual guarantee against overselling.
func (s *service) PlaceOrder(ctx context.Context, identity types.Identity, input PlaceOrderInput) (*models.Order, error) {
	started := s.now()
	order, err := s.placeOrder(ctx, identity, input)
	if err != nil {
		s.metrics.IncFailure(failureReason(err))
		s.metrics.ObserveDuration("failure", s.now().Sub(started))
		return nil, err
	}
	s.metrics.IncOrderPlaced(ownerLabel(identity.Owner()))
	s.metrics.ObserveDuration("success", s.now().Sub(started))
	return order, nil
}

func (s *service) placeOrder(ctx context.Context, identity types.Identity, input PlaceOrderInput) (*models.Order, error) {
	owner := identity.Owner()
	if owner.IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart owner required")
	}
	if err := validateShipping(input.Shipping); err != nil {
		return nil, err
	}

	record, err := s.loadCart(ctx, identity)
	if err != nil {
		return nil, err
	}
	if record == nil || len(record.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	if err := s.advisoryCheck(ctx, record.Items); err != nil {
		return nil, err
	}

	subtotal, discount := 0, 0
	for _, item := range record.Items {
		subtotal += item.PriceCents * item.Quantity
		discount += item.DiscountCents * item.Quantity
	}

	applied, err := s.resolveCoupon(ctx, input.CouponCode, subtotal-discount, owner)
	if err != nil {
		return nil, err
	}
	couponDiscount := 0
	var couponCode *string
	if applied != nil {
		couponDiscount = applied.DiscountCents
		code := applied.Coupon.Code
		couponCode = &code
	}

	taxCents, shippingCents := 0, 0
	total := subtotal - discount - couponDiscount + taxCents + shippingCents

	var placed *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cartRepo := s.cartRepo.WithTx(tx)
		ordersRepo := s.ordersRepo.WithTx(tx)

		requests := make([]reservation.StockReservationRequest, len(record.Items))
		for i, item := range record.Items {
			requests[i] = reservation.StockReservationRequest{
				CartItemID: item.ID,
				ProductID:  item.ProductID,
				Qty:        item.Quantity,
			}
		}
		results, err := s.reservation.Reserve(ctx, tx, requests)
		if err != nil {
			return err
		}
		for _, result := range results {
			if !result.Reserved {
				return pkgerrors.New(pkgerrors.CodeStateConflict, result.Reason).
					WithDetails(map[string]any{"product_id": result.ProductID.String()})
			}
		}

		order := &models.Order{
			UserID:              record.UserID,
			SessionID:           record.SessionID,
			Status:              enums.OrderStatusPending,
			SubtotalCents:       subtotal,
			DiscountCents:       discount,
			CouponCode:          couponCode,
			CouponDiscountCents: couponDiscount,
			TaxCents:            taxCents,
			ShippingCents:       shippingCents,
			TotalCents:          total,
		}
		order.ApplyShipping(input.Shipping)
		created, err := ordersRepo.Create(ctx, order)
		if err != nil {
			return err
		}

		items := make([]models.OrderItem, len(record.Items))
		for i, item := range record.Items {
			items[i] = buildOrderItem(created.ID, item)
		}
		if err := ordersRepo.CreateItems(ctx, items); err != nil {
			return err
		}

		if applied != nil {
			if err := s.coupons.RedeemInTx(tx, applied.Coupon.ID); err != nil {
				return err
			}
		}

		if err := cartRepo.DeleteItems(ctx, record.ID); err != nil {
			return err
		}
		if err := cartRepo.TouchCart(ctx, record.ID); err != nil {
			return err
		}

		if err := s.emitOrderCreated(ctx, tx, created, len(items)); err != nil {
			return err
		}

		placed, err = ordersRepo.FindByID(ctx, created.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"order_id":    placed.ID.String(),
			"total_cents": placed.TotalCents,
			"item_count":  len(placed.Items),
		})
		s.logg.Info(logCtx, "order placed")
	}
	return placed, nil
}

func (s *service) loadCart(ctx context.Context, identity types.Identity) (*models.Cart, error) {
	record, err := s.carts.Resolve(ctx, identity)
	if err != nil || record == nil {
		return nil, err
	}
	// reload with items and products preloaded
	return s.cartRepo.FindByID(ctx, record.ID)
}

// advisoryCheck rejects carts holding inactive or under-stocked products.
// It reads without locks, so it can pass and the transactional decrement
// still fail under concurrency.
func (s *service) advisoryCheck(ctx context.Context, items []models.CartItem) error {
	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for _, item := range items {
		product := products[item.ProductID]
		if product == nil || !product.Purchasable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("product %q is not available", productName(product, item))).
				WithDetails(map[string]any{"product_id": item.ProductID.String()})
		}
		if product.ManageStock && item.Quantity > product.StockQuantity {
			return pkgerrors.New(pkgerrors.CodeStateConflict,
				fmt.Sprintf("insufficient stock for %q: %d available, %d requested",
					product.Name, product.StockQuantity, item.Quantity)).
				WithDetails(map[string]any{
					"product_id": item.ProductID.String(),
					"available":  product.StockQuantity,
					"requested":  item.Quantity,
				})
		}
	}
	return nil
}

// resolveCoupon validates the optional code. A coupon that fails a business
// rule is dropped with a warning rather than aborting checkout. Infrastructure
// failures are not a license to silently reprice the order, so they surface to
// the caller as retryable errors.
func (s *service) resolveCoupon(ctx context.Context, code *string, subtotalCents int, owner types.CartOwner) (*coupons.Validation, error) {
	if code == nil || strings.TrimSpace(*code) == "" {
		return nil, nil
	}
	applied, err := s.coupons.Validate(ctx, *code, subtotalCents, owner)
	if err != nil {
		if !couponRuleFailure(err) {
			return nil, err
		}
		if s.logg != nil {
			logCtx := s.logg.WithField(ctx, "coupon_code", coupons.NormalizeCode(*code))
			s.logg.Warn(logCtx, "coupon rejected at checkout: "+err.Error())
		}
		return nil, nil
	}
	return applied, nil
}

// couponRuleFailure reports whether the validation error is a coupon business
// rule rejection. Anything else, a failed lookup included, is an
// infrastructure problem.
func couponRuleFailure(err error) bool {
	appErr := pkgerrors.As(err)
	if appErr == nil {
		return false
	}
	switch appErr.Code() {
	case pkgerrors.CodeValidation, pkgerrors.CodeNotFound, pkgerrors.CodeStateConflict:
		return true
	}
	return false
}

func (s *service) emitOrderCreated(ctx context.Context, tx *gorm.DB, order *models.Order, itemCount int) error {
	event := outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor: &outbox.ActorRef{
			UserID:    order.UserID,
			SessionID: order.SessionID,
		},
		Data: payloads.OrderCreatedEvent{
			OrderID:     order.ID,
			UserID:      order.UserID,
			SessionID:   order.SessionID,
			ItemCount:   itemCount,
			CouponCode:  order.CouponCode,
			TotalCents:  order.TotalCents,
			CompletedAt: s.now(),
		},
		Version: 1,
	}
	return s.outbox.Emit(ctx, tx, event)
}

func buildOrderItem(orderID uuid.UUID, item models.CartItem) models.OrderItem {
	name, sku := "", ""
	if item.Product != nil {
		name = item.Product.Name
		sku = item.Product.SKU
	}
	productID := item.ProductID
	return models.OrderItem{
		OrderID:       orderID,
		ProductID:     &productID,
		ProductName:   name,
		ProductSKU:    sku,
		Quantity:      item.Quantity,
		PriceCents:    item.PriceCents,
		DiscountCents: item.DiscountCents,
		SubtotalCents: item.LineSubtotalCents(),
	}
}

func validateShipping(details types.ShippingDetails) error {
	missing := []string{}
	require := func(field, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	require("name", details.Name)
	require("email", details.Email)
	require("line1", details.Line1)
	require("city", details.City)
	require("postal_code", details.PostalCode)
	require("country", details.Country)
	if len(missing) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping details incomplete").
			WithDetails(map[string]any{"missing": missing})
	}
	return nil
}

func productName(product *models.Product, item models.CartItem) string {
	if product != nil {
		return product.Name
	}
	if item.Product != nil {
		return item.Product.Name
	}
	return item.ProductID.String()
}

func ownerLabel(owner types.CartOwner) string {
	if owner.IsUser() {
		return "user"
	}
	return "guest"
}

func failureReason(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "internal"
	}
	switch typed.Code() {
	case pkgerrors.CodeValidation:
		return "validation"
	case pkgerrors.CodeUnauthorized:
		return "unauthorized"
	case pkgerrors.CodeStateConflict:
		return "state_conflict"
	case pkgerrors.CodeConflict:
		return "conflict"
	default:
		return "internal"
	}
}
