package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shoplane/shoplane-backend/internal/pricing"
	"github.com/shoplane/shoplane-backend/pkg/config"
	"github.com/shoplane/shoplane-backend/pkg/db/models"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
	"github.com/shoplane/shoplane-backend/pkg/logger"
	"github.com/shoplane/shoplane-backend/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages cart resolution and item mutations.
type Service interface {
	Resolve(ctx context.Context, identity types.Identity) (*models.Cart, error)
	AddItem(ctx context.Context, identity types.Identity, productID uuid.UUID, qty int) (*CartView, error)
	UpdateItem(ctx context.Context, identity types.Identity, itemID uuid.UUID, qty int) (*CartView, error)
	RemoveItem(ctx context.Context, identity types.Identity, itemID uuid.UUID) (*CartView, error)
	Clear(ctx context.Context, identity types.Identity) error
	GetCart(ctx context.Context, identity types.Identity) (*CartView, error)
}

type service struct {
	tx      txRunner
	repo    CartRepository
	catalog ProductCatalog
	pricer  PriceQuoter
	cfg     config.PricingConfig
	logg    *logger.Logger
}

// NewService builds the cart service.
func NewService(
	tx txRunner,
	repo CartRepository,
	catalog ProductCatalog,
	pricer PriceQuoter,
	cfg config.PricingConfig,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("product catalog required")
	}
	if pricer == nil {
		return nil, fmt.Errorf("price quoter required")
	}
	return &service{
		tx:      tx,
		repo:    repo,
		catalog: catalog,
		pricer:  pricer,
		cfg:     cfg,
		logg:    logg,
	}, nil
}

// Resolve finds or creates the caller's cart. When a logged-in caller still
// carries a guest session, the guest cart is merged into the user cart exactly
// once and then deleted, which makes repeated calls idempotent.
func (s *service) Resolve(ctx context.Context, identity types.Identity) (*models.Cart, error) {
	if identity.Owner().IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart owner required")
	}

	var out *models.Cart
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		out, err = s.resolveLocked(ctx, s.repo.WithTx(tx), identity)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) resolveLocked(ctx context.Context, repo CartRepository, identity types.Identity) (*models.Cart, error) {
	owner := identity.Owner()

	if sessionID, ok := owner.SessionID(); ok {
		cart, err := repo.FindBySession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		if cart != nil {
			return cart, nil
		}
		return repo.Create(ctx, &models.Cart{SessionID: &sessionID})
	}

	userID, _ := owner.UserID()
	userCart, err := repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var guestCart *models.Cart
	if sessionID, ok := identity.GuestSessionID(); ok {
		guestCart, err = repo.FindBySession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
	}

	switch {
	case guestCart == nil && userCart == nil:
		return repo.Create(ctx, &models.Cart{UserID: &userID})
	case guestCart == nil:
		return userCart, nil
	case userCart == nil:
		// Promote the guest cart in place so its items survive login.
		if err := repo.AttachUser(ctx, guestCart.ID, userID); err != nil {
			return nil, err
		}
		return repo.FindByUser(ctx, userID)
	}

	if err := s.mergeGuestCart(ctx, repo, guestCart, userCart); err != nil {
		return nil, err
	}
	if s.logg != nil {
		mergeCtx := s.logg.WithFields(ctx, map[string]any{
			"user_cart_id":  userCart.ID.String(),
			"guest_cart_id": guestCart.ID.String(),
			"merged_items":  len(guestCart.Items),
		})
		s.logg.Info(mergeCtx, "guest cart merged into user cart")
	}
	return repo.FindByUser(ctx, userID)
}

// mergeGuestCart folds guest items into the user cart. Quantities add up on
// conflict and the guest snapshot wins, since it is the most recent one the
// shopper saw. The guest cart is deleted afterwards.
func (s *service) mergeGuestCart(ctx context.Context, repo CartRepository, guest, user *models.Cart) error {
	byProduct := make(map[uuid.UUID]*models.CartItem, len(user.Items))
	for i := range user.Items {
		byProduct[user.Items[i].ProductID] = &user.Items[i]
	}

	for i := range guest.Items {
		guestItem := guest.Items[i]
		if existing, ok := byProduct[guestItem.ProductID]; ok {
			existing.Quantity += guestItem.Quantity
			existing.PriceCents = guestItem.PriceCents
			existing.DiscountCents = guestItem.DiscountCents
			if err := repo.SaveItem(ctx, existing); err != nil {
				return err
			}
			if err := repo.DeleteItem(ctx, guestItem.ID); err != nil {
				return err
			}
			continue
		}
		if err := repo.ReassignItem(ctx, guestItem.ID, user.ID); err != nil {
			return err
		}
	}
	return repo.Delete(ctx, guest.ID)
}

func (s *service) AddItem(ctx context.Context, identity types.Identity, productID uuid.UUID, qty int) (*CartView, error) {
	if productID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if identity.Owner().IsZero() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart owner required")
	}

	var view *CartView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.resolveLocked(ctx, repo, identity)
		if err != nil {
			return err
		}

		product, err := s.catalog.FindByID(ctx, productID)
		if err != nil {
			return err
		}
		if err := checkPurchasable(product); err != nil {
			return err
		}

		var existing *models.CartItem
		for i := range cart.Items {
			if cart.Items[i].ProductID == productID {
				existing = &cart.Items[i]
				break
			}
		}

		newQty := qty
		if existing != nil {
			newQty += existing.Quantity
		}
		if err := checkStock(product, newQty); err != nil {
			return err
		}

		quote, err := s.quote(ctx, product, newQty)
		if err != nil {
			return err
		}

		if existing != nil {
			existing.Quantity = newQty
			existing.PriceCents = quote.UnitPriceCents
			existing.DiscountCents = quote.UnitDiscountCents
			if err := repo.SaveItem(ctx, existing); err != nil {
				return err
			}
		} else {
			item := &models.CartItem{
				CartID:        cart.ID,
				ProductID:     productID,
				Quantity:      newQty,
				PriceCents:    quote.UnitPriceCents,
				DiscountCents: quote.UnitDiscountCents,
			}
			if err := repo.CreateItem(ctx, item); err != nil {
				return err
			}
		}
		if err := repo.TouchCart(ctx, cart.ID); err != nil {
			return err
		}

		view, err = s.loadView(ctx, repo, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) UpdateItem(ctx context.Context, identity types.Identity, itemID uuid.UUID, qty int) (*CartView, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var view *CartView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, item, err := s.findOwnedItem(ctx, repo, identity, itemID)
		if err != nil {
			return err
		}

		product, err := s.catalog.FindByID(ctx, item.ProductID)
		if err != nil {
			return err
		}
		if err := checkPurchasable(product); err != nil {
			return err
		}
		if err := checkStock(product, qty); err != nil {
			return err
		}

		quote, err := s.quote(ctx, product, qty)
		if err != nil {
			return err
		}

		item.Quantity = qty
		item.PriceCents = quote.UnitPriceCents
		item.DiscountCents = quote.UnitDiscountCents
		if err := repo.SaveItem(ctx, item); err != nil {
			return err
		}
		if err := repo.TouchCart(ctx, cart.ID); err != nil {
			return err
		}

		view, err = s.loadView(ctx, repo, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) RemoveItem(ctx context.Context, identity types.Identity, itemID uuid.UUID) (*CartView, error) {
	var view *CartView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, item, err := s.findOwnedItem(ctx, repo, identity, itemID)
		if err != nil {
			return err
		}
		if err := repo.DeleteItem(ctx, item.ID); err != nil {
			return err
		}
		if err := repo.TouchCart(ctx, cart.ID); err != nil {
			return err
		}
		view, err = s.loadView(ctx, repo, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

func (s *service) Clear(ctx context.Context, identity types.Identity) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.resolveLocked(ctx, repo, identity)
		if err != nil {
			return err
		}
		if err := repo.DeleteItems(ctx, cart.ID); err != nil {
			return err
		}
		return repo.TouchCart(ctx, cart.ID)
	})
}

func (s *service) GetCart(ctx context.Context, identity types.Identity) (*CartView, error) {
	var view *CartView
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		cart, err := s.resolveLocked(ctx, repo, identity)
		if err != nil {
			return err
		}
		view, err = s.loadView(ctx, repo, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// findOwnedItem resolves the caller's cart and the requested item, rejecting
// items that belong to another cart without confirming they exist.
func (s *service) findOwnedItem(ctx context.Context, repo CartRepository, identity types.Identity, itemID uuid.UUID) (*models.Cart, *models.CartItem, error) {
	if itemID == uuid.Nil {
		return nil, nil, pkgerrors.New(pkgerrors.CodeValidation, "cart item id required")
	}
	cart, err := s.resolveLocked(ctx, repo, identity)
	if err != nil {
		return nil, nil, err
	}
	item, err := repo.FindItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, nil, err
	}
	if item.CartID != cart.ID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "cart item access denied")
	}
	return cart, item, nil
}

func (s *service) quote(ctx context.Context, product *models.Product, qty int) (pricing.Quote, error) {
	var globals []models.Discount
	if s.cfg.ApplyUnscopedGlobally {
		var err error
		globals, err = s.catalog.FindGlobalDiscounts(ctx)
		if err != nil {
			return pricing.Quote{}, err
		}
	}
	return s.pricer.Resolve(product, qty, globals, time.Now()), nil
}

func (s *service) loadView(ctx context.Context, repo CartRepository, cartID uuid.UUID) (*CartView, error) {
	cart, err := repo.FindByID(ctx, cartID)
	if err != nil {
		return nil, err
	}
	return BuildView(cart), nil
}

func checkPurchasable(product *models.Product) error {
	if product == nil || !product.Purchasable() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "product is not available").
			WithDetails(map[string]any{"product": productName(product)})
	}
	return nil
}

func checkStock(product *models.Product, qty int) error {
	if !product.ManageStock {
		return nil
	}
	if qty > product.StockQuantity {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient stock").
			WithDetails(map[string]any{
				"product":   productName(product),
				"available": product.StockQuantity,
				"requested": qty,
			})
	}
	return nil
}

func productName(product *models.Product) string {
	if product == nil {
		return ""
	}
	return product.Name
}
