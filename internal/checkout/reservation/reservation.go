package reservation

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/shoplane/shoplane-backend/pkg/db/models"
	pkgerrors "github.com/shoplane/shoplane-backend/pkg/errors"
)

// StockReservationRequest asks for qty units of a product on behalf of a
// cart item.
type StockReservationRequest struct {
	CartItemID uuid.UUID
	ProductID  uuid.UUID
	Qty        int
}

// StockReservationResult reports the per-item outcome. Reason is set only
// when the reservation failed.
type StockReservationResult struct {
	CartItemID uuid.UUID
	ProductID  uuid.UUID
	Reserved   bool
	Reason     string
}

// ReserveStock locks each product row and decrements managed stock inside the
// caller's transaction. Requests are processed in order, so two requests for
// the same product see the running balance. Products that do not manage stock
// reserve without a decrement. A product that reaches zero is flagged out of
// stock.
func ReserveStock(ctx context.Context, tx *gorm.DB, requests []StockReservationRequest) ([]StockReservationResult, error) {
	if tx == nil {
		return nil, errors.New("transaction required")
	}
	for _, req := range requests {
		if req.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
		}
		if req.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "reservation qty must be positive")
		}
	}

	results := make([]StockReservationResult, len(requests))
	for i, req := range requests {
		results[i] = StockReservationResult{
			CartItemID: req.CartItemID,
			ProductID:  req.ProductID,
		}

		var product models.Product
		err := tx.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&product, "id = ?", req.ProductID).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				results[i].Reason = "product not found"
				continue
			}
			return nil, err
		}

		if !product.Purchasable() {
			results[i].Reason = fmt.Sprintf("product %q is not available", product.Name)
			continue
		}
		if !product.ManageStock {
			results[i].Reserved = true
			continue
		}
		if product.StockQuantity < req.Qty {
			results[i].Reason = fmt.Sprintf("insufficient stock for %q: %d available, %d requested",
				product.Name, product.StockQuantity, req.Qty)
			continue
		}

		remaining := product.StockQuantity - req.Qty
		updates := map[string]any{"stock_quantity": remaining}
		if remaining <= 0 {
			updates["in_stock"] = false
		}
		if err := tx.WithContext(ctx).
			Model(&models.Product{}).
			Where("id = ?", product.ID).
			UpdateColumns(updates).Error; err != nil {
			return nil, err
		}
		results[i].Reserved = true
	}
	return results, nil
}
