package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/shopdesk-backend/internal/audit"
	"github.com/angelmondragon/shopdesk-backend/internal/plans"
	"github.com/angelmondragon/shopdesk-backend/internal/stockledger"
	"github.com/angelmondragon/shopdesk-backend/pkg/db"
	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/angelmondragon/shopdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	reasonInitialStock     = "Initial stock"
	reasonManualCorrection = "Manual correction"
)

// Actor identifies the shop and user performing a catalog mutation.
type Actor struct {
	ShopID uuid.UUID
	UserID uuid.UUID
}

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name           string
	Description    *string
	CategoryID     *uuid.UUID
	PurchasePrice  decimal.Decimal
	SellingPrice   decimal.Decimal
	Quantity       int
	AlertThreshold *int
}

// UpdateProductInput holds optional product changes. Quantity is the new
// on-hand target; the difference is recorded in the stock ledger.
type UpdateProductInput struct {
	Name           *string
	Description    *string
	CategoryID     *uuid.UUID
	ClearCategory  bool
	PurchasePrice  *decimal.Decimal
	SellingPrice   *decimal.Decimal
	Quantity       *int
	AlertThreshold *int
}

// AdjustStockInput records manual receiving or a correction.
type AdjustStockInput struct {
	Direction enums.StockDirection
	Quantity  int
	Reason    string
}

// ListProductsInput captures listing filters and pagination.
type ListProductsInput struct {
	ShopID     uuid.UUID
	Filter     ProductFilter
	Pagination pagination.Params
}

// CategoryInput is the payload for creating or renaming a category.
type CategoryInput struct {
	Name        string
	Description *string
}

// Service exposes catalog management.
type Service interface {
	CreateProduct(ctx context.Context, actor Actor, input CreateProductInput) (*ProductDTO, error)
	GetProduct(ctx context.Context, shopID, productID uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	UpdateProduct(ctx context.Context, actor Actor, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	DeleteProduct(ctx context.Context, actor Actor, productID uuid.UUID) error
	AdjustStock(ctx context.Context, actor Actor, productID uuid.UUID, input AdjustStockInput) (*ProductDTO, error)
	ListMovements(ctx context.Context, shopID, productID uuid.UUID, params pagination.Params) (*MovementListResult, error)

	CreateCategory(ctx context.Context, shopID uuid.UUID, input CategoryInput) (*CategoryDTO, error)
	ListCategories(ctx context.Context, shopID uuid.UUID) ([]CategoryDTO, error)
	UpdateCategory(ctx context.Context, shopID, categoryID uuid.UUID, input CategoryInput) (*CategoryDTO, error)
	DeleteCategory(ctx context.Context, shopID, categoryID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ServiceParams groups catalog dependencies.
type ServiceParams struct {
	Repo                  *Repository
	TxRunner              txRunner
	Ledger                stockledger.Service
	Audit                 audit.Service
	FreeProductCap        int
	DefaultAlertThreshold int
}

type service struct {
	repo           *Repository
	tx             txRunner
	ledger         stockledger.Service
	audit          audit.Service
	freeCap        int
	alertThreshold int
}

// NewService constructs the catalog service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if params.FreeProductCap <= 0 {
		return nil, fmt.Errorf("free product cap must be positive")
	}
	if params.DefaultAlertThreshold < 0 {
		return nil, fmt.Errorf("default alert threshold cannot be negative")
	}
	return &service{
		repo:           params.Repo,
		tx:             params.TxRunner,
		ledger:         params.Ledger,
		audit:          params.Audit,
		freeCap:        params.FreeProductCap,
		alertThreshold: params.DefaultAlertThreshold,
	}, nil
}

func (s *service) CreateProduct(ctx context.Context, actor Actor, input CreateProductInput) (*ProductDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if err := validatePrices(&input.PurchasePrice, &input.SellingPrice); err != nil {
		return nil, err
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	threshold := s.alertThreshold
	if input.AlertThreshold != nil {
		if *input.AlertThreshold < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "alert_threshold cannot be negative")
		}
		threshold = *input.AlertThreshold
	}

	var product *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		shop, err := repo.LockShop(ctx, actor.ShopID)
		if err != nil {
			return notFoundOr(err, "shop not found", "lock shop")
		}
		if !plans.Allows(shop.Plan, plans.CapabilityCatalogUnlimited) {
			count, err := repo.CountProducts(ctx, actor.ShopID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count products")
			}
			if count >= int64(s.freeCap) {
				denial := plans.Check(shop.Plan, plans.CapabilityCatalogUnlimited)
				denial.Message = fmt.Sprintf("Plan limit reached (%d products). Upgrade to add more.", s.freeCap)
				return denial
			}
		}
		if input.CategoryID != nil {
			if _, err := repo.FindCategory(ctx, actor.ShopID, *input.CategoryID); err != nil {
				return notFoundOr(err, "category not found", "load category")
			}
		}

		product = &models.Product{
			ShopID:         actor.ShopID,
			CategoryID:     input.CategoryID,
			Name:           name,
			Description:    input.Description,
			PurchasePrice:  input.PurchasePrice,
			SellingPrice:   input.SellingPrice,
			AlertThreshold: threshold,
		}
		if err := repo.CreateProduct(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert product")
		}
		if input.Quantity > 0 {
			if _, err := s.ledger.Record(ctx, tx, stockledger.Entry{
				ShopID:    actor.ShopID,
				ProductID: product.ID,
				Direction: enums.StockIn,
				Quantity:  input.Quantity,
				Reason:    reasonInitialStock,
				ActorID:   actorRef(actor),
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record initial stock")
			}
			product.Quantity = input.Quantity
		}

		return s.record(ctx, tx, actor, enums.ActionItemAdded, product.ID,
			fmt.Sprintf("Added product %s (quantity %d)", product.Name, product.Quantity))
	})
	if err != nil {
		return nil, err
	}

	dto := NewProductDTO(product)
	return &dto, nil
}

func (s *service) GetProduct(ctx context.Context, shopID, productID uuid.UUID) (*ProductDTO, error) {
	product, err := s.repo.FindProduct(ctx, shopID, productID)
	if err != nil {
		return nil, notFoundOr(err, "product not found", "load product")
	}
	dto := NewProductDTO(product)
	return &dto, nil
}

func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListProducts(ctx, input.ShopID, input.Filter, cursor, input.Pagination.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}
	page, next := pagination.NextCursor(rows, input.Pagination.Limit, func(p models.Product) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	})

	result := &ProductListResult{Products: make([]ProductDTO, 0, len(page)), NextCursor: next}
	for i := range page {
		result.Products = append(result.Products, NewProductDTO(&page[i]))
	}
	return result, nil
}

func (s *service) UpdateProduct(ctx context.Context, actor Actor, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	if err := validatePrices(input.PurchasePrice, input.SellingPrice); err != nil {
		return nil, err
	}
	if input.Quantity != nil && *input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	if input.AlertThreshold != nil && *input.AlertThreshold < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "alert_threshold cannot be negative")
	}

	var updated *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		product, err := repo.LockProduct(ctx, actor.ShopID, productID)
		if err != nil {
			return notFoundOr(err, "product not found", "lock product")
		}

		fields := map[string]any{}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "name cannot be blank")
			}
			fields["name"] = name
		}
		if input.Description != nil {
			fields["description"] = *input.Description
		}
		if input.ClearCategory {
			fields["category_id"] = nil
		} else if input.CategoryID != nil {
			if _, err := repo.FindCategory(ctx, actor.ShopID, *input.CategoryID); err != nil {
				return notFoundOr(err, "category not found", "load category")
			}
			fields["category_id"] = *input.CategoryID
		}
		if input.PurchasePrice != nil {
			fields["purchase_price"] = *input.PurchasePrice
		}
		if input.SellingPrice != nil {
			fields["selling_price"] = *input.SellingPrice
		}
		if input.AlertThreshold != nil {
			fields["alert_threshold"] = *input.AlertThreshold
		}
		if err := repo.UpdateProductFields(ctx, actor.ShopID, productID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
		}

		if input.Quantity != nil && *input.Quantity != product.Quantity {
			delta := *input.Quantity - product.Quantity
			direction := enums.StockIn
			if delta < 0 {
				direction = enums.StockOut
				delta = -delta
			}
			if _, err := s.ledger.Record(ctx, tx, stockledger.Entry{
				ShopID:    actor.ShopID,
				ProductID: productID,
				Direction: direction,
				Quantity:  delta,
				Reason:    reasonManualCorrection,
				ActorID:   actorRef(actor),
			}); err != nil {
				return ledgerError(err, product, delta)
			}
		}

		updated, err = repo.FindProduct(ctx, actor.ShopID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload product")
		}
		return s.record(ctx, tx, actor, enums.ActionItemUpdated, productID,
			fmt.Sprintf("Updated product %s", updated.Name))
	})
	if err != nil {
		return nil, err
	}

	dto := NewProductDTO(updated)
	return &dto, nil
}

func (s *service) DeleteProduct(ctx context.Context, actor Actor, productID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		product, err := repo.LockProduct(ctx, actor.ShopID, productID)
		if err != nil {
			return notFoundOr(err, "product not found", "lock product")
		}
		if _, err := repo.SoftDeleteProduct(ctx, actor.ShopID, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete product")
		}
		return s.record(ctx, tx, actor, enums.ActionItemDeleted, productID,
			fmt.Sprintf("Deleted product %s", product.Name))
	})
}

func (s *service) AdjustStock(ctx context.Context, actor Actor, productID uuid.UUID, input AdjustStockInput) (*ProductDTO, error) {
	if !input.Direction.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "direction must be in or out")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = reasonManualCorrection
	}

	var adjusted *models.Product
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		product, err := repo.LockProduct(ctx, actor.ShopID, productID)
		if err != nil {
			return notFoundOr(err, "product not found", "lock product")
		}
		if _, err := s.ledger.Record(ctx, tx, stockledger.Entry{
			ShopID:    actor.ShopID,
			ProductID: productID,
			Direction: input.Direction,
			Quantity:  input.Quantity,
			Reason:    reason,
			ActorID:   actorRef(actor),
		}); err != nil {
			return ledgerError(err, product, input.Quantity)
		}

		adjusted, err = repo.FindProduct(ctx, actor.ShopID, productID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reload product")
		}
		return s.record(ctx, tx, actor, enums.ActionStockAdjusted, productID,
			fmt.Sprintf("Stock %s %d for %s: %s", input.Direction, input.Quantity, product.Name, reason))
	})
	if err != nil {
		return nil, err
	}

	dto := NewProductDTO(adjusted)
	return &dto, nil
}

func (s *service) ListMovements(ctx context.Context, shopID, productID uuid.UUID, params pagination.Params) (*MovementListResult, error) {
	exists, err := s.repo.ProductExists(ctx, shopID, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !exists {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}

	rows, next, err := s.ledger.ListByProduct(ctx, shopID, productID, params)
	if err != nil {
		return nil, err
	}
	result := &MovementListResult{Movements: make([]MovementDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		result.Movements = append(result.Movements, NewMovementDTO(row))
	}
	return result, nil
}

func (s *service) CreateCategory(ctx context.Context, shopID uuid.UUID, input CategoryInput) (*CategoryDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	category := &models.Category{ShopID: shopID, Name: name, Description: input.Description}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		if db.IsUniqueViolation(err, "categories_shop_name_key") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert category")
	}
	dto := NewCategoryDTO(category)
	return &dto, nil
}

func (s *service) ListCategories(ctx context.Context, shopID uuid.UUID) ([]CategoryDTO, error) {
	rows, err := s.repo.ListCategories(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
	}
	out := make([]CategoryDTO, 0, len(rows))
	for i := range rows {
		out = append(out, NewCategoryDTO(&rows[i]))
	}
	return out, nil
}

func (s *service) UpdateCategory(ctx context.Context, shopID, categoryID uuid.UUID, input CategoryInput) (*CategoryDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	category, err := s.repo.FindCategory(ctx, shopID, categoryID)
	if err != nil {
		return nil, notFoundOr(err, "category not found", "load category")
	}
	category.Name = name
	category.Description = input.Description
	if err := s.repo.UpdateCategory(ctx, category); err != nil {
		if db.IsUniqueViolation(err, "categories_shop_name_key") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "category already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update category")
	}
	dto := NewCategoryDTO(category)
	return &dto, nil
}

func (s *service) DeleteCategory(ctx context.Context, shopID, categoryID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		deleted, err := s.repo.WithTx(tx).DeleteCategory(ctx, shopID, categoryID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete category")
		}
		if !deleted {
			return pkgerrors.New(pkgerrors.CodeNotFound, "category not found")
		}
		return nil
	})
}

func (s *service) record(ctx context.Context, tx *gorm.DB, actor Actor, action enums.ActionKind, productID uuid.UUID, description string) error {
	if _, err := s.audit.Record(ctx, tx, audit.Entry{
		ShopID:      actor.ShopID,
		ActorID:     actorRef(actor),
		Action:      action,
		ObjectType:  "product",
		ObjectID:    productID.String(),
		Description: description,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record audit entry")
	}
	return nil
}

func actorRef(actor Actor) *uuid.UUID {
	if actor.UserID == uuid.Nil {
		return nil
	}
	id := actor.UserID
	return &id
}

func validatePrices(prices ...*decimal.Decimal) error {
	for _, price := range prices {
		if price == nil {
			continue
		}
		if price.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "prices cannot be negative")
		}
		if !price.Equal(price.Round(2)) {
			return pkgerrors.New(pkgerrors.CodeValidation, "prices cannot have more than 2 decimal places")
		}
	}
	return nil
}

func ledgerError(err error, product *models.Product, requested int) error {
	if errors.Is(err, stockledger.ErrInsufficientStock) {
		return pkgerrors.New(pkgerrors.CodeValidation, "insufficient stock").WithDetails(map[string]any{
			"kind":       "insufficient_stock",
			"product_id": product.ID,
			"name":       product.Name,
			"available":  product.Quantity,
			"requested":  requested,
		})
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record stock movement")
}

func notFoundOr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, op)
}
