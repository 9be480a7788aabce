package sales

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/shopdesk-backend/internal/audit"
	"github.com/angelmondragon/shopdesk-backend/internal/stockledger"
	"github.com/angelmondragon/shopdesk-backend/pkg/db"
	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
	"github.com/angelmondragon/shopdesk-backend/pkg/metrics"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/shopdesk-backend/pkg/pagination"
	"github.com/angelmondragon/shopdesk-backend/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UnlistedItemName labels a free-text line that carries no name.
const UnlistedItemName = "Unlisted item"

const clientRefConstraint = "sales_shop_client_ref_key"

// LineInput is one requested line: a catalog product reference, or a
// free-text name with an explicit price.
type LineInput struct {
	ProductID   *uuid.UUID
	ProductName string
	Quantity    int
	Price       *decimal.Decimal
}

// SubmitInput is a sale submission from a cashier.
type SubmitInput struct {
	ShopID        uuid.UUID
	CashierID     uuid.UUID
	PaymentMethod enums.PaymentMethod
	ClientRef     string
	Items         []LineInput
}

// BatchOperation is one queued sale from an offline client.
type BatchOperation struct {
	ClientRef     string
	PaymentMethod enums.PaymentMethod
	Items         []LineInput
}

// ListParams filters and paginates sales.
type ListParams struct {
	Limit  int
	Cursor string
	From   *time.Time
	To     *time.Time
}

// UpdateItemInput edits one line of a committed sale.
type UpdateItemInput struct {
	ShopID   uuid.UUID
	ActorID  uuid.UUID
	SaleID   uuid.UUID
	ItemID   uuid.UUID
	Quantity *int
	Price    *decimal.Decimal
}

// Service is the sale transaction processor.
type Service interface {
	Submit(ctx context.Context, input SubmitInput) (*SaleDTO, error)
	SubmitBatch(ctx context.Context, shopID, cashierID uuid.UUID, operations []BatchOperation) []BatchResult
	Get(ctx context.Context, shopID, saleID uuid.UUID) (*SaleDTO, error)
	List(ctx context.Context, shopID uuid.UUID, params ListParams) (*SaleListResult, error)
	Delete(ctx context.Context, shopID, actorID, saleID uuid.UUID) error
	UpdateItem(ctx context.Context, input UpdateItemInput) (*SaleDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups the sale processor dependencies.
type ServiceParams struct {
	Repo     Repository
	TxRunner txRunner
	Ledger   stockledger.Service
	Audit    audit.Service
	Outbox   outboxPublisher
	Metrics  *metrics.SalesMetrics
	Logger   *logger.Logger
}

type service struct {
	repo    Repository
	tx      txRunner
	ledger  stockledger.Service
	audit   audit.Service
	outbox  outboxPublisher
	metrics *metrics.SalesMetrics
	logg    *logger.Logger
}

// NewService builds the sale transaction processor.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("sales repository required")
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
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.TxRunner,
		ledger:  params.Ledger,
		audit:   params.Audit,
		outbox:  params.Outbox,
		metrics: params.Metrics,
		logg:    params.Logger,
	}, nil
}

// resolvedLine is a validated line ready to persist.
type resolvedLine struct {
	productID *uuid.UUID
	name      string
	quantity  int
	price     decimal.Decimal
	subtotal  decimal.Decimal
}

// Submit validates and commits a sale in a single transaction. Either the
// sale, its lines, their ledger entries and the stock decrements all persist
// or none of them do.
func (s *service) Submit(ctx context.Context, input SubmitInput) (*SaleDTO, error) {
	ctx = s.logg.WithShopID(ctx, input.ShopID.String())

	sale, err := s.submit(ctx, input)
	if err != nil {
		s.metrics.IncRejected(rejectionKind(err))
		return nil, err
	}

	s.metrics.ObserveCommitted(sale.TotalAmount)
	logCtx := s.logg.WithFields(s.logg.WithSaleID(ctx, sale.ID.String()), map[string]any{
		"total_amount": sale.TotalAmount.String(),
		"item_count":   len(sale.Items),
	})
	s.logg.Info(logCtx, "sale committed")

	dto := NewSaleDTO(sale)
	return &dto, nil
}

func (s *service) submit(ctx context.Context, input SubmitInput) (*models.Sale, error) {
	if input.ShopID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "shop context required")
	}
	if len(input.Items) == 0 {
		return nil, rejectEmpty()
	}
	method := input.PaymentMethod
	if method == "" {
		method = enums.PaymentMethodCash
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method %q", method))
	}
	for i, item := range input.Items {
		if item.Quantity < 1 {
			return nil, rejectItem(i, "quantity must be at least 1")
		}
		if item.Price != nil {
			if problem := priceProblem(*item.Price); problem != "" {
				return nil, rejectItem(i, problem)
			}
		}
	}

	clientRef := strings.TrimSpace(input.ClientRef)
	if clientRef != "" {
		if existing, err := s.repo.FindByClientRef(ctx, input.ShopID, clientRef); err == nil {
			return nil, rejectDuplicate(&DuplicateSaleError{ClientRef: clientRef, SaleID: existing.ID})
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check client reference")
		}
	}

	var sale *models.Sale
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		lines, err := s.resolveLines(ctx, repo, input.ShopID, input.Items)
		if err != nil {
			return err
		}

		sale = &models.Sale{
			ShopID:        input.ShopID,
			CashierID:     optionalID(input.CashierID),
			PaymentMethod: method,
			TotalAmount:   decimal.Zero,
		}
		if clientRef != "" {
			sale.ClientRef = &clientRef
		}
		if err := repo.CreateSale(ctx, sale); err != nil {
			if clientRef != "" && db.IsUniqueViolation(err, clientRefConstraint) {
				return errClientRefTaken
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert sale")
		}

		total := decimal.Zero
		reason := fmt.Sprintf("Sale #%s", sale.ID)
		for i, line := range lines {
			item := &models.SaleItem{
				SaleID:      sale.ID,
				ProductID:   line.productID,
				ProductName: line.name,
				Quantity:    line.quantity,
				UnitPrice:   line.price,
				Subtotal:    line.subtotal,
				Position:    i,
			}
			if err := repo.CreateItem(ctx, item); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "insert sale item")
			}
			sale.Items = append(sale.Items, *item)
			total = total.Add(item.Subtotal)

			if line.productID == nil {
				continue
			}
			if _, err := s.ledger.Record(ctx, tx, stockledger.Entry{
				ShopID:    input.ShopID,
				ProductID: *line.productID,
				Direction: enums.StockOut,
				Quantity:  line.quantity,
				Reason:    reason,
				SaleID:    &sale.ID,
				ActorID:   sale.CashierID,
			}); err != nil {
				if errors.Is(err, stockledger.ErrInsufficientStock) {
					return rejectStock(&InsufficientStockError{ProductID: *line.productID, Name: line.name, Requested: line.quantity})
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record stock movement")
			}
		}

		if err := repo.SetTotal(ctx, sale.ID, total); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set sale total")
		}
		sale.TotalAmount = total

		if _, err := s.audit.Record(ctx, tx, audit.Entry{
			ShopID:      input.ShopID,
			ActorID:     sale.CashierID,
			Action:      enums.ActionSaleCreated,
			ObjectType:  "sale",
			ObjectID:    sale.ID.String(),
			Description: fmt.Sprintf("Sale #%s recorded for %s (%d items)", sale.ID, total.StringFixed(2), len(lines)),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record audit entry")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSaleCompleted,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Actor:         actorRef(input.CashierID, input.ShopID),
			Version:       1,
			Data: payloads.SaleCompletedEvent{
				SaleID:      sale.ID,
				ShopID:      input.ShopID,
				CashierID:   sale.CashierID,
				TotalAmount: total,
				ItemCount:   len(lines),
				CompletedAt: time.Now().UTC(),
			},
		})
	})
	if errors.Is(err, errClientRefTaken) {
		existing, findErr := s.repo.FindByClientRef(ctx, input.ShopID, clientRef)
		if findErr != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, findErr, "load duplicate sale")
		}
		return nil, rejectDuplicate(&DuplicateSaleError{ClientRef: clientRef, SaleID: existing.ID})
	}
	if err != nil {
		if pkgerrors.As(err) == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "commit sale")
		}
		return nil, err
	}
	return sale, nil
}

var errClientRefTaken = errors.New("client reference taken")

// priceScale matches the numeric(14,2) money columns. Finer prices would be
// rounded per column on write, so price and subtotal could disagree.
const priceScale = 2

func priceProblem(price decimal.Decimal) string {
	switch {
	case price.IsNegative():
		return "price cannot be negative"
	case !price.Equal(price.Round(priceScale)):
		return "price cannot have more than 2 decimal places"
	}
	return ""
}

// resolveLines locks every referenced product, checks tenancy and aggregate
// availability, and freezes name and price for each line.
func (s *service) resolveLines(ctx context.Context, repo Repository, shopID uuid.UUID, items []LineInput) ([]resolvedLine, error) {
	ids := make([]uuid.UUID, 0, len(items))
	seen := make(map[uuid.UUID]struct{}, len(items))
	for _, item := range items {
		if item.ProductID == nil {
			continue
		}
		if _, ok := seen[*item.ProductID]; !ok {
			seen[*item.ProductID] = struct{}{}
			ids = append(ids, *item.ProductID)
		}
	}

	products, err := repo.LockProducts(ctx, shopID, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock products")
	}

	requested := make(map[uuid.UUID]int, len(ids))
	for i, item := range items {
		if item.ProductID == nil {
			continue
		}
		if _, ok := products[*item.ProductID]; !ok {
			return nil, rejectNotFound(i, *item.ProductID)
		}
		requested[*item.ProductID] += item.Quantity
	}
	for _, id := range ids {
		product := products[id]
		if product.Quantity < requested[id] {
			return nil, rejectStock(&InsufficientStockError{
				ProductID: id,
				Name:      product.Name,
				Available: product.Quantity,
				Requested: requested[id],
			})
		}
	}

	lines := make([]resolvedLine, 0, len(items))
	for _, item := range items {
		line := resolvedLine{quantity: item.Quantity, price: decimal.Zero}
		var product *models.Product
		if item.ProductID != nil {
			p := products[*item.ProductID]
			product = &p
			id := p.ID
			line.productID = &id
		}
		line.name = lineName(product, item.ProductName)
		switch {
		case item.Price != nil:
			line.price = *item.Price
		case product != nil:
			line.price = product.SellingPrice
		}
		line.subtotal = line.price.Mul(decimal.NewFromInt(int64(line.quantity)))
		lines = append(lines, line)
	}
	return lines, nil
}

func lineName(product *models.Product, supplied string) string {
	if product != nil && strings.TrimSpace(product.Name) != "" {
		return product.Name
	}
	if name := strings.TrimSpace(supplied); name != "" {
		return name
	}
	return UnlistedItemName
}

// SubmitBatch commits each queued operation in its own transaction so one
// rejected operation never blocks the others.
func (s *service) SubmitBatch(ctx context.Context, shopID, cashierID uuid.UUID, operations []BatchOperation) []BatchResult {
	results := make([]BatchResult, 0, len(operations))
	for i, op := range operations {
		result := BatchResult{Index: i, ClientRef: op.ClientRef}
		sale, err := s.Submit(ctx, SubmitInput{
			ShopID:        shopID,
			CashierID:     cashierID,
			PaymentMethod: op.PaymentMethod,
			ClientRef:     op.ClientRef,
			Items:         op.Items,
		})
		var duplicate *DuplicateSaleError
		switch {
		case err == nil:
			result.Status = BatchCreated
			result.SaleID = &sale.ID
		case errors.As(err, &duplicate):
			result.Status = BatchDuplicate
			result.SaleID = &duplicate.SaleID
		default:
			result.Status = BatchFailed
			apiErr := batchError(err)
			result.Error = &apiErr
		}
		s.metrics.IncBatch(string(result.Status))
		results = append(results, result)
	}
	return results
}

func (s *service) Get(ctx context.Context, shopID, saleID uuid.UUID) (*SaleDTO, error) {
	sale, err := s.repo.FindSale(ctx, shopID, saleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sale")
	}
	dto := NewSaleDTO(sale)
	return &dto, nil
}

func (s *service) List(ctx context.Context, shopID uuid.UUID, params ListParams) (*SaleListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if params.From != nil && params.To != nil && params.To.Before(*params.From) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "end must not precede start")
	}
	rows, err := s.repo.List(ctx, shopID, ListFilter{From: params.From, To: params.To}, cursor, params.Limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list sales")
	}
	page, next := pagination.NextCursor(rows, params.Limit, func(sale models.Sale) pagination.Cursor {
		return pagination.Cursor{CreatedAt: sale.CreatedAt, ID: sale.ID}
	})

	result := &SaleListResult{Sales: make([]SaleDTO, 0, len(page)), NextCursor: next}
	for i := range page {
		result.Sales = append(result.Sales, NewSaleDTO(&page[i]))
	}
	return result, nil
}

// Delete records the audit entry before removing the sale. Stock is not
// returned to the catalog.
func (s *service) Delete(ctx context.Context, shopID, actorID, saleID uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		sale, err := repo.LockSale(ctx, shopID, saleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock sale")
		}

		if _, err := s.audit.Record(ctx, tx, audit.Entry{
			ShopID:      shopID,
			ActorID:     optionalID(actorID),
			Action:      enums.ActionSaleDeleted,
			ObjectType:  "sale",
			ObjectID:    sale.ID.String(),
			Description: fmt.Sprintf("Deleted sale #%s of %s", sale.ID, sale.TotalAmount.StringFixed(2)),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record audit entry")
		}

		if _, err := repo.DeleteSale(ctx, shopID, saleID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete sale")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logg.Info(s.logg.WithSaleID(s.logg.WithShopID(ctx, shopID.String()), saleID.String()), "sale deleted")
	return nil
}

// UpdateItem edits a committed line. Quantity changes on catalog lines move
// stock through the ledger, and the invoice is re-rendered afterwards.
func (s *service) UpdateItem(ctx context.Context, input UpdateItemInput) (*SaleDTO, error) {
	if input.Quantity == nil && input.Price == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity or price required")
	}
	if input.Quantity != nil && *input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	if input.Price != nil {
		if problem := priceProblem(*input.Price); problem != "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, problem)
		}
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		sale, err := repo.LockSale(ctx, input.ShopID, input.SaleID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock sale")
		}
		item, err := repo.FindItem(ctx, sale.ID, input.ItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "sale item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sale item")
		}

		if input.Quantity != nil && *input.Quantity != item.Quantity {
			if err := s.moveItemStock(ctx, tx, repo, sale, item, *input.Quantity, input.ActorID); err != nil {
				return err
			}
			item.Quantity = *input.Quantity
		}
		if input.Price != nil {
			item.UnitPrice = *input.Price
		}
		item.Subtotal = item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		if err := repo.UpdateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update sale item")
		}

		total, err := repo.SumItems(ctx, sale.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum sale items")
		}
		if err := repo.SetTotal(ctx, sale.ID, total); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "set sale total")
		}

		if _, err := s.audit.Record(ctx, tx, audit.Entry{
			ShopID:      input.ShopID,
			ActorID:     optionalID(input.ActorID),
			Action:      enums.ActionItemUpdated,
			ObjectType:  "sale_item",
			ObjectID:    item.ID.String(),
			Description: fmt.Sprintf("Updated %s on sale #%s: %d x %s", item.ProductName, sale.ID, item.Quantity, item.UnitPrice.StringFixed(2)),
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record audit entry")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventSaleItemsChanged,
			AggregateType: enums.AggregateSale,
			AggregateID:   sale.ID,
			Actor:         actorRef(input.ActorID, input.ShopID),
			Version:       1,
			Data: payloads.SaleItemsChangedEvent{
				SaleID:      sale.ID,
				ShopID:      input.ShopID,
				ItemID:      item.ID,
				TotalAmount: total,
				ChangedAt:   time.Now().UTC(),
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update sale item")
		}
		return nil, err
	}
	return s.Get(ctx, input.ShopID, input.SaleID)
}

func (s *service) moveItemStock(ctx context.Context, tx *gorm.DB, repo Repository, sale *models.Sale, item *models.SaleItem, target int, actorID uuid.UUID) error {
	if item.ProductID == nil {
		return nil
	}
	products, err := repo.LockProducts(ctx, sale.ShopID, []uuid.UUID{*item.ProductID})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lock product")
	}
	product, ok := products[*item.ProductID]
	if !ok {
		return rejectNotFound(item.Position, *item.ProductID)
	}

	delta := target - item.Quantity
	direction := enums.StockOut
	if delta < 0 {
		direction = enums.StockIn
		delta = -delta
	}
	if direction == enums.StockOut && product.Quantity < delta {
		return rejectStock(&InsufficientStockError{ProductID: product.ID, Name: product.Name, Available: product.Quantity, Requested: delta})
	}
	if _, err := s.ledger.Record(ctx, tx, stockledger.Entry{
		ShopID:    sale.ShopID,
		ProductID: product.ID,
		Direction: direction,
		Quantity:  delta,
		Reason:    fmt.Sprintf("Sale #%s correction", sale.ID),
		SaleID:    &sale.ID,
		ActorID:   optionalID(actorID),
	}); err != nil {
		if errors.Is(err, stockledger.ErrInsufficientStock) {
			return rejectStock(&InsufficientStockError{ProductID: product.ID, Name: product.Name, Available: product.Quantity, Requested: delta})
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record stock movement")
	}
	return nil
}

func batchError(err error) types.APIError {
	typed := pkgerrors.As(err)
	if typed == nil {
		return types.APIError{Code: string(pkgerrors.CodeInternal), Message: pkgerrors.MetadataFor(pkgerrors.CodeInternal).PublicMessage}
	}
	meta := pkgerrors.MetadataFor(typed.Code())
	out := types.APIError{Code: string(typed.Code()), Message: typed.Message()}
	if meta.HTTPStatus >= 500 {
		out.Message = meta.PublicMessage
	}
	if meta.DetailsAllowed {
		out.Details = typed.Details()
	}
	return out
}

func optionalID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func actorRef(userID, shopID uuid.UUID) *outbox.ActorRef {
	if userID == uuid.Nil {
		return nil
	}
	shop := shopID
	return &outbox.ActorRef{UserID: userID, ShopID: &shop}
}
