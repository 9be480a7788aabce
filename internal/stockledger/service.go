package stockledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/angelmondragon/shopdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrInsufficientStock is returned by Record when an OUT movement would take
// the product below zero. The caller's transaction must be rolled back.
var ErrInsufficientStock = errors.New("insufficient stock")

// Entry is the data needed to record one stock movement.
type Entry struct {
	ShopID    uuid.UUID
	ProductID uuid.UUID
	Direction enums.StockDirection
	Quantity  int
	Reason    string
	SaleID    *uuid.UUID
	ActorID   *uuid.UUID
}

// Service records stock movements and keeps the cached product quantity in
// step with them.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, entry Entry) (*models.StockMovement, error)
	ListByProduct(ctx context.Context, shopID, productID uuid.UUID, params pagination.Params) ([]models.StockMovement, string, error)
}

type service struct {
	repo Repository
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock ledger repository required")
	}
	return &service{repo: repo}, nil
}

// Record appends the movement and applies it to the product inside tx. Both
// writes happen in the caller's transaction or not at all.
func (s *service) Record(ctx context.Context, tx *gorm.DB, entry Entry) (*models.StockMovement, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	if entry.ShopID == uuid.Nil {
		return nil, fmt.Errorf("shop id is required")
	}
	if entry.ProductID == uuid.Nil {
		return nil, fmt.Errorf("product id is required")
	}
	if !entry.Direction.IsValid() {
		return nil, fmt.Errorf("invalid stock direction %q", entry.Direction)
	}
	if entry.Quantity <= 0 {
		return nil, fmt.Errorf("movement quantity must be positive")
	}
	reason := strings.TrimSpace(entry.Reason)
	if reason == "" {
		return nil, fmt.Errorf("movement reason is required")
	}

	repo := s.repo.WithTx(tx)
	movement := &models.StockMovement{
		ShopID:    entry.ShopID,
		ProductID: entry.ProductID,
		Direction: entry.Direction,
		Quantity:  entry.Quantity,
		Reason:    reason,
		SaleID:    entry.SaleID,
		ActorID:   entry.ActorID,
	}
	if err := repo.Append(ctx, movement); err != nil {
		return nil, fmt.Errorf("append stock movement: %w", err)
	}

	applied, err := repo.ApplyDelta(ctx, entry.ShopID, entry.ProductID, entry.Direction.Sign()*entry.Quantity)
	if err != nil {
		return nil, fmt.Errorf("apply stock movement: %w", err)
	}
	if !applied {
		return nil, ErrInsufficientStock
	}
	return movement, nil
}

func (s *service) ListByProduct(ctx context.Context, shopID, productID uuid.UUID, params pagination.Params) ([]models.StockMovement, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListByProduct(ctx, shopID, productID, cursor, params.Limit)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list stock movements")
	}
	page, next := pagination.NextCursor(rows, params.Limit, func(m models.StockMovement) pagination.Cursor {
		return pagination.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}
	})
	return page, next, nil
}
