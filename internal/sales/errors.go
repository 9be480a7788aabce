package sales

import (
	"fmt"

	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/google/uuid"
)

// Rejection kinds reported in error details.
const (
	KindEmptyOrder        = "empty_order"
	KindItemNotFound      = "item_not_found"
	KindInsufficientStock = "insufficient_stock"
	KindInvalidItem       = "invalid_item"
)

// EmptyOrderError rejects a sale without items.
type EmptyOrderError struct{}

func (EmptyOrderError) Error() string {
	return "sale must contain at least one item"
}

// ItemNotFoundError rejects a line referencing a product that does not exist
// in the acting shop.
type ItemNotFoundError struct {
	Index     int
	ProductID uuid.UUID
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %d: product %s not found", e.Index, e.ProductID)
}

// InsufficientStockError rejects a sale asking for more units than on hand.
// Requested is the total over every line naming the product.
type InsufficientStockError struct {
	ProductID uuid.UUID
	Name      string
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: %d available, %d requested", e.Name, e.Available, e.Requested)
}

// DuplicateSaleError reports that the client reference was already used for
// a committed sale.
type DuplicateSaleError struct {
	ClientRef string
	SaleID    uuid.UUID
}

func (e *DuplicateSaleError) Error() string {
	return fmt.Sprintf("client_ref %q already recorded as sale %s", e.ClientRef, e.SaleID)
}

func rejectEmpty() error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, EmptyOrderError{}, "sale has no items").
		WithDetails(map[string]any{"kind": KindEmptyOrder})
}

func rejectNotFound(index int, productID uuid.UUID) error {
	cause := &ItemNotFoundError{Index: index, ProductID: productID}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, "product not found").
		WithDetails(map[string]any{
			"kind":       KindItemNotFound,
			"index":      index,
			"product_id": productID,
		})
}

func rejectStock(cause *InsufficientStockError) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, cause, "insufficient stock").
		WithDetails(map[string]any{
			"kind":       KindInsufficientStock,
			"product_id": cause.ProductID,
			"name":       cause.Name,
			"available":  cause.Available,
			"requested":  cause.Requested,
		})
}

func rejectItem(index int, message string) error {
	return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d: %s", index, message)).
		WithDetails(map[string]any{"kind": KindInvalidItem, "index": index})
}

func rejectDuplicate(cause *DuplicateSaleError) error {
	return pkgerrors.Wrap(pkgerrors.CodeConflict, cause, "sale already recorded").
		WithDetails(map[string]any{"client_ref": cause.ClientRef, "sale_id": cause.SaleID})
}

// rejectionKind extracts the details kind used for metrics.
func rejectionKind(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "internal"
	}
	if details, ok := typed.Details().(map[string]any); ok {
		if kind, ok := details["kind"].(string); ok {
			return kind
		}
	}
	return string(typed.Code())
}
