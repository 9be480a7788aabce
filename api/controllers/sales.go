package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/shopdesk-backend/api/responses"
	"github.com/angelmondragon/shopdesk-backend/api/validators"
	"github.com/angelmondragon/shopdesk-backend/internal/invoices"
	"github.com/angelmondragon/shopdesk-backend/internal/sales"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
)

const maxBatchOperations = 100

type saleLineRequest struct {
	Product     *uuid.UUID       `json:"product,omitempty"`
	ProductName string           `json:"product_name,omitempty" validate:"max=200"`
	Quantity    int              `json:"quantity" validate:"required,gt=0"`
	Price       *decimal.Decimal `json:"price,omitempty"`
}

type saleRequest struct {
	PaymentMethod string            `json:"payment_method"`
	ClientRef     string            `json:"client_ref,omitempty" validate:"max=100"`
	Items         []saleLineRequest `json:"items" validate:"dive"`
}

type batchRequest struct {
	Operations []saleRequest `json:"operations" validate:"required,min=1,dive"`
}

type updateItemRequest struct {
	Quantity *int             `json:"quantity,omitempty" validate:"omitempty,gt=0"`
	Price    *decimal.Decimal `json:"price,omitempty"`
}

func lineInputs(items []saleLineRequest) []sales.LineInput {
	out := make([]sales.LineInput, 0, len(items))
	for _, item := range items {
		out = append(out, sales.LineInput{
			ProductID:   item.Product,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
		})
	}
	return out
}

func parsePaymentMethod(raw string) (enums.PaymentMethod, error) {
	method, err := enums.ParsePaymentMethod(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method").WithDetails(map[string]any{"field": "payment_method"})
	}
	return method, nil
}

// SalesSubmit commits one sale atomically against the active shop.
func SalesSubmit(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := shopScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body saleRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := parsePaymentMethod(body.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sale, err := svc.Submit(r.Context(), sales.SubmitInput{
			ShopID:        sc.ShopID,
			CashierID:     sc.UserID,
			PaymentMethod: method,
			ClientRef:     body.ClientRef,
			Items:         lineInputs(body.Items),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, sale)
	}
}

// SalesBatch replays queued offline sales. Each operation succeeds or fails on
// its own; the response always lists one result per operation.
func SalesBatch(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := shopScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body batchRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if len(body.Operations) > maxBatchOperations {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "too many operations").WithDetails(map[string]any{"max": maxBatchOperations}))
			return
		}

		ops := make([]sales.BatchOperation, 0, len(body.Operations))
		for i, op := range body.Operations {
			method, err := parsePaymentMethod(op.PaymentMethod)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.As(err).WithDetails(map[string]any{"field": "payment_method", "index": i}))
				return
			}
			ops = append(ops, sales.BatchOperation{
				ClientRef:     op.ClientRef,
				PaymentMethod: method,
				Items:         lineInputs(op.Items),
			})
		}

		results := svc.SubmitBatch(r.Context(), sc.ShopID, sc.UserID, ops)
		responses.WriteSuccess(w, map[string]any{"results": results})
	}
}

func SalesList(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := shopScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		from, err := queryTime(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := queryTime(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), sc.ShopID, sales.ListParams{Limit: page.Limit, Cursor: page.Cursor, From: from, To: to})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func SalesGet(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := shopScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		saleID, err := pathUUID(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sale, err := svc.Get(r.Context(), sc.ShopID, saleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sale)
	}
}

func SalesDelete(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := shopScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		saleID, err := pathUUID(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), sc.ShopID, sc.UserID, saleID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// SalesUpdateItem edits the quantity or price of one committed line.
func SalesUpdateItem(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := shopScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		saleID, err := pathUUID(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := pathUUID(r, "itemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		sale, err := svc.UpdateItem(r.Context(), sales.UpdateItemInput{
			ShopID:   sc.ShopID,
			ActorID:  sc.UserID,
			SaleID:   saleID,
			ItemID:   itemID,
			Quantity: body.Quantity,
			Price:    body.Price,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, sale)
	}
}

// SalesInvoice issues the sale's invoice on demand, or returns the existing one.
func SalesInvoice(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc, err := shopScope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		saleID, err := pathUUID(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoice, err := svc.Generate(r.Context(), sc.ShopID, saleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, invoice)
	}
}
