package controllers

import (
	"net/http"

	"github.com/angelmondragon/shopdesk-backend/internal/invoices"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
)

// InvoicesList pages the shop's invoices, optionally bounded by issue date
// through ?start= and ?end=.
func InvoicesList(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return scoped(logg, http.StatusOK, func(r *http.Request, sc scope) (*invoices.ListResult, error) {
		page, err := pageParams(r)
		if err != nil {
			return nil, err
		}
		params := invoices.ListParams{Limit: page.Limit, Cursor: page.Cursor}
		if params.Start, err = queryTime(r, "start"); err != nil {
			return nil, err
		}
		if params.End, err = queryTime(r, "end"); err != nil {
			return nil, err
		}
		return svc.List(r.Context(), sc.ShopID, params)
	})
}

func InvoicesGet(svc invoices.Service, logg *logger.Logger) http.HandlerFunc {
	return scoped(logg, http.StatusOK, func(r *http.Request, sc scope) (*invoices.InvoiceDTO, error) {
		invoiceID, err := pathUUID(r, "invoiceId")
		if err != nil {
			return nil, err
		}
		return svc.Get(r.Context(), sc.ShopID, invoiceID)
	})
}
