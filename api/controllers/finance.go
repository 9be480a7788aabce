package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/shopdesk-backend/api/responses"
	"github.com/angelmondragon/shopdesk-backend/api/validators"
	"github.com/angelmondragon/shopdesk-backend/internal/finance"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
)

func FinanceDashboard(svc finance.Service, logg *logger.Logger) http.HandlerFunc {
	return scoped(logg, http.StatusOK, func(r *http.Request, sc scope) (*finance.AccountingDashboard, error) {
		return svc.Dashboard(r.Context(), sc.ShopID)
	})
}

func FinanceStatistics(svc finance.Service, logg *logger.Logger) http.HandlerFunc {
	return scoped(logg, http.StatusOK, func(r *http.Request, sc scope) (*finance.Statistics, error) {
		return svc.Statistics(r.Context(), sc.ShopID)
	})
}

// FinanceReport streams the accounting export as a PDF download.
func FinanceReport(svc finance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, body, err := renderShopReport(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteAttachment(w, finance.ReportContentType, finance.ReportFilename(report), body)
	}
}

func renderShopReport(r *http.Request, svc finance.Service) (*finance.Report, []byte, error) {
	sc, err := shopScope(r)
	if err != nil {
		return nil, nil, err
	}
	report, err := svc.Report(r.Context(), sc.ShopID)
	if err != nil {
		return nil, nil, err
	}
	body, err := finance.RenderReport(report)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render report")
	}
	return report, body, nil
}

// expenseFilter reads ?category=, ?from=, ?to= and ?limit=.
func expenseFilter(r *http.Request) (finance.ExpenseFilter, error) {
	var filter finance.ExpenseFilter
	if raw := strings.TrimSpace(r.URL.Query().Get("category")); raw != "" {
		category, err := enums.ParseExpenseCategory(raw)
		if err != nil {
			return filter, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category").
				WithDetails(map[string]any{"field": "category"})
		}
		filter.Category = category
	}
	var err error
	if filter.From, err = queryTime(r, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = queryTime(r, "to"); err != nil {
		return filter, err
	}
	page, err := pageParams(r)
	if err != nil {
		return filter, err
	}
	filter.Limit = page.Limit
	return filter, nil
}

func FinanceListExpenses(svc finance.Service, logg *logger.Logger) http.HandlerFunc {
	return scoped(logg, http.StatusOK, func(r *http.Request, sc scope) ([]finance.ExpenseDTO, error) {
		filter, err := expenseFilter(r)
		if err != nil {
			return nil, err
		}
		return svc.ListExpenses(r.Context(), sc.ShopID, filter)
	})
}

func FinanceCreateExpense(svc finance.Service, logg *logger.Logger) http.HandlerFunc {
	return scopedJSON(logg, http.StatusCreated, func(r *http.Request, sc scope, body finance.CreateExpenseInput) (*finance.ExpenseDTO, error) {
		return svc.CreateExpense(r.Context(), sc.ShopID, sc.UserID, body)
	})
}

func FinanceListLoans(svc finance.Service, logg *logger.Logger) http.HandlerFunc {
	return scoped(logg, http.StatusOK, func(r *http.Request, sc scope) (*finance.LoanBook, error) {
		return svc.ListLoans(r.Context(), sc.ShopID)
	})
}

func FinanceCreateLoan(svc finance.Service, logg *logger.Logger) http.HandlerFunc {
	return scopedJSON(logg, http.StatusCreated, func(r *http.Request, sc scope, body finance.CreateLoanInput) (*finance.LoanDTO, error) {
		return svc.CreateLoan(r.Context(), sc.ShopID, body)
	})
}

func FinanceRepayLoan(svc finance.Service, logg *logger.Logger) http.HandlerFunc {
	return scopedJSON(logg, http.StatusOK, func(r *http.Request, sc scope, body finance.RepayInput) (*finance.LoanDTO, error) {
		loanID, err := pathUUID(r, "loanId")
		if err != nil {
			return nil, err
		}
		return svc.Repay(r.Context(), sc.ShopID, loanID, body)
	})
}

// TaxesSummary reports monthly tax for ?year=, defaulting to the current year.
func TaxesSummary(svc finance.Service, logg *logger.Logger) http.HandlerFunc {
	return scoped(logg, http.StatusOK, func(r *http.Request, sc scope) (*finance.TaxSummary, error) {
		year, err := validators.ParseQueryInt(r, "year", 0, 2000, 9999)
		if err != nil {
			return nil, err
		}
		return svc.TaxSummary(r.Context(), sc.ShopID, year)
	})
}
