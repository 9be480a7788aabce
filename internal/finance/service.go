package finance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/shopdesk-backend/pkg/config"
	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
	"github.com/angelmondragon/shopdesk-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	statisticsWindowDays = 30
	topProductsLimit     = 5
)

// Service exposes the shop's bookkeeping: expenses, loans, profit figures and
// tax summaries. Plan and role gating happens at the HTTP boundary.
type Service interface {
	ListExpenses(ctx context.Context, shopID uuid.UUID, filter ExpenseFilter) ([]ExpenseDTO, error)
	CreateExpense(ctx context.Context, shopID, actorID uuid.UUID, input CreateExpenseInput) (*ExpenseDTO, error)
	Dashboard(ctx context.Context, shopID uuid.UUID) (*AccountingDashboard, error)
	Statistics(ctx context.Context, shopID uuid.UUID) (*Statistics, error)
	ListLoans(ctx context.Context, shopID uuid.UUID) (*LoanBook, error)
	CreateLoan(ctx context.Context, shopID uuid.UUID, input CreateLoanInput) (*LoanDTO, error)
	Repay(ctx context.Context, shopID, loanID uuid.UUID, input RepayInput) (*LoanDTO, error)
	Report(ctx context.Context, shopID uuid.UUID) (*Report, error)
	TaxSummary(ctx context.Context, shopID uuid.UUID, year int) (*TaxSummary, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	TxRunner txRunner
	Repo     *Repository
	Tax      config.TaxConfig
	Currency string
	Logger   *logger.Logger
}

type service struct {
	tx       txRunner
	repo     *Repository
	taxRate  decimal.Decimal
	currency string
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("finance repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:       params.TxRunner,
		repo:     params.Repo,
		taxRate:  params.Tax.RateDecimal(),
		currency: params.Currency,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

func (s *service) ListExpenses(ctx context.Context, shopID uuid.UUID, filter ExpenseFilter) ([]ExpenseDTO, error) {
	rows, err := s.repo.ListExpenses(ctx, shopID, filter, pagination.NormalizeLimit(filter.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list expenses")
	}
	out := make([]ExpenseDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, expenseFromModel(row))
	}
	return out, nil
}

func (s *service) CreateExpense(ctx context.Context, shopID, actorID uuid.UUID, input CreateExpenseInput) (*ExpenseDTO, error) {
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive").
			WithDetails(map[string]any{"field": "amount"})
	}
	category, err := enums.ParseExpenseCategory(input.Category)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error()).
			WithDetails(map[string]any{"field": "category"})
	}
	spentOn, err := s.parseDate(input.Date)
	if err != nil {
		return nil, err
	}
	spent := spentOn
	if spent == nil {
		today := truncateDay(s.now().UTC())
		spent = &today
	}

	expense := &models.Expense{
		ShopID:      shopID,
		Amount:      input.Amount.Round(2),
		Category:    category,
		Description: strings.TrimSpace(input.Description),
		SpentOn:     *spent,
	}
	if actorID != uuid.Nil {
		actor := actorID
		expense.CreatedBy = &actor
	}
	if err := s.repo.CreateExpense(ctx, expense); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create expense")
	}

	logCtx := s.logg.WithFields(s.logg.WithShopID(ctx, shopID.String()), map[string]any{
		"expense_id": expense.ID.String(),
		"category":   string(category),
	})
	s.logg.Info(logCtx, "expense recorded")

	dto := expenseFromModel(*expense)
	return &dto, nil
}

func (s *service) Dashboard(ctx context.Context, shopID uuid.UUID) (*AccountingDashboard, error) {
	total, err := s.repo.SalesTotal(ctx, shopID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum sales")
	}
	gross, err := s.repo.GrossProfit(ctx, shopID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute gross profit")
	}
	expenses, err := s.repo.ExpenseTotal(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum expenses")
	}
	breakdown, err := s.repo.ExpenseBreakdown(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "expense breakdown")
	}
	if breakdown == nil {
		breakdown = []CategoryTotal{}
	}
	return &AccountingDashboard{
		TotalSales:       total,
		COGS:             total.Sub(gross),
		GrossProfit:      gross,
		TotalExpenses:    expenses,
		NetProfit:        gross.Sub(expenses),
		ExpenseBreakdown: breakdown,
	}, nil
}

// Statistics covers the trailing 30 days, bucketed by UTC calendar day.
func (s *service) Statistics(ctx context.Context, shopID uuid.UUID) (*Statistics, error) {
	to := s.now().UTC()
	from := to.AddDate(0, 0, -statisticsWindowDays)

	sales, err := s.repo.SalesBetween(ctx, shopID, from, to.Add(time.Second))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sales window")
	}
	top, err := s.repo.TopProducts(ctx, shopID, from, topProductsLimit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "rank products")
	}
	margin, err := s.repo.GrossProfit(ctx, shopID, &from)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "compute gross margin")
	}

	days := map[string]*DailyTotal{}
	revenue := decimal.Zero
	for _, sale := range sales {
		key := sale.CreatedAt.UTC().Format(dateLayout)
		day, ok := days[key]
		if !ok {
			day = &DailyTotal{Date: key, Total: decimal.Zero}
			days[key] = day
		}
		day.Total = day.Total.Add(sale.TotalAmount)
		day.Count++
		revenue = revenue.Add(sale.TotalAmount)
	}
	daily := make([]DailyTotal, 0, len(days))
	for _, day := range days {
		daily = append(daily, *day)
	}
	sort.Slice(daily, func(i, j int) bool { return daily[i].Date < daily[j].Date })

	avg := decimal.Zero
	if len(sales) > 0 {
		avg = revenue.DivRound(decimal.NewFromInt(int64(len(sales))), 2)
	}
	if top == nil {
		top = []TopProduct{}
	}
	return &Statistics{
		From:        from,
		To:          to,
		Daily:       daily,
		TopProducts: top,
		Revenue:     revenue,
		SalesCount:  len(sales),
		AvgBasket:   avg,
		GrossMargin: margin,
	}, nil
}

func (s *service) ListLoans(ctx context.Context, shopID uuid.UUID) (*LoanBook, error) {
	rows, err := s.repo.ListLoans(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list loans")
	}
	book := &LoanBook{Loans: []LoanDTO{}, Debts: []LoanDTO{}}
	for _, row := range rows {
		dto := loanFromModel(row)
		open := row.Status != enums.LoanStatusPaid
		switch row.Type {
		case enums.LoanTypeDebt:
			book.Debts = append(book.Debts, dto)
			if open {
				book.TotalPayables = book.TotalPayables.Add(dto.Remaining)
			}
		default:
			book.Loans = append(book.Loans, dto)
			if open {
				book.TotalReceivables = book.TotalReceivables.Add(dto.Remaining)
			}
		}
	}
	return book, nil
}

func (s *service) CreateLoan(ctx context.Context, shopID uuid.UUID, input CreateLoanInput) (*LoanDTO, error) {
	name := strings.TrimSpace(input.CustomerName)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer name is required").
			WithDetails(map[string]any{"field": "customer_name"})
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive").
			WithDetails(map[string]any{"field": "amount"})
	}
	loanType := enums.LoanTypeLoan
	if strings.TrimSpace(input.Type) != "" {
		parsed, err := enums.ParseLoanType(input.Type)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error()).
				WithDetails(map[string]any{"field": "type"})
		}
		loanType = parsed
	}
	due, err := s.parseDate(input.DueDate)
	if err != nil {
		return nil, err
	}

	var loan *models.Loan
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		customer, err := repo.FindOrCreateCustomer(ctx, shopID, name, trimmed(input.CustomerPhone))
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "resolve customer")
		}
		loan = &models.Loan{
			ShopID:      shopID,
			CustomerID:  customer.ID,
			Type:        loanType,
			Amount:      input.Amount.Round(2),
			AmountPaid:  decimal.Zero,
			Status:      enums.LoanStatusPending,
			Description: strings.TrimSpace(input.Description),
			DueDate:     due,
			Customer:    customer,
		}
		if err := repo.CreateLoan(ctx, loan); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create loan")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(s.logg.WithShopID(ctx, shopID.String()), map[string]any{
		"loan_id": loan.ID.String(),
		"type":    string(loanType),
	})
	s.logg.Info(logCtx, "loan recorded")

	dto := loanFromModel(*loan)
	return &dto, nil
}

// Repay adds a repayment. The paid amount is capped at the loan amount and the
// status moves to partial or paid accordingly.
func (s *service) Repay(ctx context.Context, shopID, loanID uuid.UUID, input RepayInput) (*LoanDTO, error) {
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive").
			WithDetails(map[string]any{"field": "amount"})
	}

	var loan *models.Loan
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		loan, err = repo.LockLoan(ctx, shopID, loanID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "loan not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load loan")
		}
		if loan.Status == enums.LoanStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "loan is already settled")
		}

		applyRepayment(loan, input.Amount.Round(2))
		if err := repo.SaveRepayment(ctx, loan); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save repayment")
		}
		customer, err := repo.FindCustomer(ctx, loan.CustomerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load customer")
		}
		loan.Customer = customer
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(s.logg.WithShopID(ctx, shopID.String()), map[string]any{
		"loan_id": loan.ID.String(),
		"amount":  input.Amount.String(),
		"status":  string(loan.Status),
	})
	s.logg.Info(logCtx, "loan repayment recorded")

	dto := loanFromModel(*loan)
	return &dto, nil
}

func applyRepayment(loan *models.Loan, amount decimal.Decimal) {
	paid := loan.AmountPaid.Add(amount)
	if paid.GreaterThanOrEqual(loan.Amount) {
		loan.AmountPaid = loan.Amount
		loan.Status = enums.LoanStatusPaid
		return
	}
	loan.AmountPaid = paid
	loan.Status = enums.LoanStatusPartial
}

func (s *service) Report(ctx context.Context, shopID uuid.UUID) (*Report, error) {
	name, err := s.repo.ShopName(ctx, shopID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load shop")
	}
	dash, err := s.Dashboard(ctx, shopID)
	if err != nil {
		return nil, err
	}
	stock, err := s.repo.StockValuation(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "value stock")
	}
	outstanding, err := s.repo.Outstanding(ctx, shopID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "sum outstanding loans")
	}
	return &Report{
		ShopName:         name,
		GeneratedAt:      s.now().UTC(),
		Currency:         s.currency,
		Accounting:       *dash,
		Stock:            stock,
		TotalReceivables: outstanding[enums.LoanTypeLoan],
		TotalPayables:    outstanding[enums.LoanTypeDebt],
	}, nil
}

// TaxSummary treats sale totals as tax-inclusive: tax = total * rate / (1 + rate).
// A zero year means the current one.
func (s *service) TaxSummary(ctx context.Context, shopID uuid.UUID, year int) (*TaxSummary, error) {
	if year == 0 {
		year = s.now().UTC().Year()
	}
	if year < 2000 || year > 9999 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "year is out of range").
			WithDetails(map[string]any{"field": "year"})
	}
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	sales, err := s.repo.SalesBetween(ctx, shopID, from, from.AddDate(1, 0, 0))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load sales")
	}

	months := make([]TaxMonth, 12)
	for i := range months {
		months[i] = TaxMonth{
			Month: i + 1,
			Label: fmt.Sprintf("%04d-%02d", year, i+1),
			Sales: decimal.Zero,
		}
	}
	for _, sale := range sales {
		m := &months[sale.CreatedAt.UTC().Month()-1]
		m.Sales = m.Sales.Add(sale.TotalAmount)
		m.Count++
	}

	summary := &TaxSummary{Year: year, Rate: s.taxRate, Months: months}
	divisor := decimal.NewFromInt(1).Add(s.taxRate)
	for i := range summary.Months {
		m := &summary.Months[i]
		m.Tax = m.Sales.Mul(s.taxRate).DivRound(divisor, 2)
		m.Net = m.Sales.Sub(m.Tax)
		summary.Sales = summary.Sales.Add(m.Sales)
		summary.Tax = summary.Tax.Add(m.Tax)
		summary.Net = summary.Net.Add(m.Net)
	}
	return summary, nil
}

func (s *service) parseDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dateLayout, value)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dates use the YYYY-MM-DD format")
	}
	return &parsed, nil
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
