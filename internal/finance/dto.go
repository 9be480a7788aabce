package finance

import (
	"time"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

// ExpenseFilter narrows the expense list. Dates are inclusive.
type ExpenseFilter struct {
	Category enums.ExpenseCategory
	From     *time.Time
	To       *time.Time
	Limit    int
}

type CreateExpenseInput struct {
	Amount      decimal.Decimal `json:"amount" validate:"required"`
	Category    string          `json:"category" validate:"omitempty,max=20"`
	Description string          `json:"description" validate:"max=255"`
	Date        string          `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type ExpenseDTO struct {
	ID          uuid.UUID             `json:"id"`
	Amount      decimal.Decimal       `json:"amount"`
	Category    enums.ExpenseCategory `json:"category"`
	Description string                `json:"description"`
	Date        string                `json:"date"`
	CreatedBy   *uuid.UUID            `json:"created_by,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

func expenseFromModel(e models.Expense) ExpenseDTO {
	return ExpenseDTO{
		ID:          e.ID,
		Amount:      e.Amount,
		Category:    e.Category,
		Description: e.Description,
		Date:        e.SpentOn.Format(dateLayout),
		CreatedBy:   e.CreatedBy,
		CreatedAt:   e.CreatedAt,
	}
}

type CategoryTotal struct {
	Category enums.ExpenseCategory `json:"category"`
	Total    decimal.Decimal       `json:"total"`
}

// AccountingDashboard is the shop's all-time profit and loss view.
type AccountingDashboard struct {
	TotalSales       decimal.Decimal `json:"total_sales"`
	COGS             decimal.Decimal `json:"cogs"`
	GrossProfit      decimal.Decimal `json:"gross_profit"`
	TotalExpenses    decimal.Decimal `json:"total_expenses"`
	NetProfit        decimal.Decimal `json:"net_profit"`
	ExpenseBreakdown []CategoryTotal `json:"expense_breakdown"`
}

type DailyTotal struct {
	Date  string          `json:"date"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

type TopProduct struct {
	ProductName string          `json:"product_name"`
	Quantity    int64           `json:"quantity"`
	Revenue     decimal.Decimal `json:"revenue"`
}

// Statistics summarises the trailing window of sales.
type Statistics struct {
	From        time.Time       `json:"from"`
	To          time.Time       `json:"to"`
	Daily       []DailyTotal    `json:"daily"`
	TopProducts []TopProduct    `json:"top_products"`
	Revenue     decimal.Decimal `json:"revenue"`
	SalesCount  int             `json:"sales_count"`
	AvgBasket   decimal.Decimal `json:"average_basket"`
	GrossMargin decimal.Decimal `json:"gross_margin"`
}

type CreateLoanInput struct {
	CustomerName  string          `json:"customer_name" validate:"required,max=150"`
	CustomerPhone *string         `json:"customer_phone,omitempty" validate:"omitempty,max=20"`
	Type          string          `json:"type" validate:"omitempty,oneof=loan debt"`
	Amount        decimal.Decimal `json:"amount" validate:"required"`
	Description   string          `json:"description" validate:"max=255"`
	DueDate       string          `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
}

type RepayInput struct {
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

type CustomerDTO struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Phone *string   `json:"phone,omitempty"`
}

type LoanDTO struct {
	ID          uuid.UUID        `json:"id"`
	Type        enums.LoanType   `json:"type"`
	Customer    *CustomerDTO     `json:"customer,omitempty"`
	Amount      decimal.Decimal  `json:"amount"`
	AmountPaid  decimal.Decimal  `json:"amount_paid"`
	Remaining   decimal.Decimal  `json:"remaining"`
	Status      enums.LoanStatus `json:"status"`
	Description string           `json:"description"`
	DueDate     *string          `json:"due_date,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
}

func loanFromModel(l models.Loan) LoanDTO {
	dto := LoanDTO{
		ID:          l.ID,
		Type:        l.Type,
		Amount:      l.Amount,
		AmountPaid:  l.AmountPaid,
		Remaining:   l.Remaining(),
		Status:      l.Status,
		Description: l.Description,
		CreatedAt:   l.CreatedAt,
	}
	if l.Customer != nil {
		dto.Customer = &CustomerDTO{ID: l.Customer.ID, Name: l.Customer.Name, Phone: l.Customer.Phone}
	}
	if l.DueDate != nil {
		due := l.DueDate.Format(dateLayout)
		dto.DueDate = &due
	}
	return dto
}

// LoanBook splits money lent by the shop from money it owes.
type LoanBook struct {
	Loans            []LoanDTO       `json:"loans"`
	Debts            []LoanDTO       `json:"debts"`
	TotalReceivables decimal.Decimal `json:"total_receivables"`
	TotalPayables    decimal.Decimal `json:"total_payables"`
}

type StockValuation struct {
	ProductCount int64           `json:"product_count"`
	Quantity     int64           `json:"quantity"`
	CostValue    decimal.Decimal `json:"cost_value"`
	RetailValue  decimal.Decimal `json:"retail_value"`
}

// Report gathers the figures printed in the accounting export.
type Report struct {
	ShopName         string
	GeneratedAt      time.Time
	Currency         string
	Accounting       AccountingDashboard
	Stock            StockValuation
	TotalReceivables decimal.Decimal
	TotalPayables    decimal.Decimal
}

// Balance is what third parties owe the shop net of what it owes them.
func (r Report) Balance() decimal.Decimal {
	return r.TotalReceivables.Sub(r.TotalPayables)
}

type TaxMonth struct {
	Month int             `json:"month"`
	Label string          `json:"label"`
	Sales decimal.Decimal `json:"sales"`
	Tax   decimal.Decimal `json:"tax"`
	Net   decimal.Decimal `json:"net"`
	Count int             `json:"sales_count"`
}

// TaxSummary reports tax collected on tax-inclusive sales per month.
type TaxSummary struct {
	Year   int             `json:"year"`
	Rate   decimal.Decimal `json:"rate"`
	Months []TaxMonth      `json:"months"`
	Sales  decimal.Decimal `json:"sales"`
	Tax    decimal.Decimal `json:"tax"`
	Net    decimal.Decimal `json:"net"`
}
