package finance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository reads and writes the shop's bookkeeping rows.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense == nil {
		return fmt.Errorf("expense is required")
	}
	return r.db.WithContext(ctx).Create(expense).Error
}

// ListExpenses returns the shop's expenses, latest spending date first.
func (r *Repository) ListExpenses(ctx context.Context, shopID uuid.UUID, filter ExpenseFilter, limit int) ([]models.Expense, error) {
	query := r.db.WithContext(ctx).Where("shop_id = ?", shopID)
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.From != nil {
		query = query.Where("spent_on >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("spent_on <= ?", *filter.To)
	}
	var rows []models.Expense
	err := query.
		Order("spent_on DESC").
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ExpenseTotal(ctx context.Context, shopID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&models.Expense{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("shop_id = ?", shopID).
		Row().
		Scan(&total)
	return total, err
}

// ExpenseBreakdown sums expenses per category, largest first.
func (r *Repository) ExpenseBreakdown(ctx context.Context, shopID uuid.UUID) ([]CategoryTotal, error) {
	var rows []CategoryTotal
	err := r.db.WithContext(ctx).
		Model(&models.Expense{}).
		Select("category, COALESCE(SUM(amount), 0) AS total").
		Where("shop_id = ?", shopID).
		Group("category").
		Order("total DESC").
		Scan(&rows).Error
	return rows, err
}

// SalesTotal sums sale totals since from; a nil from covers every sale.
func (r *Repository) SalesTotal(ctx context.Context, shopID uuid.UUID, from *time.Time) (decimal.Decimal, error) {
	query := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Select("COALESCE(SUM(total_amount), 0)").
		Where("shop_id = ?", shopID)
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	var total decimal.Decimal
	err := query.Row().Scan(&total)
	return total, err
}

// GrossProfit sums item subtotals minus their cost at the product's current
// purchase price. Items whose product is gone count at zero cost.
func (r *Repository) GrossProfit(ctx context.Context, shopID uuid.UUID, from *time.Time) (decimal.Decimal, error) {
	var b strings.Builder
	b.WriteString(`SELECT COALESCE(SUM(si.subtotal - si.quantity * COALESCE(p.purchase_price, 0)), 0)
FROM sale_items si
JOIN sales s ON s.id = si.sale_id
LEFT JOIN products p ON p.id = si.product_id
WHERE s.shop_id = ?`)
	args := []any{shopID}
	if from != nil {
		b.WriteString(" AND s.created_at >= ?")
		args = append(args, *from)
	}
	var total decimal.Decimal
	err := r.db.WithContext(ctx).Raw(b.String(), args...).Row().Scan(&total)
	return total, err
}

type saleRow struct {
	CreatedAt   time.Time
	TotalAmount decimal.Decimal
}

// SalesBetween lists sale timestamps and totals in [from, to).
func (r *Repository) SalesBetween(ctx context.Context, shopID uuid.UUID, from, to time.Time) ([]saleRow, error) {
	var rows []saleRow
	err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Select("created_at, total_amount").
		Where("shop_id = ? AND created_at >= ? AND created_at < ?", shopID, from, to).
		Order("created_at ASC").
		Scan(&rows).Error
	return rows, err
}

// TopProducts ranks sold product names by revenue since from.
func (r *Repository) TopProducts(ctx context.Context, shopID uuid.UUID, from time.Time, limit int) ([]TopProduct, error) {
	var rows []TopProduct
	err := r.db.WithContext(ctx).
		Table("sale_items AS si").
		Select("si.product_name AS product_name, SUM(si.quantity) AS quantity, SUM(si.subtotal) AS revenue").
		Joins("JOIN sales s ON s.id = si.sale_id").
		Where("s.shop_id = ? AND s.created_at >= ?", shopID, from).
		Group("si.product_name").
		Order("revenue DESC").
		Order("si.product_name ASC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// StockValuation values live products at purchase and selling price.
func (r *Repository) StockValuation(ctx context.Context, shopID uuid.UUID) (StockValuation, error) {
	var out StockValuation
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Select(`COUNT(*) AS product_count,
COALESCE(SUM(quantity), 0) AS quantity,
COALESCE(SUM(quantity * purchase_price), 0) AS cost_value,
COALESCE(SUM(quantity * selling_price), 0) AS retail_value`).
		Where("shop_id = ?", shopID).
		Scan(&out).Error
	return out, err
}

// FindOrCreateCustomer reuses the shop's customer with the same name.
func (r *Repository) FindOrCreateCustomer(ctx context.Context, shopID uuid.UUID, name string, phone *string) (*models.Customer, error) {
	var customer models.Customer
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND name = ?", shopID, name).
		Order("created_at ASC").
		First(&customer).Error
	if err == nil {
		return &customer, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	customer = models.Customer{ShopID: shopID, Name: name, Phone: phone}
	if err := r.db.WithContext(ctx).Create(&customer).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

func (r *Repository) CreateLoan(ctx context.Context, loan *models.Loan) error {
	if loan == nil {
		return fmt.Errorf("loan is required")
	}
	return r.db.WithContext(ctx).Create(loan).Error
}

// ListLoans returns the shop's loans and debts with their customer, newest first.
func (r *Repository) ListLoans(ctx context.Context, shopID uuid.UUID) ([]models.Loan, error) {
	var rows []models.Loan
	err := r.db.WithContext(ctx).
		Preload("Customer").
		Where("shop_id = ?", shopID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// LockLoan loads a loan for update inside the caller's transaction.
func (r *Repository) LockLoan(ctx context.Context, shopID, id uuid.UUID) (*models.Loan, error) {
	var loan models.Loan
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("shop_id = ? AND id = ?", shopID, id).
		First(&loan).Error; err != nil {
		return nil, err
	}
	return &loan, nil
}

func (r *Repository) FindCustomer(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// SaveRepayment persists the paid amount and status of loan.
func (r *Repository) SaveRepayment(ctx context.Context, loan *models.Loan) error {
	return r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Where("id = ?", loan.ID).
		Updates(map[string]any{
			"amount_paid": loan.AmountPaid,
			"status":      loan.Status,
			"updated_at":  time.Now().UTC(),
		}).Error
}

type outstandingRow struct {
	Type  enums.LoanType
	Total decimal.Decimal
}

// Outstanding sums unpaid balances per loan type.
func (r *Repository) Outstanding(ctx context.Context, shopID uuid.UUID) (map[enums.LoanType]decimal.Decimal, error) {
	var rows []outstandingRow
	if err := r.db.WithContext(ctx).
		Model(&models.Loan{}).
		Select("type, COALESCE(SUM(amount - amount_paid), 0) AS total").
		Where("shop_id = ? AND status <> ?", shopID, enums.LoanStatusPaid).
		Group("type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[enums.LoanType]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.Type] = row.Total
	}
	return out, nil
}

// ShopName returns the display name printed on reports.
func (r *Repository) ShopName(ctx context.Context, shopID uuid.UUID) (string, error) {
	var shop models.Shop
	if err := r.db.WithContext(ctx).Select("id", "name").First(&shop, "id = ?", shopID).Error; err != nil {
		return "", err
	}
	return shop.Name, nil
}
