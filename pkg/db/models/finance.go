package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
)

type Expense struct {
	ID          uuid.UUID             `gorm:"type:uuid;primaryKey"`
	ShopID      uuid.UUID             `gorm:"column:shop_id;type:uuid;not null;index"`
	CreatedBy   *uuid.UUID            `gorm:"column:created_by;type:uuid"`
	Amount      decimal.Decimal       `gorm:"column:amount;type:numeric(14,2);not null"`
	Category    enums.ExpenseCategory `gorm:"column:category;type:expense_category;not null;default:'other'"`
	Description string                `gorm:"column:description;not null;default:''"`
	SpentOn     time.Time             `gorm:"column:spent_on;type:date;not null"`
	CreatedAt   time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (e *Expense) BeforeCreate(*gorm.DB) error {
	assignID(&e.ID)
	return nil
}

type Customer struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	ShopID    uuid.UUID `gorm:"column:shop_id;type:uuid;not null;index"`
	Name      string    `gorm:"column:name;not null"`
	Phone     *string   `gorm:"column:phone"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (c *Customer) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// Loan tracks money lent by the shop (loan) or owed by it (debt).
type Loan struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey"`
	ShopID      uuid.UUID        `gorm:"column:shop_id;type:uuid;not null;index"`
	CustomerID  uuid.UUID        `gorm:"column:customer_id;type:uuid;not null"`
	Type        enums.LoanType   `gorm:"column:type;type:loan_type;not null"`
	Amount      decimal.Decimal  `gorm:"column:amount;type:numeric(14,2);not null"`
	AmountPaid  decimal.Decimal  `gorm:"column:amount_paid;type:numeric(14,2);not null;default:0"`
	Status      enums.LoanStatus `gorm:"column:status;type:loan_status;not null;default:'pending'"`
	Description string           `gorm:"column:description;not null;default:''"`
	DueDate     *time.Time       `gorm:"column:due_date;type:date"`
	CreatedAt   time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time        `gorm:"column:updated_at;autoUpdateTime"`
	Customer    *Customer        `gorm:"foreignKey:CustomerID"`
}

func (l *Loan) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}

// Remaining returns the outstanding balance, never below zero.
func (l Loan) Remaining() decimal.Decimal {
	rest := l.Amount.Sub(l.AmountPaid)
	if rest.IsNegative() {
		return decimal.Zero
	}
	return rest
}
