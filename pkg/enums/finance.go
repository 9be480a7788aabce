package enums

import (
	"fmt"
	"strings"
)

// ExpenseCategory groups shop expenses on the accounting dashboard.
type ExpenseCategory string

const (
	ExpenseRent      ExpenseCategory = "rent"
	ExpenseSalary    ExpenseCategory = "salary"
	ExpenseUtilities ExpenseCategory = "utilities"
	ExpenseStock     ExpenseCategory = "stock"
	ExpenseTransport ExpenseCategory = "transport"
	ExpenseOther     ExpenseCategory = "other"
)

var validExpenseCategories = []ExpenseCategory{
	ExpenseRent,
	ExpenseSalary,
	ExpenseUtilities,
	ExpenseStock,
	ExpenseTransport,
	ExpenseOther,
}

func (c ExpenseCategory) IsValid() bool {
	for _, candidate := range validExpenseCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

func ParseExpenseCategory(value string) (ExpenseCategory, error) {
	trimmed := ExpenseCategory(strings.ToLower(strings.TrimSpace(value)))
	if trimmed == "" {
		return ExpenseOther, nil
	}
	if trimmed.IsValid() {
		return trimmed, nil
	}
	return "", fmt.Errorf("invalid expense category %q", value)
}

// LoanType distinguishes money lent by the shop from money it owes.
type LoanType string

const (
	LoanTypeLoan LoanType = "loan"
	LoanTypeDebt LoanType = "debt"
)

func ParseLoanType(value string) (LoanType, error) {
	switch LoanType(strings.ToLower(strings.TrimSpace(value))) {
	case LoanTypeLoan:
		return LoanTypeLoan, nil
	case LoanTypeDebt:
		return LoanTypeDebt, nil
	}
	return "", fmt.Errorf("invalid loan type %q", value)
}

type LoanStatus string

const (
	LoanStatusPending LoanStatus = "pending"
	LoanStatusPartial LoanStatus = "partial"
	LoanStatusPaid    LoanStatus = "paid"
)
