package enums

import (
	"fmt"
	"slices"
	"strings"
)

// PaymentMethod is how a sale was settled at the counter.
type PaymentMethod string

const (
	PaymentMethodCash PaymentMethod = "cash"
	PaymentMethodMoMo PaymentMethod = "momo"
	PaymentMethodBank PaymentMethod = "bank"
	PaymentMethodCard PaymentMethod = "card"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodMoMo,
	PaymentMethodBank,
	PaymentMethodCard,
}

func (p PaymentMethod) String() string {
	return string(p)
}

func (p PaymentMethod) IsValid() bool {
	return slices.Contains(validPaymentMethods, p)
}

// ParsePaymentMethod defaults empty input to cash.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	trimmed := strings.ToLower(strings.TrimSpace(value))
	if trimmed == "" {
		return PaymentMethodCash, nil
	}
	if p := PaymentMethod(trimmed); p.IsValid() {
		return p, nil
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
