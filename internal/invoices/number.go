package invoices

import (
	"strings"

	"github.com/google/uuid"
)

const defaultNumberLength = 8

// NewNumber returns the first length hex digits of a random UUID, uppercased.
func NewNumber(length int) string {
	if length <= 0 || length > 32 {
		length = defaultNumberLength
	}
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(hex[:length])
}

// ObjectKey is the storage key of the artifact for number. Regeneration
// writes to the same key.
func ObjectKey(number string) string {
	return "invoices/invoice_" + number + ".pdf"
}
