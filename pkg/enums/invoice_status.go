package enums

// InvoiceStatus tracks document generation for a sale's invoice.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusIssued  InvoiceStatus = "issued"
	InvoiceStatusFailed  InvoiceStatus = "failed"
)

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusIssued, InvoiceStatusFailed:
		return true
	}
	return false
}

func (s InvoiceStatus) String() string {
	return string(s)
}
