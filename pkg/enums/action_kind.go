package enums

// ActionKind classifies an audit log entry.
type ActionKind string

const (
	ActionSaleCreated         ActionKind = "sale_created"
	ActionSaleDeleted         ActionKind = "sale_deleted"
	ActionInvoicePDFGenerated ActionKind = "invoice_pdf_generated"
	ActionItemAdded           ActionKind = "item_added"
	ActionItemUpdated         ActionKind = "item_updated"
	ActionItemDeleted         ActionKind = "item_deleted"
	ActionStockAdjusted       ActionKind = "stock_adjusted"
)

var validActionKinds = []ActionKind{
	ActionSaleCreated,
	ActionSaleDeleted,
	ActionInvoicePDFGenerated,
	ActionItemAdded,
	ActionItemUpdated,
	ActionItemDeleted,
	ActionStockAdjusted,
}

func (a ActionKind) IsValid() bool {
	for _, candidate := range validActionKinds {
		if candidate == a {
			return true
		}
	}
	return false
}
