package invoices

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// Document is the data printed on an invoice.
type Document struct {
	Number   string
	ShopName string
	IssuedAt time.Time
	Currency string
	Lines    []DocumentLine
	Total    decimal.Decimal
}

// DocumentLine is one printed row.
type DocumentLine struct {
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
}

// Renderer turns a document into a printable artifact.
type Renderer interface {
	Render(doc Document) ([]byte, error)
	ContentType() string
}

// PDFRenderer lays out invoices as single-column A4 PDFs.
type PDFRenderer struct {
	nameWidth int
}

func NewPDFRenderer(nameWidth int) *PDFRenderer {
	if nameWidth <= 0 {
		nameWidth = 20
	}
	return &PDFRenderer{nameWidth: nameWidth}
}

func (r *PDFRenderer) ContentType() string {
	return "application/pdf"
}

func (r *PDFRenderer) Render(doc Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Invoice "+doc.Number, true)
	pdf.SetCreationDate(doc.IssuedAt)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(doc.ShopName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, "Invoice #"+doc.Number, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 7, doc.IssuedAt.Format("2006-01-02 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	widths := []float64{80, 25, 40, 45}
	pdf.SetFont("Helvetica", "B", 11)
	for i, title := range []string{"Item", "Qty", "Unit price", "Subtotal"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 8, title, "B", 0, align, false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 11)
	for _, line := range doc.Lines {
		pdf.CellFormat(widths[0], 7, tr(TruncateName(line.Name, r.nameWidth)), "", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, fmt.Sprintf("%d", line.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, line.UnitPrice.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, line.Subtotal.StringFixed(2), "", 1, "R", false, 0, "")
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 12)
	total := doc.Total.StringFixed(2)
	if doc.Currency != "" {
		total += " " + doc.Currency
	}
	pdf.CellFormat(widths[0]+widths[1]+widths[2], 8, "Total", "T", 0, "R", false, 0, "")
	pdf.CellFormat(widths[3], 8, total, "T", 1, "R", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render invoice pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// TruncateName shortens name to at most width characters.
func TruncateName(name string, width int) string {
	runes := []rune(name)
	if width <= 0 || len(runes) <= width {
		return name
	}
	return string(runes[:width])
}
