package finance

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// ReportContentType is served with the rendered accounting export.
const ReportContentType = "application/pdf"

// ReportFilename names the download for the report's generation day.
func ReportFilename(r *Report) string {
	return fmt.Sprintf("accounting_report_%s.pdf", r.GeneratedAt.Format(dateLayout))
}

// RenderReport lays out the accounting export on a single A4 page.
func RenderReport(r *Report) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("report is required")
	}
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Accounting report", true)
	pdf.SetCreationDate(r.GeneratedAt)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(r.ShopName), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, "Accounting report, "+r.GeneratedAt.Format("2006-01-02 15:04")+" UTC", "", 1, "L", false, 0, "")
	pdf.Ln(4)

	money := func(v decimal.Decimal) string {
		out := v.StringFixed(2)
		if r.Currency != "" {
			out += " " + r.Currency
		}
		return out
	}
	section := func(title string, rows [][2]string) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.CellFormat(0, 9, title, "B", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 11)
		for _, row := range rows {
			pdf.CellFormat(110, 7, row[0], "", 0, "L", false, 0, "")
			pdf.CellFormat(80, 7, row[1], "", 1, "R", false, 0, "")
		}
		pdf.Ln(4)
	}

	acc := r.Accounting
	section("Profit and loss", [][2]string{
		{"Total sales", money(acc.TotalSales)},
		{"Cost of goods sold", money(acc.COGS)},
		{"Gross profit", money(acc.GrossProfit)},
		{"Expenses", money(acc.TotalExpenses)},
		{"Net profit", money(acc.NetProfit)},
	})

	breakdown := make([][2]string, 0, len(acc.ExpenseBreakdown))
	for _, c := range acc.ExpenseBreakdown {
		breakdown = append(breakdown, [2]string{string(c.Category), money(c.Total)})
	}
	if len(breakdown) > 0 {
		section("Expenses by category", breakdown)
	}

	section("Stock", [][2]string{
		{"Products", fmt.Sprintf("%d", r.Stock.ProductCount)},
		{"Units on hand", fmt.Sprintf("%d", r.Stock.Quantity)},
		{"Value at purchase price", money(r.Stock.CostValue)},
		{"Value at selling price", money(r.Stock.RetailValue)},
	})

	section("Loans and debts", [][2]string{
		{"Receivables", money(r.TotalReceivables)},
		{"Payables", money(r.TotalPayables)},
		{"Balance", money(r.Balance())},
	})

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render accounting report: %w", err)
	}
	return buf.Bytes(), nil
}
