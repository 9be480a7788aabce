package invoices

import (
	"bytes"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNewNumberFormat(t *testing.T) {
	t.Parallel()

	pattern := regexp.MustCompile(`^[0-9A-F]+$`)
	cases := map[int]int{8: 8, 12: 12, 0: 8, 40: 8}
	for length, want := range cases {
		got := NewNumber(length)
		if len(got) != want || !pattern.MatchString(got) {
			t.Fatalf("NewNumber(%d) = %q", length, got)
		}
	}
	if NewNumber(8) == NewNumber(8) {
		t.Fatalf("expected distinct numbers")
	}
}

func TestObjectKey(t *testing.T) {
	if got := ObjectKey("AB12CD34"); got != "invoices/invoice_AB12CD34.pdf" {
		t.Fatalf("unexpected key %s", got)
	}
}

func TestTruncateName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		width int
		want  string
	}{
		{"Rice", 20, "Rice"},
		{"Rice 5kg premium long grain", 20, "Rice 5kg premium lon"},
		{"Café crème glacée", 5, "Café "},
		{"anything", 0, "anything"},
	}
	for _, tc := range tests {
		if got := TruncateName(tc.name, tc.width); got != tc.want {
			t.Fatalf("TruncateName(%q, %d) = %q, want %q", tc.name, tc.width, got, tc.want)
		}
	}
}

func TestPDFRendererProducesPDF(t *testing.T) {
	r := NewPDFRenderer(20)
	if r.ContentType() != "application/pdf" {
		t.Fatalf("unexpected content type %s", r.ContentType())
	}
	body, err := r.Render(Document{
		Number:   "AB12CD34",
		ShopName: "Boutique Étoile",
		IssuedAt: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Currency: "FCFA",
		Lines: []DocumentLine{
			{Name: "Rice 5kg premium long grain", Quantity: 2, UnitPrice: decimal.NewFromInt(2500), Subtotal: decimal.NewFromInt(5000)},
			{Name: "Oil", Quantity: 1, UnitPrice: decimal.NewFromInt(1000), Subtotal: decimal.NewFromInt(1000)},
		},
		Total: decimal.NewFromInt(6000),
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(body, []byte("%PDF-")) {
		t.Fatalf("output is not a pdf")
	}
}
