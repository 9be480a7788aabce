package invoices

import (
	"bytes"
	"context"
	"errors"
	"io"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/shopdesk-backend/internal/audit"
	"github.com/angelmondragon/shopdesk-backend/pkg/db"
	"github.com/angelmondragon/shopdesk-backend/pkg/db/dbtest"
	"github.com/angelmondragon/shopdesk-backend/pkg/db/models"
	"github.com/angelmondragon/shopdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/angelmondragon/shopdesk-backend/pkg/logger"
	"github.com/angelmondragon/shopdesk-backend/pkg/metrics"
	"github.com/angelmondragon/shopdesk-backend/pkg/outbox"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    []string
	err     error
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: map[string][]byte{}}
}

func (f *fakeStorage) Put(_ context.Context, key, _ string, body io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	f.objects[key] = data
	f.puts = append(f.puts, key)
	return "gs://bucket/" + key, nil
}

func (f *fakeStorage) PublicURL(key string) string {
	return "https://cdn.test/bucket/" + key
}

type harness struct {
	db      *gorm.DB
	svc     *service
	storage *fakeStorage
	shop    *models.Shop
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	shop, _ := dbtest.SeedShop(t, conn, "Chez Ama", enums.PlanFree)
	logg := logger.New(logger.Options{ServiceName: "invoices-test", Output: io.Discard})
	auditSvc, err := audit.NewService(audit.NewRepository(conn))
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	storage := newFakeStorage()
	svc, err := NewService(ServiceParams{
		Repo:               NewRepository(conn),
		TxRunner:           db.Wrap(conn),
		Storage:            storage,
		Renderer:           NewPDFRenderer(20),
		Audit:              auditSvc,
		Outbox:             outbox.NewService(outbox.NewRepository(conn), logg),
		Metrics:            metrics.NewInvoiceMetrics(prometheus.NewRegistry()),
		Logger:             logg,
		NumberLength:       8,
		AllocationAttempts: 3,
		Currency:           "FCFA",
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &harness{db: conn, svc: svc.(*service), storage: storage, shop: shop}
}

func (h *harness) sale(t *testing.T, shopID uuid.UUID, total int64) *models.Sale {
	t.Helper()
	sale := &models.Sale{
		ShopID:        shopID,
		PaymentMethod: enums.PaymentMethodCash,
		TotalAmount:   decimal.NewFromInt(total),
		Items: []models.SaleItem{{
			ProductName: "Rice 5kg premium long grain",
			Quantity:    1,
			UnitPrice:   decimal.NewFromInt(total),
			Subtotal:    decimal.NewFromInt(total),
		}},
	}
	if err := h.db.Create(sale).Error; err != nil {
		t.Fatalf("seed sale: %v", err)
	}
	return sale
}

func (h *harness) invoice(t *testing.T, saleID uuid.UUID) models.Invoice {
	t.Helper()
	var inv models.Invoice
	if err := h.db.Where("sale_id = ?", saleID).First(&inv).Error; err != nil {
		t.Fatalf("load invoice: %v", err)
	}
	return inv
}

func sequence(numbers ...string) func() string {
	i := 0
	return func() string {
		n := numbers[i%len(numbers)]
		i++
		return n
	}
}

var numberPattern = regexp.MustCompile(`^[0-9A-F]{8}$`)

func TestIssueStoresArtifactOnce(t *testing.T) {
	h := newHarness(t)
	sale := h.sale(t, h.shop.ID, 6000)

	first, err := h.svc.Issue(context.Background(), sale.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !numberPattern.MatchString(first.Number) {
		t.Fatalf("unexpected number %q", first.Number)
	}
	if first.Status != string(enums.InvoiceStatusIssued) || first.IssuedAt == nil {
		t.Fatalf("expected issued invoice, got %+v", first)
	}
	key := "invoices/invoice_" + first.Number + ".pdf"
	if !bytes.HasPrefix(h.storage.objects[key], []byte("%PDF-")) {
		t.Fatalf("expected pdf stored at %s", key)
	}
	if first.DownloadURL != "https://cdn.test/bucket/"+key {
		t.Fatalf("unexpected download url %s", first.DownloadURL)
	}

	second, err := h.svc.Issue(context.Background(), sale.ID)
	if err != nil {
		t.Fatalf("reissue: %v", err)
	}
	if second.Number != first.Number || second.ID != first.ID {
		t.Fatalf("issue must be idempotent")
	}
	if len(h.storage.puts) != 1 {
		t.Fatalf("expected a single upload, got %d", len(h.storage.puts))
	}

	var logs int64
	h.db.Model(&models.ActionLog{}).Where("action = ?", enums.ActionInvoicePDFGenerated).Count(&logs)
	if logs != 1 {
		t.Fatalf("expected one audit entry, got %d", logs)
	}
	var events int64
	h.db.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventInvoiceIssued).Count(&events)
	if events != 1 {
		t.Fatalf("expected one invoice_issued event, got %d", events)
	}
}

func TestIssueFailureMarksInvoiceAndLeavesSale(t *testing.T) {
	h := newHarness(t)
	sale := h.sale(t, h.shop.ID, 6000)
	h.storage.err = errors.New("bucket unavailable")

	_, err := h.svc.Issue(context.Background(), sale.ID)
	if pkgerrors.As(err).Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	failed := h.invoice(t, sale.ID)
	if failed.Status != enums.InvoiceStatusFailed || failed.LastError == nil || *failed.LastError != "bucket unavailable" {
		t.Fatalf("expected failed invoice with error, got %+v", failed)
	}
	var stored models.Sale
	if err := h.db.First(&stored, "id = ?", sale.ID).Error; err != nil {
		t.Fatalf("sale must survive invoice failure: %v", err)
	}
	if !stored.TotalAmount.Equal(sale.TotalAmount) {
		t.Fatalf("sale total changed")
	}

	h.storage.err = nil
	retried, err := h.svc.Issue(context.Background(), sale.ID)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retried.Number != failed.Number || retried.LastError != nil {
		t.Fatalf("retry must reuse the number and clear the error, got %+v", retried)
	}
}

func TestRegenerateKeepsNumber(t *testing.T) {
	h := newHarness(t)
	sale := h.sale(t, h.shop.ID, 6000)
	issued, err := h.svc.Issue(context.Background(), sale.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if err := h.db.Model(&models.Sale{}).Where("id = ?", sale.ID).Update("total_amount", decimal.NewFromInt(9000)).Error; err != nil {
		t.Fatalf("update sale: %v", err)
	}
	regenerated, err := h.svc.Regenerate(context.Background(), sale.ID)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if regenerated.Number != issued.Number {
		t.Fatalf("number changed from %s to %s", issued.Number, regenerated.Number)
	}
	if regenerated.RegeneratedAt == nil || !regenerated.TotalAmount.Equal(decimal.NewFromInt(9000)) {
		t.Fatalf("unexpected regenerated invoice %+v", regenerated)
	}
	if len(h.storage.puts) != 2 || h.storage.puts[0] != h.storage.puts[1] {
		t.Fatalf("expected same key overwritten, got %v", h.storage.puts)
	}
	var events int64
	h.db.Model(&models.OutboxEvent{}).Where("event_type = ?", enums.EventInvoiceIssued).Count(&events)
	if events != 1 {
		t.Fatalf("regeneration must not announce a new invoice, got %d events", events)
	}
}

func TestRegenerateWithoutInvoiceIssues(t *testing.T) {
	h := newHarness(t)
	sale := h.sale(t, h.shop.ID, 1500)

	dto, err := h.svc.Regenerate(context.Background(), sale.ID)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if dto.IssuedAt == nil || dto.RegeneratedAt != nil {
		t.Fatalf("expected first issue, got %+v", dto)
	}
}

func TestAllocateRetriesOnNumberCollision(t *testing.T) {
	h := newHarness(t)
	taken := h.sale(t, h.shop.ID, 100)
	h.svc.newNumber = sequence("AAAAAAAA")
	if _, err := h.svc.Issue(context.Background(), taken.ID); err != nil {
		t.Fatalf("issue: %v", err)
	}

	sale := h.sale(t, h.shop.ID, 200)
	h.svc.newNumber = sequence("AAAAAAAA", "AAAAAAAA", "BBBBBBBB")
	dto, err := h.svc.Issue(context.Background(), sale.ID)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if dto.Number != "BBBBBBBB" {
		t.Fatalf("expected retry to allocate BBBBBBBB, got %s", dto.Number)
	}

	other := h.sale(t, h.shop.ID, 300)
	h.svc.newNumber = sequence("AAAAAAAA")
	_, err = h.svc.Issue(context.Background(), other.ID)
	if pkgerrors.As(err).Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected allocation exhaustion, got %v", err)
	}
}

func TestGenerateIsTenantScoped(t *testing.T) {
	h := newHarness(t)
	other, _ := dbtest.SeedShop(t, h.db, "Other", enums.PlanFree)
	sale := h.sale(t, other.ID, 500)

	_, err := h.svc.Generate(context.Background(), h.shop.ID, sale.ID)
	if pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(h.storage.puts) != 0 {
		t.Fatalf("nothing may be rendered for another shop's sale")
	}
}

func TestListAggregatesTotals(t *testing.T) {
	h := newHarness(t)
	for _, total := range []int64{6000, 1500} {
		sale := h.sale(t, h.shop.ID, total)
		if _, err := h.svc.Issue(context.Background(), sale.ID); err != nil {
			t.Fatalf("issue: %v", err)
		}
	}
	other, _ := dbtest.SeedShop(t, h.db, "Other", enums.PlanFree)
	foreign := h.sale(t, other.ID, 999)
	if _, err := h.svc.Issue(context.Background(), foreign.ID); err != nil {
		t.Fatalf("issue: %v", err)
	}

	result, err := h.svc.List(context.Background(), h.shop.ID, ListParams{Limit: 1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if result.Count != 2 || !result.TotalAmount.Equal(decimal.NewFromInt(7500)) {
		t.Fatalf("expected count 2 and total 7500, got %d and %s", result.Count, result.TotalAmount)
	}
	if len(result.Invoices) != 1 || result.NextCursor == "" {
		t.Fatalf("expected one invoice and a next cursor")
	}

	next, err := h.svc.List(context.Background(), h.shop.ID, ListParams{Limit: 1, Cursor: result.NextCursor})
	if err != nil {
		t.Fatalf("list next: %v", err)
	}
	if len(next.Invoices) != 1 || next.Invoices[0].ID == result.Invoices[0].ID {
		t.Fatalf("expected the second invoice on the next page")
	}

	got, err := h.svc.Get(context.Background(), h.shop.ID, result.Invoices[0].ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.DownloadURL == "" || got.ArtifactURI == nil {
		t.Fatalf("expected artifact links, got %+v", got)
	}
	if _, err := h.svc.Get(context.Background(), other.ID, got.ID); pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found across tenants, got %v", err)
	}
}

func TestBackfillIssuesMissingInvoices(t *testing.T) {
	h := newHarness(t)
	done := h.sale(t, h.shop.ID, 100)
	if _, err := h.svc.Issue(context.Background(), done.ID); err != nil {
		t.Fatalf("issue: %v", err)
	}
	h.sale(t, h.shop.ID, 200)
	h.sale(t, h.shop.ID, 300)

	issued, err := h.svc.Backfill(context.Background(), time.Now().Add(time.Minute), 10)
	if err != nil {
		t.Fatalf("backfill: %v", err)
	}
	if issued != 2 {
		t.Fatalf("expected 2 invoices backfilled, got %d", issued)
	}

	issued, err = h.svc.Backfill(context.Background(), time.Now().Add(time.Minute), 10)
	if err != nil || issued != 0 {
		t.Fatalf("expected nothing left to backfill, got %d, %v", issued, err)
	}
}
