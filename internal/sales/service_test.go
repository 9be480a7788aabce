package sales

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/angelmondragon/shopdesk-backend/internal/audit"
	"github.com/angelmondragon/shopdesk-backend/internal/stockledger"
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

type harness struct {
	db      *gorm.DB
	svc     Service
	shop    *models.Shop
	cashier *models.User
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	shop, owner := dbtest.SeedShop(t, conn, "Chez Ama", enums.PlanFree)
	return &harness{db: conn, svc: newService(t, conn), shop: shop, cashier: owner}
}

func newService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "sales-test", Output: io.Discard})
	ledger, err := stockledger.NewService(stockledger.NewRepository(conn))
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	auditSvc, err := audit.NewService(audit.NewRepository(conn))
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	svc, err := NewService(ServiceParams{
		Repo:     NewRepository(conn),
		TxRunner: db.Wrap(conn),
		Ledger:   ledger,
		Audit:    auditSvc,
		Outbox:   outbox.NewService(outbox.NewRepository(conn), logg),
		Metrics:  metrics.NewSalesMetrics(prometheus.NewRegistry()),
		Logger:   logg,
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func (h *harness) product(t *testing.T, name string, qty int, price int64) *models.Product {
	t.Helper()
	p := &models.Product{ShopID: h.shop.ID, Name: name, Quantity: qty, SellingPrice: decimal.NewFromInt(price), AlertThreshold: 5}
	if err := h.db.Create(p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func (h *harness) quantity(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var p models.Product
	if err := h.db.Unscoped().First(&p, "id = ?", id).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	return p.Quantity
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	if err := h.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

func (h *harness) input(items ...LineInput) SubmitInput {
	return SubmitInput{ShopID: h.shop.ID, CashierID: h.cashier.ID, Items: items}
}

func ref(id uuid.UUID) *uuid.UUID { return &id }

func price(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

func detailsKind(t *testing.T, err error) string {
	t.Helper()
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	details, _ := typed.Details().(map[string]any)
	kind, _ := details["kind"].(string)
	return kind
}

func TestSubmitRiceExample(t *testing.T) {
	h := newHarness(t)
	rice := h.product(t, "Rice 5kg", 10, 2000)

	sale, err := h.svc.Submit(context.Background(), h.input(LineInput{ProductID: ref(rice.ID), Quantity: 3}))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	if !sale.TotalAmount.Equal(decimal.NewFromInt(6000)) {
		t.Fatalf("expected total 6000, got %s", sale.TotalAmount)
	}
	if len(sale.Items) != 1 {
		t.Fatalf("expected one line, got %d", len(sale.Items))
	}
	line := sale.Items[0]
	if line.Quantity != 3 || !line.UnitPrice.Equal(decimal.NewFromInt(2000)) || !line.Subtotal.Equal(decimal.NewFromInt(6000)) {
		t.Fatalf("unexpected line %+v", line)
	}
	if line.ProductName != "Rice 5kg" {
		t.Fatalf("expected catalog name snapshot, got %q", line.ProductName)
	}
	if got := h.quantity(t, rice.ID); got != 7 {
		t.Fatalf("expected quantity 7, got %d", got)
	}

	var moves []models.StockMovement
	h.db.Where("product_id = ?", rice.ID).Find(&moves)
	if len(moves) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(moves))
	}
	if moves[0].Direction != enums.StockOut || moves[0].Quantity != 3 {
		t.Fatalf("unexpected movement %+v", moves[0])
	}
	if moves[0].Reason != "Sale #"+sale.ID.String() || moves[0].SaleID == nil || *moves[0].SaleID != sale.ID {
		t.Fatalf("movement must reference the sale, got %+v", moves[0])
	}

	var logs []models.ActionLog
	h.db.Where("action = ?", enums.ActionSaleCreated).Find(&logs)
	if len(logs) != 1 || logs[0].ObjectID == nil || *logs[0].ObjectID != sale.ID.String() {
		t.Fatalf("expected sale_created audit entry, got %+v", logs)
	}

	var events []models.OutboxEvent
	h.db.Where("aggregate_id = ?", sale.ID).Find(&events)
	if len(events) != 1 || events[0].EventType != enums.EventSaleCompleted {
		t.Fatalf("expected sale_completed outbox event, got %+v", events)
	}
}

func TestSubmitTotalsUseDecimalArithmetic(t *testing.T) {
	h := newHarness(t)
	oil := h.product(t, "Oil 1L", 100, 1250)

	items := []LineInput{
		{ProductID: ref(oil.ID), Quantity: 3, Price: price("0.10")},
		{ProductName: "Bag", Quantity: 7, Price: price("0.10")},
		{ProductName: "Delivery", Quantity: 1, Price: price("1999.99")},
	}
	sale, err := h.svc.Submit(context.Background(), h.input(items...))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	sum := decimal.Zero
	for _, line := range sale.Items {
		if !line.Subtotal.Equal(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))) {
			t.Fatalf("subtotal drift on %+v", line)
		}
		sum = sum.Add(line.Subtotal)
	}
	if !sale.TotalAmount.Equal(sum) || !sale.TotalAmount.Equal(decimal.RequireFromString("2000.99")) {
		t.Fatalf("expected total 2000.99, got %s", sale.TotalAmount)
	}

	stored, err := h.svc.Get(context.Background(), h.shop.ID, sale.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !stored.TotalAmount.Equal(sale.TotalAmount) {
		t.Fatalf("stored total %s differs from %s", stored.TotalAmount, sale.TotalAmount)
	}
}

func TestSubmitResolvesNamesAndPrices(t *testing.T) {
	h := newHarness(t)
	sugar := h.product(t, "Sugar", 10, 800)

	sale, err := h.svc.Submit(context.Background(), h.input(
		LineInput{ProductID: ref(sugar.ID), ProductName: "ignored", Quantity: 1, Price: price("750")},
		LineInput{ProductName: "  Phone credit ", Quantity: 2, Price: price("500")},
		LineInput{Quantity: 1},
	))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	want := []struct {
		name  string
		price string
	}{
		{"Sugar", "750"},
		{"Phone credit", "500"},
		{UnlistedItemName, "0"},
	}
	for i, w := range want {
		line := sale.Items[i]
		if line.ProductName != w.name || !line.UnitPrice.Equal(decimal.RequireFromString(w.price)) {
			t.Fatalf("line %d: expected %s @ %s, got %s @ %s", i, w.name, w.price, line.ProductName, line.UnitPrice)
		}
	}
	if sale.Items[1].ProductID != nil {
		t.Fatalf("free-text line must not reference a product")
	}
	if got := h.count(t, &models.StockMovement{}); got != 1 {
		t.Fatalf("only the catalog line moves stock, got %d movements", got)
	}
}

func TestSubmitEmptyOrderPersistsNothing(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Submit(context.Background(), h.input())
	var empty EmptyOrderError
	if !errors.As(err, &empty) {
		t.Fatalf("expected EmptyOrderError, got %v", err)
	}
	if kind := detailsKind(t, err); kind != KindEmptyOrder {
		t.Fatalf("expected kind empty_order, got %s", kind)
	}
	for _, model := range []any{&models.Sale{}, &models.SaleItem{}, &models.StockMovement{}} {
		if got := h.count(t, model); got != 0 {
			t.Fatalf("expected no rows for %T, got %d", model, got)
		}
	}
}

func TestSubmitInsufficientStockIsAtomic(t *testing.T) {
	h := newHarness(t)
	rice := h.product(t, "Rice 5kg", 10, 2000)
	oil := h.product(t, "Oil 1L", 2, 1250)

	_, err := h.svc.Submit(context.Background(), h.input(
		LineInput{ProductID: ref(rice.ID), Quantity: 3},
		LineInput{ProductID: ref(oil.ID), Quantity: 5},
	))
	var stock *InsufficientStockError
	if !errors.As(err, &stock) {
		t.Fatalf("expected InsufficientStockError, got %v", err)
	}
	if stock.ProductID != oil.ID || stock.Available != 2 || stock.Requested != 5 || stock.Name != "Oil 1L" {
		t.Fatalf("unexpected error payload %+v", stock)
	}

	if h.quantity(t, rice.ID) != 10 || h.quantity(t, oil.ID) != 2 {
		t.Fatalf("quantities must be unchanged")
	}
	for _, model := range []any{&models.Sale{}, &models.SaleItem{}, &models.StockMovement{}, &models.ActionLog{}, &models.OutboxEvent{}} {
		if got := h.count(t, model); got != 0 {
			t.Fatalf("expected no rows for %T, got %d", model, got)
		}
	}
}

func TestSubmitAggregatesRepeatedProduct(t *testing.T) {
	h := newHarness(t)
	rice := h.product(t, "Rice 5kg", 5, 2000)

	_, err := h.svc.Submit(context.Background(), h.input(
		LineInput{ProductID: ref(rice.ID), Quantity: 3},
		LineInput{ProductID: ref(rice.ID), Quantity: 3},
	))
	var stock *InsufficientStockError
	if !errors.As(err, &stock) || stock.Requested != 6 || stock.Available != 5 {
		t.Fatalf("expected aggregated insufficient stock, got %v", err)
	}

	sale, err := h.svc.Submit(context.Background(), h.input(
		LineInput{ProductID: ref(rice.ID), Quantity: 2},
		LineInput{ProductID: ref(rice.ID), Quantity: 3},
	))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if h.quantity(t, rice.ID) != 0 {
		t.Fatalf("expected stock exhausted")
	}
	var moves int64
	h.db.Model(&models.StockMovement{}).Where("sale_id = ?", sale.ID).Count(&moves)
	if moves != 2 {
		t.Fatalf("expected one OUT entry per catalog line, got %d", moves)
	}
}

func TestSubmitRejectsForeignAndUnknownProducts(t *testing.T) {
	h := newHarness(t)
	other, _ := dbtest.SeedShop(t, h.db, "Other", enums.PlanFree)
	foreign := &models.Product{ShopID: other.ID, Name: "Foreign", Quantity: 10, AlertThreshold: 5}
	if err := h.db.Create(foreign).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}
	local := h.product(t, "Local", 10, 100)

	for _, id := range []uuid.UUID{foreign.ID, uuid.New()} {
		_, err := h.svc.Submit(context.Background(), h.input(
			LineInput{ProductID: ref(local.ID), Quantity: 1},
			LineInput{ProductID: ref(id), Quantity: 1},
		))
		var notFound *ItemNotFoundError
		if !errors.As(err, &notFound) || notFound.Index != 1 || notFound.ProductID != id {
			t.Fatalf("expected ItemNotFoundError at index 1, got %v", err)
		}
	}
	if h.quantity(t, foreign.ID) != 10 || h.quantity(t, local.ID) != 10 {
		t.Fatalf("quantities must be unchanged")
	}
}

func TestSubmitValidatesLines(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Submit(context.Background(), h.input(LineInput{ProductName: "x", Quantity: 0}))
	if kind := detailsKind(t, err); kind != KindInvalidItem {
		t.Fatalf("expected invalid_item, got %s", kind)
	}
	_, err = h.svc.Submit(context.Background(), h.input(LineInput{ProductName: "x", Quantity: 1, Price: price("-1")}))
	if kind := detailsKind(t, err); kind != KindInvalidItem {
		t.Fatalf("expected invalid_item, got %s", kind)
	}
	in := h.input(LineInput{ProductName: "x", Quantity: 1})
	in.PaymentMethod = "barter"
	_, err = h.svc.Submit(context.Background(), in)
	if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitRejectsSubCentPrices(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Submit(context.Background(), h.input(
		LineInput{ProductName: "Bag", Quantity: 3, Price: price("0.005")},
	))
	if kind := detailsKind(t, err); kind != KindInvalidItem {
		t.Fatalf("expected invalid_item, got %s (%v)", kind, err)
	}
	for _, model := range []any{&models.Sale{}, &models.SaleItem{}} {
		if got := h.count(t, model); got != 0 {
			t.Fatalf("expected no rows for %T, got %d", model, got)
		}
	}

	sale, err := h.svc.Submit(context.Background(), h.input(
		LineInput{ProductName: "Bag", Quantity: 3, Price: price("0.050")},
	))
	if err != nil {
		t.Fatalf("trailing zeros are still cents: %v", err)
	}
	if !sale.TotalAmount.Equal(decimal.RequireFromString("0.15")) {
		t.Fatalf("expected total 0.15, got %s", sale.TotalAmount)
	}

	_, err = h.svc.UpdateItem(context.Background(), UpdateItemInput{
		ShopID: h.shop.ID, ActorID: h.cashier.ID, SaleID: sale.ID, ItemID: sale.Items[0].ID, Price: price("1.234"),
	})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	got, _ := h.svc.Get(context.Background(), h.shop.ID, sale.ID)
	if !got.Items[0].UnitPrice.Equal(decimal.RequireFromString("0.05")) {
		t.Fatalf("price must be unchanged, got %s", got.Items[0].UnitPrice)
	}
}

func TestRejectionMessagesDoNotRepeatCause(t *testing.T) {
	h := newHarness(t)
	oil := h.product(t, "Oil 1L", 2, 1250)

	cases := map[string]SubmitInput{
		"empty order":        h.input(),
		"product not found":  h.input(LineInput{ProductID: ref(uuid.New()), Quantity: 1}),
		"insufficient stock": h.input(LineInput{ProductID: ref(oil.ID), Quantity: 5}),
	}
	want := map[string]string{
		"empty order":        "sale has no items",
		"product not found":  "product not found",
		"insufficient stock": "insufficient stock",
	}
	for name, in := range cases {
		_, err := h.svc.Submit(context.Background(), in)
		typed := pkgerrors.As(err)
		if typed == nil {
			t.Fatalf("%s: expected typed error, got %v", name, err)
		}
		if typed.Message() != want[name] {
			t.Fatalf("%s: expected message %q, got %q", name, want[name], typed.Message())
		}
		if cause := errors.Unwrap(err); cause != nil && strings.Count(err.Error(), cause.Error()) > 1 {
			t.Fatalf("%s: cause repeated in %q", name, err.Error())
		}
	}
}

func TestSubmitBatchIsolatesOperations(t *testing.T) {
	h := newHarness(t)
	rice := h.product(t, "Rice 5kg", 4, 2000)

	ops := []BatchOperation{
		{ClientRef: "offline-1", Items: []LineInput{{ProductID: ref(rice.ID), Quantity: 3}}},
		{ClientRef: "offline-2", Items: []LineInput{{ProductID: ref(rice.ID), Quantity: 3}}},
		{ClientRef: "offline-3", PaymentMethod: enums.PaymentMethodMoMo, Items: []LineInput{{ProductName: "Bag", Quantity: 1, Price: price("100")}}},
		{ClientRef: "offline-4"},
	}
	results := h.svc.SubmitBatch(context.Background(), h.shop.ID, h.cashier.ID, ops)
	if len(results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(results))
	}
	if results[0].Status != BatchCreated || results[0].SaleID == nil {
		t.Fatalf("op 0: %+v", results[0])
	}
	if results[1].Status != BatchFailed || results[1].Error == nil || results[1].Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("op 1: %+v", results[1])
	}
	if details, _ := results[1].Error.Details.(map[string]any); details["kind"] != KindInsufficientStock {
		t.Fatalf("op 1 details: %+v", results[1].Error.Details)
	}
	if results[2].Status != BatchCreated {
		t.Fatalf("op 2: %+v", results[2])
	}
	if results[3].Status != BatchFailed {
		t.Fatalf("op 3: %+v", results[3])
	}
	if got := h.count(t, &models.Sale{}); got != 2 {
		t.Fatalf("expected 2 committed sales, got %d", got)
	}
	if h.quantity(t, rice.ID) != 1 {
		t.Fatalf("expected quantity 1")
	}

	replay := h.svc.SubmitBatch(context.Background(), h.shop.ID, h.cashier.ID, ops[:1])
	if replay[0].Status != BatchDuplicate || *replay[0].SaleID != *results[0].SaleID {
		t.Fatalf("expected duplicate replay with original sale id, got %+v", replay[0])
	}
	if h.quantity(t, rice.ID) != 1 {
		t.Fatalf("replay must not move stock")
	}
}

func TestClientRefIsScopedPerShop(t *testing.T) {
	h := newHarness(t)
	other, otherOwner := dbtest.SeedShop(t, h.db, "Other", enums.PlanFree)

	first := h.input(LineInput{ProductName: "Bag", Quantity: 1})
	first.ClientRef = "same-ref"
	if _, err := h.svc.Submit(context.Background(), first); err != nil {
		t.Fatalf("submit: %v", err)
	}
	second := SubmitInput{ShopID: other.ID, CashierID: otherOwner.ID, ClientRef: "same-ref", Items: []LineInput{{ProductName: "Bag", Quantity: 1}}}
	if _, err := h.svc.Submit(context.Background(), second); err != nil {
		t.Fatalf("another shop may reuse the reference: %v", err)
	}

	_, err := h.svc.Submit(context.Background(), first)
	var dup *DuplicateSaleError
	if !errors.As(err, &dup) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if pkgerrors.As(err).Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict code")
	}
}

func TestDeleteRecordsAuditWithoutRestocking(t *testing.T) {
	h := newHarness(t)
	rice := h.product(t, "Rice 5kg", 10, 2000)
	sale, err := h.svc.Submit(context.Background(), h.input(LineInput{ProductID: ref(rice.ID), Quantity: 4}))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	other, _ := dbtest.SeedShop(t, h.db, "Other", enums.PlanFree)
	if err := h.svc.Delete(context.Background(), other.ID, h.cashier.ID, sale.ID); pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found across tenants, got %v", err)
	}

	if err := h.svc.Delete(context.Background(), h.shop.ID, h.cashier.ID, sale.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := h.svc.Get(context.Background(), h.shop.ID, sale.ID); pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected sale gone, got %v", err)
	}
	if got := h.count(t, &models.SaleItem{}); got != 0 {
		t.Fatalf("expected items removed, got %d", got)
	}
	if h.quantity(t, rice.ID) != 6 {
		t.Fatalf("deleting a sale must not restock")
	}
	if got := h.count(t, &models.StockMovement{}); got != 1 {
		t.Fatalf("ledger history must remain, got %d", got)
	}
	var deleted int64
	h.db.Model(&models.ActionLog{}).Where("action = ? AND object_id = ?", enums.ActionSaleDeleted, sale.ID.String()).Count(&deleted)
	if deleted != 1 {
		t.Fatalf("expected sale_deleted audit entry")
	}
}

func TestUpdateItemMovesStockAndRecomputesTotal(t *testing.T) {
	h := newHarness(t)
	rice := h.product(t, "Rice 5kg", 10, 2000)
	sale, err := h.svc.Submit(context.Background(), h.input(
		LineInput{ProductID: ref(rice.ID), Quantity: 3},
		LineInput{ProductName: "Bag", Quantity: 1, Price: price("100")},
	))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	item := sale.Items[0]

	qty := 5
	updated, err := h.svc.UpdateItem(context.Background(), UpdateItemInput{
		ShopID: h.shop.ID, ActorID: h.cashier.ID, SaleID: sale.ID, ItemID: item.ID, Quantity: &qty,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.TotalAmount.Equal(decimal.NewFromInt(10100)) {
		t.Fatalf("expected total 10100, got %s", updated.TotalAmount)
	}
	if h.quantity(t, rice.ID) != 5 {
		t.Fatalf("expected quantity 5, got %d", h.quantity(t, rice.ID))
	}

	qty = 2
	if _, err := h.svc.UpdateItem(context.Background(), UpdateItemInput{
		ShopID: h.shop.ID, ActorID: h.cashier.ID, SaleID: sale.ID, ItemID: item.ID, Quantity: &qty, Price: price("1800"),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := h.svc.Get(context.Background(), h.shop.ID, sale.ID)
	if !got.TotalAmount.Equal(decimal.NewFromInt(3700)) {
		t.Fatalf("expected total 3700, got %s", got.TotalAmount)
	}
	if h.quantity(t, rice.ID) != 8 {
		t.Fatalf("expected quantity 8, got %d", h.quantity(t, rice.ID))
	}

	qty = 50
	_, err = h.svc.UpdateItem(context.Background(), UpdateItemInput{
		ShopID: h.shop.ID, SaleID: sale.ID, ItemID: item.ID, Quantity: &qty,
	})
	var stock *InsufficientStockError
	if !errors.As(err, &stock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	var events int64
	h.db.Model(&models.OutboxEvent{}).Where("event_type = ? AND aggregate_id = ?", enums.EventSaleItemsChanged, sale.ID).Count(&events)
	if events != 2 {
		t.Fatalf("expected 2 items_changed events, got %d", events)
	}
	var moves []models.StockMovement
	h.db.Where("sale_id = ?", sale.ID).Order("created_at ASC").Find(&moves)
	if len(moves) != 3 || moves[1].Direction != enums.StockOut || moves[2].Direction != enums.StockIn || moves[2].Quantity != 3 {
		t.Fatalf("unexpected ledger %+v", moves)
	}
}

func TestListIsTenantScopedNewestFirst(t *testing.T) {
	h := newHarness(t)
	for i := 0; i < 3; i++ {
		if _, err := h.svc.Submit(context.Background(), h.input(LineInput{ProductName: "Bag", Quantity: i + 1})); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	other, otherOwner := dbtest.SeedShop(t, h.db, "Other", enums.PlanFree)
	if _, err := h.svc.Submit(context.Background(), SubmitInput{ShopID: other.ID, CashierID: otherOwner.ID, Items: []LineInput{{ProductName: "x", Quantity: 1}}}); err != nil {
		t.Fatalf("submit other: %v", err)
	}

	result, err := h.svc.List(context.Background(), h.shop.ID, ListParams{Limit: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(result.Sales) != 3 {
		t.Fatalf("expected 3 sales, got %d", len(result.Sales))
	}
	for i := 1; i < len(result.Sales); i++ {
		if result.Sales[i].CreatedAt.After(result.Sales[i-1].CreatedAt) {
			t.Fatalf("sales not newest first")
		}
	}
}
