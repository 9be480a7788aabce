package migrate_test

import (
	"strings"
	"testing"
)

func TestSalesMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_sales_invoices")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS sales",
		"CREATE UNIQUE INDEX IF NOT EXISTS sales_shop_client_ref_key ON sales (shop_id, client_ref) WHERE client_ref IS NOT NULL",
		"FOREIGN KEY (sale_id) REFERENCES sales(id) ON DELETE CASCADE",
		"FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE SET NULL",
		"CONSTRAINT invoices_sale_id_key UNIQUE (sale_id)",
		"CONSTRAINT invoices_number_key UNIQUE (number)",
		"DROP TABLE IF EXISTS invoices",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestOutboxMigrationScopesUniqueness(t *testing.T) {
	content := readMigration(t, "create_outbox")

	if !strings.Contains(content, "ux_outbox_events_event_aggregate") {
		t.Fatalf("missing outbox uniqueness index")
	}
	if !strings.Contains(content, "WHERE event_type IN ('sale_completed', 'invoice_issued')") {
		t.Errorf("sale_items_changed must be allowed to repeat per sale")
	}
}
