package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestCatalogMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_catalog")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS products",
		"alert_threshold integer NOT NULL DEFAULT 5",
		"CHECK (quantity >= 0)",
		"CONSTRAINT categories_shop_name_key UNIQUE (shop_id, name)",
		"CREATE TABLE IF NOT EXISTS stock_movements",
		"CHECK (quantity > 0)",
		"BEFORE UPDATE OR DELETE ON stock_movements",
		"DROP TABLE IF EXISTS stock_movements",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}

	if strings.Contains(content, "REFERENCES sales") {
		t.Errorf("stock_movements.sale_id must stay a plain column")
	}
}

func TestLedgerForeignKeysNeverCascade(t *testing.T) {
	content := readMigration(t, "create_catalog")

	start := strings.Index(content, "CREATE TABLE IF NOT EXISTS stock_movements")
	if start < 0 {
		t.Fatal("stock_movements table not found")
	}
	table := content[start:]
	table = table[:strings.Index(table, ");")]

	if strings.Contains(table, "CASCADE") {
		t.Errorf("cascaded deletes would hit the append-only trigger:\n%s", table)
	}
	if !strings.Contains(table, "REFERENCES shops(id) ON DELETE RESTRICT") {
		t.Errorf("stock_movements.shop_id must restrict shop deletion")
	}
}
