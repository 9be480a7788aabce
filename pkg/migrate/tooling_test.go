package migrate_test

import (
	"os"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/shopdesk-backend/pkg/migrate"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	if err := migrate.Validate(migrate.Source("")); err != nil {
		t.Fatalf("embedded migrations: %v", err)
	}
	if err := migrate.Validate(migrate.Source("migrations")); err != nil {
		t.Fatalf("migrations dir: %v", err)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	ok := "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	fsys := fstest.MapFS{
		"20260105090000_create_sales.sql":   {Data: []byte(ok)},
		"20260105090000_create_refunds.sql": {Data: []byte(ok)},
		"create_expenses.sql":               {Data: []byte(ok)},
		"20260105090100_no_down.sql":        {Data: []byte("-- +goose Up\nSELECT 1;\n")},
		"20260105090200_flipped.sql":        {Data: []byte("-- +goose Down\n-- +goose Up\n")},
		"README.md":                         {Data: []byte("notes")},
	}

	err := migrate.Validate(fsys)
	if got := len(multierr.Errors(err)); got != 4 {
		t.Fatalf("expected 4 problems, got %d: %v", got, err)
	}
	for _, want := range []string{"already used", "expected YYYYMMDDHHMMSS_name.sql", "missing -- +goose Down", "precedes Up"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("missing %q in %v", want, err)
		}
	}
}

func TestCreateWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := migrate.Create(dir, "Add Expense Categories!", now)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasSuffix(path, "20260304050607_add_expense_categories.sql") {
		t.Fatalf("unexpected path %s", path)
	}
	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(body), "-- rollback add_expense_categories") {
		t.Fatalf("unexpected body %s", body)
	}
	if err := migrate.Validate(os.DirFS(dir)); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}

	if _, err := migrate.Create(dir, "add expense categories", now); err == nil {
		t.Fatalf("expected duplicate version to fail")
	}
	if _, err := migrate.Create(dir, "!!!", now); err == nil {
		t.Fatalf("expected empty slug to fail")
	}
}
