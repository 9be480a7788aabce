package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

func TestCodeMetadata(t *testing.T) {
	cases := map[Code]Metadata{
		CodeValidation:    {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true, CallerMessage: true},
		CodeUnauthorized:  {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required", CallerMessage: true},
		CodeNotFound:      {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found", CallerMessage: true},
		CodeStateConflict: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true, CallerMessage: true},
		CodeInternal:      {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true},
		CodeDependency:    {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable", Retryable: true, DetailsAllowed: true},
	}
	for code, want := range cases {
		if got := code.Metadata(); got != want {
			t.Fatalf("%s: expected %+v got %+v", code, want, got)
		}
	}
	if got := MetadataFor("NOT_A_CODE"); got != CodeInternal.Metadata() {
		t.Fatalf("unknown code should fall back to internal, got %+v", got)
	}
}

func TestPublicMessageHidesInternalText(t *testing.T) {
	if got := New(CodeInternal, "pq: relation sales does not exist").PublicMessage(); got != "internal server error" {
		t.Fatalf("internal message leaked: %q", got)
	}
	if got := New(CodeValidation, "quantity must be positive").PublicMessage(); got != "quantity must be positive" {
		t.Fatalf("unexpected validation message %q", got)
	}
	if got := New(CodeNotFound, "").PublicMessage(); got != "resource not found" {
		t.Fatalf("empty message should fall back, got %q", got)
	}
}

func TestWrapKeepsCauseAndCode(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := fmt.Errorf("submit sale: %w", Wrap(CodeDependency, cause, "stock ledger unavailable"))

	if !stdErrors.Is(err, cause) {
		t.Fatalf("cause lost")
	}
	if !IsCode(err, CodeDependency) {
		t.Fatalf("expected dependency code, got %s", CodeOf(err))
	}
	if got := Wrap(CodeNotFound, nil, "sale not found").Error(); got != "NOT_FOUND: sale not found" {
		t.Fatalf("unexpected error text %q", got)
	}
}

func TestCodeOf(t *testing.T) {
	if CodeOf(nil) != "" {
		t.Fatalf("nil error should have no code")
	}
	if CodeOf(stdErrors.New("boom")) != CodeInternal {
		t.Fatalf("untyped errors should report internal")
	}
	if As(stdErrors.New("boom")) != nil {
		t.Fatalf("As should not invent typed errors")
	}
	detailed := Newf(CodeConflict, "invoice %s already issued", "INV-1").WithDetails(map[string]any{"sale_id": "s-1"})
	if detailed.Message() != "invoice INV-1 already issued" || detailed.Details() == nil {
		t.Fatalf("unexpected error %+v", detailed)
	}
}

func TestDumpReadsPostgresErrors(t *testing.T) {
	pgxErr := Wrap(CodeConflict, &pgconn.PgError{Code: "23505", ConstraintName: "items_shop_id_name_key", TableName: "items"}, "duplicate item")
	d := Dump(pgxErr)
	if d.Code != CodeConflict || d.PG == nil || d.PG.Constraint != "items_shop_id_name_key" {
		t.Fatalf("unexpected dump %+v", d)
	}
	if len(d.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %v", d.Chain)
	}

	pqDump := Dump(fmt.Errorf("insert: %w", &pq.Error{Code: "23503", Table: "sale_lines"}))
	if pqDump.PG == nil || pqDump.PG.Code != "23503" || pqDump.Code != "" {
		t.Fatalf("unexpected pq dump %+v", pqDump)
	}
	if fields := pqDump.Fields(); fields["pg_table"] != "sale_lines" {
		t.Fatalf("unexpected fields %v", fields)
	}
	if Dump(stdErrors.New("plain")).PG != nil {
		t.Fatalf("plain errors carry no postgres details")
	}
}
