package responses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/angelmondragon/shopdesk-backend/pkg/errors"
	"github.com/angelmondragon/shopdesk-backend/pkg/types"
)

func decodeInto[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode %T: %v", out, err)
	}
	return out
}

func TestWriteSuccessStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"sale": "s-1"})

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	body := decodeInto[types.SuccessEnvelope](t, w)
	if body.Data.(map[string]any)["sale"] != "s-1" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteSuccessEncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]any{"bad": make(chan int)})

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	body := decodeInto[types.ErrorEnvelope](t, w)
	if body.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		status      int
		code        pkgerrors.Code
		message     string
		wantDetails bool
	}{
		{
			name: "validation keeps message and details",
			err: pkgerrors.New(pkgerrors.CodeValidation, "items must not be empty").
				WithDetails(map[string]string{"field": "items"}),
			status:      http.StatusBadRequest,
			code:        pkgerrors.CodeValidation,
			message:     "items must not be empty",
			wantDetails: true,
		},
		{
			name:    "wrapped not found",
			err:     fmt.Errorf("load sale: %w", pkgerrors.New(pkgerrors.CodeNotFound, "sale not found")),
			status:  http.StatusNotFound,
			code:    pkgerrors.CodeNotFound,
			message: "sale not found",
		},
		{
			name:    "untyped error is internal and hidden",
			err:     errors.New("pq: connection reset"),
			status:  http.StatusInternalServerError,
			code:    pkgerrors.CodeInternal,
			message: "internal server error",
		},
		{
			name:    "nil error",
			status:  http.StatusInternalServerError,
			code:    pkgerrors.CodeInternal,
			message: "internal server error",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(context.Background(), nil, w, tc.err)

			if w.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, w.Code)
			}
			body := decodeInto[types.ErrorEnvelope](t, w)
			if body.Error.Code != string(tc.code) {
				t.Fatalf("expected code %s, got %s", tc.code, body.Error.Code)
			}
			if body.Error.Message != tc.message {
				t.Fatalf("expected message %q, got %q", tc.message, body.Error.Message)
			}
			if (body.Error.Details != nil) != tc.wantDetails {
				t.Fatalf("details presence mismatch: %v", body.Error.Details)
			}
		})
	}
}

func TestEnvelopeMatchesWrittenError(t *testing.T) {
	err := pkgerrors.New(pkgerrors.CodeConflict, "client_ref already used")
	env := Envelope(err)

	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, err)
	written := decodeInto[types.ErrorEnvelope](t, w)

	if env.Error.Code != written.Error.Code || env.Error.Message != written.Error.Message {
		t.Fatalf("envelope %+v differs from written %+v", env.Error, written.Error)
	}
}

type stubDenial struct{}

func (stubDenial) Error() string { return "upgrade required" }

func (stubDenial) Prompt() types.UpgradePrompt {
	return types.UpgradePrompt{Capability: "catalog_unlimited", CurrentTier: "free", RequiredTier: "medium"}
}

func TestWriteErrorRendersPlanDenialsAsUpgrade(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, fmt.Errorf("create product: %w", stubDenial{}))

	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", w.Code)
	}
	body := decodeInto[types.UpgradeEnvelope](t, w)
	if body.Upgrade.RequiredTier != "medium" || body.Upgrade.Capability != "catalog_unlimited" {
		t.Fatalf("unexpected prompt %+v", body.Upgrade)
	}
}

func TestWriteAttachment(t *testing.T) {
	w := httptest.NewRecorder()
	WriteAttachment(w, "application/pdf", "report.pdf", []byte("%PDF-1.3"))

	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="report.pdf"` {
		t.Fatalf("unexpected disposition %q", got)
	}
	if got := w.Header().Get("Content-Length"); got != "8" {
		t.Fatalf("unexpected length %q", got)
	}
	if w.Body.String() != "%PDF-1.3" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}
}
