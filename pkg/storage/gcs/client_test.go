package gcs

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/angelmondragon/shopdesk-backend/pkg/config"
	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

type roundTripFunc func(*http.Request) *http.Response

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func newTestClient(t *testing.T, rt roundTripFunc) *Client {
	t.Helper()
	svc, err := storage.NewService(context.Background(),
		option.WithHTTPClient(&http.Client{Transport: rt}),
		option.WithEndpoint("https://storage.test/storage/v1/"),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return newWithService(svc, config.GCSConfig{BucketName: "bucket", PublicBaseURL: "https://cdn.example.com/"})
}

func TestPutUploadsToDefaultBucket(t *testing.T) {
	t.Parallel()

	var sawUpload bool
	client := newTestClient(t, func(req *http.Request) *http.Response {
		if req.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", req.Method)
		}
		if !strings.HasSuffix(req.URL.Path, "/b/bucket/o") {
			t.Errorf("unexpected path %s", req.URL.Path)
		}
		body, _ := io.ReadAll(req.Body)
		if !bytes.Contains(body, []byte("%PDF-test")) {
			t.Errorf("upload body missing payload")
		}
		sawUpload = true
		return jsonResponse(http.StatusOK, `{"name":"invoices/invoice_AB12CD34.pdf","bucket":"bucket"}`)
	})

	uri, err := client.Put(context.Background(), "invoices/invoice_AB12CD34.pdf", "application/pdf", strings.NewReader("%PDF-test"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !sawUpload {
		t.Fatalf("no upload request issued")
	}
	if uri != "gs://bucket/invoices/invoice_AB12CD34.pdf" {
		t.Fatalf("unexpected uri %s", uri)
	}
}

func TestPutRequiresKey(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(*http.Request) *http.Response {
		t.Fatalf("no request expected")
		return nil
	})
	if _, err := client.Put(context.Background(), "", "application/pdf", strings.NewReader("x")); err == nil {
		t.Fatalf("expected error for empty key")
	}
}

func TestGetNotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(*http.Request) *http.Response {
		return jsonResponse(http.StatusNotFound, `{"error":{"code":404,"message":"No such object"}}`)
	})
	if _, err := client.Get(context.Background(), "invoices/missing.pdf"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestDeleteObjectNotFound(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(req *http.Request) *http.Response {
		if req.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", req.Method)
		}
		return jsonResponse(http.StatusNotFound, `{"error":{"code":404,"message":"No such object"}}`)
	})
	if err := client.Delete(context.Background(), "invoices/missing.pdf"); err != nil {
		t.Fatalf("Delete not found should succeed: %v", err)
	}
}

func TestPingFailsOnForbidden(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(*http.Request) *http.Response {
		return jsonResponse(http.StatusForbidden, `{"error":{"code":403,"message":"denied"}}`)
	})
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping failure")
	}
}

func TestPublicURLEscapesSegments(t *testing.T) {
	t.Parallel()

	client := newWithService(nil, config.GCSConfig{BucketName: "bucket", PublicBaseURL: "https://cdn.example.com/"})
	got := client.PublicURL("invoices/invoice A.pdf")
	if got != "https://cdn.example.com/bucket/invoices/invoice%20A.pdf" {
		t.Fatalf("unexpected url %s", got)
	}
}
