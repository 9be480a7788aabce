package analytics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// RetryPolicy bounds how long a single insert keeps retrying. Zero values
// fall back to 3 attempts with backoff doubling from 250ms up to 2s.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 250 * time.Millisecond
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = 2 * time.Second
	}
	p.MaximumBackoff = max(p.MaximumBackoff, p.InitialBackoff)
	return p
}

// delay is the wait before retry number n (1-based).
func (p RetryPolicy) delay(n int) time.Duration {
	d := p.InitialBackoff
	for i := 1; i < n && d < p.MaximumBackoff; i++ {
		d *= 2
	}
	return min(d, p.MaximumBackoff)
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Writer streams sale_events rows into BigQuery.
type Writer struct {
	client tableInserter
	table  string
	retry  RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
}

func NewWriter(client tableInserter, table string, retry RetryPolicy) (*Writer, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	if table = strings.TrimSpace(table); table == "" {
		return nil, errors.New("sale events table is required")
	}
	return &Writer{client: client, table: table, retry: retry.normalized(), sleep: waitFor}, nil
}

// Write inserts one row. The event id doubles as the BigQuery insert id so
// redelivered events are deduplicated by the streaming API.
func (w *Writer) Write(ctx context.Context, row *SaleEventRow) error {
	batch := []any{row.saver()}
	var err error
	for attempt := 1; attempt <= w.retry.MaxAttempts; attempt++ {
		if attempt > 1 {
			if waitErr := w.sleep(ctx, w.retry.delay(attempt-1)); waitErr != nil {
				return waitErr
			}
		}
		if err = w.client.InsertRows(ctx, w.table, batch); err == nil {
			return nil
		}
		if !isRetryable(err) {
			break
		}
	}
	return fmt.Errorf("insert %s row: %w", w.table, err)
}

func waitFor(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	transientHTTP = map[int]bool{
		http.StatusRequestTimeout:      true,
		http.StatusTooManyRequests:     true,
		http.StatusInternalServerError: true,
		http.StatusBadGateway:          true,
		http.StatusServiceUnavailable:  true,
		http.StatusGatewayTimeout:      true,
	}
	transientGRPC = map[codes.Code]bool{
		codes.Aborted:           true,
		codes.DeadlineExceeded:  true,
		codes.Internal:          true,
		codes.ResourceExhausted: true,
		codes.Unavailable:       true,
	}
)

// isRetryable is true only when every underlying failure is transient; a
// single bad row makes the whole insert permanent.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var rowErrs bigquery.PutMultiError
	if errors.As(err, &rowErrs) {
		return allRetryable(len(rowErrs), func(i int) error { return rowErrs[i].Errors })
	}
	var multi bigquery.MultiError
	if errors.As(err, &multi) {
		return allRetryable(len(multi), func(i int) error { return multi[i] })
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return transientHTTP[apiErr.Code]
	}
	if st, ok := status.FromError(err); ok {
		return transientGRPC[st.Code()]
	}
	return false
}

func allRetryable(n int, at func(int) error) bool {
	if n == 0 {
		return false
	}
	for i := range n {
		if !isRetryable(at(i)) {
			return false
		}
	}
	return true
}
