package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	xhttp "TokenLens/pkg/http"

	"go.opentelemetry.io/otel/trace"
)

// httpBase is the shared client and base URL of the HTTP adapters.
type httpBase struct {
	baseURL string
	client  *xhttp.Client
	tracer  trace.Tracer
}

func newHTTPBase(baseURL string, timeout time.Duration, tracer trace.Tracer, opts ...xhttp.ClientOption) httpBase {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts = append([]xhttp.ClientOption{xhttp.WithTimeout(timeout)}, opts...)
	return httpBase{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		client:  xhttp.NewClient(opts...),
		tracer:  tracer,
	}
}

// getJSON issues a GET under baseURL and decodes the JSON body into dest.
func (b *httpBase) getJSON(ctx context.Context, path string, query url.Values, headers map[string]string, dest interface{}) error {
	raw, err := b.client.Fetch(ctx, &xhttp.RequestOptions{
		URL:     b.baseURL + path,
		Headers: headers,
		Query:   query,
	})
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	return decodeInto(raw, dest)
}

// postJSON posts payload to path under baseURL and decodes JSON into dest.
func (b *httpBase) postJSON(ctx context.Context, path string, payload, dest interface{}) error {
	raw, err := b.client.Fetch(ctx, &xhttp.RequestOptions{
		Method: http.MethodPost,
		URL:    b.baseURL + path,
		Body:   payload,
	})
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	return decodeInto(raw, dest)
}

func decodeInto(raw []byte, dest interface{}) error {
	if err := json.Unmarshal(raw, dest); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

// postJSONWithRetry retries transient failures (transport errors and 5xx)
// with linear backoff. Client errors and decode errors are returned at once.
func (b *httpBase) postJSONWithRetry(ctx context.Context, path string, payload, dest interface{}, attempts int) error {
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 1; i <= attempts; i++ {
		err = b.postJSON(ctx, path, payload, dest)
		if err == nil || !retryable(err) || i == attempts {
			return err
		}
		select {
		case <-time.After(time.Duration(i) * 50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func retryable(err error) bool {
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Code >= http.StatusInternalServerError
	}
	var de *decodeError
	if errors.As(err, &de) || errors.Is(err, xhttp.ErrBodyTooLarge) {
		return false
	}
	return !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled)
}
