package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/dialfleet/dispatch-core/backoff"
)

// HTTPClient implements Client against a REST carrier API. It wraps
// every outbound call in a gobreaker circuit specific to this worker's
// HTTP transport — distinct from the campaign-level, Redis-shared
// circuit breaker marker in leasestore, which reflects failure density
// observed across all workers rather than this process's transport
// health alone.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
}

type HTTPClientOption func(*HTTPClient)

func WithHTTPClient(c *http.Client) HTTPClientOption {
	return func(h *HTTPClient) { h.httpClient = c }
}

func WithBreakerSettings(st gobreaker.Settings) HTTPClientOption {
	return func(h *HTTPClient) { h.breaker = gobreaker.NewCircuitBreaker[*http.Response](st) }
}

func NewHTTPClient(baseURL string, opts ...HTTPClientOption) *HTTPClient {
	h := &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.breaker == nil {
		h.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        "carrier-http",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logrus.WithFields(logrus.Fields{"breaker": name, "from": from, "to": to}).Warn("carrier circuit breaker state change")
			},
		})
	}
	return h
}

func (h *HTTPClient) Dial(ctx context.Context, spec DialSpec) (DialResult, error) {
	body, err := json.Marshal(spec)
	if err != nil {
		return DialResult{}, errors.Errorf("marshal dial spec: %w", err)
	}

	resp, err := h.do(ctx, http.MethodPost, "/calls", body)
	if err != nil {
		return DialResult{}, err
	}
	defer resp.Body.Close()

	var result DialResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return DialResult{}, errors.Errorf("decode dial response: %w", err)
	}
	return result, nil
}

func (h *HTTPClient) Hangup(ctx context.Context, correlationID string) error {
	resp, err := h.do(ctx, http.MethodPost, "/calls/"+correlationID+"/hangup", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func (h *HTTPClient) GetStatus(ctx context.Context, correlationID string) (Status, error) {
	resp, err := h.do(ctx, http.MethodGet, "/calls/"+correlationID, nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var payload struct {
		Status Status `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", errors.Errorf("decode status response: %w", err)
	}
	return payload.Status, nil
}

func (h *HTTPClient) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	resp, err := h.breaker.Execute(func() (*http.Response, error) {
		return h.doOnce(ctx, method, path, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, ErrCircuitOpen
		}
		return nil, err
	}
	return resp, nil
}

// doOnce is the breaker's guarded operation. Transport-level and 5xx
// failures are retried a few times with short backoff before counting
// against the breaker, so a single slow carrier response does not trip
// the circuit on its own; non-retryable statuses (rate limit, auth,
// invalid number) fail fast.
func (h *HTTPClient) doOnce(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	bw := backoff.NewBackoff(ctx, 100*time.Millisecond, 0.5, 2.0, 3)
	var resp *http.Response
	bw.SetDoOperation(func() (any, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		r, err := h.httpClient.Do(req)
		if err != nil {
			return nil, errors.Mark(err, ErrServerError)
		}
		if classifyErr := classifyStatus(r.StatusCode); classifyErr != nil {
			r.Body.Close()
			if errors.Is(classifyErr, ErrServerError) {
				return nil, classifyErr
			}
			return nil, backoff.Permanent(classifyErr)
		}
		resp = r
		return nil, nil
	})
	if err := bw.Exec(); err != nil {
		return nil, err
	}
	return resp, nil
}

func classifyStatus(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusUnprocessableEntity:
		return ErrInvalidNumber
	case code >= http.StatusInternalServerError:
		return ErrServerError
	case code >= http.StatusBadRequest:
		return fmt.Errorf("carrier: unexpected status %d", code)
	default:
		return nil
	}
}
