// Package client talks to the CRM backend REST API (deals, invoices,
// notifications) with retry, circuit breaker, bulkhead and tracing.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/boddenberg/dealdesk-bfa/internal/domain"
	"github.com/boddenberg/dealdesk-bfa/internal/infra/observability"
	"github.com/boddenberg/dealdesk-bfa/internal/infra/resilience"
)

var tracer = otel.Tracer("client")

const serviceName = "backend"

// Credentials authenticate a call on behalf of a dashboard session.
type Credentials struct {
	Token    string
	TenantID string
}

type credentialsKey struct{}

// WithCredentials attaches per-request credentials to ctx. They take
// precedence over the client's static defaults.
func WithCredentials(ctx context.Context, creds Credentials) context.Context {
	return context.WithValue(ctx, credentialsKey{}, creds)
}

// CredentialsFrom returns the credentials attached with WithCredentials.
func CredentialsFrom(ctx context.Context) (Credentials, bool) {
	creds, ok := ctx.Value(credentialsKey{}).(Credentials)
	return creds, ok
}

// statusError is a non-2xx backend response.
type statusError struct {
	Status  int
	Message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.Status, e.Message)
}

func (e *statusError) clientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// Backend is the CRM backend client. It implements port.DealBackend,
// port.InvoiceFetcher and port.NotificationBackend.
type Backend struct {
	httpClient *http.Client
	baseURL    string
	defaults   Credentials
	cb         *gobreaker.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	cfg        resilience.Config
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewBackend creates a backend client. defaults are used for calls whose
// context carries no credentials (CLI, scheduled jobs).
func NewBackend(httpClient *http.Client, baseURL string, defaults Credentials, cfg resilience.Config, metrics *observability.Metrics, logger *zap.Logger) *Backend {
	return &Backend{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		defaults:   defaults,
		cb:         resilience.NewCircuitBreaker(serviceName, countsAsSuccess, logger),
		bulkhead:   resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
	}
}

// countsAsSuccess keeps client errors and cancelled callers from tripping
// the breaker.
func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var se *statusError
	return errors.As(err, &se) && se.clientError()
}

// BreakerState reports the circuit breaker state for health checks.
func (c *Backend) BreakerState() gobreaker.State {
	return c.cb.State()
}

// do executes one logical backend call. body is JSON-encoded when non-nil;
// the response is decoded into out, unwrapping a {"data": ...} envelope.
// Only transport failures and 5xx on GET are retried.
func (c *Backend) do(ctx context.Context, op, method, path string, body, out any) error {
	ctx, span := tracer.Start(ctx, "Backend."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("backend.path", path),
	)

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
	}

	if err := c.bulkhead.Acquire(ctx); err != nil {
		return err
	}
	defer c.bulkhead.Release()

	creds := c.defaults
	if fromCtx, ok := CredentialsFrom(ctx); ok {
		if fromCtx.Token != "" {
			creds.Token = fromCtx.Token
		}
		if fromCtx.TenantID != "" {
			creds.TenantID = fromCtx.TenantID
		}
	}
	requestID := uuid.NewString()

	start := time.Now()
	_, err := c.cb.Execute(func() (any, error) {
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			respBody, err := c.send(ctx, method, path, payload, creds, requestID)
			if err != nil {
				return err
			}
			if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
				return nil
			}
			if err := decodeEnvelope(respBody, out); err != nil {
				return resilience.Permanent(fmt.Errorf("decode %s response: %w", op, err))
			}
			return nil
		})
	})
	c.metrics.RecordBackendDuration(op, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

// send performs a single HTTP round trip.
func (c *Backend) send(ctx context.Context, method, path string, payload []byte, creds Credentials, requestID string) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, resilience.Permanent(err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+creds.Token)
	}
	if creds.TenantID != "" {
		req.Header.Set("X-Tenant-ID", creds.TenantID)
	}
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("backend: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &statusError{Status: resp.StatusCode, Message: errorMessage(resp.StatusCode, body)}
		c.logger.Warn("backend: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", se.Message),
		)
		if se.clientError() || method != http.MethodGet {
			return nil, resilience.Permanent(se)
		}
		return nil, se
	}

	c.logger.Debug("backend: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return body, nil
}

// decodeEnvelope decodes body into out, looking inside "data" when the
// backend wrapped the payload.
func decodeEnvelope(body []byte, out any) error {
	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &env); err == nil {
		if d := bytes.TrimSpace(env.Data); len(d) > 0 && !bytes.Equal(d, []byte("null")) {
			return json.Unmarshal(d, out)
		}
	}
	return json.Unmarshal(body, out)
}

// errorMessage pulls a human-readable message out of an error body,
// falling back to the status text.
func errorMessage(status int, body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", status)
}

// wrapError maps a failed call to the domain error taxonomy.
func (c *Backend) wrapError(resource, id string, err error) error {
	c.metrics.IncrBackendError(resource)

	if resilience.IsBreakerOpen(err) {
		return &domain.ErrCircuitOpen{Service: serviceName}
	}
	var se *statusError
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusNotFound:
			return &domain.ErrNotFound{Resource: resource, ID: id}
		case http.StatusUnauthorized, http.StatusForbidden:
			return &domain.ErrUnauthorized{Message: se.Message}
		}
		return &domain.ErrExternalService{Service: serviceName, Status: se.Status, Message: se.Message, Err: err}
	}
	return &domain.ErrExternalService{Service: serviceName, Err: err}
}
