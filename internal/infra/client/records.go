package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/boddenberg/networth-bfa-go/internal/domain"
	"github.com/boddenberg/networth-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("client")

// StoreService is the service label used in errors and metrics for the Record Store.
const StoreService = "record-store"

// statusError is a non-2xx reply from the Record Store.
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("record store returned status %d: %s", e.Status, e.Body)
}

// CountsAsSuccess tells the circuit breaker which errors are not the
// Record Store's fault: client errors (4xx) leave the breaker alone.
func CountsAsSuccess(err error) bool {
	if err == nil {
		return true
	}
	var se *statusError
	return errors.As(err, &se) && se.Status >= 400 && se.Status < 500
}

// RecordsClient talks to the Record Store REST API on behalf of one session.
// Reads are retried with backoff; mutations run once.
type RecordsClient struct {
	httpClient *http.Client
	baseURL    string
	session    domain.Session
	cb         *gobreaker.CircuitBreaker
	bulkhead   *resilience.Bulkhead
	cfg        resilience.Config
	logger     *zap.Logger
}

// NewRecordsClient creates a Record Store client bound to session.
// The breaker and bulkhead are shared by every session's client.
func NewRecordsClient(
	httpClient *http.Client,
	baseURL string,
	session domain.Session,
	cb *gobreaker.CircuitBreaker,
	bulkhead *resilience.Bulkhead,
	cfg resilience.Config,
	logger *zap.Logger,
) *RecordsClient {
	return &RecordsClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    session,
		cb:         cb,
		bulkhead:   bulkhead,
		cfg:        cfg,
		logger:     logger,
	}
}

// ListTransactions fetches the full transaction collection.
func (c *RecordsClient) ListTransactions(ctx context.Context) ([]domain.TransactionRecord, error) {
	var out []domain.TransactionRecord
	err := c.call(ctx, "RecordsClient.ListTransactions", true, func(ctx context.Context) error {
		out = nil
		return c.do(ctx, http.MethodGet, "/transactions/", nil, &out)
	})
	if err != nil {
		return nil, c.mapError(err, "transactions", "")
	}
	if out == nil {
		out = []domain.TransactionRecord{}
	}
	return out, nil
}

// ListAssetsLiabilities fetches the full asset/liability collection.
func (c *RecordsClient) ListAssetsLiabilities(ctx context.Context) ([]domain.AssetLiabilityRecord, error) {
	var out []domain.AssetLiabilityRecord
	err := c.call(ctx, "RecordsClient.ListAssetsLiabilities", true, func(ctx context.Context) error {
		out = nil
		return c.do(ctx, http.MethodGet, "/assets-liabilities/", nil, &out)
	})
	if err != nil {
		return nil, c.mapError(err, "assets-liabilities", "")
	}
	if out == nil {
		out = []domain.AssetLiabilityRecord{}
	}
	return out, nil
}

// CreateTransaction submits a new transaction and returns it with its assigned id.
func (c *RecordsClient) CreateTransaction(ctx context.Context, draft domain.TransactionDraft) (*domain.TransactionRecord, error) {
	var rec domain.TransactionRecord
	err := c.call(ctx, "RecordsClient.CreateTransaction", false, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, "/transactions/", draft, &rec)
	})
	if err != nil {
		return nil, c.mapError(err, "transactions", "")
	}
	return &rec, nil
}

// DeleteTransaction removes a transaction; an unknown id yields ErrNotFound.
func (c *RecordsClient) DeleteTransaction(ctx context.Context, id domain.RecordID) error {
	err := c.call(ctx, "RecordsClient.DeleteTransaction", false, func(ctx context.Context) error {
		return c.do(ctx, http.MethodDelete, "/transactions/"+url.PathEscape(id.String()), nil, nil)
	})
	if err != nil {
		return c.mapError(err, "transaction", id.String())
	}
	return nil
}

// CreateAssetLiability submits a new asset or liability.
func (c *RecordsClient) CreateAssetLiability(ctx context.Context, draft domain.AssetLiabilityDraft) (*domain.AssetLiabilityRecord, error) {
	var rec domain.AssetLiabilityRecord
	err := c.call(ctx, "RecordsClient.CreateAssetLiability", false, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, "/assets-liabilities/", draft, &rec)
	})
	if err != nil {
		return nil, c.mapError(err, "assets-liabilities", "")
	}
	return &rec, nil
}

// call runs fn inside a span, the bulkhead and the circuit breaker.
// 4xx replies are never retried.
func (c *RecordsClient) call(ctx context.Context, spanName string, retry bool, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("session.subject", c.session.Subject))

	if err := c.bulkhead.Acquire(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "bulkhead")
		return err
	}
	defer c.bulkhead.Release()

	_, err := c.cb.Execute(func() (any, error) {
		attempt := func() error {
			err := fn(ctx)
			var se *statusError
			if errors.As(err, &se) && se.Status >= 400 && se.Status < 500 {
				return resilience.Permanent(err)
			}
			return err
		}
		if !retry {
			return nil, unwrapPermanent(attempt())
		}
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, attempt)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func unwrapPermanent(err error) error {
	if err == nil || !resilience.IsPermanent(err) {
		return err
	}
	return errors.Unwrap(err)
}

// do executes one authenticated request. in is JSON-encoded when non-nil;
// out is decoded from the body when non-nil.
func (c *RecordsClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.session.Token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("record store: request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("record store: non-2xx response",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(raw)),
		)
		return &statusError{Status: resp.StatusCode, Body: string(raw)}
	}

	c.logger.Debug("record store: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// mapError converts raw call errors into domain errors.
func (c *RecordsClient) mapError(err error, resource, id string) error {
	var se *statusError
	if errors.As(err, &se) {
		switch se.Status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &domain.ErrUnauthorized{Message: "record store rejected the session token"}
		case http.StatusNotFound:
			if id != "" {
				return &domain.ErrNotFound{Resource: resource, ID: id}
			}
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return &domain.ErrValidation{Field: resource, Message: se.Body}
		}
	}
	if resilience.IsBreakerRejection(err) {
		return &domain.ErrExternalService{Service: StoreService, Err: &domain.ErrCircuitOpen{Service: StoreService}}
	}
	return &domain.ErrExternalService{Service: StoreService, Err: err}
}
