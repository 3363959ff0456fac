package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/networth-bfa-go/internal/domain"
	"github.com/boddenberg/networth-bfa-go/internal/infra/client"
	"github.com/boddenberg/networth-bfa-go/internal/infra/resilience"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func newClient(t *testing.T, url string) *client.RecordsClient {
	t.Helper()
	return client.NewRecordsClient(
		&http.Client{Timeout: 2 * time.Second},
		url,
		domain.Session{Token: "tok-123", Subject: "user-1"},
		resilience.NewCircuitBreaker("test", client.CountsAsSuccess),
		resilience.NewBulkhead(4),
		resilience.Config{MaxRetries: 2, InitialBackoff: 5 * time.Millisecond},
		zap.NewNop(),
	)
}

func TestRecordsClient_ListTransactionsSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transactions/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("expected bearer token, got '%s'", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":1,"date":"2024-01-15","transaction_type":"income","transaction_category":"Salary","amount":1000,"description":"pay"}]`))
	}))
	defer srv.Close()

	txs, err := newClient(t, srv.URL).ListTransactions(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(txs) != 1 || txs[0].ID != "1" || !txs[0].Amount.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("unexpected transactions %+v", txs)
	}
}

func TestRecordsClient_EmptyListIsNotNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	items, err := newClient(t, srv.URL).ListAssetsLiabilities(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if items == nil || len(items) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", items)
	}
}

func TestRecordsClient_RetriesReadsOnServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	if _, err := newClient(t, srv.URL).ListTransactions(context.Background()); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 calls, got %d", calls.Load())
	}
}

func TestRecordsClient_DoesNotRetryMutations(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).CreateTransaction(context.Background(), domain.TransactionDraft{
		Type: domain.TransactionExpense, Category: "Food", Amount: decimal.NewFromInt(5), Date: domain.NewDate(2024, time.May, 2),
	})
	if !domain.IsTransportFailure(err) {
		t.Fatalf("expected transport failure, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestRecordsClient_CreateTransactionPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
			return
		}
		if body["transaction_type"] != "expense" || body["transaction_category"] != "Food" {
			t.Errorf("unexpected body %v", body)
		}
		if body["amount"] != 42.5 {
			t.Errorf("expected numeric amount 42.5, got %v", body["amount"])
		}
		if body["date"] != "2024-05-02" {
			t.Errorf("expected date 2024-05-02, got %v", body["date"])
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"tx-9","date":"2024-05-02","transaction_type":"expense","transaction_category":"Food","amount":42.5,"description":""}`))
	}))
	defer srv.Close()

	rec, err := newClient(t, srv.URL).CreateTransaction(context.Background(), domain.TransactionDraft{
		Type: domain.TransactionExpense, Category: "Food", Amount: decimal.RequireFromString("42.5"), Date: domain.NewDate(2024, time.May, 2),
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.ID != "tx-9" {
		t.Errorf("expected id 'tx-9', got '%s'", rec.ID)
	}
}

func TestRecordsClient_DeleteUnknownIsNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Method != http.MethodDelete || r.URL.Path != "/transactions/77" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	err := newClient(t, srv.URL).DeleteTransaction(context.Background(), "77")
	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected not found, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected 1 call, got %d", calls.Load())
	}
}

func TestRecordsClient_UnauthorizedIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newClient(t, srv.URL).ListTransactions(context.Background())
	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("expected no retries on 401, got %d calls", calls.Load())
	}
}

func TestRecordsClient_OpenBreakerIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := client.NewRecordsClient(
		&http.Client{Timeout: time.Second},
		srv.URL,
		domain.Session{Token: "tok"},
		resilience.NewCircuitBreaker("test", client.CountsAsSuccess),
		resilience.NewBulkhead(1),
		resilience.Config{MaxRetries: 0},
		zap.NewNop(),
	)

	for i := 0; i < 5; i++ {
		_, _ = c.ListTransactions(context.Background())
	}

	_, err := c.ListTransactions(context.Background())
	if !domain.IsTransportFailure(err) {
		t.Fatalf("expected transport failure, got %v", err)
	}
	var open *domain.ErrCircuitOpen
	if !errors.As(err, &open) {
		t.Fatalf("expected circuit open, got %v", err)
	}
}

func TestRecordsClient_NetworkErrorIsTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newClient(t, url).ListAssetsLiabilities(context.Background())
	if !domain.IsTransportFailure(err) {
		t.Fatalf("expected transport failure, got %v", err)
	}
}
