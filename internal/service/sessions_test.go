package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/boddenberg/networth-bfa-go/internal/domain"
	"github.com/boddenberg/networth-bfa-go/internal/infra/memstore"
	"github.com/boddenberg/networth-bfa-go/internal/infra/observability"
	"github.com/boddenberg/networth-bfa-go/internal/port"
	"github.com/boddenberg/networth-bfa-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestSessions_ReusesSynchronizerPerToken(t *testing.T) {
	var built int
	reg := memstore.NewRegistry()
	factory := func(s domain.Session) port.RecordStore {
		built++
		return reg.ForSession(s)
	}

	metrics := observability.NewMetrics()
	sessions := service.NewSessions(factory, time.Minute, metrics, zap.NewNop())
	defer sessions.Close()

	a := sessions.For(domain.Session{Token: "tok-a", Subject: "alice"})
	a2 := sessions.For(domain.Session{Token: "tok-a", Subject: "alice"})
	b := sessions.For(domain.Session{Token: "tok-b", Subject: "bob"})

	if a != a2 {
		t.Error("expected the same synchronizer for the same token")
	}
	if a == b {
		t.Error("expected distinct synchronizers for distinct tokens")
	}
	if built != 2 {
		t.Errorf("expected 2 stores built, got %d", built)
	}
	if sessions.Len() != 2 {
		t.Errorf("expected 2 live sessions, got %d", sessions.Len())
	}
	if got := metrics.Snapshot().ActiveSessions; got != 2 {
		t.Errorf("expected active sessions gauge 2, got %d", got)
	}
}

func TestSessions_DropClosesSubscriptions(t *testing.T) {
	metrics := observability.NewMetrics()
	sessions := service.NewSessions(memstore.NewRegistry().ForSession, time.Minute, metrics, zap.NewNop())
	defer sessions.Close()

	session := domain.Session{Token: "tok", Subject: "carol"}
	events, _ := sessions.For(session).Subscribe()
	<-events

	sessions.Drop(session)

	if _, ok := <-events; ok {
		t.Error("expected subscription closed after drop")
	}
	if sessions.Len() != 0 {
		t.Errorf("expected no live sessions, got %d", sessions.Len())
	}
	if got := metrics.Snapshot().ActiveSessions; got != 0 {
		t.Errorf("expected active sessions gauge 0, got %d", got)
	}
}

func TestSessions_ExpireIdle(t *testing.T) {
	sessions := service.NewSessions(memstore.NewRegistry().ForSession, 30*time.Millisecond, observability.NewMetrics(), zap.NewNop())
	defer sessions.Close()

	events, _ := sessions.For(domain.Session{Token: "idle"}).Subscribe()
	<-events

	select {
	case _, ok := <-events:
		if ok {
			t.Error("expected channel closed, got an event")
		}
	case <-time.After(time.Second):
		t.Fatal("expected idle session to expire")
	}
}

// A session that comes back after its TTL, before the sweep has run, gets a
// fresh synchronizer and the stale one is closed rather than orphaned.
func TestSessions_ReturnAfterExpiryClosesStaleSynchronizer(t *testing.T) {
	metrics := observability.NewMetrics()
	sessions := service.NewSessions(memstore.NewRegistry().ForSession, 30*time.Millisecond, metrics, zap.NewNop())
	defer sessions.Close()

	session := domain.Session{Token: "tok", Subject: "dave"}
	stale := sessions.For(session)
	events, _ := stale.Subscribe()
	<-events

	time.Sleep(45 * time.Millisecond)

	fresh := sessions.For(session)
	if fresh == stale {
		t.Fatal("expected a new synchronizer after expiry")
	}

	select {
	case _, ok := <-events:
		if ok {
			t.Error("expected stale subscription closed, got an event")
		}
	case <-time.After(time.Second):
		t.Fatal("stale synchronizer was never closed")
	}

	if sessions.Len() != 1 {
		t.Errorf("expected 1 live session, got %d", sessions.Len())
	}
	if got := metrics.Snapshot().ActiveSessions; got != 1 {
		t.Errorf("expected active sessions gauge 1, got %d", got)
	}
}

func TestSessions_RecordsSharesTheSynchronizersStore(t *testing.T) {
	sessions := service.NewSessions(memstore.NewRegistry().ForSession, time.Minute, observability.NewMetrics(), zap.NewNop())
	defer sessions.Close()

	session := domain.Session{Token: "tok", Subject: "erin"}
	draft := domain.TransactionDraft{
		Date:     domain.NewDate(2024, time.March, 1),
		Type:     domain.TransactionIncome,
		Category: "Salary",
		Amount:   decimal.NewFromInt(10),
	}
	if _, err := sessions.For(session).Create(context.Background(), draft); err != nil {
		t.Fatalf("create: %v", err)
	}

	txs, err := sessions.Records(session).ListTransactions(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txs) != 1 || txs[0].Category != "Salary" {
		t.Errorf("expected the created transaction, got %+v", txs)
	}
}
