package service

import (
	"sync"
	"time"

	"github.com/boddenberg/networth-bfa-go/internal/domain"
	"github.com/boddenberg/networth-bfa-go/internal/infra/cache"
	"github.com/boddenberg/networth-bfa-go/internal/infra/observability"
	"github.com/boddenberg/networth-bfa-go/internal/port"

	"go.uber.org/zap"
)

const defaultSessionTTL = 30 * time.Minute

// Sessions owns one Synchronizer per UI session. Idle sessions expire after
// the TTL; every access extends it. An expired or dropped session closes its
// synchronizer, which ends its subscriptions.
type Sessions struct {
	factory port.RecordStoreFactory
	metrics *observability.Metrics
	logger  *zap.Logger

	mu      sync.Mutex
	entries *cache.InMemory[*sessionEntry]
}

// sessionEntry is what one live session holds: its Record Store handle and
// the synchronizer over it.
type sessionEntry struct {
	store port.RecordStore
	sync  *Synchronizer
}

// NewSessions creates a session registry. factory builds the Record Store
// each new session's synchronizer talks to.
func NewSessions(factory port.RecordStoreFactory, ttl time.Duration, metrics *observability.Metrics, logger *zap.Logger) *Sessions {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	s := &Sessions{
		factory: factory,
		metrics: metrics,
		logger:  logger,
	}
	s.entries = cache.New[*sessionEntry](ttl, cache.WithEvictionHook(s.evicted))
	return s
}

// For returns the session's synchronizer, creating it on first use.
func (s *Sessions) For(session domain.Session) *Synchronizer {
	return s.entry(session).sync
}

// Records returns the Record Store handle of the session, for reads that
// list raw records instead of going through the metrics cache.
func (s *Sessions) Records(session domain.Session) port.RecordStore {
	return s.entry(session).store
}

func (s *Sessions) entry(session domain.Session) *sessionEntry {
	key := session.Key()

	s.mu.Lock()
	defer s.mu.Unlock()

	// An expired entry is evicted (and its synchronizer closed) by Get
	// before a fresh one takes the key.
	if existing, ok := s.entries.Get(key); ok {
		return existing
	}

	store := s.factory(session)
	e := &sessionEntry{
		store: store,
		sync:  NewSynchronizer(store, s.metrics, s.logger.With(zap.String("subject", session.Subject))),
	}
	s.entries.Set(key, e)
	s.metrics.SetActiveSessions(s.entries.Len())

	s.logger.Info("session started", zap.String("subject", session.Subject))
	return e
}

// Drop forgets the session, e.g. after the Record Store rejected its token.
func (s *Sessions) Drop(session domain.Session) {
	s.entries.Delete(session.Key())
}

// Len returns the number of live sessions.
func (s *Sessions) Len() int {
	return s.entries.Len()
}

// Close stops expiry. Live synchronizers are left to the process exit.
func (s *Sessions) Close() {
	s.entries.Close()
}

func (s *Sessions) evicted(_ string, e *sessionEntry) {
	e.sync.Close()
	s.metrics.SetActiveSessions(s.entries.Len())
	s.logger.Debug("session closed")
}
