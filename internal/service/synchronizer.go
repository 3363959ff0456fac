package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/boddenberg/networth-bfa-go/internal/aggregator"
	"github.com/boddenberg/networth-bfa-go/internal/domain"
	"github.com/boddenberg/networth-bfa-go/internal/infra/observability"
	"github.com/boddenberg/networth-bfa-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("service/synchronizer")

// Synchronizer keeps one session's dashboard metrics in step with the
// Record Store. Every mutation is followed by a full refetch and a
// recomputation; it is the only writer of the published metrics.
//
// Concurrent operations are not queued. Each refresh publishes whatever the
// Record Store returned to it, so when two refreshes overlap the last one to
// finish wins, even if it read an older state.
type Synchronizer struct {
	store   port.RecordStore
	metrics *observability.Metrics
	logger  *zap.Logger

	mu            sync.Mutex
	current       domain.Metrics
	loaded        bool
	lastRefreshAt time.Time
	lastErr       string
	phase         domain.SyncPhase
	inFlight      int
	subscribers   map[int]chan domain.MetricsEvent
	nextSubID     int
	closed        bool
}

// NewSynchronizer creates a synchronizer publishing empty metrics until the first refresh.
func NewSynchronizer(store port.RecordStore, metrics *observability.Metrics, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		store:       store,
		metrics:     metrics,
		logger:      logger,
		current:     domain.EmptyMetrics(),
		phase:       domain.PhaseIdle,
		subscribers: make(map[int]chan domain.MetricsEvent),
	}
}

// Refresh refetches both collections and publishes the recomputed metrics.
// On failure nothing is published and the previous metrics stay current.
func (s *Synchronizer) Refresh(ctx context.Context) (domain.Metrics, error) {
	ctx, span := tracer.Start(ctx, "Synchronizer.Refresh")
	defer span.End()

	start := time.Now()
	s.begin(domain.PhaseRefreshing)
	defer s.end()

	m, err := s.refresh(ctx)
	s.metrics.RecordSync("refresh", time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		return domain.Metrics{}, err
	}
	return m, nil
}

// Create submits a draft to the Record Store, then refreshes.
func (s *Synchronizer) Create(ctx context.Context, draft domain.Draft) (domain.Metrics, error) {
	ctx, span := tracer.Start(ctx, "Synchronizer.Create")
	defer span.End()
	if draft != nil {
		span.SetAttributes(attribute.String("draft.kind", string(draft.Kind())))
	}

	return s.mutate(ctx, "create", func(ctx context.Context) error {
		switch d := draft.(type) {
		case domain.TransactionDraft:
			return s.createTransaction(ctx, d)
		case *domain.TransactionDraft:
			return s.createTransaction(ctx, *d)
		case domain.AssetLiabilityDraft:
			return s.createAssetLiability(ctx, d)
		case *domain.AssetLiabilityDraft:
			return s.createAssetLiability(ctx, *d)
		case nil:
			return &domain.ErrValidation{Field: "record", Message: "required"}
		default:
			return &domain.ErrValidation{Field: "record", Message: fmt.Sprintf("unsupported draft %T", draft)}
		}
	})
}

// Delete removes a transaction from the Record Store, then refreshes.
func (s *Synchronizer) Delete(ctx context.Context, id domain.RecordID) (domain.Metrics, error) {
	ctx, span := tracer.Start(ctx, "Synchronizer.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("record.id", id.String()))

	return s.mutate(ctx, "delete", func(ctx context.Context) error {
		if id == "" {
			return &domain.ErrValidation{Field: "id", Message: "required"}
		}
		if err := s.store.DeleteTransaction(ctx, id); err != nil {
			s.metrics.IncrStoreError("delete_transaction")
			return fmt.Errorf("delete transaction %s: %w", id, err)
		}
		return nil
	})
}

// Current returns a copy of the published metrics.
func (s *Synchronizer) Current() domain.Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Status reports the synchronizer phase and load state.
func (s *Synchronizer) Status() domain.SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := domain.SyncStatus{
		Phase:     s.phase,
		InFlight:  s.inFlight,
		Loaded:    s.loaded,
		LastError: s.lastErr,
	}
	if !s.lastRefreshAt.IsZero() {
		at := s.lastRefreshAt
		st.LastRefreshAt = &at
	}
	return st
}

// Subscribe registers an observer. The channel first yields the current
// metrics, then one event per publish or failure. A slow reader only sees
// the latest event. The returned func unsubscribes and closes the channel.
func (s *Synchronizer) Subscribe() (<-chan domain.MetricsEvent, func()) {
	ch := make(chan domain.MetricsEvent, 1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	ch <- domain.MetricsEvent{Type: domain.EventMetrics, Metrics: s.current.Clone(), Timestamp: time.Now()}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subscribers[id]; ok {
				delete(s.subscribers, id)
				close(c)
			}
		})
	}
}

// Close ends every subscription. Operations still work afterwards but
// nobody is notified.
func (s *Synchronizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for id, ch := range s.subscribers {
		delete(s.subscribers, id)
		close(ch)
	}
}

// mutate runs op in the Mutating phase and refreshes on success.
func (s *Synchronizer) mutate(ctx context.Context, operation string, op func(ctx context.Context) error) (domain.Metrics, error) {
	start := time.Now()
	s.begin(domain.PhaseMutating)
	defer s.end()

	if err := op(ctx); err != nil {
		s.logger.Warn("synchronizer: mutation failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
		s.signalFailure(err)
		s.metrics.RecordSync(operation, time.Since(start), err)
		return domain.Metrics{}, err
	}

	s.setPhase(domain.PhaseRefreshing)
	refreshStart := time.Now()
	m, err := s.refresh(ctx)
	s.metrics.RecordSync("refresh", time.Since(refreshStart), err)
	s.metrics.RecordSync(operation, time.Since(start), err)
	if err != nil {
		return domain.Metrics{}, fmt.Errorf("%s: refresh after mutation: %w", operation, err)
	}
	return m, nil
}

func (s *Synchronizer) createTransaction(ctx context.Context, d domain.TransactionDraft) error {
	rec, err := s.store.CreateTransaction(ctx, d)
	if err != nil {
		s.metrics.IncrStoreError("create_transaction")
		return fmt.Errorf("create transaction: %w", err)
	}
	s.logger.Debug("synchronizer: transaction created", zap.String("id", rec.ID.String()))
	return nil
}

func (s *Synchronizer) createAssetLiability(ctx context.Context, d domain.AssetLiabilityDraft) error {
	rec, err := s.store.CreateAssetLiability(ctx, d)
	if err != nil {
		s.metrics.IncrStoreError("create_asset_liability")
		return fmt.Errorf("create asset/liability: %w", err)
	}
	s.logger.Debug("synchronizer: asset/liability created", zap.String("id", rec.ID.String()))
	return nil
}

// refresh fetches both collections concurrently; publishing happens only
// when both arrived.
func (s *Synchronizer) refresh(ctx context.Context) (domain.Metrics, error) {
	var (
		transactions      []domain.TransactionRecord
		assetsLiabilities []domain.AssetLiabilityRecord
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		t, err := s.store.ListTransactions(gCtx)
		if err != nil {
			s.metrics.IncrStoreError("list_transactions")
			return fmt.Errorf("list transactions: %w", err)
		}
		transactions = t
		return nil
	})

	g.Go(func() error {
		a, err := s.store.ListAssetsLiabilities(gCtx)
		if err != nil {
			s.metrics.IncrStoreError("list_assets_liabilities")
			return fmt.Errorf("list assets/liabilities: %w", err)
		}
		assetsLiabilities = a
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("synchronizer: refresh failed", zap.Error(err))
		s.signalFailure(err)
		return domain.Metrics{}, err
	}

	m := aggregator.ComputeMetrics(transactions, assetsLiabilities)
	s.publish(m)
	return m.Clone(), nil
}

func (s *Synchronizer) publish(m domain.Metrics) {
	now := time.Now()

	s.mu.Lock()
	s.current = m
	s.loaded = true
	s.lastRefreshAt = now
	s.lastErr = ""
	s.broadcast(domain.MetricsEvent{Type: domain.EventMetrics, Metrics: m, Timestamp: now})
	s.mu.Unlock()

	s.metrics.RecordPublish(m)
}

func (s *Synchronizer) signalFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastErr = err.Error()
	s.broadcast(domain.MetricsEvent{
		Type:      domain.EventError,
		Metrics:   s.current,
		Error:     err.Error(),
		Timestamp: time.Now(),
	})
}

// broadcast must be called with s.mu held. Each subscriber gets its own copy.
func (s *Synchronizer) broadcast(ev domain.MetricsEvent) {
	for _, ch := range s.subscribers {
		e := ev
		e.Metrics = ev.Metrics.Clone()
		select {
		case ch <- e:
		default:
			// drop the stale event, keep the latest
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- e:
			default:
			}
		}
	}
}

func (s *Synchronizer) begin(phase domain.SyncPhase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight++
	s.phase = phase
}

func (s *Synchronizer) setPhase(phase domain.SyncPhase) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.phase = phase
}

func (s *Synchronizer) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight--
	if s.inFlight == 0 {
		s.phase = domain.PhaseIdle
	}
}
