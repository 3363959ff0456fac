// Package memstore is an in-process Record Store. It backs the BFA when
// RECORD_STORE_MODE=memory and gives tests a store that behaves like the
// real one: full-collection reads, ids minted on create, delete by id.
package memstore

import (
	"context"
	"sync"

	"github.com/boddenberg/networth-bfa-go/internal/domain"
	"github.com/boddenberg/networth-bfa-go/internal/port"

	"github.com/google/uuid"
)

// Store holds the records of one user. Insertion order is preserved.
type Store struct {
	mu                sync.RWMutex
	transactions      []domain.TransactionRecord
	assetsLiabilities []domain.AssetLiabilityRecord
	newID             func() domain.RecordID
}

// New creates an empty store minting UUID ids.
func New() *Store {
	return &Store{
		transactions:      []domain.TransactionRecord{},
		assetsLiabilities: []domain.AssetLiabilityRecord{},
		newID:             func() domain.RecordID { return domain.RecordID(uuid.NewString()) },
	}
}

// ListTransactions returns a copy of the full transaction collection.
func (s *Store) ListTransactions(ctx context.Context) ([]domain.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.TransactionRecord{}, s.transactions...), nil
}

// ListAssetsLiabilities returns a copy of the full asset/liability collection.
func (s *Store) ListAssetsLiabilities(ctx context.Context) ([]domain.AssetLiabilityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AssetLiabilityRecord{}, s.assetsLiabilities...), nil
}

// CreateTransaction stores the draft under a fresh id.
func (s *Store) CreateTransaction(ctx context.Context, draft domain.TransactionDraft) (*domain.TransactionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec := domain.TransactionRecord{
		ID:          s.newID(),
		Date:        draft.Date,
		Type:        draft.Type,
		Category:    draft.Category,
		Amount:      draft.Amount,
		Description: draft.Description,
	}

	s.mu.Lock()
	s.transactions = append(s.transactions, rec)
	s.mu.Unlock()

	return &rec, nil
}

// DeleteTransaction removes the transaction with the given id.
func (s *Store) DeleteTransaction(ctx context.Context, id domain.RecordID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, tx := range s.transactions {
		if tx.ID == id {
			s.transactions = append(s.transactions[:i:i], s.transactions[i+1:]...)
			return nil
		}
	}
	return &domain.ErrNotFound{Resource: "transaction", ID: id.String()}
}

// CreateAssetLiability stores the draft under a fresh id.
func (s *Store) CreateAssetLiability(ctx context.Context, draft domain.AssetLiabilityDraft) (*domain.AssetLiabilityRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec := domain.AssetLiabilityRecord{
		ID:          s.newID(),
		Type:        draft.Type,
		Category:    draft.Category,
		Amount:      draft.Amount,
		Description: draft.Description,
		Date:        draft.Date,
	}

	s.mu.Lock()
	s.assetsLiabilities = append(s.assetsLiabilities, rec)
	s.mu.Unlock()

	return &rec, nil
}

// Registry hands out one Store per session subject, so a user keeps their
// records across token refreshes.
//
// Stores are never released: the registry is the data, not a cache over it.
// It is meant for local runs and tests. With opaque tokens (no JWT secret)
// there is no subject, so every distinct token gets its own store for the
// life of the process.
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{stores: make(map[string]*Store)}
}

// ForSession returns the store of the session's subject, creating it on first use.
// Sessions without a subject are keyed by their token.
func (r *Registry) ForSession(session domain.Session) port.RecordStore {
	key := session.Subject
	if key == "" {
		key = session.Key()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stores[key]
	if !ok {
		s = New()
		r.stores[key] = s
	}
	return s
}

// Len returns the number of stores handed out so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}
