// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service layer
// from the concrete Record Store implementations.
package port

import (
	"context"

	"github.com/boddenberg/networth-bfa-go/internal/domain"
)

// RecordStore holds the transaction and asset/liability records of one session.
// Lists always return the full collection; ids are minted only here.
type RecordStore interface {
	ListTransactions(ctx context.Context) ([]domain.TransactionRecord, error)
	ListAssetsLiabilities(ctx context.Context) ([]domain.AssetLiabilityRecord, error)
	CreateTransaction(ctx context.Context, draft domain.TransactionDraft) (*domain.TransactionRecord, error)
	DeleteTransaction(ctx context.Context, id domain.RecordID) error
	CreateAssetLiability(ctx context.Context, draft domain.AssetLiabilityDraft) (*domain.AssetLiabilityRecord, error)
}

// RecordStoreFactory builds the Record Store bound to a session.
type RecordStoreFactory func(session domain.Session) RecordStore
