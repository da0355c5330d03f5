// Package ledgerstore contains the durable keyed persistence layer for batch
// records. Two implementations share one contract: a single-file JSON store
// for standalone deployments and a Postgres store for multi-process ones.
package ledgerstore

import (
	"context"
	"errors"

	"github.com/naveenk2131/AgriTrust/internal/model"
)

var (
	// ErrNotFound is exported so callers elsewhere can compare errors using
	// errors.Is; Go encourages sentinel errors for simple cases.
	ErrNotFound = errors.New("batch not found")
	// ErrDuplicateKey signals a create against an already registered batchId.
	ErrDuplicateKey = errors.New("batch id already exists")
)

// Store is the persistence contract consumed by the registration service.
// All mutations to the same batchId are serialized by the implementation;
// readers always observe a complete pre- or post-write state.
type Store interface {
	// Create persists a new record, failing with ErrDuplicateKey when the
	// batchId is already present.
	Create(ctx context.Context, record *model.BatchRecord) error
	// FindByID returns the record for batchId or ErrNotFound.
	FindByID(ctx context.Context, batchID string) (*model.BatchRecord, error)
	// Update replaces the stored record with the same batchId, refreshing
	// updatedAt. Fails with ErrNotFound for unknown ids.
	Update(ctx context.Context, record *model.BatchRecord) error
	// ListAll returns every stored record.
	ListAll(ctx context.Context) ([]*model.BatchRecord, error)
}
