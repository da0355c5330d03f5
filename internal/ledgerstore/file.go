package ledgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/naveenk2131/AgriTrust/internal/model"
)

// FileStore keeps every record in one JSON file. Each operation loads the
// whole collection and each mutation rewrites it, which is fine for the small
// cardinalities of this domain but is the scalability ceiling: every write
// serializes the entire dataset.
//
// RWMutex lets us differentiate read locks (multiple concurrent readers) from
// write locks (single writer). The write lock covers the full
// read-modify-write cycle so interleaved mutations cannot lose updates, and
// the rewrite goes through a temp file + rename so readers never observe a
// partially written collection.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

// NewFileStore creates the store, ensuring the parent directory exists.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Create persists a new record, stamping createdAt/updatedAt.
func (s *FileStore) Create(ctx context.Context, record *model.BatchRecord) error {
	s.mu.Lock()
	// defer schedules code to run when the function returns, guaranteeing the
	// mutex unlock even if the function exits early.
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return err
	}
	for _, existing := range records {
		if existing.BatchID == record.BatchID {
			return ErrDuplicateKey
		}
	}
	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	records = append(records, record)
	return s.save(records)
}

// FindByID returns a record copy.
func (s *FileStore) FindByID(ctx context.Context, batchID string) (*model.BatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if rec.BatchID == batchID {
			// Returning a copy prevents callers from mutating stored state.
			out := *rec
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

// Update replaces the stored record with a matching batchId.
func (s *FileStore) Update(ctx context.Context, record *model.BatchRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return err
	}
	for i, existing := range records {
		if existing.BatchID == record.BatchID {
			record.CreatedAt = existing.CreatedAt
			record.UpdatedAt = time.Now().UTC()
			records[i] = record
			return s.save(records)
		}
	}
	return ErrNotFound
}

// ListAll returns copies of every stored record.
func (s *FileStore) ListAll(ctx context.Context) ([]*model.BatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	records, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]*model.BatchRecord, 0, len(records))
	for _, rec := range records {
		c := *rec
		out = append(out, &c)
	}
	return out, nil
}

// load reads the full collection. A missing file means an empty ledger.
func (s *FileStore) load() ([]*model.BatchRecord, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read ledger file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var records []*model.BatchRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode ledger file: %w", err)
	}
	return records, nil
}

// save rewrites the whole collection atomically: write to a temp file in the
// same directory, then rename over the live one. Rename is atomic on POSIX
// filesystems, so a reader sees either the old or the new collection.
func (s *FileStore) save(records []*model.BatchRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode ledger file: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "ledger-*.json")
	if err != nil {
		return fmt.Errorf("create temp ledger file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write temp ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp ledger file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace ledger file: %w", err)
	}
	return nil
}
