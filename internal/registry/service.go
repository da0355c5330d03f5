// Package registry orchestrates batch registration: validate, derive the
// fingerprint, anchor it, persist the record. It is the only path through
// which records are created, so no partial record can ever reach the store.
package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/naveenk2131/AgriTrust/internal/anchor"
	"github.com/naveenk2131/AgriTrust/internal/fingerprint"
	"github.com/naveenk2131/AgriTrust/internal/ledgerstore"
	"github.com/naveenk2131/AgriTrust/internal/model"
)

// ErrInternal is surfaced when persistence fails or an id collision survives
// the retry. It deliberately carries no internal detail.
var ErrInternal = errors.New("internal error")

// ValidationError reports caller-supplied input that is incomplete or out of
// range. It is an expected, recoverable-by-caller outcome.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Scheduler queues a background re-anchor attempt for a batch that had to
// use a fallback reference. Scheduling is best effort; a dropped attempt is
// harmless because the fallback reference remains valid.
type Scheduler interface {
	Schedule(ctx context.Context, batchID string)
}

// Input carries the five caller-supplied batch attributes.
type Input struct {
	FarmerName  string
	CropName    string
	Quantity    float64
	Location    string
	HarvestDate time.Time
}

// Service exposes the create/read contract over the deriver, the anchor
// adapter, and the record store.
type Service struct {
	store     ledgerstore.Store
	anchorer  anchor.Anchorer
	scheduler Scheduler
}

// New constructs a Service. anchorer must never be nil; use an unconfigured
// anchor.Client when no external ledger is available.
func New(store ledgerstore.Store, anchorer anchor.Anchorer) *Service {
	return &Service{store: store, anchorer: anchorer}
}

// SetScheduler enables background re-anchoring. Called during wiring, before
// the service starts handling requests.
func (s *Service) SetScheduler(sched Scheduler) {
	s.scheduler = sched
}

// Register creates a new batch record. Anchoring never fails, so for valid
// input the only failure class is the persistence layer.
func (s *Service) Register(ctx context.Context, in Input) (*model.BatchRecord, error) {
	if err := validate(in); err != nil {
		return nil, err
	}
	record, err := s.createOnce(ctx, in)
	if errors.Is(err, ledgerstore.ErrDuplicateKey) {
		// A uuid collision is statistically near-impossible; retry once with
		// a fresh identifier before giving up.
		log.Printf("duplicate batch id on create, retrying with fresh id")
		record, err = s.createOnce(ctx, in)
		if errors.Is(err, ledgerstore.ErrDuplicateKey) {
			log.Printf("duplicate batch id recurred on retry")
			return nil, ErrInternal
		}
	}
	if err != nil {
		return nil, err
	}
	if record.AnchorFallbackUsed && s.scheduler != nil && s.anchorer.Configured() {
		s.scheduler.Schedule(ctx, record.BatchID)
	}
	return record, nil
}

func (s *Service) createOnce(ctx context.Context, in Input) (*model.BatchRecord, error) {
	batchID := uuid.NewString()
	digest := fingerprint.Derive(in.FarmerName, in.CropName, in.Quantity, in.Location, in.HarvestDate, batchID)
	// Anchoring is bounded and absorbing: it always returns a usable
	// reference, real or fallback.
	result := s.anchorer.Anchor(ctx, batchID, digest)
	record := &model.BatchRecord{
		BatchID:            batchID,
		FarmerName:         in.FarmerName,
		CropName:           in.CropName,
		Quantity:           in.Quantity,
		Location:           in.Location,
		HarvestDate:        in.HarvestDate,
		Fingerprint:        digest,
		AnchorReference:    result.Reference,
		AnchorFallbackUsed: result.FallbackUsed,
		TransportStatus:    model.StatusInTransit,
	}
	if err := s.store.Create(ctx, record); err != nil {
		if errors.Is(err, ledgerstore.ErrDuplicateKey) {
			return nil, err
		}
		log.Printf("persist batch %s failed: %v", batchID, err)
		return nil, ErrInternal
	}
	return record, nil
}

// Track returns the record for batchID. Pure delegation to the store; a
// missing id is a normal negative result, not an exceptional failure.
func (s *Service) Track(ctx context.Context, batchID string) (*model.BatchRecord, error) {
	return s.store.FindByID(ctx, batchID)
}

// List returns every registered batch.
func (s *Service) List(ctx context.Context) ([]*model.BatchRecord, error) {
	return s.store.ListAll(ctx)
}

// SetTransportStatus moves a batch between transport states, refreshing
// updatedAt. The replacement is idempotent: setting the current status again
// is not an error.
func (s *Service) SetTransportStatus(ctx context.Context, batchID string, status model.TransportStatus) (*model.BatchRecord, error) {
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: "must be InTransit or Delivered"}
	}
	record, err := s.store.FindByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	record.TransportStatus = status
	if err := s.store.Update(ctx, record); err != nil {
		if errors.Is(err, ledgerstore.ErrNotFound) {
			return nil, err
		}
		log.Printf("update batch %s failed: %v", batchID, err)
		return nil, ErrInternal
	}
	return record, nil
}

// ChainVerifier is the optional read-side capability of an anchor adapter:
// adapters that can also query the external ledger implement it alongside
// Anchorer, and Verify picks it up by interface assertion rather than by
// depending on one concrete client type.
type ChainVerifier interface {
	VerifyOnChain(ctx context.Context, batchID string) (string, error)
	ExplorerURL(reference string) string
}

// The HTTP gateway client is the primary adapter and must keep satisfying
// the capability.
var _ ChainVerifier = (*anchor.Client)(nil)

// Verification is the read-side tamper check: the fingerprint is recomputed
// from the stored attributes and compared against the recorded one.
type Verification struct {
	Verified        bool   `json:"verified"`
	Fingerprint     string `json:"fingerprint"`
	AnchorReference string `json:"anchorReference"`
	ExplorerURL     string `json:"explorerUrl,omitempty"`
	// ChainChecked is false when the external ledger was unavailable or
	// unconfigured; ChainMatch is meaningful only when ChainChecked is true.
	ChainChecked bool `json:"chainChecked"`
	ChainMatch   bool `json:"chainMatch"`
}

// Verify recomputes the fingerprint for a stored batch and, when the ledger
// gateway is reachable, compares it with the on-chain copy as well.
func (s *Service) Verify(ctx context.Context, batchID string) (*Verification, error) {
	record, err := s.store.FindByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	recomputed := fingerprint.Derive(record.FarmerName, record.CropName, record.Quantity,
		record.Location, record.HarvestDate, record.BatchID)
	v := &Verification{
		Verified:        recomputed == record.Fingerprint,
		Fingerprint:     recomputed,
		AnchorReference: record.AnchorReference,
	}
	if verifier, ok := s.anchorer.(ChainVerifier); ok {
		v.ExplorerURL = verifier.ExplorerURL(record.AnchorReference)
		if s.anchorer.Configured() {
			if stored, err := verifier.VerifyOnChain(ctx, batchID); err == nil {
				v.ChainChecked = true
				v.ChainMatch = stored == record.Fingerprint
			} else {
				log.Printf("chain verification unavailable for batch %s: %v", batchID, err)
			}
		}
	}
	return v, nil
}

// Reanchor retries the external anchor for a batch that carries a fallback
// reference. The record is upgraded only on a genuine on-chain success; it is
// never degraded, and re-running against an already anchored batch is a
// no-op.
func (s *Service) Reanchor(ctx context.Context, batchID string) error {
	record, err := s.store.FindByID(ctx, batchID)
	if err != nil {
		return err
	}
	if !record.AnchorFallbackUsed {
		return nil
	}
	result := s.anchorer.Anchor(ctx, batchID, record.Fingerprint)
	if result.FallbackUsed {
		return fmt.Errorf("ledger still unavailable for batch %s", batchID)
	}
	record.AnchorReference = result.Reference
	record.AnchorFallbackUsed = false
	if err := s.store.Update(ctx, record); err != nil {
		return fmt.Errorf("persist re-anchored batch %s: %w", batchID, err)
	}
	log.Printf("batch %s re-anchored as %s", batchID, result.Reference)
	return nil
}

func validate(in Input) error {
	if in.FarmerName == "" {
		return &ValidationError{Field: "farmerName", Reason: "required"}
	}
	if in.CropName == "" {
		return &ValidationError{Field: "cropName", Reason: "required"}
	}
	if in.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}
	if in.Location == "" {
		return &ValidationError{Field: "location", Reason: "required"}
	}
	if in.HarvestDate.IsZero() {
		return &ValidationError{Field: "harvestDate", Reason: "required"}
	}
	return nil
}
