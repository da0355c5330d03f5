package registry

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naveenk2131/AgriTrust/internal/anchor"
	"github.com/naveenk2131/AgriTrust/internal/ledgerstore"
	"github.com/naveenk2131/AgriTrust/internal/model"
)

// Compile-time check that the stub satisfies the adapter contract.
var _ anchor.Anchorer = (*stubAnchorer)(nil)

// stubAnchorer is a hand-rolled test double in place of a live gateway.
type stubAnchorer struct {
	configured bool
	fallback   bool
	calls      int
}

func (a *stubAnchorer) Anchor(ctx context.Context, batchID, fp string) anchor.Result {
	a.calls++
	if a.fallback {
		return anchor.Result{Reference: "0xfallback-" + batchID, FallbackUsed: true}
	}
	return anchor.Result{Reference: "0xreal-" + batchID, FallbackUsed: false}
}

func (a *stubAnchorer) Configured() bool { return a.configured }

func newService(t *testing.T, anchorer anchor.Anchorer) *Service {
	t.Helper()
	store, err := ledgerstore.NewFileStore(filepath.Join(t.TempDir(), "batches.json"))
	require.NoError(t, err)
	return New(store, anchorer)
}

func validInput() Input {
	return Input{
		FarmerName:  "A. Singh",
		CropName:    "Wheat",
		Quantity:    500,
		Location:    "Punjab",
		HarvestDate: time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := newService(t, &stubAnchorer{})
	ctx := context.Background()

	cases := []struct {
		name  string
		tweak func(*Input)
		field string
	}{
		{"missing farmer", func(in *Input) { in.FarmerName = "" }, "farmerName"},
		{"missing crop", func(in *Input) { in.CropName = "" }, "cropName"},
		{"zero quantity", func(in *Input) { in.Quantity = 0 }, "quantity"},
		{"negative quantity", func(in *Input) { in.Quantity = -5 }, "quantity"},
		{"missing location", func(in *Input) { in.Location = "" }, "location"},
		{"missing harvest date", func(in *Input) { in.HarvestDate = time.Time{} }, "harvestDate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validInput()
			tc.tweak(&in)
			_, err := svc.Register(ctx, in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			// No partial side effects: the store stays empty.
			records, lerr := svc.List(ctx)
			require.NoError(t, lerr)
			assert.Empty(t, records)
		})
	}
}

func TestRegisterRoundTrip(t *testing.T) {
	svc := newService(t, &stubAnchorer{})
	ctx := context.Background()

	created, err := svc.Register(ctx, validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, created.BatchID)
	assert.Len(t, created.Fingerprint, 64)
	assert.Equal(t, model.StatusInTransit, created.TransportStatus)
	assert.Equal(t, "0xreal-"+created.BatchID, created.AnchorReference)
	assert.False(t, created.AnchorFallbackUsed)
	assert.False(t, created.UpdatedAt.Before(created.CreatedAt))

	tracked, err := svc.Track(ctx, created.BatchID)
	require.NoError(t, err)
	assert.Equal(t, created.BatchID, tracked.BatchID)
	assert.Equal(t, created.Fingerprint, tracked.Fingerprint)
	assert.Equal(t, created.AnchorReference, tracked.AnchorReference)
	assert.Equal(t, created.CreatedAt, tracked.CreatedAt)
}

func TestRegisterFallbackAlwaysCompletes(t *testing.T) {
	svc := newService(t, &stubAnchorer{fallback: true})
	ctx := context.Background()

	created, err := svc.Register(ctx, validInput())
	require.NoError(t, err)
	assert.True(t, created.AnchorFallbackUsed)
	assert.NotEmpty(t, created.AnchorReference)
}

func TestTrackNotFound(t *testing.T) {
	svc := newService(t, &stubAnchorer{})
	_, err := svc.Track(context.Background(), "nonexistent-id")
	assert.ErrorIs(t, err, ledgerstore.ErrNotFound)
}

func TestRegisterConcurrentUniqueIDs(t *testing.T) {
	svc := newService(t, &stubAnchorer{})
	ctx := context.Background()

	const n = 16
	var wg sync.WaitGroup
	ids := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in := validInput()
			in.FarmerName = fmt.Sprintf("Farmer %d", i)
			rec, err := svc.Register(ctx, in)
			if err != nil {
				t.Errorf("register %d: %v", i, err)
				return
			}
			ids <- rec.BatchID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "batch id %s issued twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)

	records, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, records, n)
}

func TestSetTransportStatus(t *testing.T) {
	svc := newService(t, &stubAnchorer{})
	ctx := context.Background()

	created, err := svc.Register(ctx, validInput())
	require.NoError(t, err)

	updated, err := svc.SetTransportStatus(ctx, created.BatchID, model.StatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, model.StatusDelivered, updated.TransportStatus)
	assert.False(t, updated.UpdatedAt.Before(created.CreatedAt))

	_, err = svc.SetTransportStatus(ctx, created.BatchID, model.TransportStatus("Teleported"))
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)

	_, err = svc.SetTransportStatus(ctx, "nonexistent-id", model.StatusDelivered)
	assert.ErrorIs(t, err, ledgerstore.ErrNotFound)
}

func TestVerifyDetectsTampering(t *testing.T) {
	anchorer := &stubAnchorer{}
	store, err := ledgerstore.NewFileStore(filepath.Join(t.TempDir(), "batches.json"))
	require.NoError(t, err)
	svc := New(store, anchorer)
	ctx := context.Background()

	created, err := svc.Register(ctx, validInput())
	require.NoError(t, err)

	clean, err := svc.Verify(ctx, created.BatchID)
	require.NoError(t, err)
	assert.True(t, clean.Verified)
	assert.Equal(t, created.Fingerprint, clean.Fingerprint)

	// Mutate an attribute behind the service's back; the recomputed
	// fingerprint must no longer match the recorded one.
	tampered, err := store.FindByID(ctx, created.BatchID)
	require.NoError(t, err)
	tampered.Quantity = 9999
	require.NoError(t, store.Update(ctx, tampered))

	dirty, err := svc.Verify(ctx, created.BatchID)
	require.NoError(t, err)
	assert.False(t, dirty.Verified)
}

// chainStubAnchorer is a non-gateway adapter that also exposes the chain
// verification capability.
type chainStubAnchorer struct {
	stubAnchorer
	storedHash string
	verifyErr  error
}

var _ ChainVerifier = (*chainStubAnchorer)(nil)

func (a *chainStubAnchorer) VerifyOnChain(ctx context.Context, batchID string) (string, error) {
	return a.storedHash, a.verifyErr
}

func (a *chainStubAnchorer) ExplorerURL(reference string) string {
	return "https://explorer.example.org/tx/" + reference
}

func TestVerifyUsesChainCapability(t *testing.T) {
	// Any adapter implementing ChainVerifier participates in chain checks,
	// not just the concrete HTTP gateway client.
	anchorer := &chainStubAnchorer{stubAnchorer: stubAnchorer{configured: true}}
	svc := newService(t, anchorer)
	ctx := context.Background()

	created, err := svc.Register(ctx, validInput())
	require.NoError(t, err)

	anchorer.storedHash = created.Fingerprint
	v, err := svc.Verify(ctx, created.BatchID)
	require.NoError(t, err)
	assert.True(t, v.ChainChecked)
	assert.True(t, v.ChainMatch)
	assert.Equal(t, "https://explorer.example.org/tx/"+created.AnchorReference, v.ExplorerURL)

	// A diverging on-chain hash is reported as a mismatch.
	anchorer.storedHash = "something-else"
	v, err = svc.Verify(ctx, created.BatchID)
	require.NoError(t, err)
	assert.True(t, v.ChainChecked)
	assert.False(t, v.ChainMatch)

	// An unreachable chain leaves the check unperformed, not failed.
	anchorer.verifyErr = errors.New("gateway down")
	v, err = svc.Verify(ctx, created.BatchID)
	require.NoError(t, err)
	assert.False(t, v.ChainChecked)
}

func TestReanchorUpgradesRecord(t *testing.T) {
	anchorer := &stubAnchorer{fallback: true, configured: true}
	svc := newService(t, anchorer)
	ctx := context.Background()

	created, err := svc.Register(ctx, validInput())
	require.NoError(t, err)
	require.True(t, created.AnchorFallbackUsed)

	// Still down: the record keeps its fallback reference.
	err = svc.Reanchor(ctx, created.BatchID)
	assert.Error(t, err)

	// Gateway recovers.
	anchorer.fallback = false
	require.NoError(t, svc.Reanchor(ctx, created.BatchID))

	got, err := svc.Track(ctx, created.BatchID)
	require.NoError(t, err)
	assert.False(t, got.AnchorFallbackUsed)
	assert.Equal(t, "0xreal-"+created.BatchID, got.AnchorReference)

	// Second run is a no-op, not another anchor call.
	calls := anchorer.calls
	require.NoError(t, svc.Reanchor(ctx, created.BatchID))
	assert.Equal(t, calls, anchorer.calls)
}

// recordingScheduler captures scheduled batch ids.
type recordingScheduler struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingScheduler) Schedule(ctx context.Context, batchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, batchID)
}

func TestRegisterSchedulesReanchorOnFallback(t *testing.T) {
	anchorer := &stubAnchorer{fallback: true, configured: true}
	svc := newService(t, anchorer)
	sched := &recordingScheduler{}
	svc.SetScheduler(sched)

	created, err := svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	assert.Equal(t, []string{created.BatchID}, sched.ids)

	// A real anchor success must not schedule anything.
	anchorer.fallback = false
	_, err = svc.Register(context.Background(), validInput())
	require.NoError(t, err)
	assert.Len(t, sched.ids, 1)
}
