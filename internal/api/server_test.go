package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naveenk2131/AgriTrust/internal/anchor"
	"github.com/naveenk2131/AgriTrust/internal/config"
	"github.com/naveenk2131/AgriTrust/internal/insight"
	"github.com/naveenk2131/AgriTrust/internal/ledgerstore"
	"github.com/naveenk2131/AgriTrust/internal/model"
	"github.com/naveenk2131/AgriTrust/internal/registry"
)

// newTestHandler wires the full stack with a file store in a temp dir and an
// unconfigured anchor client, so every registration uses the fallback path.
func newTestHandler(t *testing.T) http.Handler {
	t.Helper()
	store, err := ledgerstore.NewFileStore(filepath.Join(t.TempDir(), "batches.json"))
	require.NoError(t, err)
	anchorer := anchor.NewClient("", "", time.Second)
	service := registry.New(store, anchorer)
	srv := New(&config.Config{Address: ":0"}, service, insight.NewGenerator(time.Now().UnixNano()))
	return srv.Handler()
}

type recordEnvelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    model.BatchRecord `json:"data"`
}

func registerSample(t *testing.T, handler http.Handler) model.BatchRecord {
	t.Helper()
	body := []byte(`{"farmerName":"A. Singh","cropName":"Wheat","quantity":500,"location":"Punjab","harvestDate":"2024-03-01"}`)
	req := httptest.NewRequest(http.MethodPost, "/batches", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var resp recordEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	return resp.Data
}

func TestRegisterBatch(t *testing.T) {
	handler := newTestHandler(t)
	record := registerSample(t, handler)

	assert.NotEmpty(t, record.BatchID)
	assert.Len(t, record.Fingerprint, 64)
	assert.True(t, record.AnchorFallbackUsed)
	assert.NotEmpty(t, record.AnchorReference)
	assert.Equal(t, model.StatusInTransit, record.TransportStatus)
}

func TestRegisterValidationFailure(t *testing.T) {
	handler := newTestHandler(t)
	body := []byte(`{"farmerName":"","cropName":"Wheat","quantity":500,"location":"Punjab","harvestDate":"2024-03-01"}`)
	req := httptest.NewRequest(http.MethodPost, "/batches", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	var resp envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Message)
}

func TestRegisterBadHarvestDate(t *testing.T) {
	handler := newTestHandler(t)
	body := []byte(`{"farmerName":"A. Singh","cropName":"Wheat","quantity":500,"location":"Punjab","harvestDate":"yesterday"}`)
	req := httptest.NewRequest(http.MethodPost, "/batches", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestTrackRoundTrip(t *testing.T) {
	handler := newTestHandler(t)
	created := registerSample(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/batches/"+created.BatchID, nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp recordEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, created.BatchID, resp.Data.BatchID)
	assert.Equal(t, created.Fingerprint, resp.Data.Fingerprint)
	assert.Equal(t, created.AnchorReference, resp.Data.AnchorReference)
}

func TestTrackNotFound(t *testing.T) {
	handler := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/batches/nonexistent-id", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code)
	var resp envelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "Batch not found", resp.Message)
}

func TestTransportUpdate(t *testing.T) {
	handler := newTestHandler(t)
	created := registerSample(t, handler)

	body := []byte(`{"status":"Delivered"}`)
	req := httptest.NewRequest(http.MethodPatch, "/batches/"+created.BatchID+"/transport", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp recordEnvelope
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, model.StatusDelivered, resp.Data.TransportStatus)

	// Unknown status is rejected.
	req = httptest.NewRequest(http.MethodPatch, "/batches/"+created.BatchID+"/transport", bytes.NewReader([]byte(`{"status":"Lost"}`)))
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestVerifyEndpoint(t *testing.T) {
	handler := newTestHandler(t)
	created := registerSample(t, handler)

	req := httptest.NewRequest(http.MethodGet, "/batches/"+created.BatchID+"/verify", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Success bool                  `json:"success"`
		Data    registry.Verification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Verified)
	assert.Equal(t, created.Fingerprint, resp.Data.Fingerprint)
	assert.False(t, resp.Data.ChainChecked)
}

func TestInsightsDashboard(t *testing.T) {
	handler := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/batches/dashboard/ai", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		Success bool           `json:"success"`
		Data    insight.Bundle `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Data.DemandForecast)
}

func TestHealthz(t *testing.T) {
	handler := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
