package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/naveenk2131/AgriTrust/internal/config"
	"github.com/naveenk2131/AgriTrust/internal/insight"
	"github.com/naveenk2131/AgriTrust/internal/ledgerstore"
	"github.com/naveenk2131/AgriTrust/internal/model"
	"github.com/naveenk2131/AgriTrust/internal/registry"
)

// harvestDateLayout is the wire format for the harvestDate request field.
const harvestDateLayout = "2006-01-02"

// Server exposes HTTP endpoints for batch registration and tracking.
type Server struct {
	cfg      *config.Config
	service  *registry.Service
	insights *insight.Generator
	server   *http.Server
	once     sync.Once
}

// New constructs a Server.
func New(cfg *config.Config, service *registry.Service, insights *insight.Generator) *Server {
	return &Server{
		cfg:      cfg,
		service:  service,
		insights: insights,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:    s.cfg.Address,
			Handler: s.Handler(),
		}
	})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	log.Printf("api listening on %s", s.cfg.Address)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler builds the routed handler; exported so tests can drive it through
// httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/batches", s.handleBatches)
	mux.HandleFunc("/batches/", s.handleBatchRoute)
	return corsMiddleware(loggingMiddleware(mux))
}

// envelope is the response shape shared by every endpoint.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleBatches(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleRegister(w, r)
	case http.MethodGet:
		s.handleList(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleBatchRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/batches/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.NotFound(w, r)
		return
	}
	// The dashboard endpoint lives under the same prefix but is independent
	// of the ledger path.
	if parts[0] == "dashboard" && len(parts) == 2 && parts[1] == "ai" {
		s.handleInsights(w, r)
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		s.handleTrack(w, r, id)
		return
	}
	switch parts[1] {
	case "transport":
		s.handleTransport(w, r, id)
	case "verify":
		s.handleVerify(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

// registerRequest is the POST /batches body.
type registerRequest struct {
	FarmerName  string  `json:"farmerName"`
	CropName    string  `json:"cropName"`
	Quantity    float64 `json:"quantity"`
	Location    string  `json:"location"`
	HarvestDate string  `json:"harvestDate"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "invalid JSON body"})
		return
	}
	harvestDate, err := parseHarvestDate(req.HarvestDate)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "harvestDate must be an ISO calendar date"})
		return
	}
	record, err := s.service.Register(r.Context(), registry.Input{
		FarmerName:  req.FarmerName,
		CropName:    req.CropName,
		Quantity:    req.Quantity,
		Location:    req.Location,
		HarvestDate: harvestDate,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, envelope{
		Success: true,
		Message: "Batch created successfully",
		Data:    record,
	})
}

func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	record, err := s.service.Track(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: record})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	records, err := s.service.List(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: records})
}

// transportRequest is the PATCH /batches/{id}/transport body.
type transportRequest struct {
	Status model.TransportStatus `json:"status"`
}

func (s *Server) handleTransport(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPatch {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req transportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "invalid JSON body"})
		return
	}
	record, err := s.service.SetTransportStatus(r.Context(), id, req.Status)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: record})
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	verification, err := s.service.Verify(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: verification})
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// Dashboard insights describe the market at large, not one record.
	batch := model.BatchRecord{
		FarmerName: "Agricultural Analysis",
		CropName:   "General Produce",
		Quantity:   1000,
		Location:   "Global Market",
	}
	bundle := insight.FallbackBundle()
	if s.insights != nil {
		bundle = s.insights.Report(batch, time.Now())
	}
	respondJSON(w, http.StatusOK, envelope{Success: true, Data: bundle})
}

// respondError maps the service error taxonomy onto HTTP statuses without
// exposing internal detail.
func (s *Server) respondError(w http.ResponseWriter, err error) {
	var verr *registry.ValidationError
	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, envelope{Success: false, Message: verr.Error()})
	case errors.Is(err, ledgerstore.ErrNotFound):
		respondJSON(w, http.StatusNotFound, envelope{Success: false, Message: "Batch not found"})
	default:
		log.Printf("request failed: %v", err)
		respondJSON(w, http.StatusInternalServerError, envelope{Success: false, Message: "internal error"})
	}
}

func parseHarvestDate(value string) (time.Time, error) {
	if t, err := time.Parse(harvestDateLayout, value); err == nil {
		return t, nil
	}
	// Some clients send a full timestamp; accept it and keep the date part
	// meaningful.
	return time.Parse(time.RFC3339, value)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}
