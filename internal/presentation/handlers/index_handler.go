package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tokenarena/pnl-indexer/internal/application/services"
	"github.com/tokenarena/pnl-indexer/internal/infrastructure/gateway"
)

// ProviderHealthSource reports the provider pool's track record.
// Satisfied by gateway.ProviderPool.
type ProviderHealthSource interface {
	Health() []gateway.ProviderHealth
}

// IndexHandler handles indexing triggers and the job registry
type IndexHandler struct {
	service   *services.IndexingService
	tracker   *services.JobTracker
	providers ProviderHealthSource
	logger    *zap.Logger
}

// NewIndexHandler creates a new index handler
func NewIndexHandler(
	service *services.IndexingService,
	tracker *services.JobTracker,
	providers ProviderHealthSource,
	logger *zap.Logger,
) *IndexHandler {
	return &IndexHandler{
		service:   service,
		tracker:   tracker,
		providers: providers,
		logger:    logger,
	}
}

// RegisterRoutes registers the indexing routes
func (h *IndexHandler) RegisterRoutes(r chi.Router) {
	r.Post("/index", h.Trigger)
	r.Get("/jobs", h.GetJobs)
	r.Get("/jobs/{id}", h.GetJob)
	r.Get("/providers", h.GetProviders)
}

// JobListResponse is the job registry snapshot
type JobListResponse struct {
	Jobs  []services.Job        `json:"jobs"`
	Stats services.TrackerStats `json:"stats"`
}

// Trigger handles POST /index. It answers immediately: 202 with the job id
// to poll, whether the trigger started a job or joined a running one.
func (h *IndexHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req services.IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !isValidAddress(req.WalletAddress) || !isValidAddress(req.TokenAddress) {
		h.respondError(w, http.StatusBadRequest, "Invalid wallet or token address format")
		return
	}

	ack, err := h.service.Trigger(ctx, req)
	if err != nil {
		if errors.Is(err, services.ErrQueueFull) {
			h.respondError(w, http.StatusServiceUnavailable, "Indexing queue is full, retry later")
			return
		}
		h.logger.Error("Failed to trigger indexing", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to trigger indexing")
		return
	}

	h.respondJSON(w, http.StatusAccepted, ack)
}

// GetJobs handles GET /jobs
func (h *IndexHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	response := JobListResponse{
		Jobs:  h.tracker.Snapshot(),
		Stats: h.tracker.Stats(),
	}
	h.respondJSON(w, http.StatusOK, response)
}

// GetJob handles GET /jobs/{id}
func (h *IndexHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	job, ok := h.tracker.Get(id)
	if !ok {
		h.respondError(w, http.StatusNotFound, "Job not found")
		return
	}

	h.respondJSON(w, http.StatusOK, job)
}

// GetProviders handles GET /providers
func (h *IndexHandler) GetProviders(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"providers": h.providers.Health(),
	})
}

func (h *IndexHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *IndexHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
