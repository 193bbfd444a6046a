package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tokenarena/pnl-indexer/internal/application/services"
)

// RegistrationHandler handles HTTP requests for contest registrations
// and leaderboards
type RegistrationHandler struct {
	service *services.RegistrationService
	logger  *zap.Logger
}

// NewRegistrationHandler creates a new registration handler
func NewRegistrationHandler(service *services.RegistrationService, logger *zap.Logger) *RegistrationHandler {
	return &RegistrationHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the registration routes
func (h *RegistrationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/registrations/{id}", h.GetStatus)
	r.Get("/contests/{contestID}/leaderboard", h.GetLeaderboard)
}

// GetStatus handles GET /registrations/{id}. This is the endpoint callers
// poll to observe indexing completion.
func (h *RegistrationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.respondError(w, http.StatusBadRequest, "Invalid registration id")
		return
	}

	response, err := h.service.GetStatus(ctx, id)
	if err != nil {
		h.logger.Error("Failed to get registration", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to get registration")
		return
	}
	if response == nil {
		h.respondError(w, http.StatusNotFound, "Registration not found")
		return
	}

	h.respondJSON(w, http.StatusOK, response)
}

// GetLeaderboard handles GET /contests/{contestID}/leaderboard
func (h *RegistrationHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	contestID, err := strconv.ParseInt(chi.URLParam(r, "contestID"), 10, 64)
	if err != nil || contestID <= 0 {
		h.respondError(w, http.StatusBadRequest, "Invalid contest id")
		return
	}

	limit := 50
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= 200 {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil && o >= 0 {
			offset = o
		}
	}

	response, err := h.service.GetLeaderboard(ctx, contestID, limit, offset)
	if err != nil {
		h.logger.Error("Failed to get leaderboard", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to get leaderboard")
		return
	}

	h.respondJSON(w, http.StatusOK, response)
}

func (h *RegistrationHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *RegistrationHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
