package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tokenarena/pnl-indexer/internal/application/services"
)

// TokenHandler handles HTTP requests for tracked tokens
type TokenHandler struct {
	service *services.TokenService
	logger  *zap.Logger
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(service *services.TokenService, logger *zap.Logger) *TokenHandler {
	return &TokenHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the token routes
func (h *TokenHandler) RegisterRoutes(r chi.Router) {
	r.Get("/tokens", h.GetTokens)
	r.Get("/tokens/{address}", h.GetToken)
	r.Post("/tokens", h.RegisterToken)
	r.Post("/tokens/{address}/refresh-metadata", h.RefreshMetadata)
}

// RegisterTokenRequest is the body of POST /tokens
type RegisterTokenRequest struct {
	Address      string `json:"address"`
	GenesisBlock int64  `json:"genesis_block"`
}

// GetTokens handles GET /tokens
func (h *TokenHandler) GetTokens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response, err := h.service.GetTokens(ctx)
	if err != nil {
		h.logger.Error("Failed to get tokens", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to get tokens")
		return
	}

	h.respondJSON(w, http.StatusOK, response)
}

// GetToken handles GET /tokens/{address}
func (h *TokenHandler) GetToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := chi.URLParam(r, "address")

	if !isValidAddress(address) {
		h.respondError(w, http.StatusBadRequest, "Invalid address format")
		return
	}

	response, err := h.service.GetToken(ctx, address)
	if err != nil {
		h.logger.Error("Failed to get token", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to get token")
		return
	}
	if response == nil {
		h.respondError(w, http.StatusNotFound, "Token not found")
		return
	}

	h.respondJSON(w, http.StatusOK, response)
}

// RegisterToken handles POST /tokens
func (h *TokenHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req RegisterTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Address = strings.TrimSpace(req.Address)
	if !isValidAddress(req.Address) {
		h.respondError(w, http.StatusBadRequest, "Invalid address format")
		return
	}
	if req.GenesisBlock < 0 {
		h.respondError(w, http.StatusBadRequest, "genesis_block must not be negative")
		return
	}

	response, err := h.service.RegisterToken(ctx, req.Address, req.GenesisBlock)
	if err != nil {
		h.logger.Error("Failed to register token", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to register token")
		return
	}

	h.respondJSON(w, http.StatusCreated, response)
}

// RefreshMetadata handles POST /tokens/{address}/refresh
func (h *TokenHandler) RefreshMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := chi.URLParam(r, "address")

	if !isValidAddress(address) {
		h.respondError(w, http.StatusBadRequest, "Invalid address format")
		return
	}

	response, err := h.service.RefreshMetadata(ctx, address)
	if err != nil {
		h.logger.Error("Failed to refresh token metadata", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to refresh token metadata")
		return
	}
	if response == nil {
		h.respondError(w, http.StatusNotFound, "Token not found")
		return
	}

	h.respondJSON(w, http.StatusOK, response)
}

func (h *TokenHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *TokenHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
