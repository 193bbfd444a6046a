package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tokenarena/pnl-indexer/internal/application/services"
)

// PositionHandler handles HTTP requests for derived positions
type PositionHandler struct {
	service *services.PositionService
	logger  *zap.Logger
}

// NewPositionHandler creates a new position handler
func NewPositionHandler(service *services.PositionService, logger *zap.Logger) *PositionHandler {
	return &PositionHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the position routes
func (h *PositionHandler) RegisterRoutes(r chi.Router) {
	r.Get("/positions/{walletAddress}/{tokenAddress}", h.GetPosition)
	r.Get("/wallets/{address}/positions", h.GetWalletPositions)
	r.Get("/tokens/{address}/positions", h.GetTopPositions)
}

// GetPosition handles GET /positions/{walletAddress}/{tokenAddress}
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	walletAddress := chi.URLParam(r, "walletAddress")
	tokenAddress := chi.URLParam(r, "tokenAddress")

	if !isValidAddress(walletAddress) || !isValidAddress(tokenAddress) {
		h.respondError(w, http.StatusBadRequest, "Invalid address format")
		return
	}

	// An explicit mark price values the open inventory at the caller's
	// quote instead of the latest trade price.
	var markPrice *decimal.Decimal
	if v := r.URL.Query().Get("mark_price"); v != "" {
		price, err := decimal.NewFromString(v)
		if err != nil || price.Sign() <= 0 {
			h.respondError(w, http.StatusBadRequest, "Invalid mark_price, expected a positive decimal")
			return
		}
		markPrice = &price
	}

	response, err := h.service.GetPosition(ctx, walletAddress, tokenAddress, markPrice)
	if err != nil {
		h.logger.Error("Failed to get position", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to get position")
		return
	}
	if response == nil {
		h.respondError(w, http.StatusNotFound, "Position not found")
		return
	}

	h.respondJSON(w, http.StatusOK, response)
}

// GetWalletPositions handles GET /wallets/{address}/positions
func (h *PositionHandler) GetWalletPositions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := chi.URLParam(r, "address")

	if !isValidAddress(address) {
		h.respondError(w, http.StatusBadRequest, "Invalid address format")
		return
	}

	response, err := h.service.GetWalletPositions(ctx, address)
	if err != nil {
		h.logger.Error("Failed to get wallet positions", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to get positions")
		return
	}

	h.respondJSON(w, http.StatusOK, response)
}

// GetTopPositions handles GET /tokens/{address}/positions
func (h *PositionHandler) GetTopPositions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := chi.URLParam(r, "address")

	if !isValidAddress(address) {
		h.respondError(w, http.StatusBadRequest, "Invalid token address format")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	response, err := h.service.GetTopPositions(ctx, address, limit)
	if err != nil {
		h.logger.Error("Failed to get top positions", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to get positions")
		return
	}

	h.respondJSON(w, http.StatusOK, response)
}

func (h *PositionHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *PositionHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
