package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tokenarena/pnl-indexer/internal/application/services"
	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
)

// TradeHandler handles HTTP requests for the trade ledger
type TradeHandler struct {
	service *services.TradeService
	logger  *zap.Logger
}

// NewTradeHandler creates a new trade handler
func NewTradeHandler(service *services.TradeService, logger *zap.Logger) *TradeHandler {
	return &TradeHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the trade routes
func (h *TradeHandler) RegisterRoutes(r chi.Router) {
	r.Get("/trades", h.GetTrades)
	r.Get("/wallets/{address}/trades", h.GetWalletTrades)
}

// GetTrades handles GET /trades
func (h *TradeHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter := entities.DefaultTradeFilter()

	// Parse query parameters
	if v := r.URL.Query().Get("wallet"); v != "" {
		addr := strings.ToLower(v)
		filter.WalletAddress = &addr
	}
	if v := r.URL.Query().Get("token"); v != "" {
		addr := strings.ToLower(v)
		filter.TokenAddress = &addr
	}
	if v := r.URL.Query().Get("side"); v != "" {
		side := entities.TradeSide(strings.ToUpper(v))
		if !side.Valid() {
			h.respondError(w, http.StatusBadRequest, "Invalid side, expected BUY or SELL")
			return
		}
		filter.Side = &side
	}
	if v := r.URL.Query().Get("from_block"); v != "" {
		if block, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.FromBlock = &block
		}
	}
	if v := r.URL.Query().Get("to_block"); v != "" {
		if block, err := strconv.ParseInt(v, 10, 64); err == nil {
			filter.ToBlock = &block
		}
	}
	if v := r.URL.Query().Get("from_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.FromTime = &t
		}
	}
	if v := r.URL.Query().Get("to_time"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.ToTime = &t
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil && limit > 0 && limit <= 1000 {
			filter.Limit = limit
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if offset, err := strconv.Atoi(v); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}

	response, err := h.service.GetTrades(ctx, filter)
	if err != nil {
		h.logger.Error("Failed to get trades", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to get trades")
		return
	}

	h.respondJSON(w, http.StatusOK, response)
}

// GetWalletTrades handles GET /wallets/{address}/trades
func (h *TradeHandler) GetWalletTrades(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	address := chi.URLParam(r, "address")

	if !isValidAddress(address) {
		h.respondError(w, http.StatusBadRequest, "Invalid address format")
		return
	}

	tokenAddress := r.URL.Query().Get("token")
	if tokenAddress != "" && !isValidAddress(tokenAddress) {
		h.respondError(w, http.StatusBadRequest, "Invalid token address format")
		return
	}

	limit := 100
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil && l > 0 && l <= 1000 {
			limit = l
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if o, err := strconv.Atoi(v); err == nil && o >= 0 {
			offset = o
		}
	}

	response, err := h.service.GetWalletTrades(ctx, address, tokenAddress, limit, offset)
	if err != nil {
		h.logger.Error("Failed to get wallet trades", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to get trades")
		return
	}

	h.respondJSON(w, http.StatusOK, response)
}

func (h *TradeHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *TradeHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

func isValidAddress(addr string) bool {
	if len(addr) != 42 {
		return false
	}
	if !strings.HasPrefix(addr, "0x") {
		return false
	}
	return true
}
