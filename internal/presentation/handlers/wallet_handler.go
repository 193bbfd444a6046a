package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/tokenarena/pnl-indexer/internal/infrastructure/gateway"
)

// BalanceSource reads live balances from the chain. Satisfied by
// gateway.ProviderPool.
type BalanceSource interface {
	NativeBalance(ctx context.Context, walletAddress string) (*big.Int, error)
	TokenBalance(ctx context.Context, tokenAddress, walletAddress string) (*big.Int, error)
}

// WalletHandler handles live wallet lookups against the provider pool.
// Balances are diagnostics, not accounting inputs; positions come from the
// trade ledger alone.
type WalletHandler struct {
	chain  BalanceSource
	logger *zap.Logger
}

// NewWalletHandler creates a new wallet handler
func NewWalletHandler(chain BalanceSource, logger *zap.Logger) *WalletHandler {
	return &WalletHandler{
		chain:  chain,
		logger: logger,
	}
}

// RegisterRoutes registers the wallet routes
func (h *WalletHandler) RegisterRoutes(r chi.Router) {
	r.Get("/wallets/{address}/balance", h.GetBalance)
}

// BalanceResponse is the API response for balance lookups. The balance is
// in the asset's smallest unit, as a decimal string.
type BalanceResponse struct {
	WalletAddress string `json:"wallet_address"`
	TokenAddress  string `json:"token_address,omitempty"`
	Balance       string `json:"balance"`
}

// GetBalance handles GET /wallets/{address}/balance. Without a token query
// parameter it returns the native balance; with one, the ERC-20 balance.
func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
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

	var (
		balance *big.Int
		err     error
	)
	if tokenAddress == "" {
		balance, err = h.chain.NativeBalance(ctx, address)
	} else {
		balance, err = h.chain.TokenBalance(ctx, tokenAddress, address)
	}
	if err != nil {
		if errors.Is(err, gateway.ErrProviderUnavailable) {
			h.respondError(w, http.StatusServiceUnavailable, "No provider available, retry later")
			return
		}
		h.logger.Error("Failed to get balance", zap.Error(err))
		h.respondError(w, http.StatusInternalServerError, "Failed to get balance")
		return
	}

	h.respondJSON(w, http.StatusOK, BalanceResponse{
		WalletAddress: address,
		TokenAddress:  tokenAddress,
		Balance:       balance.String(),
	})
}

func (h *WalletHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *WalletHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
