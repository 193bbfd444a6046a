package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tokenarena/pnl-indexer/internal/application/services"
	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
	"github.com/tokenarena/pnl-indexer/internal/testutil"
)

func setupPositionHandler(positionRepo *testutil.MockPositionRepository, tradeRepo *testutil.MockTradeRepository) *PositionHandler {
	logger := zap.NewNop()
	positionService := services.NewPositionService(positionRepo, tradeRepo, nil, logger)
	return NewPositionHandler(positionService, logger)
}

func positionRouter(handler *PositionHandler) *chi.Mux {
	r := chi.NewRouter()
	handler.RegisterRoutes(r)
	return r
}

func TestPositionHandler_GetPosition(t *testing.T) {
	t.Run("returns position valued at mark price", func(t *testing.T) {
		positionRepo := testutil.NewMockPositionRepository()
		tradeRepo := testutil.NewMockTradeRepository()

		position := testutil.CreateTestPosition()
		position.RemainingAmount = decimal.RequireFromString("30")
		position.CostBasisUSD = decimal.RequireFromString("60")
		position.RealizedPnLUSD = decimal.RequireFromString("220")
		positionRepo.AddPosition(position)

		handler := setupPositionHandler(positionRepo, tradeRepo)
		r := positionRouter(handler)

		url := "/positions/" + testutil.AliceAddress + "/" + testutil.ArenaTokenAddress + "?mark_price=5"
		req := httptest.NewRequest("GET", url, nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}

		var response services.PositionResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response.Data.RemainingAmount != "30" {
			t.Errorf("expected remaining 30, got %s", response.Data.RemainingAmount)
		}
		// 30*5 - 60
		if response.Data.UnrealizedPnLUSD == nil || *response.Data.UnrealizedPnLUSD != "90" {
			t.Errorf("expected unrealized 90, got %v", response.Data.UnrealizedPnLUSD)
		}
		if response.Data.CurrentPnLUSD == nil || *response.Data.CurrentPnLUSD != "310" {
			t.Errorf("expected current 310, got %v", response.Data.CurrentPnLUSD)
		}
	})

	t.Run("returns 404 for unknown position", func(t *testing.T) {
		handler := setupPositionHandler(testutil.NewMockPositionRepository(), testutil.NewMockTradeRepository())
		r := positionRouter(handler)

		url := "/positions/" + testutil.BobAddress + "/" + testutil.ArenaTokenAddress
		req := httptest.NewRequest("GET", url, nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", w.Code)
		}
	})

	t.Run("rejects an invalid mark price", func(t *testing.T) {
		handler := setupPositionHandler(testutil.NewMockPositionRepository(), testutil.NewMockTradeRepository())
		r := positionRouter(handler)

		url := "/positions/" + testutil.AliceAddress + "/" + testutil.ArenaTokenAddress + "?mark_price=-1"
		req := httptest.NewRequest("GET", url, nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})

	t.Run("returns error for invalid address", func(t *testing.T) {
		handler := setupPositionHandler(testutil.NewMockPositionRepository(), testutil.NewMockTradeRepository())
		r := positionRouter(handler)

		req := httptest.NewRequest("GET", "/positions/not-an-address/"+testutil.ArenaTokenAddress, nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})
}

func TestPositionHandler_GetWalletPositions(t *testing.T) {
	t.Run("returns all wallet positions", func(t *testing.T) {
		positionRepo := testutil.NewMockPositionRepository()
		positionRepo.AddPosition(testutil.CreateTestPosition())
		positionRepo.AddPosition(testutil.CreateTestPosition(testutil.PositionWithToken(testutil.PepeTokenAddress)))
		positionRepo.AddPosition(testutil.CreateTestPosition(testutil.PositionWithWallet(testutil.BobAddress)))

		handler := setupPositionHandler(positionRepo, testutil.NewMockTradeRepository())
		r := positionRouter(handler)

		req := httptest.NewRequest("GET", "/wallets/"+testutil.AliceAddress+"/positions", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}

		var response services.PositionListResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response.Total != 2 {
			t.Errorf("expected 2 positions, got %d", response.Total)
		}
	})

	t.Run("returns error when repository fails", func(t *testing.T) {
		positionRepo := testutil.NewMockPositionRepository()
		positionRepo.GetByWalletFunc = func(ctx context.Context, walletAddress string) ([]entities.Position, error) {
			return nil, errors.New("database error")
		}

		handler := setupPositionHandler(positionRepo, testutil.NewMockTradeRepository())
		r := positionRouter(handler)

		req := httptest.NewRequest("GET", "/wallets/"+testutil.AliceAddress+"/positions", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", w.Code)
		}
	})
}

func TestPositionHandler_GetTopPositions(t *testing.T) {
	t.Run("returns ranked positions for a token", func(t *testing.T) {
		positionRepo := testutil.NewMockPositionRepository()
		positionRepo.AddPosition(testutil.CreateTestPosition(testutil.PositionWithRealizedPnL("100")))
		positionRepo.AddPosition(testutil.CreateTestPosition(
			testutil.PositionWithWallet(testutil.BobAddress),
			testutil.PositionWithRealizedPnL("500"),
		))

		handler := setupPositionHandler(positionRepo, testutil.NewMockTradeRepository())
		r := positionRouter(handler)

		req := httptest.NewRequest("GET", "/tokens/"+testutil.ArenaTokenAddress+"/positions?limit=10", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", w.Code)
		}

		var response services.PositionListResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response.Total != 2 {
			t.Fatalf("expected 2 positions, got %d", response.Total)
		}
		if response.Data[0].WalletAddress != testutil.BobAddress {
			t.Errorf("expected best position first, got %s", response.Data[0].WalletAddress)
		}
	})

	t.Run("returns error for invalid token address", func(t *testing.T) {
		handler := setupPositionHandler(testutil.NewMockPositionRepository(), testutil.NewMockTradeRepository())
		r := positionRouter(handler)

		req := httptest.NewRequest("GET", "/tokens/xyz/positions", nil)
		w := httptest.NewRecorder()

		r.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", w.Code)
		}
	})
}
