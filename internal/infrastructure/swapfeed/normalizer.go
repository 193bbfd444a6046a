package swapfeed

import (
	"fmt"
	"strings"

	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
)

// normalizeLeg turns one swap leg into a Trade. The guards reject legs the
// accounting engine cannot price: zero or negative amounts and negative USD
// values.
func normalizeLeg(swap RawSwap, leg Leg, side entities.TradeSide, walletAddress string) (*entities.Trade, error) {
	wallet := strings.ToLower(strings.TrimSpace(walletAddress))
	if wallet == "" {
		return nil, fmt.Errorf("missing wallet address")
	}
	if swap.TxHash == "" {
		return nil, fmt.Errorf("missing tx hash")
	}
	if leg.Amount.Sign() <= 0 {
		return nil, fmt.Errorf("non-positive amount: %s", leg.Amount)
	}
	if leg.USDValue.Sign() < 0 {
		return nil, fmt.Errorf("negative usd value: %s", leg.USDValue)
	}

	return &entities.Trade{
		WalletAddress: wallet,
		TokenAddress:  strings.ToLower(leg.TokenAddress),
		Side:          side,
		TokenAmount:   leg.Amount,
		USDValue:      leg.USDValue,
		PriceUSD:      leg.USDValue.Div(leg.Amount),
		BlockNumber:   swap.BlockNumber,
		BlockTime:     swap.BlockTime,
		TxHash:        strings.ToLower(swap.TxHash),
		Source:        swap.Source,
	}, nil
}

// NormalizeSwap emits one Trade per leg that references the tracked token:
// a matching buy leg is a BUY for the buyer wallet, a matching sell leg a
// SELL for the seller wallet.
func NormalizeSwap(swap RawSwap, tokenAddress string) []entities.Trade {
	token := strings.ToLower(tokenAddress)
	trades := make([]entities.Trade, 0, 2)

	if strings.ToLower(swap.Buy.TokenAddress) == token {
		if trade, err := normalizeLeg(swap, swap.Buy, entities.TradeSideBuy, swap.BuyerAddress); err == nil {
			trades = append(trades, *trade)
		}
	}
	if strings.ToLower(swap.Sell.TokenAddress) == token {
		if trade, err := normalizeLeg(swap, swap.Sell, entities.TradeSideSell, swap.SellerAddress); err == nil {
			trades = append(trades, *trade)
		}
	}

	return trades
}

// NormalizeSwaps normalizes a batch of swaps against one tracked token.
// Returns the trades plus the indices of swaps that yielded none, so the
// caller can record how much of the feed was unusable.
func NormalizeSwaps(swaps []RawSwap, tokenAddress string) ([]entities.Trade, []int) {
	trades := make([]entities.Trade, 0, len(swaps))
	skippedIndices := make([]int, 0)

	for i, swap := range swaps {
		normalized := NormalizeSwap(swap, tokenAddress)
		if len(normalized) == 0 {
			skippedIndices = append(skippedIndices, i)
			continue
		}
		trades = append(trades, normalized...)
	}

	return trades, skippedIndices
}
