// Package accounting implements FIFO cost-basis replay over a trade ledger.
// It is pure computation: no I/O, no clock, no logger.
package accounting

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
)

// lot is an open acquisition waiting to be consumed by later sells.
type lot struct {
	amount      decimal.Decimal
	unitCostUSD decimal.Decimal
}

// Result is the complete derived state of one (wallet, token) pair.
type Result struct {
	RemainingAmount decimal.Decimal
	CostBasisUSD    decimal.Decimal
	RealizedPnLUSD  decimal.Decimal

	// OverSoldAmount is the total quantity disposed without a matching lot.
	// Those units carry zero cost basis, so their full proceeds are realized
	// gain. Non-zero means the ledger starts mid-history for this wallet.
	OverSoldAmount decimal.Decimal

	TradeCount     int
	LastTradeBlock int64
}

// Replay folds the full trade history of one (wallet, token) pair into a
// Result. The input order does not matter: trades are sorted by
// (block_number, tx_hash, side) before replay, BUY before SELL within a
// transaction, so repeated replays of the same ledger are byte-identical.
func Replay(trades []entities.Trade) Result {
	sorted := make([]entities.Trade, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber < b.BlockNumber
		}
		if a.TxHash != b.TxHash {
			return a.TxHash < b.TxHash
		}
		return a.Side < b.Side
	})

	res := Result{
		RemainingAmount: decimal.Zero,
		CostBasisUSD:    decimal.Zero,
		RealizedPnLUSD:  decimal.Zero,
		OverSoldAmount:  decimal.Zero,
		TradeCount:      len(sorted),
	}

	var lots []lot
	for _, t := range sorted {
		if t.BlockNumber > res.LastTradeBlock {
			res.LastTradeBlock = t.BlockNumber
		}
		if t.TokenAmount.Sign() <= 0 {
			continue
		}

		unitPrice := t.USDValue.Div(t.TokenAmount)

		switch t.Side {
		case entities.TradeSideBuy:
			lots = append(lots, lot{amount: t.TokenAmount, unitCostUSD: unitPrice})

		case entities.TradeSideSell:
			remaining := t.TokenAmount
			for remaining.Sign() > 0 && len(lots) > 0 {
				front := &lots[0]
				consumed := decimal.Min(remaining, front.amount)

				proceeds := consumed.Mul(unitPrice)
				cost := consumed.Mul(front.unitCostUSD)
				res.RealizedPnLUSD = res.RealizedPnLUSD.Add(proceeds.Sub(cost))

				front.amount = front.amount.Sub(consumed)
				remaining = remaining.Sub(consumed)
				if front.amount.Sign() <= 0 {
					lots = lots[1:]
				}
			}
			// Units beyond the held inventory: zero cost basis, full
			// proceeds count as gain.
			if remaining.Sign() > 0 {
				res.RealizedPnLUSD = res.RealizedPnLUSD.Add(remaining.Mul(unitPrice))
				res.OverSoldAmount = res.OverSoldAmount.Add(remaining)
			}
		}
	}

	for _, l := range lots {
		res.RemainingAmount = res.RemainingAmount.Add(l.amount)
		res.CostBasisUSD = res.CostBasisUSD.Add(l.amount.Mul(l.unitCostUSD))
	}
	return res
}

// UnrealizedPnL values the still-held amount at the given price against its
// cost basis. Callers choose the mark price; the engine does not.
func UnrealizedPnL(remainingAmount, costBasisUSD, priceUSD decimal.Decimal) decimal.Decimal {
	return remainingAmount.Mul(priceUSD).Sub(costBasisUSD)
}
