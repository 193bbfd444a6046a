package swapfeed

import (
	"time"

	"github.com/shopspring/decimal"
)

// Leg is one side of a swap: the asset and its USD valuation at trade time
type Leg struct {
	TokenAddress string          `json:"token_address"`
	Symbol       string          `json:"symbol"`
	Amount       decimal.Decimal `json:"amount"`
	USDValue     decimal.Decimal `json:"usd_value"`
}

// RawSwap is a swap event as the feed reports it. The buyer wallet receives
// the buy leg, the seller wallet gives up the sell leg; either leg may
// reference the tracked token.
type RawSwap struct {
	TxHash        string    `json:"tx_hash"`
	BlockNumber   int64     `json:"block_number"`
	BlockTime     time.Time `json:"block_time"`
	BuyerAddress  string    `json:"buyer_address"`
	SellerAddress string    `json:"seller_address"`
	Buy           Leg       `json:"buy"`
	Sell          Leg       `json:"sell"`
	Source        string    `json:"source"`
}

// pageResponse is one page of the feed's swap listing
type pageResponse struct {
	Swaps   []RawSwap `json:"swaps"`
	Page    int       `json:"page"`
	HasMore bool      `json:"has_more"`
}
