package dex

import "github.com/shopspring/decimal"

// EventPublisher receives market event notifications after the owning
// operation commits. Implementations must not block; the engine calls them
// synchronously on the operation path.
type EventPublisher interface {
	PublishMarketCreated(MarketCreatedEvent)
	PublishLiquidityChanged(LiquidityChangedEvent)
	PublishSwap(SwapEvent)
}

// MarketCreatedEvent announces a new market.
type MarketCreatedEvent struct {
	Asset        string          `json:"asset"`
	Creator      string          `json:"creator"`
	ReserveBase  decimal.Decimal `json:"reserve_base"`
	ReserveAsset decimal.Decimal `json:"reserve_asset"`
	SpotPrice    decimal.Decimal `json:"spot_price"`
}

// LiquidityChangedEvent announces an add or remove.
type LiquidityChangedEvent struct {
	Asset        string          `json:"asset"`
	Account      string          `json:"account"`
	Added        bool            `json:"added"`
	SharesDelta  decimal.Decimal `json:"shares_delta"`
	ReserveBase  decimal.Decimal `json:"reserve_base"`
	ReserveAsset decimal.Decimal `json:"reserve_asset"`
	TotalShares  decimal.Decimal `json:"total_shares"`
}

// SwapEvent announces an executed buy or sell.
type SwapEvent struct {
	Asset        string          `json:"asset"`
	Account      string          `json:"account"`
	Side         string          `json:"side"` // "buy" | "sell"
	AmountIn     decimal.Decimal `json:"amount_in"`
	AmountOut    decimal.Decimal `json:"amount_out"`
	Fee          decimal.Decimal `json:"fee"`
	ReserveBase  decimal.Decimal `json:"reserve_base"`
	ReserveAsset decimal.Decimal `json:"reserve_asset"`
	SpotPrice    decimal.Decimal `json:"spot_price"`
}

// Swap sides.
const (
	SideBuy  = "buy"
	SideSell = "sell"
)

func (e *Engine) publishMarketCreated(ev MarketCreatedEvent) {
	if e.events != nil {
		e.events.PublishMarketCreated(ev)
	}
}

func (e *Engine) publishLiquidityChanged(ev LiquidityChangedEvent) {
	if e.events != nil {
		e.events.PublishLiquidityChanged(ev)
	}
}

func (e *Engine) publishSwap(ev SwapEvent) {
	if e.events != nil {
		e.events.PublishSwap(ev)
	}
}
