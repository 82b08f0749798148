package rpc

import (
	"encoding/json"
	"log/slog"

	"github.com/LeJamon/goAMMd/internal/core/dex"
)

// Publisher adapts engine events onto the websocket hub. Each event goes
// out as one JSON text frame tagged with its stream type.
type Publisher struct {
	hub *Hub
	log *slog.Logger
}

var _ dex.EventPublisher = (*Publisher)(nil)

// NewPublisher returns a Publisher broadcasting through the given hub.
func NewPublisher(hub *Hub, log *slog.Logger) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{hub: hub, log: log}
}

type eventFrame struct {
	Type  string `json:"type"`
	Event any    `json:"event"`
}

func (p *Publisher) broadcast(eventType string, event any) {
	data, err := json.Marshal(eventFrame{Type: eventType, Event: event})
	if err != nil {
		p.log.Error("failed to marshal event", "type", eventType, "err", err)
		return
	}
	p.hub.Broadcast(data)
}

func (p *Publisher) PublishMarketCreated(ev dex.MarketCreatedEvent) {
	p.broadcast("market_created", ev)
}

func (p *Publisher) PublishLiquidityChanged(ev dex.LiquidityChangedEvent) {
	p.broadcast("liquidity_changed", ev)
}

func (p *Publisher) PublishSwap(ev dex.SwapEvent) {
	p.broadcast("swap", ev)
}
