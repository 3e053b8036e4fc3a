package domain

import (
	"context"
	"time"
)

// OrderSide is the direction of an order submission.
type OrderSide string

const (
	OrderBuy  OrderSide = "buy"
	OrderSell OrderSide = "sell"
)

// OrderHandle identifies an accepted order at the broker.
type OrderHandle struct {
	ID     string    `json:"id"`
	Symbol string    `json:"symbol"`
	Qty    float64   `json:"qty"`
	Side   OrderSide `json:"side"`
}

// Broker defines the capability surface the bot consumes from an exchange.
type Broker interface {
	GetAccount(ctx context.Context) (Account, error)
	GetPositions(ctx context.Context) ([]Position, error)
	// GetBars returns at most limit bars ordered ascending by time.
	GetBars(ctx context.Context, symbol string, limit int) ([]Bar, error)
	GetLatestPrice(ctx context.Context, symbol string) (float64, error)
	// PlaceOrder returns (nil, nil) when the broker rejects or skips the
	// order; that is a no-op for the caller, not an error.
	PlaceOrder(ctx context.Context, symbol string, qty float64, side OrderSide) (*OrderHandle, error)
	// ClosePosition is best-effort; callers log failures rather than
	// propagating them.
	ClosePosition(ctx context.Context, symbol string) error
}

// BarRepository caches historical bars keyed by (symbol, timeframe, time).
type BarRepository interface {
	UpsertBars(ctx context.Context, symbol, timeframe string, bars []Bar) error
	GetBars(ctx context.Context, symbol, timeframe string, from, to time.Time) ([]Bar, error)
}

// TradeRepository persists executed trades.
type TradeRepository interface {
	SaveTrade(ctx context.Context, trade TradeRecord) error
	ListTrades(ctx context.Context, limit int) ([]TradeRecord, error)
}

// Predictor supplies a directional confidence score in [0,1] for the hybrid
// strategy. Implementations return a neutral 0.5 when no model is available.
type Predictor interface {
	Predict(bars []Bar) float64
}

// Broadcaster receives the aggregate state after every tick. Delivery is
// fire-and-forget, at most once per tick.
type Broadcaster interface {
	Publish(snapshot Snapshot)
}
