package domain

import "time"

// Signal is a discrete trading decision.
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// SignalDecision is the immutable result of one strategy evaluation.
// Metrics carries the indicator values that drove the decision so the
// dashboard can show why a signal fired.
type SignalDecision struct {
	Symbol  string             `json:"symbol"`
	Signal  Signal             `json:"signal"`
	Reason  string             `json:"reason"`
	Price   float64            `json:"price"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
	At      time.Time          `json:"at"`
}

// Quantity is either an exact amount or an explicit close-entire-position
// marker, so downstream consumers never have to parse a sentinel string.
type Quantity struct {
	Amount         float64 `json:"amount,omitempty"`
	EntirePosition bool    `json:"entire_position,omitempty"`
}

func QuantityOf(amount float64) Quantity {
	return Quantity{Amount: amount}
}

func EntirePosition() Quantity {
	return Quantity{EntirePosition: true}
}

// TradeRecord is an executed (or simulated) trade, append-only.
type TradeRecord struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Action      string    `json:"action"`
	Price       float64   `json:"price"`
	Qty         Quantity  `json:"qty"`
	RealizedPnL float64   `json:"realized_pnl,omitempty"`
	At          time.Time `json:"at"`
}

// ErrorRecord is a capped observability entry for per-symbol failures.
type ErrorRecord struct {
	Symbol  string    `json:"symbol,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Snapshot is the full aggregate bot state pushed to dashboard clients after
// every tick. It is always a deep copy; receivers may hold it indefinitely.
type Snapshot struct {
	Running   bool             `json:"running"`
	LastTick  time.Time        `json:"last_tick"`
	Account   Account          `json:"account"`
	Positions []Position       `json:"positions"`
	Signals   []SignalDecision `json:"signals"`
	Trades    []TradeRecord    `json:"trades"`
	Errors    []ErrorRecord    `json:"errors"`
}
