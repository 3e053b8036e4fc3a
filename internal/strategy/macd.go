package strategy

import (
	"fmt"

	"github.com/vitos/trade_signal_bot/internal/domain"
	"github.com/vitos/trade_signal_bot/internal/indicator"
)

// MACDCross signals BUY on a bullish crossover of the MACD line over its
// signal line and SELL on the bearish crossover.
type MACDCross struct {
	fast   int
	slow   int
	signal int
}

func NewMACDCross(fast, slow, signal int) *MACDCross {
	return &MACDCross{fast: fast, slow: slow, signal: signal}
}

func (s *MACDCross) Name() string {
	return fmt.Sprintf("macd(%d/%d/%d)", s.fast, s.slow, s.signal)
}

func (s *MACDCross) Analyze(bars []domain.Bar, _ *domain.Position) domain.SignalDecision {
	closes := domain.Closes(bars)
	if len(closes) < s.slow+s.signal+2 {
		return hold(lastClose(bars), "not enough data", nil)
	}

	current, okNow := indicator.MACD(closes, s.fast, s.slow, s.signal)
	previous, okPrev := indicator.MACD(closes[:len(closes)-1], s.fast, s.slow, s.signal)
	if !okNow || !okPrev {
		return hold(lastClose(bars), "MACD not ready", nil)
	}

	price := lastClose(bars)
	metrics := map[string]float64{
		"macd_line":   current.Line,
		"signal_line": current.Signal,
		"histogram":   current.Histogram,
	}

	bullishCross := previous.Line <= previous.Signal && current.Line > current.Signal
	bearishCross := previous.Line >= previous.Signal && current.Line < current.Signal

	switch {
	case bullishCross:
		return domain.SignalDecision{
			Signal:  domain.SignalBuy,
			Reason:  "MACD bullish crossover",
			Price:   price,
			Metrics: metrics,
		}
	case bearishCross:
		return domain.SignalDecision{
			Signal:  domain.SignalSell,
			Reason:  "MACD bearish crossover",
			Price:   price,
			Metrics: metrics,
		}
	}
	return hold(price, "no MACD crossover", metrics)
}
