package strategy

import (
	"fmt"

	"github.com/vitos/trade_signal_bot/internal/domain"
	"github.com/vitos/trade_signal_bot/internal/indicator"
)

// RSIThreshold signals BUY when the RSI crosses down into the oversold zone
// and SELL when it crosses up into the overbought zone. If no crossing was
// observed (for instance on the very first evaluation) an extreme reading
// still signals on its own, so an extreme state is never missed; the
// orchestrator's already-open gate is what prevents duplicate entries while
// the RSI stays beyond a threshold.
type RSIThreshold struct {
	period     int
	oversold   float64
	overbought float64
}

func NewRSIThreshold(period int, oversold, overbought float64) *RSIThreshold {
	return &RSIThreshold{period: period, oversold: oversold, overbought: overbought}
}

func (s *RSIThreshold) Name() string {
	return fmt.Sprintf("rsi(%d,%v/%v)", s.period, s.oversold, s.overbought)
}

func (s *RSIThreshold) Analyze(bars []domain.Bar, _ *domain.Position) domain.SignalDecision {
	closes := domain.Closes(bars)
	if len(closes) < s.period+2 {
		return hold(lastClose(bars), "not enough data", nil)
	}

	rsiNow, ok := indicator.RSI(closes, s.period)
	if !ok {
		return hold(lastClose(bars), "RSI not ready", nil)
	}
	rsiPrev, okPrev := indicator.RSI(closes[:len(closes)-1], s.period)

	price := lastClose(bars)
	metrics := map[string]float64{"rsi": rsiNow}

	switch {
	case okPrev && rsiPrev >= s.oversold && rsiNow < s.oversold:
		return domain.SignalDecision{
			Signal:  domain.SignalBuy,
			Reason:  fmt.Sprintf("RSI entered oversold (%.2f < %.0f)", rsiNow, s.oversold),
			Price:   price,
			Metrics: metrics,
		}
	case okPrev && rsiPrev <= s.overbought && rsiNow > s.overbought:
		return domain.SignalDecision{
			Signal:  domain.SignalSell,
			Reason:  fmt.Sprintf("RSI entered overbought (%.2f > %.0f)", rsiNow, s.overbought),
			Price:   price,
			Metrics: metrics,
		}
	case rsiNow < s.oversold:
		return domain.SignalDecision{
			Signal:  domain.SignalBuy,
			Reason:  fmt.Sprintf("RSI oversold (%.2f)", rsiNow),
			Price:   price,
			Metrics: metrics,
		}
	case rsiNow > s.overbought:
		return domain.SignalDecision{
			Signal:  domain.SignalSell,
			Reason:  fmt.Sprintf("RSI overbought (%.2f)", rsiNow),
			Price:   price,
			Metrics: metrics,
		}
	}
	return hold(price, fmt.Sprintf("RSI neutral (%.2f)", rsiNow), metrics)
}
