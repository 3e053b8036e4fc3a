package strategy

import (
	"fmt"

	"github.com/vitos/trade_signal_bot/internal/domain"
	"github.com/vitos/trade_signal_bot/internal/indicator"
)

// EMACross signals BUY when the fast EMA crosses from at-or-below to above
// the slow EMA between the previous and current bar, SELL on the opposite
// crossing, otherwise HOLD.
type EMACross struct {
	fast int
	slow int
}

func NewEMACross(fast, slow int) *EMACross {
	return &EMACross{fast: fast, slow: slow}
}

func (s *EMACross) Name() string {
	return fmt.Sprintf("ema-crossover(%d/%d)", s.fast, s.slow)
}

func (s *EMACross) Analyze(bars []domain.Bar, _ *domain.Position) domain.SignalDecision {
	closes := domain.Closes(bars)
	if len(closes) < s.slow+1 {
		return hold(lastClose(bars), "not enough data", nil)
	}

	fastNow, okFN := indicator.EMA(closes, s.fast)
	slowNow, okSN := indicator.EMA(closes, s.slow)
	fastPrev, okFP := indicator.EMA(closes[:len(closes)-1], s.fast)
	slowPrev, okSP := indicator.EMA(closes[:len(closes)-1], s.slow)
	if !okFN || !okSN || !okFP || !okSP {
		return hold(lastClose(bars), "indicator not ready", nil)
	}

	price := lastClose(bars)
	metrics := map[string]float64{"ema_fast": fastNow, "ema_slow": slowNow}

	crossedUp := fastPrev <= slowPrev && fastNow > slowNow
	crossedDown := fastPrev >= slowPrev && fastNow < slowNow

	switch {
	case crossedUp:
		return domain.SignalDecision{
			Signal:  domain.SignalBuy,
			Reason:  fmt.Sprintf("EMA%d crossed above EMA%d", s.fast, s.slow),
			Price:   price,
			Metrics: metrics,
		}
	case crossedDown:
		return domain.SignalDecision{
			Signal:  domain.SignalSell,
			Reason:  fmt.Sprintf("EMA%d crossed below EMA%d", s.fast, s.slow),
			Price:   price,
			Metrics: metrics,
		}
	}
	return hold(price, "no crossover", metrics)
}
