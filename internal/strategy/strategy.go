// Package strategy contains the interchangeable decision units that turn a
// bar window into a BUY/SELL/HOLD signal.
package strategy

import (
	"fmt"
	"strings"

	"github.com/vitos/trade_signal_bot/internal/config"
	"github.com/vitos/trade_signal_bot/internal/domain"
)

// Strategy evaluates a bar window (plus the open position for the symbol, if
// any) and produces a decision. Implementations are pure: deterministic for a
// fixed input, no hidden state, and they return HOLD rather than failing when
// indicators are not yet warmed up.
type Strategy interface {
	Name() string
	Analyze(bars []domain.Bar, position *domain.Position) domain.SignalDecision
}

// Enumerated strategy ids accepted in configuration.
const (
	IDRSI           = "rsi"
	IDEMACrossover  = "ema-crossover"
	IDMACD          = "macd"
	IDTrendPullback = "trend-pullback"
	IDHybrid        = "hybrid-predictive"
)

// New builds the strategy selected by cfg.ID. An unknown id is a fatal
// configuration error; there is no safe default decision unit.
func New(cfg config.Strategy, predictor domain.Predictor) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.ID)) {
	case IDRSI:
		return NewRSIThreshold(cfg.RSI.Period, cfg.RSI.Oversold, cfg.RSI.Overbought), nil
	case IDEMACrossover:
		return NewEMACross(cfg.EMA.Fast, cfg.EMA.Slow), nil
	case IDMACD:
		return NewMACDCross(cfg.MACD.Fast, cfg.MACD.Slow, cfg.MACD.Signal), nil
	case IDTrendPullback:
		p := cfg.TrendPullback
		return NewTrendPullback(p.FastEMA, p.SlowEMA, p.PullbackEMA, p.ATRPeriod, p.StopLossATR), nil
	case IDHybrid:
		return NewHybrid(cfg.Hybrid.RSIPeriod, predictor), nil
	default:
		return nil, fmt.Errorf("unknown strategy %q (supported: %s, %s, %s, %s, %s)",
			cfg.ID, IDRSI, IDEMACrossover, IDMACD, IDTrendPullback, IDHybrid)
	}
}

func lastClose(bars []domain.Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	return bars[len(bars)-1].Close
}

func hold(price float64, reason string, metrics map[string]float64) domain.SignalDecision {
	return domain.SignalDecision{
		Signal:  domain.SignalHold,
		Reason:  reason,
		Price:   price,
		Metrics: metrics,
	}
}
