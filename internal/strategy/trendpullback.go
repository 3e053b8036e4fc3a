package strategy

import (
	"fmt"

	"github.com/vitos/trade_signal_bot/internal/domain"
	"github.com/vitos/trade_signal_bot/internal/indicator"
)

// TrendPullback enters on three conjunctive conditions: a long-horizon
// uptrend (fast EMA above slow EMA), price pulled back below a medium EMA,
// and a bullish confirmation candle. While a position is open it only manages
// the exit: a hard stop at entry - stopATR*ATR, or a trailing exit when the
// medium EMA crosses below the fast EMA (momentum loss). It never evaluates
// entries while a position is open.
type TrendPullback struct {
	fastEMA     int
	slowEMA     int
	pullbackEMA int
	atrPeriod   int
	stopATR     float64
}

func NewTrendPullback(fastEMA, slowEMA, pullbackEMA, atrPeriod int, stopATR float64) *TrendPullback {
	return &TrendPullback{
		fastEMA:     fastEMA,
		slowEMA:     slowEMA,
		pullbackEMA: pullbackEMA,
		atrPeriod:   atrPeriod,
		stopATR:     stopATR,
	}
}

func (s *TrendPullback) Name() string {
	return fmt.Sprintf("trend-pullback(%d/%d/%d)", s.fastEMA, s.slowEMA, s.pullbackEMA)
}

func (s *TrendPullback) Analyze(bars []domain.Bar, position *domain.Position) domain.SignalDecision {
	if len(bars) < s.slowEMA+1 || len(bars) < s.atrPeriod+1 {
		return hold(lastClose(bars), "not enough data", nil)
	}

	closes := domain.Closes(bars)

	fastNow, okF := indicator.EMA(closes, s.fastEMA)
	slowNow, okS := indicator.EMA(closes, s.slowEMA)
	pullbackNow, okP := indicator.EMA(closes, s.pullbackEMA)
	pullbackPrev, okPP := indicator.EMA(closes[:len(closes)-1], s.pullbackEMA)
	fastPrev, okFP := indicator.EMA(closes[:len(closes)-1], s.fastEMA)
	atrNow, okA := indicator.ATR(bars, s.atrPeriod)
	if !okF || !okS || !okP || !okPP || !okFP || !okA {
		return hold(lastClose(bars), "indicators not ready", nil)
	}

	lastBar := bars[len(bars)-1]
	price := lastBar.Close

	metrics := map[string]float64{
		"ema_fast":     fastNow,
		"ema_slow":     slowNow,
		"ema_pullback": pullbackNow,
		"atr":          atrNow,
	}

	if position != nil {
		stopLoss := position.EntryPrice - atrNow*s.stopATR
		if price <= stopLoss {
			return domain.SignalDecision{
				Signal:  domain.SignalSell,
				Reason:  fmt.Sprintf("stop loss hit (%.4f)", stopLoss),
				Price:   price,
				Metrics: metrics,
			}
		}
		// Momentum loss: medium EMA drops through the fast EMA. Captures
		// extended runs without capping the upside at a fixed target.
		if pullbackPrev >= fastPrev && pullbackNow < fastNow {
			return domain.SignalDecision{
				Signal:  domain.SignalSell,
				Reason:  fmt.Sprintf("trailing exit: EMA%d crossed below EMA%d", s.pullbackEMA, s.fastEMA),
				Price:   price,
				Metrics: metrics,
			}
		}
		return hold(price, "position open, managing trailing risk", metrics)
	}

	isUptrend := fastNow > slowNow
	isPullback := price < pullbackNow
	isBullishCandle := price > lastBar.Open

	if isUptrend && isPullback && isBullishCandle {
		return domain.SignalDecision{
			Signal:  domain.SignalBuy,
			Reason:  fmt.Sprintf("uptrend + pullback to EMA%d + confirmation", s.pullbackEMA),
			Price:   price,
			Metrics: metrics,
		}
	}
	return hold(price, "waiting for pullback to value", metrics)
}
