package strategy

import (
	"fmt"

	"github.com/vitos/trade_signal_bot/internal/domain"
	"github.com/vitos/trade_signal_bot/internal/indicator"
)

// Confidence thresholds for the hybrid strategy. The predictor emits values
// near 1 for an expected up-move and near 0 for a down-move.
const (
	hybridBuyConfidence  = 0.60
	hybridSellConfidence = 0.40
	hybridOverboughtRSI  = 80.0
	hybridMinBars        = 50
)

// Hybrid combines a bounded RSI reading with the prediction capability's
// confidence score. RSI>80 while a position is open forces a SELL regardless
// of confidence.
type Hybrid struct {
	rsiPeriod int
	predictor domain.Predictor
}

func NewHybrid(rsiPeriod int, predictor domain.Predictor) *Hybrid {
	return &Hybrid{rsiPeriod: rsiPeriod, predictor: predictor}
}

func (s *Hybrid) Name() string {
	return fmt.Sprintf("hybrid-predictive(rsi=%d)", s.rsiPeriod)
}

func (s *Hybrid) Analyze(bars []domain.Bar, position *domain.Position) domain.SignalDecision {
	if len(bars) < hybridMinBars {
		return hold(lastClose(bars), "not enough data", nil)
	}

	closes := domain.Closes(bars)
	rsiNow, ok := indicator.RSI(closes, s.rsiPeriod)
	if !ok {
		return hold(lastClose(bars), "RSI not ready", nil)
	}

	confidence := s.predictor.Predict(bars)
	price := lastClose(bars)
	metrics := map[string]float64{"rsi": rsiNow, "confidence": confidence}
	reason := fmt.Sprintf("RSI=%.1f confidence=%.2f", rsiNow, confidence)

	switch {
	case confidence > hybridBuyConfidence && rsiNow < 70:
		return domain.SignalDecision{Signal: domain.SignalBuy, Reason: reason, Price: price, Metrics: metrics}
	case confidence < hybridSellConfidence && position != nil:
		return domain.SignalDecision{Signal: domain.SignalSell, Reason: reason, Price: price, Metrics: metrics}
	case position != nil && rsiNow > hybridOverboughtRSI:
		return domain.SignalDecision{
			Signal:  domain.SignalSell,
			Reason:  reason + " (overbought override)",
			Price:   price,
			Metrics: metrics,
		}
	}
	return hold(price, reason, metrics)
}
