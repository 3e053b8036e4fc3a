package strategy_test

import (
	"strings"
	"testing"
	"time"

	"github.com/vitos/trade_signal_bot/internal/config"
	"github.com/vitos/trade_signal_bot/internal/domain"
	"github.com/vitos/trade_signal_bot/internal/strategy"
)

func barsFromCloses(closes ...float64) []domain.Bar {
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]domain.Bar, len(closes))
	for i, c := range closes {
		bars[i] = domain.Bar{
			Time:  base.Add(time.Duration(i) * 5 * time.Minute),
			Open:  c,
			High:  c + 1,
			Low:   c - 1,
			Close: c,
		}
	}
	return bars
}

func flatCloses(v float64, n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = v
	}
	return s
}

func TestNew_UnknownID(t *testing.T) {
	_, err := strategy.New(config.Strategy{ID: "quantum"}, nil)
	if err == nil {
		t.Fatal("expected error for unknown strategy id")
	}
}

func TestNew_KnownIDs(t *testing.T) {
	cfg := config.Strategy{
		EMA:           config.EMAParams{Fast: 9, Slow: 21},
		RSI:           config.RSIParams{Period: 14, Oversold: 30, Overbought: 70},
		MACD:          config.MACDParams{Fast: 12, Slow: 26, Signal: 9},
		TrendPullback: config.TrendPullbackParams{FastEMA: 50, SlowEMA: 200, PullbackEMA: 21, ATRPeriod: 14, StopLossATR: 1.5},
		Hybrid:        config.HybridParams{RSIPeriod: 14},
	}
	for _, id := range []string{"rsi", "ema-crossover", "macd", "trend-pullback", "hybrid-predictive"} {
		cfg.ID = id
		s, err := strategy.New(cfg, stubPredictor(0.5))
		if err != nil {
			t.Fatalf("strategy %q: %v", id, err)
		}
		if s.Name() == "" {
			t.Errorf("strategy %q has empty name", id)
		}
	}
}

// stubPredictor returns a fixed confidence.
type stubPredictor float64

func (p stubPredictor) Predict([]domain.Bar) float64 { return float64(p) }

// ── EMA crossover ──────────────────────────────────────────

func TestEMACross_BuyOnUpCross(t *testing.T) {
	s := strategy.NewEMACross(9, 21)

	// Flat history keeps both EMAs equal; the first up move pulls the fast
	// EMA above the slow one.
	bars := barsFromCloses(append(flatCloses(100, 40), 110)...)
	d := s.Analyze(bars, nil)
	if d.Signal != domain.SignalBuy {
		t.Fatalf("expected BUY, got %s (%s)", d.Signal, d.Reason)
	}
	if d.Metrics["ema_fast"] <= d.Metrics["ema_slow"] {
		t.Errorf("expected fast EMA above slow, got %v <= %v",
			d.Metrics["ema_fast"], d.Metrics["ema_slow"])
	}
}

func TestEMACross_SellOnDownCross(t *testing.T) {
	s := strategy.NewEMACross(9, 21)
	bars := barsFromCloses(append(flatCloses(100, 40), 90)...)
	d := s.Analyze(bars, nil)
	if d.Signal != domain.SignalSell {
		t.Fatalf("expected SELL, got %s (%s)", d.Signal, d.Reason)
	}
}

func TestEMACross_HoldWithoutCross(t *testing.T) {
	s := strategy.NewEMACross(9, 21)

	d := s.Analyze(barsFromCloses(flatCloses(100, 40)...), nil)
	if d.Signal != domain.SignalHold {
		t.Fatalf("expected HOLD on flat series, got %s", d.Signal)
	}

	// An established trend without a fresh crossing also holds.
	closes := flatCloses(100, 40)
	closes = append(closes, 110, 111, 112)
	d = s.Analyze(barsFromCloses(closes...), nil)
	if d.Signal != domain.SignalHold {
		t.Fatalf("expected HOLD after the cross already happened, got %s (%s)", d.Signal, d.Reason)
	}
}

func TestEMACross_WarmUpHolds(t *testing.T) {
	s := strategy.NewEMACross(9, 21)
	d := s.Analyze(barsFromCloses(flatCloses(100, 21)...), nil)
	if d.Signal != domain.SignalHold {
		t.Fatalf("expected HOLD during warm-up, got %s", d.Signal)
	}
}

// invertCloses reflects a series around its last value: rallies become
// sell-offs of the same magnitude and vice versa.
func invertCloses(closes []float64) []float64 {
	pivot := 2 * closes[len(closes)-1]
	out := make([]float64, len(closes))
	for i, c := range closes {
		out[i] = pivot - c
	}
	return out
}

func mirrored(s domain.Signal) domain.Signal {
	switch s {
	case domain.SignalBuy:
		return domain.SignalSell
	case domain.SignalSell:
		return domain.SignalBuy
	}
	return domain.SignalHold
}

// Crossover detection is antisymmetric: a price path reflected around its
// last close must produce the opposite signal.
func TestCrossovers_AntisymmetricUnderPriceInversion(t *testing.T) {
	fixtures := map[string][]float64{
		"up cross":   append(flatCloses(100, 50), 110),
		"down cross": append(flatCloses(100, 50), 90),
		"flat":       flatCloses(100, 51),
	}
	strategies := []strategy.Strategy{
		strategy.NewEMACross(9, 21),
		strategy.NewMACDCross(12, 26, 9),
	}

	for name, closes := range fixtures {
		for _, s := range strategies {
			got := s.Analyze(barsFromCloses(closes...), nil)
			inverted := s.Analyze(barsFromCloses(invertCloses(closes)...), nil)
			if inverted.Signal != mirrored(got.Signal) {
				t.Errorf("%s on %s: %s inverts to %s, want %s",
					s.Name(), name, got.Signal, inverted.Signal, mirrored(got.Signal))
			}
		}
	}
}

// ── RSI threshold ──────────────────────────────────────────

func TestRSIThreshold_CrossingIntoOversold(t *testing.T) {
	s := strategy.NewRSIThreshold(14, 30, 70)

	// A rising run followed by hard drops pushes the RSI from 100 down
	// through 30. Walking prefixes, the first BUY must be the crossing.
	closes := make([]float64, 0, 40)
	for i := 0; i < 16; i++ {
		closes = append(closes, 100+float64(i))
	}
	for i := 0; i < 24; i++ {
		closes = append(closes, 115-10*float64(i+1))
	}

	var first *domain.SignalDecision
	for n := 16; n <= len(closes); n++ {
		d := s.Analyze(barsFromCloses(closes[:n]...), nil)
		if d.Signal == domain.SignalBuy {
			first = &d
			break
		}
	}
	if first == nil {
		t.Fatal("expected a BUY somewhere in the falling run")
	}
	if !strings.Contains(first.Reason, "entered oversold") {
		t.Errorf("first BUY should be the crossing, got reason %q", first.Reason)
	}
}

func TestRSIThreshold_ExtremeWithoutCrossingStillSignals(t *testing.T) {
	s := strategy.NewRSIThreshold(14, 30, 70)

	// A monotonically falling series is oversold from the first evaluable
	// window, with no crossing ever observed.
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 1000 - 10*float64(i)
	}
	d := s.Analyze(barsFromCloses(closes...), nil)
	if d.Signal != domain.SignalBuy {
		t.Fatalf("expected BUY on persistent oversold, got %s (%s)", d.Signal, d.Reason)
	}

	// Mirror case: zero losses saturates the RSI at 100.
	up := make([]float64, 20)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	d = s.Analyze(barsFromCloses(up...), nil)
	if d.Signal != domain.SignalSell {
		t.Fatalf("expected SELL on persistent overbought, got %s (%s)", d.Signal, d.Reason)
	}
}

func TestRSIThreshold_NeutralHolds(t *testing.T) {
	s := strategy.NewRSIThreshold(14, 30, 70)

	closes := make([]float64, 41)
	for i := range closes {
		closes[i] = 100 + float64(i%2)
	}
	d := s.Analyze(barsFromCloses(closes...), nil)
	if d.Signal != domain.SignalHold {
		t.Fatalf("expected HOLD at RSI 50, got %s (%s)", d.Signal, d.Reason)
	}
	if got := d.Metrics["rsi"]; got < 40 || got > 60 {
		t.Errorf("expected RSI near the midpoint, got %v", got)
	}
}

// ── MACD crossover ─────────────────────────────────────────

func TestMACDCross_BuyOnBullishCross(t *testing.T) {
	s := strategy.NewMACDCross(12, 26, 9)
	bars := barsFromCloses(append(flatCloses(100, 50), 110)...)
	d := s.Analyze(bars, nil)
	if d.Signal != domain.SignalBuy {
		t.Fatalf("expected BUY, got %s (%s)", d.Signal, d.Reason)
	}
	if d.Metrics["histogram"] <= 0 {
		t.Errorf("expected positive histogram, got %v", d.Metrics["histogram"])
	}
}

func TestMACDCross_SellOnBearishCross(t *testing.T) {
	s := strategy.NewMACDCross(12, 26, 9)
	bars := barsFromCloses(append(flatCloses(100, 50), 90)...)
	d := s.Analyze(bars, nil)
	if d.Signal != domain.SignalSell {
		t.Fatalf("expected SELL, got %s (%s)", d.Signal, d.Reason)
	}
}

func TestMACDCross_FlatHolds(t *testing.T) {
	s := strategy.NewMACDCross(12, 26, 9)
	d := s.Analyze(barsFromCloses(flatCloses(100, 50)...), nil)
	if d.Signal != domain.SignalHold {
		t.Fatalf("expected HOLD on flat series, got %s", d.Signal)
	}
}

// ── Trend pullback ─────────────────────────────────────────

func TestTrendPullback_EntryNeedsAllThreeConditions(t *testing.T) {
	s := strategy.NewTrendPullback(3, 5, 3, 3, 1.5)

	// Uptrend, a dip below the pullback EMA, and a bullish candle.
	closes := make([]float64, 19)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	bars := barsFromCloses(closes...)
	bars = append(bars, domain.Bar{
		Time: bars[len(bars)-1].Time.Add(5 * time.Minute),
		Open: 17, High: 19, Low: 16.5, Close: 17.5,
	})
	d := s.Analyze(bars, nil)
	if d.Signal != domain.SignalBuy {
		t.Fatalf("expected BUY, got %s (%s)", d.Signal, d.Reason)
	}

	// Same bar but bearish (close below open) must not enter.
	bars[len(bars)-1].Open = 19
	d = s.Analyze(bars, nil)
	if d.Signal != domain.SignalHold {
		t.Fatalf("expected HOLD without confirmation candle, got %s", d.Signal)
	}
}

func TestTrendPullback_HardStopWhilePositioned(t *testing.T) {
	s := strategy.NewTrendPullback(3, 5, 3, 3, 1.5)

	bars := barsFromCloses(flatCloses(100, 9)...)
	bars = append(bars, domain.Bar{
		Time: bars[len(bars)-1].Time.Add(5 * time.Minute),
		Open: 95, High: 100, Low: 90, Close: 90,
	})
	pos := &domain.Position{Symbol: "BTC/USD", Side: domain.SideLong, Qty: 1, EntryPrice: 100}

	d := s.Analyze(bars, pos)
	if d.Signal != domain.SignalSell {
		t.Fatalf("expected SELL at hard stop, got %s (%s)", d.Signal, d.Reason)
	}
	if !strings.Contains(d.Reason, "stop loss hit") {
		t.Errorf("expected stop loss reason, got %q", d.Reason)
	}
}

func TestTrendPullback_TrailingExitOnMomentumLoss(t *testing.T) {
	s := strategy.NewTrendPullback(4, 6, 2, 2, 1.5)

	// Rise then fall: the short pullback EMA drops through the fast EMA.
	// Entry price 1 keeps the hard stop below any price on the way down.
	closes := []float64{10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
	for i := 0; i < 10; i++ {
		closes = append(closes, 20-2*float64(i+1))
	}
	pos := &domain.Position{Symbol: "BTC/USD", Side: domain.SideLong, Qty: 1, EntryPrice: 1}

	var first *domain.SignalDecision
	for n := 7; n <= len(closes); n++ {
		d := s.Analyze(barsFromCloses(closes[:n]...), pos)
		if d.Signal == domain.SignalSell {
			first = &d
			break
		}
	}
	if first == nil {
		t.Fatal("expected a trailing exit during the decline")
	}
	if !strings.Contains(first.Reason, "trailing exit") {
		t.Errorf("expected trailing exit reason, got %q", first.Reason)
	}
}

func TestTrendPullback_NoEntryWhilePositioned(t *testing.T) {
	s := strategy.NewTrendPullback(3, 5, 3, 3, 1.5)

	closes := make([]float64, 19)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	bars := barsFromCloses(closes...)
	bars = append(bars, domain.Bar{
		Time: bars[len(bars)-1].Time.Add(5 * time.Minute),
		Open: 17, High: 19, Low: 16.5, Close: 18,
	})
	pos := &domain.Position{Symbol: "BTC/USD", Side: domain.SideLong, Qty: 1, EntryPrice: 1}

	d := s.Analyze(bars, pos)
	if d.Signal == domain.SignalBuy {
		t.Fatalf("must not signal a fresh entry while positioned, got BUY (%s)", d.Reason)
	}
}

// ── Hybrid predictive ──────────────────────────────────────

func hybridBars() []domain.Bar {
	closes := make([]float64, 60)
	for i := range closes {
		closes[i] = 100 + float64(i%2)
	}
	return barsFromCloses(closes...)
}

func TestHybrid_BuyOnHighConfidence(t *testing.T) {
	s := strategy.NewHybrid(14, stubPredictor(0.9))
	d := s.Analyze(hybridBars(), nil)
	if d.Signal != domain.SignalBuy {
		t.Fatalf("expected BUY, got %s (%s)", d.Signal, d.Reason)
	}
	if d.Metrics["confidence"] != 0.9 {
		t.Errorf("expected confidence metric 0.9, got %v", d.Metrics["confidence"])
	}
}

func TestHybrid_HighConfidenceBlockedByHighRSI(t *testing.T) {
	s := strategy.NewHybrid(14, stubPredictor(0.9))

	up := make([]float64, 60)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	d := s.Analyze(barsFromCloses(up...), nil)
	if d.Signal == domain.SignalBuy {
		t.Fatalf("RSI guard must block the entry, got BUY (%s)", d.Reason)
	}
}

func TestHybrid_SellOnLowConfidenceOnlyWhenPositioned(t *testing.T) {
	s := strategy.NewHybrid(14, stubPredictor(0.2))

	d := s.Analyze(hybridBars(), nil)
	if d.Signal != domain.SignalHold {
		t.Fatalf("no position to exit, expected HOLD, got %s", d.Signal)
	}

	pos := &domain.Position{Symbol: "BTC/USD", Side: domain.SideLong, Qty: 1, EntryPrice: 100}
	d = s.Analyze(hybridBars(), pos)
	if d.Signal != domain.SignalSell {
		t.Fatalf("expected SELL on low confidence with a position, got %s (%s)", d.Signal, d.Reason)
	}
}

func TestHybrid_OverboughtOverride(t *testing.T) {
	s := strategy.NewHybrid(14, stubPredictor(0.5))

	up := make([]float64, 60)
	for i := range up {
		up[i] = 100 + float64(i)
	}
	pos := &domain.Position{Symbol: "BTC/USD", Side: domain.SideLong, Qty: 1, EntryPrice: 100}
	d := s.Analyze(barsFromCloses(up...), pos)
	if d.Signal != domain.SignalSell {
		t.Fatalf("expected overbought override SELL, got %s (%s)", d.Signal, d.Reason)
	}
	if !strings.Contains(d.Reason, "overbought override") {
		t.Errorf("expected override reason, got %q", d.Reason)
	}
}

func TestHybrid_WarmUpHolds(t *testing.T) {
	s := strategy.NewHybrid(14, stubPredictor(0.9))
	closes := flatCloses(100, 49)
	d := s.Analyze(barsFromCloses(closes...), nil)
	if d.Signal != domain.SignalHold {
		t.Fatalf("expected HOLD below the bar floor, got %s", d.Signal)
	}
}
