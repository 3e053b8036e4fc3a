// Package indicator provides pure technical analysis functions over ordered
// price series. Every function reports ok=false when the input is too short;
// that is the normal warm-up state, not an error.
package indicator

import (
	"math"

	"github.com/vitos/trade_signal_bot/internal/domain"
)

func mean(series []float64) float64 {
	sum := 0.0
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

// SMA is the simple moving average of the last period values.
func SMA(series []float64, period int) (float64, bool) {
	if period <= 0 || len(series) < period {
		return 0, false
	}
	return mean(series[len(series)-period:]), true
}

// EMA is the exponential moving average with smoothing k = 2/(period+1),
// seeded with the simple average of the first period values.
func EMA(series []float64, period int) (float64, bool) {
	if period <= 0 || len(series) < period {
		return 0, false
	}
	k := 2.0 / float64(period+1)
	ema := mean(series[:period])
	for i := period; i < len(series); i++ {
		ema = series[i]*k + ema*(1-k)
	}
	return ema, true
}

// RSI is Wilder's smoothed relative strength index. It needs period+1 values;
// the average gain/loss are seeded from the first period deltas and then
// smoothed with avg = (avg*(period-1) + value) / period. Output is in
// [0, 100]; when the average loss is zero the RSI saturates at 100.
func RSI(series []float64, period int) (float64, bool) {
	if period <= 0 || len(series) < period+1 {
		return 0, false
	}

	gains, losses := 0.0, 0.0
	for i := 1; i <= period; i++ {
		diff := series[i] - series[i-1]
		if diff >= 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}
	avgGain := gains / float64(period)
	avgLoss := losses / float64(period)

	for i := period + 1; i < len(series); i++ {
		diff := series[i] - series[i-1]
		gain, loss := 0.0, 0.0
		if diff >= 0 {
			gain = diff
		} else {
			loss = -diff
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100, true
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// MACDResult carries the MACD line, its signal line, and their difference.
type MACDResult struct {
	Line      float64
	Signal    float64
	Histogram float64
}

// MACD computes the fast/slow EMA difference and a further EMA of that
// difference (seeded as a simple average over the first signal values).
// It needs at least slow+signal values.
func MACD(series []float64, fast, slow, signal int) (MACDResult, bool) {
	if fast <= 0 || slow <= 0 || signal <= 0 || len(series) < slow+signal {
		return MACDResult{}, false
	}

	kFast := 2.0 / float64(fast+1)
	kSlow := 2.0 / float64(slow+1)
	kSignal := 2.0 / float64(signal+1)

	emaSlow := mean(series[:slow])
	var emaFast float64
	macdLine := make([]float64, 0, len(series)-slow)

	for i := slow; i < len(series); i++ {
		if i == slow {
			emaFast = mean(series[i-fast : i])
		} else {
			emaFast = series[i]*kFast + emaFast*(1-kFast)
		}
		emaSlow = series[i]*kSlow + emaSlow*(1-kSlow)
		macdLine = append(macdLine, emaFast-emaSlow)
	}

	if len(macdLine) < signal {
		return MACDResult{}, false
	}

	signalLine := mean(macdLine[:signal])
	for i := signal; i < len(macdLine); i++ {
		signalLine = macdLine[i]*kSignal + signalLine*(1-kSignal)
	}

	line := macdLine[len(macdLine)-1]
	return MACDResult{Line: line, Signal: signalLine, Histogram: line - signalLine}, true
}

// Bands are Bollinger band levels.
type Bands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// BollingerBands returns SMA(period) +/- mult standard deviations, using the
// population standard deviation over the same window.
func BollingerBands(series []float64, period int, mult float64) (Bands, bool) {
	if period <= 0 || len(series) < period {
		return Bands{}, false
	}
	window := series[len(series)-period:]
	middle := mean(window)
	variance := 0.0
	for _, v := range window {
		variance += (v - middle) * (v - middle)
	}
	variance /= float64(period)
	stdDev := math.Sqrt(variance)
	return Bands{
		Upper:  middle + mult*stdDev,
		Middle: middle,
		Lower:  middle - mult*stdDev,
	}, true
}

// ATR averages the last period true-range values, where the true range is the
// greatest of high-low, |high-prevClose| and |low-prevClose|. It needs
// period+1 bars because the true range references the previous close.
func ATR(bars []domain.Bar, period int) (float64, bool) {
	if period <= 0 || len(bars) < period+1 {
		return 0, false
	}
	sum := 0.0
	for i := len(bars) - period; i < len(bars); i++ {
		cur, prev := bars[i], bars[i-1]
		tr := cur.High - cur.Low
		if hc := math.Abs(cur.High - prev.Close); hc > tr {
			tr = hc
		}
		if lc := math.Abs(cur.Low - prev.Close); lc > tr {
			tr = lc
		}
		sum += tr
	}
	return sum / float64(period), true
}
