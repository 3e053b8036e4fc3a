// Package predictor scores bar windows with a small logistic model trained
// offline. Features mirror the dashboard indicators so the score stays
// explainable.
package predictor

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/vitos/trade_signal_bot/internal/domain"
	"github.com/vitos/trade_signal_bot/internal/indicator"
	"go.uber.org/zap"
)

const (
	featureCount = 5
	minBars      = 50
)

// modelWeights is the on-disk format produced by the offline trainer.
type modelWeights struct {
	Bias         float64   `json:"bias"`
	Coefficients []float64 `json:"coefficients"`
}

// FileModel implements domain.Predictor with weights loaded from a JSON
// file. With no weights, or a window too short to compute features, it
// returns a neutral 0.5 so the hybrid strategy degrades to its RSI guards.
type FileModel struct {
	weights *modelWeights
	logger  *zap.Logger
}

// NewFileModel loads weights from path. A missing file is not an error; the
// model then always predicts neutral.
func NewFileModel(path string, logger *zap.Logger) (*FileModel, error) {
	m := &FileModel{logger: logger}
	if path == "" {
		return m, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		logger.Warn("model weights not found, predictions will be neutral",
			zap.String("path", path))
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}

	var w modelWeights
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if len(w.Coefficients) != featureCount {
		return nil, fmt.Errorf("model has %d coefficients, want %d", len(w.Coefficients), featureCount)
	}
	m.weights = &w
	logger.Info("model weights loaded", zap.String("path", path))
	return m, nil
}

var _ domain.Predictor = (*FileModel)(nil)

// Predict returns the model's confidence in [0,1] that price rises over the
// next few bars.
func (m *FileModel) Predict(bars []domain.Bar) float64 {
	if m.weights == nil || len(bars) < minBars {
		return 0.5
	}
	features, ok := lastBarFeatures(bars)
	if !ok {
		return 0.5
	}

	z := m.weights.Bias
	for i, f := range features {
		z += m.weights.Coefficients[i] * f
	}
	return 1 / (1 + math.Exp(-z))
}

// lastBarFeatures computes the feature vector for the newest bar: normalized
// close, normalized volume, RSI/100, EMA(9)-EMA(21) spread, and the MACD
// histogram, the spread and histogram scaled against rough price-relative
// bounds.
func lastBarFeatures(bars []domain.Bar) ([featureCount]float64, bool) {
	var features [featureCount]float64
	closes := domain.Closes(bars)

	rsi, ok := indicator.RSI(closes, 14)
	if !ok {
		return features, false
	}
	emaFast, ok := indicator.EMA(closes, 9)
	if !ok {
		return features, false
	}
	emaSlow, ok := indicator.EMA(closes, 21)
	if !ok {
		return features, false
	}
	macd, ok := indicator.MACD(closes, 12, 26, 9)
	if !ok {
		return features, false
	}

	minClose, maxClose := closes[0], closes[0]
	minVol, maxVol := bars[0].Volume, bars[0].Volume
	for _, b := range bars {
		minClose = math.Min(minClose, b.Close)
		maxClose = math.Max(maxClose, b.Close)
		minVol = math.Min(minVol, b.Volume)
		maxVol = math.Max(maxVol, b.Volume)
	}

	last := bars[len(bars)-1]
	features[0] = normalize(last.Close, minClose, maxClose)
	features[1] = normalize(last.Volume, minVol, maxVol)
	features[2] = rsi / 100
	features[3] = normalize(emaFast-emaSlow, -maxClose*0.05, maxClose*0.05)
	features[4] = normalize(macd.Histogram, -maxClose*0.02, maxClose*0.02)
	return features, true
}

// normalize maps val into [0,1] over [min,max], clamped; a degenerate range
// maps to the midpoint.
func normalize(val, min, max float64) float64 {
	if max == min {
		return 0.5
	}
	n := (val - min) / (max - min)
	return math.Max(0, math.Min(1, n))
}
