package domain

import "time"

// Bar is one OHLCV sample for a fixed time interval. Sequences are ordered
// ascending by Time with no duplicate timestamps per symbol+timeframe.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Closes extracts the closing prices of a bar sequence.
func Closes(bars []Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
