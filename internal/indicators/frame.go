package indicators

import (
	"math"

	"delta-trader/internal/models"
)

// Frame is a candle series with named indicator columns attached. Columns
// are aligned with the candles: column[i] belongs to Candles[i], with NaN
// marking warm-up slots.
type Frame struct {
	Candles []models.Candle
	columns map[string][]float64
}

// NewFrame creates a frame over the given candle series.
func NewFrame(candles []models.Candle) *Frame {
	return &Frame{
		Candles: candles,
		columns: make(map[string][]float64),
	}
}

// Len returns the number of candles in the frame.
func (f *Frame) Len() int {
	return len(f.Candles)
}

// Attach adds a named column. The column must match the candle count.
func (f *Frame) Attach(name string, values []float64) {
	if len(values) != len(f.Candles) {
		padded := nanSlice(len(f.Candles))
		copy(padded[len(f.Candles)-len(values):], values)
		values = padded
	}
	f.columns[name] = values
}

// Column returns a named column, or false if it was never attached.
func (f *Frame) Column(name string) ([]float64, bool) {
	col, ok := f.columns[name]
	return col, ok
}

// Value returns column[idx], or NaN when the column is missing or the index
// out of range. Strategies can therefore index freely and rely on NaN
// checks alone.
func (f *Frame) Value(name string, idx int) float64 {
	col, ok := f.columns[name]
	if !ok || idx < 0 || idx >= len(col) {
		return math.NaN()
	}
	return col[idx]
}

// Close returns the close price at idx, NaN when out of range.
func (f *Frame) Close(idx int) float64 {
	if idx < 0 || idx >= len(f.Candles) {
		return math.NaN()
	}
	return f.Candles[idx].Close
}

// Ready reports whether every listed column holds a real value at idx.
func (f *Frame) Ready(idx int, names ...string) bool {
	for _, name := range names {
		if math.IsNaN(f.Value(name, idx)) {
			return false
		}
	}
	return true
}
