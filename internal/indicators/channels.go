package indicators

import (
	"fmt"

	"delta-trader/internal/models"
)

// Donchian calculates the Donchian channel: the highest high and lowest low
// over the trailing period, excluding the current candle. Excluding the
// current candle lets a breakout close compare against the channel it broke.
type Donchian struct {
	period int
}

// NewDonchian creates a new Donchian channel indicator.
func NewDonchian(period int) *Donchian {
	return &Donchian{period: period}
}

func (d *Donchian) Name() string {
	return fmt.Sprintf("Donchian_%d", d.period)
}

func (d *Donchian) Period() int {
	return d.period + 1
}

func (d *Donchian) Calculate(candles []models.Candle) (map[string][]float64, error) {
	if d.period <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(candles) < d.period+1 {
		return nil, ErrInsufficientData
	}

	n := len(candles)
	upper := nanSlice(n)
	lower := nanSlice(n)
	middle := nanSlice(n)

	highs := make([]float64, n)
	lows := make([]float64, n)
	for i, c := range candles {
		highs[i] = c.High
		lows[i] = c.Low
	}

	for i := d.period; i < n; i++ {
		upper[i] = highest(highs[i-d.period : i])
		lower[i] = lowest(lows[i-d.period : i])
		middle[i] = (upper[i] + lower[i]) / 2
	}

	return map[string][]float64{
		"upper":  upper,
		"lower":  lower,
		"middle": middle,
	}, nil
}
