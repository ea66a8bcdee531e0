package indicators

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"delta-trader/internal/models"
)

// candleGen generates valid candle data with realistic OHLCV values.
func candleGen() gopter.Gen {
	return gen.Struct(reflect.TypeOf(models.Candle{}), map[string]gopter.Gen{
		"Open":   gen.Float64Range(100.0, 1000.0),
		"High":   gen.Float64Range(100.0, 1000.0),
		"Low":    gen.Float64Range(100.0, 1000.0),
		"Close":  gen.Float64Range(100.0, 1000.0),
		"Volume": gen.Float64Range(1000, 10000000),
	}).Map(func(c models.Candle) models.Candle {
		c.High = math.Max(c.High, math.Max(c.Open, c.Close))
		c.Low = math.Min(c.Low, math.Min(c.Open, c.Close))
		if c.High <= c.Low {
			c.High = c.Low + 1.0
		}
		return c
	})
}

// candleSliceGen generates an ascending series of valid candles.
func candleSliceGen(minLen, maxLen int) gopter.Gen {
	return gen.SliceOfN(maxLen, candleGen()).Map(func(candles []models.Candle) []models.Candle {
		for len(candles) < minLen {
			candles = append(candles, candles[len(candles)-1])
		}
		base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		for i := range candles {
			candles[i].OpenTime = base.Add(time.Duration(i) * time.Hour)
			candles[i].Timeframe = models.Timeframe1h
		}
		return candles
	})
}

func TestProperty_RSIWithinBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("RSI values are within [0, 100] outside warm-up", prop.ForAll(
		func(candles []models.Candle) bool {
			rsi := NewRSI(14)
			values, err := rsi.Calculate(candles)
			if err != nil {
				return true
			}
			for _, v := range values {
				if math.IsNaN(v) {
					continue
				}
				if v < 0 || v > 100 {
					return false
				}
			}
			return true
		},
		candleSliceGen(20, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_ATRNonNegative(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("ATR values are non-negative outside warm-up", prop.ForAll(
		func(candles []models.Candle) bool {
			atr := NewATR(14)
			values, err := atr.Calculate(candles)
			if err != nil {
				return true
			}
			for _, v := range values {
				if math.IsNaN(v) {
					continue
				}
				if v < 0 {
					return false
				}
			}
			return true
		},
		candleSliceGen(20, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_WarmupRegionIsNaN(t *testing.T) {
	parameters := gopter.DefaultTestParameters()

	properties := gopter.NewProperties(parameters)

	properties.Property("EMA warm-up slots are NaN and the rest are real", prop.ForAll(
		func(candles []models.Candle, period int) bool {
			ema := NewEMA(period)
			values, err := ema.Calculate(candles)
			if err != nil {
				return len(candles) < period
			}
			for i, v := range values {
				if i < period-1 && !math.IsNaN(v) {
					return false
				}
				if i >= period-1 && math.IsNaN(v) {
					return false
				}
			}
			return true
		},
		candleSliceGen(10, 80),
		gen.IntRange(2, 30),
	))

	properties.TestingRun(t)
}

func TestProperty_DonchianChannelContainsBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()

	properties := gopter.NewProperties(parameters)

	properties.Property("upper bound is at or above lower bound", prop.ForAll(
		func(candles []models.Candle) bool {
			donchian := NewDonchian(20)
			values, err := donchian.Calculate(candles)
			if err != nil {
				return true
			}
			upper := values["upper"]
			lower := values["lower"]
			for i := range upper {
				if math.IsNaN(upper[i]) || math.IsNaN(lower[i]) {
					continue
				}
				if upper[i] < lower[i] {
					return false
				}
			}
			return true
		},
		candleSliceGen(25, 100),
	))

	properties.TestingRun(t)
}

func TestProperty_SuperTrendDirectionIsBinary(t *testing.T) {
	parameters := gopter.DefaultTestParameters()

	properties := gopter.NewProperties(parameters)

	properties.Property("direction is always 1 or -1 outside warm-up", prop.ForAll(
		func(candles []models.Candle) bool {
			st := NewSuperTrend(10, 3.0)
			values, err := st.Calculate(candles)
			if err != nil {
				return true
			}
			for _, d := range values["direction"] {
				if math.IsNaN(d) {
					continue
				}
				if d != 1 && d != -1 {
					return false
				}
			}
			return true
		},
		candleSliceGen(15, 100),
	))

	properties.TestingRun(t)
}
