package candles

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "delta-trader/internal/errors"
	"delta-trader/internal/models"
)

func hourly(startHour int, closes ...float64) []models.Candle {
	base := time.Date(2025, 3, 10, startHour, 0, 0, 0, time.UTC)
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			OpenTime:  base.Add(time.Duration(i) * time.Hour),
			Open:      c - 1,
			High:      c + 2,
			Low:       c - 2,
			Close:     c,
			Volume:    10,
			Timeframe: models.Timeframe1h,
		}
	}
	return out
}

func TestClosedIndexSkipsFormingCandle(t *testing.T) {
	series := hourly(10, 100, 101, 102) // opens 10:00, 11:00, 12:00

	tests := []struct {
		name string
		now  time.Time
		want int
	}{
		{
			name: "mid window uses previous candle",
			now:  time.Date(2025, 3, 10, 12, 45, 0, 0, time.UTC),
			want: 1,
		},
		{
			name: "just past close uses latest candle",
			now:  time.Date(2025, 3, 10, 13, 0, 5, 0, time.UTC),
			want: 2,
		},
		{
			name: "exactly at close boundary counts as closed",
			now:  time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC),
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ClosedIndex(series, tt.now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClosedIndexNoClosedCandle(t *testing.T) {
	series := hourly(10, 100)
	_, err := ClosedIndex(series, time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC))
	assert.ErrorIs(t, err, apperrors.ErrNoClosedCandle)

	_, err = ClosedIndex(nil, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrNoClosedCandle)
}

func TestProperty_ClosedIndexNeverReturnsFormingCandle(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("returned candle window has fully elapsed", prop.ForAll(
		func(n int, offsetMin int) bool {
			closes := make([]float64, n)
			for i := range closes {
				closes[i] = 100 + float64(i)
			}
			series := hourly(0, closes...)
			now := series[0].OpenTime.Add(time.Duration(offsetMin) * time.Minute)

			idx, err := ClosedIndex(series, now)
			if err != nil {
				// Valid only when not even the first candle has closed.
				return now.Before(series[0].OpenTime.Add(time.Hour))
			}
			return !series[idx].OpenTime.Add(time.Hour).After(now)
		},
		gen.IntRange(1, 48),
		gen.IntRange(0, 72*60),
	))

	properties.TestingRun(t)
}

func TestProperty_ClosedIndexMonotonicInTime(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("walking now forward never moves the index backward", prop.ForAll(
		func(n int, startMin int, steps []int) bool {
			closes := make([]float64, n)
			for i := range closes {
				closes[i] = 100 + float64(i)
			}
			series := hourly(0, closes...)
			now := series[0].OpenTime.Add(time.Duration(startMin) * time.Minute)

			prev := -1
			for _, step := range steps {
				now = now.Add(time.Duration(step) * time.Minute)
				idx, err := ClosedIndex(series, now)
				if err != nil {
					idx = -1
				}
				if idx < prev {
					return false
				}
				prev = idx
			}
			return true
		},
		gen.IntRange(1, 48),
		gen.IntRange(0, 24*60),
		gen.SliceOf(gen.IntRange(0, 6*60)),
	))

	properties.TestingRun(t)
}

func TestAggregateOneHourToThreeHour(t *testing.T) {
	// Opens 09:00 through 14:00, covering windows 09:00 and 12:00.
	series := hourly(9, 100, 101, 102, 103, 104, 105)

	got := Aggregate(series, models.Timeframe3h)
	require.Len(t, got, 2)

	first := got[0]
	assert.Equal(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), first.OpenTime)
	assert.Equal(t, models.Timeframe3h, first.Timeframe)
	assert.Equal(t, 99.0, first.Open)    // open of 09:00 candle
	assert.Equal(t, 104.0, first.High)   // high of 11:00 candle
	assert.Equal(t, 98.0, first.Low)     // low of 09:00 candle
	assert.Equal(t, 102.0, first.Close)  // close of 11:00 candle
	assert.Equal(t, 30.0, first.Volume)  // three hourly volumes

	second := got[1]
	assert.Equal(t, time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC), second.OpenTime)
	assert.Equal(t, 105.0, second.Close)
}

func TestAggregateDropsIncompleteTrailingWindow(t *testing.T) {
	// Opens 09:00 through 13:00: the 12:00 window is missing its 14:00 slot.
	series := hourly(9, 100, 101, 102, 103, 104)

	got := Aggregate(series, models.Timeframe3h)
	require.Len(t, got, 1)
	assert.Equal(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), got[0].OpenTime)
}

func TestAggregateEmptyInput(t *testing.T) {
	assert.Nil(t, Aggregate(nil, models.Timeframe3h))
}

func TestHeikinAshiTransform(t *testing.T) {
	series := []models.Candle{
		{OpenTime: time.Unix(0, 0), Open: 10, High: 12, Low: 9, Close: 11, Volume: 5, Timeframe: models.Timeframe1h},
		{OpenTime: time.Unix(3600, 0), Open: 11, High: 14, Low: 10, Close: 13, Volume: 6, Timeframe: models.Timeframe1h},
	}

	ha := HeikinAshi(series)
	require.Len(t, ha, 2)

	// First candle: haClose = (10+12+9+11)/4 = 10.5, haOpen = (10+11)/2 = 10.5
	assert.InDelta(t, 10.5, ha[0].Close, 1e-9)
	assert.InDelta(t, 10.5, ha[0].Open, 1e-9)
	assert.InDelta(t, 12.0, ha[0].High, 1e-9)
	assert.InDelta(t, 9.0, ha[0].Low, 1e-9)

	// Second candle: haClose = (11+14+10+13)/4 = 12, haOpen = (10.5+10.5)/2 = 10.5
	assert.InDelta(t, 12.0, ha[1].Close, 1e-9)
	assert.InDelta(t, 10.5, ha[1].Open, 1e-9)
	assert.InDelta(t, 14.0, ha[1].High, 1e-9)
	assert.InDelta(t, 10.0, ha[1].Low, 1e-9)

	// Input untouched.
	assert.Equal(t, 10.0, series[0].Open)
}

func TestProperty_HeikinAshiHighLowEnvelope(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("high is the max and low the min of the transformed candle", prop.ForAll(
		func(closes []float64) bool {
			if len(closes) == 0 {
				return true
			}
			series := hourly(0, closes...)
			ha := HeikinAshi(series)
			for _, c := range ha {
				if c.High < c.Open || c.High < c.Close || c.Low > c.Open || c.Low > c.Close {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Float64Range(1, 100000)),
	))

	properties.TestingRun(t)
}
