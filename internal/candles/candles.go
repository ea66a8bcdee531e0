// Package candles provides candle series utilities: aggregation to coarser
// timeframes, closed-candle detection and the Heikin-Ashi transform.
package candles

import (
	"sort"
	"time"

	apperrors "delta-trader/internal/errors"
	"delta-trader/internal/models"
	"delta-trader/pkg/utils"
)

// SortAscending orders candles by open time, oldest first. The exchange
// history endpoint makes no ordering promise, so series are normalized once
// at the boundary.
func SortAscending(candles []models.Candle) {
	sort.Slice(candles, func(i, j int) bool {
		return candles[i].OpenTime.Before(candles[j].OpenTime)
	})
}

// ClosedIndex returns the index of the most recent candle whose window has
// fully elapsed at now. The forming candle is never returned. Returns
// ErrNoClosedCandle when the series is empty or every candle is still open.
func ClosedIndex(series []models.Candle, now time.Time) (int, error) {
	for i := len(series) - 1; i >= 0; i-- {
		closeTime := series[i].OpenTime.Add(series[i].Timeframe.Duration())
		if !closeTime.After(now) {
			return i, nil
		}
	}
	return 0, apperrors.ErrNoClosedCandle
}

// Closed returns the series truncated after the most recent closed candle,
// dropping the forming candle if present.
func Closed(series []models.Candle, now time.Time) ([]models.Candle, error) {
	idx, err := ClosedIndex(series, now)
	if err != nil {
		return nil, err
	}
	return series[:idx+1], nil
}

// Aggregate combines candles of a finer timeframe into target candles whose
// windows are epoch aligned, e.g. 3h windows starting at 00:00, 03:00 and so
// on. The input must be ascending. A trailing window missing its final
// source candle is dropped so the output never contains a half-built candle.
func Aggregate(source []models.Candle, target models.Timeframe) []models.Candle {
	if len(source) == 0 {
		return nil
	}

	targetDur := target.Duration()
	sourceDur := source[0].Timeframe.Duration()

	var out []models.Candle
	var cur *models.Candle
	var curWindowStart time.Time
	lastComplete := false

	for _, c := range source {
		windowStart := utils.AlignToInterval(c.OpenTime, targetDur)
		if cur == nil || !windowStart.Equal(curWindowStart) {
			if cur != nil {
				out = append(out, *cur)
			}
			curWindowStart = windowStart
			cur = &models.Candle{
				OpenTime:  windowStart,
				Open:      c.Open,
				High:      c.High,
				Low:       c.Low,
				Close:     c.Close,
				Volume:    c.Volume,
				Timeframe: target,
			}
			lastComplete = false
		} else {
			if c.High > cur.High {
				cur.High = c.High
			}
			if c.Low < cur.Low {
				cur.Low = c.Low
			}
			cur.Close = c.Close
			cur.Volume += c.Volume
		}
		// The window is complete once its final source slot is filled.
		if c.OpenTime.Add(sourceDur).Equal(curWindowStart.Add(targetDur)) {
			lastComplete = true
		}
	}

	if cur != nil && lastComplete {
		out = append(out, *cur)
	}
	return out
}

// HeikinAshi transforms a standard candle series into Heikin-Ashi form:
//
//	haClose = (O + H + L + C) / 4
//	haOpen  = (prevHaOpen + prevHaClose) / 2, seeded with (O + C) / 2
//	haHigh  = max(H, haOpen, haClose)
//	haLow   = min(L, haOpen, haClose)
//
// The input series is not modified.
func HeikinAshi(series []models.Candle) []models.Candle {
	if len(series) == 0 {
		return nil
	}

	out := make([]models.Candle, len(series))
	for i, c := range series {
		haClose := (c.Open + c.High + c.Low + c.Close) / 4

		var haOpen float64
		if i == 0 {
			haOpen = (c.Open + c.Close) / 2
		} else {
			haOpen = (out[i-1].Open + out[i-1].Close) / 2
		}

		haHigh := max3(c.High, haOpen, haClose)
		haLow := min3(c.Low, haOpen, haClose)

		out[i] = models.Candle{
			OpenTime:  c.OpenTime,
			Open:      haOpen,
			High:      haHigh,
			Low:       haLow,
			Close:     haClose,
			Volume:    c.Volume,
			Timeframe: c.Timeframe,
		}
	}
	return out
}

func max3(a, b, c float64) float64 {
	m := a
	if b > m {
		m = b
	}
	if c > m {
		m = c
	}
	return m
}

func min3(a, b, c float64) float64 {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
