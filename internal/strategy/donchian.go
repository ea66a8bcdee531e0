package strategy

import (
	"fmt"

	"delta-trader/internal/indicators"
	"delta-trader/internal/models"
)

func init() {
	Register("donchian_channel", NewDonchian)
}

// Donchian trades channel breakouts filtered by a long EMA, with ATR-based
// take-profit and trailing-stop levels set at entry. Entries compare the
// closed candle against the channel one candle back so the breakout candle
// itself is never part of its own channel.
type Donchian struct {
	enterPeriod  int
	exitPeriod   int
	atrPeriod    int
	atrMultTP    float64
	atrMultTrail float64
	filterEMA    int
	mode         TradeMode
	engine       *indicators.Engine
}

// NewDonchian creates the rule set. Defaults: enter channel 20, exit
// channel 10, ATR 16, TP 4x ATR, trail 2x ATR, filter EMA 100.
func NewDonchian(cfg Config) (Rules, error) {
	enterPeriod := cfg.EnterPeriod
	if enterPeriod <= 0 {
		enterPeriod = 20
	}
	exitPeriod := cfg.ExitPeriod
	if exitPeriod <= 0 {
		exitPeriod = 10
	}
	atrPeriod := cfg.ATRPeriod
	if atrPeriod <= 0 {
		atrPeriod = 16
	}
	atrMultTP := cfg.ATRMultTP
	if atrMultTP <= 0 {
		atrMultTP = 4.0
	}
	atrMultTrail := cfg.ATRMultTrail
	if atrMultTrail <= 0 {
		atrMultTrail = 2.0
	}
	filterEMA := cfg.FilterEMA
	if filterEMA <= 0 {
		filterEMA = 100
	}

	engine := indicators.NewEngine(4)
	engine.RegisterMulti(indicators.NewDonchian(enterPeriod))
	// The engine keys indicators by name; equal periods share one channel.
	if exitPeriod != enterPeriod {
		engine.RegisterMulti(indicators.NewDonchian(exitPeriod))
	}
	engine.Register(indicators.NewATR(atrPeriod))
	engine.Register(indicators.NewEMA(filterEMA))

	return &Donchian{
		enterPeriod:  enterPeriod,
		exitPeriod:   exitPeriod,
		atrPeriod:    atrPeriod,
		atrMultTP:    atrMultTP,
		atrMultTrail: atrMultTrail,
		filterEMA:    filterEMA,
		mode:         cfg.Mode,
		engine:       engine,
	}, nil
}

func (s *Donchian) Name() string {
	return "donchian_channel"
}

func (s *Donchian) Engine() *indicators.Engine {
	return s.engine
}

func (s *Donchian) AllowFlip() bool {
	return false
}

func (s *Donchian) enterUpper() string {
	return fmt.Sprintf("Donchian_%d:upper", s.enterPeriod)
}

func (s *Donchian) exitLower() string {
	return fmt.Sprintf("Donchian_%d:lower", s.exitPeriod)
}

func (s *Donchian) atrName() string {
	return fmt.Sprintf("ATR_%d", s.atrPeriod)
}

func (s *Donchian) emaName() string {
	return fmt.Sprintf("EMA_%d", s.filterEMA)
}

func (s *Donchian) Evaluate(f *indicators.Frame, idx int, dir models.Direction) (models.Action, string) {
	close := f.Close(idx)
	cfg := Config{Mode: s.mode}

	switch dir {
	case models.Flat:
		if !f.Ready(idx, s.enterUpper(), s.exitLower(), s.emaName()) {
			return models.ActionNone, ""
		}
		upper := f.Value(s.enterUpper(), idx)
		lower := f.Value(s.exitLower(), idx)
		ema := f.Value(s.emaName(), idx)

		if cfg.allowLong() && close >= upper && close > ema {
			return models.ActionEnterLong,
				fmt.Sprintf("Breakout: close %.4f >= upper %.4f, above EMA %.4f", close, upper, ema)
		}
		if cfg.allowShort() && close <= lower && close < ema {
			return models.ActionEnterShort,
				fmt.Sprintf("Breakdown: close %.4f <= lower %.4f, below EMA %.4f", close, lower, ema)
		}

	case models.Long:
		if !f.Ready(idx, s.exitLower()) {
			return models.ActionNone, ""
		}
		lower := f.Value(s.exitLower(), idx)
		if close <= lower {
			return models.ActionExitLong,
				fmt.Sprintf("Breakdown: close %.4f <= lower %.4f", close, lower)
		}

	case models.Short:
		if !f.Ready(idx, s.enterUpper()) {
			return models.ActionNone, ""
		}
		upper := f.Value(s.enterUpper(), idx)
		if close >= upper {
			return models.ActionExitShort,
				fmt.Sprintf("Breakout: close %.4f >= upper %.4f", close, upper)
		}
	}

	return models.ActionNone, ""
}

func (s *Donchian) EntryLevels(f *indicators.Frame, idx int, dir models.Direction) (Levels, bool) {
	atr := f.Value(s.atrName(), idx)
	close := f.Close(idx)
	if !f.Ready(idx, s.atrName()) {
		return Levels{}, false
	}

	if dir == models.Long {
		return Levels{
			TakeProfit:   close + atr*s.atrMultTP,
			TrailingStop: close - atr*s.atrMultTrail,
		}, true
	}
	return Levels{
		TakeProfit:   close - atr*s.atrMultTP,
		TrailingStop: close + atr*s.atrMultTrail,
	}, true
}

func (s *Donchian) TrailCandidate(f *indicators.Frame, idx int, dir models.Direction) (float64, bool) {
	if !f.Ready(idx, s.atrName()) {
		return 0, false
	}
	atr := f.Value(s.atrName(), idx)
	close := f.Close(idx)

	if dir == models.Long {
		return close - atr*s.atrMultTrail, true
	}
	return close + atr*s.atrMultTrail, true
}
