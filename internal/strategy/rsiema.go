package strategy

import (
	"fmt"

	"delta-trader/internal/indicators"
	"delta-trader/internal/models"
)

func init() {
	Register("rsi_ema", NewRSIEMA)
}

// RSIEMA is a long-only rule set: enter when the close sits above the filter
// EMA with RSI above the entry level, exit when the close falls back below
// the EMA. The entry fires only when the combined condition turns true on
// this candle after being false on the previous one, so a restart never
// enters mid-trend.
type RSIEMA struct {
	emaPeriod int
	rsiPeriod int
	rsiLevel  float64
	engine    *indicators.Engine
}

// NewRSIEMA creates the rule set. Defaults: EMA 50, RSI 14 above 40.
func NewRSIEMA(cfg Config) (Rules, error) {
	emaPeriod := cfg.FilterEMA
	if emaPeriod <= 0 {
		emaPeriod = 50
	}
	rsiPeriod := cfg.RSIPeriod
	if rsiPeriod <= 0 {
		rsiPeriod = 14
	}
	rsiLevel := cfg.RSILevel
	if rsiLevel <= 0 {
		rsiLevel = 40
	}

	engine := indicators.NewEngine(2)
	engine.Register(indicators.NewEMA(emaPeriod))
	engine.Register(indicators.NewRSI(rsiPeriod))

	return &RSIEMA{
		emaPeriod: emaPeriod,
		rsiPeriod: rsiPeriod,
		rsiLevel:  rsiLevel,
		engine:    engine,
	}, nil
}

func (s *RSIEMA) Name() string {
	return "rsi_ema"
}

func (s *RSIEMA) Engine() *indicators.Engine {
	return s.engine
}

func (s *RSIEMA) AllowFlip() bool {
	return false
}

func (s *RSIEMA) emaName() string { return fmt.Sprintf("EMA_%d", s.emaPeriod) }
func (s *RSIEMA) rsiName() string { return fmt.Sprintf("RSI_%d", s.rsiPeriod) }

func (s *RSIEMA) valid(f *indicators.Frame, idx int) bool {
	return f.Close(idx) > f.Value(s.emaName(), idx) && f.Value(s.rsiName(), idx) > s.rsiLevel
}

func (s *RSIEMA) Evaluate(f *indicators.Frame, idx int, dir models.Direction) (models.Action, string) {
	prev := idx - 1

	switch dir {
	case models.Flat:
		if !f.Ready(idx, s.emaName(), s.rsiName()) || !f.Ready(prev, s.emaName(), s.rsiName()) {
			return models.ActionNone, ""
		}
		if s.valid(f, idx) && !s.valid(f, prev) {
			return models.ActionEnterLong,
				fmt.Sprintf("Close %.2f above EMA %.2f with RSI %.2f > %.0f",
					f.Close(idx), f.Value(s.emaName(), idx), f.Value(s.rsiName(), idx), s.rsiLevel)
		}

	case models.Long:
		if !f.Ready(idx, s.emaName()) {
			return models.ActionNone, ""
		}
		if f.Close(idx) < f.Value(s.emaName(), idx) {
			return models.ActionExitLong,
				fmt.Sprintf("Close %.2f below EMA %.2f", f.Close(idx), f.Value(s.emaName(), idx))
		}
	}

	return models.ActionNone, ""
}

func (s *RSIEMA) EntryLevels(f *indicators.Frame, idx int, dir models.Direction) (Levels, bool) {
	return Levels{}, false
}

func (s *RSIEMA) TrailCandidate(f *indicators.Frame, idx int, dir models.Direction) (float64, bool) {
	return 0, false
}
