package strategy

import (
	"fmt"

	"delta-trader/internal/indicators"
	"delta-trader/internal/models"
)

func init() {
	Register("rsi_supertrend", NewRSISuperTrend)
}

// RSISuperTrend is a long-only rule set: enter when RSI crosses up through
// the entry level, exit when the SuperTrend flips bearish. The fresh-cross
// requirement keeps a restart from entering mid-trend.
type RSISuperTrend struct {
	rsiPeriod int
	rsiLevel  float64
	stPeriod  int
	stMult    float64
	engine    *indicators.Engine
}

// NewRSISuperTrend creates the rule set. Defaults: RSI 14 crossing 50,
// SuperTrend (10, 3.0).
func NewRSISuperTrend(cfg Config) (Rules, error) {
	rsiPeriod := cfg.RSIPeriod
	if rsiPeriod <= 0 {
		rsiPeriod = 14
	}
	rsiLevel := cfg.RSILevel
	if rsiLevel <= 0 {
		rsiLevel = 50
	}
	stPeriod := cfg.SuperTrendPeriod
	if stPeriod <= 0 {
		stPeriod = 10
	}
	stMult := cfg.SuperTrendMult
	if stMult <= 0 {
		stMult = 3.0
	}

	engine := indicators.NewEngine(2)
	engine.Register(indicators.NewRSI(rsiPeriod))
	engine.RegisterMulti(indicators.NewSuperTrend(stPeriod, stMult))

	return &RSISuperTrend{
		rsiPeriod: rsiPeriod,
		rsiLevel:  rsiLevel,
		stPeriod:  stPeriod,
		stMult:    stMult,
		engine:    engine,
	}, nil
}

func (s *RSISuperTrend) Name() string {
	return "rsi_supertrend"
}

func (s *RSISuperTrend) Engine() *indicators.Engine {
	return s.engine
}

func (s *RSISuperTrend) AllowFlip() bool {
	return false
}

func (s *RSISuperTrend) rsiName() string {
	return fmt.Sprintf("RSI_%d", s.rsiPeriod)
}

func (s *RSISuperTrend) dirName() string {
	return fmt.Sprintf("SuperTrend_%d_%.1f:direction", s.stPeriod, s.stMult)
}

func (s *RSISuperTrend) Evaluate(f *indicators.Frame, idx int, dir models.Direction) (models.Action, string) {
	prev := idx - 1

	switch dir {
	case models.Flat:
		if !f.Ready(idx, s.rsiName()) || !f.Ready(prev, s.rsiName()) {
			return models.ActionNone, ""
		}
		rsiNow := f.Value(s.rsiName(), idx)
		rsiPrev := f.Value(s.rsiName(), prev)
		if rsiPrev <= s.rsiLevel && rsiNow > s.rsiLevel {
			return models.ActionEnterLong,
				fmt.Sprintf("RSI crossed above %.0f (prev %.2f, now %.2f)", s.rsiLevel, rsiPrev, rsiNow)
		}

	case models.Long:
		if !f.Ready(idx, s.dirName()) || !f.Ready(prev, s.dirName()) {
			return models.ActionNone, ""
		}
		dirNow := f.Value(s.dirName(), idx)
		dirPrev := f.Value(s.dirName(), prev)
		if dirPrev > 0 && dirNow < 0 {
			return models.ActionExitLong, "SuperTrend flipped from bullish to bearish"
		}
	}

	return models.ActionNone, ""
}

func (s *RSISuperTrend) EntryLevels(f *indicators.Frame, idx int, dir models.Direction) (Levels, bool) {
	return Levels{}, false
}

func (s *RSISuperTrend) TrailCandidate(f *indicators.Frame, idx int, dir models.Direction) (float64, bool) {
	return 0, false
}
