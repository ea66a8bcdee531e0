package strategy

import (
	"fmt"

	"delta-trader/internal/indicators"
	"delta-trader/internal/models"
)

func init() {
	Register("ema_cross", NewEMACross)
}

// EMACross trades fast/slow EMA crossovers in both directions. A bullish
// cross enters long or exits a short; a bearish cross does the reverse.
type EMACross struct {
	fast      int
	slow      int
	mode      TradeMode
	allowFlip bool
	engine    *indicators.Engine
}

// NewEMACross creates the EMA crossover rule set. Default periods are 10/20.
func NewEMACross(cfg Config) (Rules, error) {
	fast := cfg.FastEMA
	if fast <= 0 {
		fast = 10
	}
	slow := cfg.SlowEMA
	if slow <= 0 {
		slow = 20
	}

	engine := indicators.NewEngine(2)
	engine.Register(indicators.NewEMA(fast))
	engine.Register(indicators.NewEMA(slow))

	return &EMACross{
		fast:      fast,
		slow:      slow,
		mode:      cfg.Mode,
		allowFlip: cfg.AllowFlip,
		engine:    engine,
	}, nil
}

func (s *EMACross) Name() string {
	return "ema_cross"
}

func (s *EMACross) Engine() *indicators.Engine {
	return s.engine
}

func (s *EMACross) AllowFlip() bool {
	return s.allowFlip
}

func (s *EMACross) fastName() string { return fmt.Sprintf("EMA_%d", s.fast) }
func (s *EMACross) slowName() string { return fmt.Sprintf("EMA_%d", s.slow) }

func (s *EMACross) Evaluate(f *indicators.Frame, idx int, dir models.Direction) (models.Action, string) {
	prev := idx - 1
	if !f.Ready(idx, s.fastName(), s.slowName()) || !f.Ready(prev, s.fastName(), s.slowName()) {
		return models.ActionNone, ""
	}

	fastNow := f.Value(s.fastName(), idx)
	slowNow := f.Value(s.slowName(), idx)
	fastPrev := f.Value(s.fastName(), prev)
	slowPrev := f.Value(s.slowName(), prev)

	bullishCross := fastPrev <= slowPrev && fastNow > slowNow
	bearishCross := fastPrev >= slowPrev && fastNow < slowNow

	cfg := Config{Mode: s.mode}

	if bullishCross {
		reason := fmt.Sprintf("Bullish cross: fast EMA %.2f above slow EMA %.2f", fastNow, slowNow)
		if dir == models.Short {
			return models.ActionExitShort, reason
		}
		if dir == models.Flat && cfg.allowLong() {
			return models.ActionEnterLong, reason
		}
	}

	if bearishCross {
		reason := fmt.Sprintf("Bearish cross: fast EMA %.2f below slow EMA %.2f", fastNow, slowNow)
		if dir == models.Long {
			return models.ActionExitLong, reason
		}
		if dir == models.Flat && cfg.allowShort() {
			return models.ActionEnterShort, reason
		}
	}

	return models.ActionNone, ""
}

func (s *EMACross) EntryLevels(f *indicators.Frame, idx int, dir models.Direction) (Levels, bool) {
	return Levels{}, false
}

func (s *EMACross) TrailCandidate(f *indicators.Frame, idx int, dir models.Direction) (float64, bool) {
	return 0, false
}
