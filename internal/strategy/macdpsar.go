package strategy

import (
	"fmt"

	"delta-trader/internal/indicators"
	"delta-trader/internal/models"
)

func init() {
	Register("macd_psar", NewMACDPSAR)
}

// MACDPSAR is a long-only trend-following rule set: enter when price is
// above the long EMA with a positive MACD histogram and price above the
// parabolic SAR; exit as soon as price closes below the SAR.
type MACDPSAR struct {
	emaPeriod  int
	macdFast   int
	macdSlow   int
	macdSignal int
	engine     *indicators.Engine
}

// NewMACDPSAR creates the rule set. Defaults: EMA 100, MACD (12, 26, 9),
// PSAR (0.02, 0.02, 0.2).
func NewMACDPSAR(cfg Config) (Rules, error) {
	emaPeriod := cfg.FilterEMA
	if emaPeriod <= 0 {
		emaPeriod = 100
	}
	fast := cfg.MACDFast
	if fast <= 0 {
		fast = 12
	}
	slow := cfg.MACDSlow
	if slow <= 0 {
		slow = 26
	}
	signal := cfg.MACDSignal
	if signal <= 0 {
		signal = 9
	}

	engine := indicators.NewEngine(2)
	engine.Register(indicators.NewEMA(emaPeriod))
	engine.RegisterMulti(indicators.NewMACD(fast, slow, signal))
	engine.RegisterMulti(indicators.NewParabolicSAR(0.02, 0.02, 0.2))

	return &MACDPSAR{
		emaPeriod:  emaPeriod,
		macdFast:   fast,
		macdSlow:   slow,
		macdSignal: signal,
		engine:     engine,
	}, nil
}

func (s *MACDPSAR) Name() string {
	return "macd_psar"
}

func (s *MACDPSAR) Engine() *indicators.Engine {
	return s.engine
}

func (s *MACDPSAR) AllowFlip() bool {
	return false
}

func (s *MACDPSAR) emaName() string {
	return fmt.Sprintf("EMA_%d", s.emaPeriod)
}

func (s *MACDPSAR) histName() string {
	return fmt.Sprintf("MACD_%d_%d_%d:histogram", s.macdFast, s.macdSlow, s.macdSignal)
}

func (s *MACDPSAR) sarName() string {
	return "ParabolicSAR:sar"
}

func (s *MACDPSAR) Evaluate(f *indicators.Frame, idx int, dir models.Direction) (models.Action, string) {
	close := f.Close(idx)

	switch dir {
	case models.Long:
		if !f.Ready(idx, s.sarName()) {
			return models.ActionNone, ""
		}
		sar := f.Value(s.sarName(), idx)
		if close < sar {
			return models.ActionExitLong, fmt.Sprintf("Close %.2f below SAR %.2f", close, sar)
		}

	case models.Flat:
		if !f.Ready(idx, s.emaName(), s.histName(), s.sarName()) {
			return models.ActionNone, ""
		}
		ema := f.Value(s.emaName(), idx)
		hist := f.Value(s.histName(), idx)
		sar := f.Value(s.sarName(), idx)
		if close > ema && hist > 0 && close > sar {
			return models.ActionEnterLong,
				fmt.Sprintf("Close %.2f above EMA %.2f, histogram %.2f positive, above SAR %.2f", close, ema, hist, sar)
		}
	}

	return models.ActionNone, ""
}

func (s *MACDPSAR) EntryLevels(f *indicators.Frame, idx int, dir models.Direction) (Levels, bool) {
	return Levels{}, false
}

func (s *MACDPSAR) TrailCandidate(f *indicators.Frame, idx int, dir models.Direction) (float64, bool) {
	return 0, false
}
