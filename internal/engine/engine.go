// Package engine drives the per-tick pipeline: candle fetch, aggregation,
// closed-candle detection, indicator attachment, strategy evaluation and
// order execution, strictly in that order and strictly sequentially.
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"delta-trader/internal/candles"
	apperrors "delta-trader/internal/errors"
	"delta-trader/internal/executor"
	"delta-trader/internal/indicators"
	"delta-trader/internal/logging"
	"delta-trader/internal/metrics"
	"delta-trader/internal/models"
	"delta-trader/internal/strategy"
)

// MarketData is the candle source, satisfied by the exchange gateway.
type MarketData interface {
	Candles(ctx context.Context, symbol string, tf models.Timeframe, start, end time.Time) ([]models.Candle, error)
}

// Config holds the pipeline parameters for one strategy instance.
type Config struct {
	Symbol      string
	Timeframe   models.Timeframe
	HeikinAshi  bool
	HistoryDays int
}

// baseTimeframe returns the timeframe fetched from the exchange. Timeframes
// the history endpoint does not serve directly are aggregated from 1h.
func (c Config) baseTimeframe() models.Timeframe {
	if c.Timeframe == models.Timeframe3h {
		return models.Timeframe1h
	}
	return c.Timeframe
}

// Engine evaluates one closed candle per tick and performs at most one order
// submission (two when a flip is allowed and triggers).
type Engine struct {
	market  MarketData
	machine *strategy.Machine
	exec    *executor.Executor
	cfg     Config
	met     *metrics.Metrics
	logger  zerolog.Logger
}

// New creates an Engine. met may be nil.
func New(market MarketData, machine *strategy.Machine, exec *executor.Executor, cfg Config, met *metrics.Metrics, logger zerolog.Logger) *Engine {
	if cfg.HistoryDays <= 0 {
		cfg.HistoryDays = 30
	}
	return &Engine{
		market:  market,
		machine: machine,
		exec:    exec,
		cfg:     cfg,
		met:     met,
		logger:  logger,
	}
}

// Machine returns the strategy machine driven by this engine.
func (e *Engine) Machine() *strategy.Machine {
	return e.machine
}

// series fetches and prepares the candle series evaluated at now: ascending,
// aggregated to the target timeframe, optionally Heikin-Ashi transformed,
// truncated to closed candles only.
func (e *Engine) series(ctx context.Context, now time.Time) ([]models.Candle, error) {
	start := now.Add(-time.Duration(e.cfg.HistoryDays) * 24 * time.Hour)

	raw, err := e.market.Candles(ctx, e.cfg.Symbol, e.cfg.baseTimeframe(), start, now)
	if err != nil {
		return nil, err
	}

	series := raw
	if e.cfg.baseTimeframe() != e.cfg.Timeframe {
		series = candles.Aggregate(series, e.cfg.Timeframe)
	}
	if e.cfg.HeikinAshi {
		series = candles.HeikinAshi(series)
	}

	return candles.Closed(series, now)
}

// Tick runs one full evaluation at now. The returned outcome always carries
// the signal; Order is set when a fill confirmed, Err when the tick failed.
// Insufficient warm-up history is a NONE signal, not an error.
func (e *Engine) Tick(ctx context.Context, now time.Time) models.TickOutcome {
	started := time.Now()
	outcome := e.tick(ctx, now)

	if e.met != nil {
		labels := []string{e.cfg.Symbol, e.machine.Rules().Name()}
		e.met.TicksTotal.WithLabelValues(labels...).Inc()
		e.met.TickDuration.WithLabelValues(labels...).Observe(time.Since(started).Seconds())
		if outcome.Err != nil {
			e.met.TickErrors.WithLabelValues(labels...).Inc()
		}
		if outcome.Signal.Action != models.ActionNone {
			e.met.SignalsTotal.WithLabelValues(e.cfg.Symbol, e.machine.Rules().Name(), string(outcome.Signal.Action)).Inc()
		}
		if outcome.Order != nil {
			e.met.OrdersTotal.WithLabelValues(e.cfg.Symbol, e.machine.Rules().Name(), string(outcome.Signal.Action)).Inc()
		}
		state := e.machine.State()
		e.met.PositionSize.WithLabelValues(labels...).Set(float64(state.Quantity) * float64(state.Direction))
	}

	return outcome
}

func (e *Engine) tick(ctx context.Context, now time.Time) models.TickOutcome {
	series, err := e.series(ctx, now)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNoClosedCandle) {
			return models.TickOutcome{Signal: models.None(0)}
		}
		return models.TickOutcome{Signal: models.None(0), Err: err}
	}

	idx := len(series) - 1
	frame := indicators.NewFrame(series)
	if err := e.machine.Rules().Engine().AttachAll(ctx, frame); err != nil {
		return models.TickOutcome{Signal: models.None(idx), Err: err}
	}

	sig := e.machine.Evaluate(frame, idx)
	if sig.Action == models.ActionNone {
		return models.TickOutcome{Signal: sig}
	}

	logging.LogSignal(e.logger, e.cfg.Symbol, sig)

	order, err := e.exec.Execute(ctx, sig, frame.Close(idx), series[idx].OpenTime.Add(series[idx].Timeframe.Duration()))
	if err != nil {
		if e.met != nil {
			e.met.OrderFailures.WithLabelValues(e.cfg.Symbol, e.machine.Rules().Name()).Inc()
		}
		return models.TickOutcome{Signal: sig, Err: err}
	}

	// An exit may free the machine to enter the other way on the same
	// candle. Only rule sets that opt in flip, and only once per tick.
	st := e.machine.State()
	if sig.Action.IsExit() && e.machine.Rules().AllowFlip() && st.IsFlat() {
		flip := e.machine.Evaluate(frame, idx)
		if flip.Action.IsEntry() {
			logging.LogSignal(e.logger, e.cfg.Symbol, flip)
			flipOrder, err := e.exec.Execute(ctx, flip, frame.Close(idx), series[idx].OpenTime.Add(series[idx].Timeframe.Duration()))
			if err != nil {
				return models.TickOutcome{Signal: flip, Err: err}
			}
			if flipOrder != nil {
				return models.TickOutcome{Signal: flip, Order: flipOrder}
			}
		}
	}

	return models.TickOutcome{Signal: sig, Order: order}
}

// Replay seeds the machine by walking history as if it had been running:
// every closed candle is evaluated in order and signals are applied as
// immediate fills at the candle close. No orders are placed. The caller
// reconciles against the exchange afterwards, which overrides whatever the
// replay concluded.
func (e *Engine) Replay(ctx context.Context, now time.Time) error {
	series, err := e.series(ctx, now)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNoClosedCandle) {
			return nil
		}
		return err
	}

	frame := indicators.NewFrame(series)
	if err := e.machine.Rules().Engine().AttachAll(ctx, frame); err != nil {
		return err
	}

	fills := 0
	for idx := 0; idx < len(series); idx++ {
		sig := e.machine.Evaluate(frame, idx)
		if sig.Action == models.ActionNone {
			continue
		}

		qty := replayQuantity(e.machine, sig)
		if qty == 0 {
			continue
		}
		at := series[idx].OpenTime.Add(series[idx].Timeframe.Duration())
		if err := e.machine.Apply(sig, frame.Close(idx), qty, at); err != nil {
			return err
		}
		fills++
	}

	state := e.machine.State()
	e.logger.Info().
		Int("candles", len(series)).
		Int("fills", fills).
		Str("direction", state.Direction.String()).
		Int("quantity", state.Quantity).
		Msg("History replay complete")

	return nil
}

// replayQuantity picks a nominal fill size for replay. Replay exists to seed
// direction and levels; real sizing happens only on live entries.
func replayQuantity(m *strategy.Machine, sig models.Signal) int {
	switch {
	case sig.Action.IsEntry():
		if m.PartialEnabled() {
			return 2
		}
		return 1
	case sig.Action.IsPartialExit():
		return m.State().Quantity / 2
	default:
		return m.State().Quantity
	}
}
