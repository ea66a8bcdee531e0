package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	apperrors "delta-trader/internal/errors"
	"delta-trader/internal/exchange"
	"delta-trader/internal/executor"
	"delta-trader/internal/metrics"
	"delta-trader/internal/notify"
	"delta-trader/pkg/utils"
)

// BalanceSource reports wallet balances, satisfied by the exchange gateway.
type BalanceSource interface {
	WalletBalances(ctx context.Context) ([]exchange.Balance, error)
}

// RunnerConfig holds the polling loop parameters.
type RunnerConfig struct {
	// Interval is the spacing between ticks, normally the candle timeframe.
	Interval time.Duration
	// Grace delays each tick past the interval boundary so the exchange has
	// finished writing the candle that just closed.
	Grace time.Duration
	// Cooldown is the extra pause after a tick fails with exhausted API
	// retries, on top of the normal interval alignment.
	Cooldown time.Duration
	// Paper skips exchange reconciliation; there is no live position to
	// reconcile against.
	Paper bool
}

// Runner drives the engine on candle-aligned ticks until the context ends.
type Runner struct {
	engine     *Engine
	reconciler *executor.Reconciler
	notifier   *notify.Notifier
	balances   BalanceSource
	met        *metrics.Metrics
	cfg        RunnerConfig
	logger     zerolog.Logger

	// now and sleep are replaced in tests.
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewRunner creates a Runner. notifier may be nil-like (disabled) but not
// nil; reconciler, balances and met may be nil (paper mode runs without
// them).
func NewRunner(eng *Engine, rec *executor.Reconciler, notifier *notify.Notifier, balances BalanceSource, met *metrics.Metrics, cfg RunnerConfig, logger zerolog.Logger) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Grace <= 0 {
		cfg.Grace = 15 * time.Second
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 5 * time.Minute
	}
	return &Runner{
		engine:     eng,
		reconciler: rec,
		notifier:   notifier,
		balances:   balances,
		met:        met,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
		sleep:      utils.SleepContext,
	}
}

// Run replays history to seed state, reconciles against the exchange, then
// ticks once per interval until ctx is cancelled. Individual tick failures
// are logged and do not stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.engine.Replay(ctx, r.now()); err != nil {
		r.logger.Warn().Err(err).Msg("History replay failed, starting from clean state")
	}

	if !r.cfg.Paper && r.reconciler != nil {
		if err := r.reconciler.Sync(ctx); err != nil {
			return apperrors.Wrap(err, "startup reconciliation")
		}
	}

	mode := "live"
	if r.cfg.Paper {
		mode = "paper"
	}
	symbol := r.engine.cfg.Symbol
	strategyName := r.engine.machine.Rules().Name()
	r.notifier.Started(symbol, strategyName, mode)
	r.logger.Info().
		Str("mode", mode).
		Dur("interval", r.cfg.Interval).
		Msg("Trading loop started")

	defer r.notifier.Stopped(symbol)

	for {
		outcome := r.engine.Tick(ctx, r.now())

		switch {
		case outcome.Err != nil:
			r.logger.Error().
				Err(outcome.Err).
				Str("action", string(outcome.Signal.Action)).
				Msg("Tick failed")
			r.notifier.TickFailed(symbol, outcome.Err)

			var apiErr *apperrors.APIError
			var limitErr *apperrors.RateLimitTimeoutError
			if apperrors.As(outcome.Err, &apiErr) || apperrors.As(outcome.Err, &limitErr) {
				r.logger.Warn().
					Dur("cooldown", r.cfg.Cooldown).
					Msg("Exchange unavailable, cooling down")
				if err := r.sleep(ctx, r.cfg.Cooldown); err != nil {
					return nil
				}
			}

		case outcome.Order != nil:
			r.logger.Info().
				Str("action", string(outcome.Signal.Action)).
				Str("order_id", outcome.Order.OrderID).
				Float64("filled_price", outcome.Order.FilledPrice).
				Msg("Tick executed order")

		default:
			r.logger.Debug().
				Str("action", string(outcome.Signal.Action)).
				Msg("Tick complete")
		}

		// Re-sync after any failed tick in live mode; the failure may have
		// left an ambiguous order behind.
		if outcome.Err != nil && !r.cfg.Paper && r.reconciler != nil {
			if err := r.reconciler.Sync(ctx); err != nil {
				r.logger.Warn().Err(err).Msg("Post-failure reconciliation failed")
			}
		}

		if !r.cfg.Paper {
			r.updateEquity(ctx, symbol, strategyName)
		}

		wait := utils.UntilNextTick(r.now(), r.cfg.Interval, r.cfg.Grace)
		if err := r.sleep(ctx, wait); err != nil {
			return nil
		}
	}
}

// updateEquity refreshes the account equity gauge from the wallet. The
// account settles in USD-quoted assets, so their totals sum directly.
// A failed refresh only costs one gauge update.
func (r *Runner) updateEquity(ctx context.Context, symbol, strategyName string) {
	if r.balances == nil || r.met == nil {
		return
	}
	balances, err := r.balances.WalletBalances(ctx)
	if err != nil {
		r.logger.Debug().Err(err).Msg("Equity refresh failed")
		return
	}
	total := 0.0
	for _, b := range balances {
		switch b.AssetSymbol {
		case "USD", "USDT", "USDC":
			total += b.Total
		}
	}
	r.met.EquityUSD.WithLabelValues(symbol, strategyName).Set(total)
}
