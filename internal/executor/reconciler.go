package executor

import (
	"context"

	"github.com/rs/zerolog"

	"delta-trader/internal/logging"
	"delta-trader/internal/metrics"
	"delta-trader/internal/strategy"
)

// Reconciler re-syncs the strategy-local position against the exchange's
// authoritative one. It runs at startup, before the first tick, and again on
// demand after any failure that leaves local state in doubt.
type Reconciler struct {
	api       ExchangeAPI
	machine   *strategy.Machine
	productID int
	symbol    string
	met       *metrics.Metrics
	logger    zerolog.Logger
}

// NewReconciler creates a Reconciler for one asset. met may be nil.
func NewReconciler(api ExchangeAPI, machine *strategy.Machine, productID int, symbol string, met *metrics.Metrics, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		api:       api,
		machine:   machine,
		productID: productID,
		symbol:    symbol,
		met:       met,
		logger:    logger,
	}
}

// Sync fetches the live position and forces local state to match it. A
// mismatch is logged as a warning and is not an error for the caller; only
// the position fetch itself can fail.
func (r *Reconciler) Sync(ctx context.Context) error {
	pos, err := r.api.Position(ctx, r.productID, r.symbol)
	if err != nil {
		return err
	}

	localDir := r.machine.State().Direction

	if rerr := r.machine.Reconcile(pos); rerr != nil {
		state := r.machine.State()
		logging.LogReconciliation(r.logger, r.symbol, localDir, state.Direction, state.Quantity)
		if r.met != nil {
			r.met.Reconciliations.WithLabelValues(r.symbol, r.machine.Rules().Name()).Inc()
		}
	}

	state := r.machine.State()
	if state.IsFlat() {
		r.logger.Info().Str("symbol", r.symbol).Msg("Reconciled: no open position")
	} else {
		r.logger.Info().
			Str("symbol", r.symbol).
			Str("direction", state.Direction.String()).
			Int("quantity", state.Quantity).
			Float64("entry_price", state.EntryPrice).
			Msg("Reconciled against exchange position")
	}

	return nil
}
