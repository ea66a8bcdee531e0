// Package executor turns strategy signals into exchange orders and keeps the
// local position state aligned with confirmed fills.
package executor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "delta-trader/internal/errors"
	"delta-trader/internal/logging"
	"delta-trader/internal/models"
	"delta-trader/internal/sizing"
	"delta-trader/internal/strategy"
)

// ExchangeAPI is the slice of the gateway the executor depends on.
type ExchangeAPI interface {
	Position(ctx context.Context, productID int, symbol string) (models.ExchangePosition, error)
	PlaceMarketOrder(ctx context.Context, productID int, intent models.OrderIntent) (*models.OrderResult, error)
	SetLeverage(ctx context.Context, productID, leverage int) error
}

// Journal is the write-only trade journaling sink. Record returns an opaque
// reference forwarded on later events for the same trade.
type Journal interface {
	Record(event models.TradeEvent) (string, error)
}

// Notifier receives trade alerts. Implementations must not block.
type Notifier interface {
	TradeExecuted(event models.TradeEvent)
}

// Config holds the per-asset execution parameters.
type Config struct {
	Symbol        string
	ProductID     int
	TargetMargin  float64
	Leverage      float64
	ContractValue float64
	Paper         bool
}

// Executor submits at most one order per signal. Entries are sized from the
// margin target; exits are sized from the live exchange position read
// immediately before submission, never from cached local state. Position
// state changes only on a confirmed fill.
type Executor struct {
	api      ExchangeAPI
	machine  *strategy.Machine
	cfg      Config
	journal  Journal
	notifier Notifier
	logger   zerolog.Logger

	leverageSet bool
}

// New creates an Executor. journal and notifier may be nil.
func New(api ExchangeAPI, machine *strategy.Machine, cfg Config, journal Journal, notifier Notifier, logger zerolog.Logger) *Executor {
	return &Executor{
		api:      api,
		machine:  machine,
		cfg:      cfg,
		journal:  journal,
		notifier: notifier,
		logger:   logger,
	}
}

// Execute carries out a non-NONE signal at the given closed-candle price.
// On any failure the position state is left untouched and the error is
// surfaced; the signal is not retried within this tick.
func (e *Executor) Execute(ctx context.Context, sig models.Signal, closePrice float64, at time.Time) (*models.OrderResult, error) {
	switch {
	case sig.Action.IsEntry():
		return e.enter(ctx, sig, closePrice, at)
	case sig.Action.IsPartialExit():
		return e.reduce(ctx, sig, closePrice, at, true)
	case sig.Action.IsExit():
		return e.reduce(ctx, sig, closePrice, at, false)
	default:
		return nil, apperrors.NewValidationError("action", sig.Action, "not executable")
	}
}

func (e *Executor) enter(ctx context.Context, sig models.Signal, closePrice float64, at time.Time) (*models.OrderResult, error) {
	qty, err := sizing.Contracts(sizing.Params{
		TargetMargin:  e.cfg.TargetMargin,
		Leverage:      e.cfg.Leverage,
		Price:         closePrice,
		ContractValue: e.cfg.ContractValue,
		EvenContracts: e.machine.PartialEnabled(),
	})
	if err != nil {
		return nil, err
	}

	if !e.cfg.Paper && !e.leverageSet {
		if err := e.api.SetLeverage(ctx, e.cfg.ProductID, int(e.cfg.Leverage)); err != nil {
			return nil, apperrors.NewOrderError(e.cfg.Symbol, string(sig.Action), "setting leverage", err)
		}
		e.leverageSet = true
	}

	side := models.OrderSideBuy
	if sig.Action == models.ActionEnterShort {
		side = models.OrderSideSell
	}

	result, err := e.submit(ctx, sig, side, qty, closePrice)
	if err != nil {
		return nil, err
	}

	if err := e.machine.Apply(sig, result.FilledPrice, qty, at); err != nil {
		return nil, err
	}
	e.record(sig, result, qty, at, true, 0, 0)
	return result, nil
}

// reduce sizes an exit from the live exchange position. A stale local
// quantity can never produce an oversized order this way. Paper mode has no
// exchange position and sizes from local state instead.
func (e *Executor) reduce(ctx context.Context, sig models.Signal, closePrice float64, at time.Time, partial bool) (*models.OrderResult, error) {
	var open int
	var posDir models.Direction
	entryPrice := e.machine.State().EntryPrice

	if e.cfg.Paper {
		state := e.machine.State()
		open = state.Quantity
		posDir = state.Direction
	} else {
		pos, err := e.api.Position(ctx, e.cfg.ProductID, e.cfg.Symbol)
		if err != nil {
			return nil, apperrors.NewOrderError(e.cfg.Symbol, string(sig.Action), "reading position before exit", err)
		}
		open = pos.Contracts()
		posDir = pos.Direction()
		if open == 0 {
			// The exchange already closed it; adopt that instead of selling air.
			if rerr := e.machine.Reconcile(pos); rerr != nil {
				e.logger.Warn().Err(rerr).Msg("Exit requested but exchange reports flat")
			}
			return nil, nil
		}
	}

	if open == 0 {
		return nil, nil
	}

	qty := open
	if partial {
		qty = sizing.PartialQuantity(open, e.machine.PartialPct())
		if qty == 0 {
			return nil, nil
		}
	}

	side := models.OrderSideSell
	if posDir == models.Short {
		side = models.OrderSideBuy
	}

	result, err := e.submit(ctx, sig, side, qty, closePrice)
	if err != nil {
		return nil, err
	}

	if err := e.machine.Apply(sig, result.FilledPrice, qty, at); err != nil {
		return nil, err
	}

	pnl, pnlPct := realizedPnL(entryPrice, result.FilledPrice, qty, posDir, e.cfg.ContractValue)
	e.record(sig, result, qty, at, false, pnl, pnlPct)
	return result, nil
}

// realizedPnL computes the USD profit and percentage move for qty contracts
// closed at fill, relative to the entry price.
func realizedPnL(entry, fill float64, qty int, dir models.Direction, contractValue float64) (pnl, pct float64) {
	if entry == 0 {
		return 0, 0
	}
	sign := 1.0
	if dir == models.Short {
		sign = -1.0
	}
	pnl = (fill - entry) * float64(qty) * contractValue * sign
	pct = (fill - entry) / entry * 100 * sign
	return pnl, pct
}

func (e *Executor) submit(ctx context.Context, sig models.Signal, side models.OrderSide, qty int, closePrice float64) (*models.OrderResult, error) {
	intent := models.OrderIntent{
		Symbol:        e.cfg.Symbol,
		Side:          side,
		Quantity:      qty,
		ClientOrderID: uuid.NewString(),
		Signal:        sig,
	}

	if e.cfg.Paper {
		result := &models.OrderResult{
			OrderID:     "paper-" + intent.ClientOrderID,
			FilledPrice: closePrice,
		}
		logging.LogOrder(e.logger, intent, result)
		return result, nil
	}

	result, err := e.api.PlaceMarketOrder(ctx, e.cfg.ProductID, intent)
	if err != nil {
		return nil, err
	}
	if result.FilledPrice == 0 {
		result.FilledPrice = closePrice
	}
	logging.LogOrder(e.logger, intent, result)
	return result, nil
}

// record hands the confirmed fill to the journal and notifier. Neither may
// fail the trading path.
func (e *Executor) record(sig models.Signal, result *models.OrderResult, qty int, at time.Time, entry bool, pnl, pnlPct float64) {
	event := models.TradeEvent{
		Symbol:     e.cfg.Symbol,
		Strategy:   e.machine.Rules().Name(),
		Action:     sig.Action,
		Price:      result.FilledPrice,
		Quantity:   qty,
		Reason:     sig.Reason,
		OrderID:    result.OrderID,
		JournalRef: e.machine.State().JournalRef,
		PnL:        pnl,
		PnLPercent: pnlPct,
		At:         at,
	}

	if e.journal != nil {
		ref, err := e.journal.Record(event)
		if err != nil {
			e.logger.Warn().Err(err).Msg("Journal write failed")
		} else if entry && ref != "" {
			e.machine.SetJournalRef(ref)
		}
	}

	if e.notifier != nil {
		e.notifier.TradeExecuted(event)
	}
}
