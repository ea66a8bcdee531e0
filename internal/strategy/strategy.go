// Package strategy provides the trading decision layer: pluggable rule sets
// evaluated over closed candles, driven by a state machine that owns the
// position state, trailing stop and partial take-profit bookkeeping.
package strategy

import (
	"fmt"
	"math"
	"time"

	apperrors "delta-trader/internal/errors"
	"delta-trader/internal/indicators"
	"delta-trader/internal/models"
)

// TradeMode restricts which directions a rule set may trade.
type TradeMode string

const (
	ModeLong  TradeMode = "Long"
	ModeShort TradeMode = "Short"
	ModeBoth  TradeMode = "Both"
)

// Config holds rule set parameters. Zero values fall back to each
// strategy's conventional defaults.
type Config struct {
	Mode      TradeMode
	AllowFlip bool

	FastEMA int
	SlowEMA int

	RSIPeriod int
	RSILevel  float64

	SuperTrendPeriod int
	SuperTrendMult   float64

	EnterPeriod  int
	ExitPeriod   int
	ATRPeriod    int
	ATRMultTP    float64
	ATRMultTrail float64
	FilterEMA    int

	MACDFast   int
	MACDSlow   int
	MACDSignal int
}

func (c Config) allowLong() bool {
	return c.Mode == ModeLong || c.Mode == ModeBoth || c.Mode == ""
}

func (c Config) allowShort() bool {
	return c.Mode == ModeShort || c.Mode == ModeBoth
}

// Levels are the managed price levels computed at entry time.
type Levels struct {
	TakeProfit   float64
	TrailingStop float64
}

// Rules is one strategy's decision logic over a prepared frame. Rules are
// stateless: position context comes in as arguments and all bookkeeping
// lives in the Machine.
type Rules interface {
	Name() string

	// Engine returns the indicator set this rule set needs attached.
	Engine() *indicators.Engine

	// Evaluate checks entry and exit conditions at the closed candle idx
	// given the current direction. It returns ActionNone when nothing
	// triggers. Trailing stops and partial take-profits are handled by the
	// Machine, not here.
	Evaluate(f *indicators.Frame, idx int, dir models.Direction) (models.Action, string)

	// EntryLevels returns the take-profit and trailing-stop levels for an
	// entry decided at idx. ok is false for rule sets that do not manage
	// levels.
	EntryLevels(f *indicators.Frame, idx int, dir models.Direction) (Levels, bool)

	// TrailCandidate returns the would-be trailing stop at idx for an open
	// position. The Machine applies the ratchet; this only proposes.
	TrailCandidate(f *indicators.Frame, idx int, dir models.Direction) (float64, bool)

	// AllowFlip reports whether an exit caused by an opposite signal may be
	// followed by the reverse entry within the same tick.
	AllowFlip() bool
}

// Machine owns the strategy-local position state and turns rule decisions
// into signals. State changes only through Apply (confirmed fills) and
// Reconcile (exchange authority); Evaluate mutates nothing but the trailing
// stop ratchet.
type Machine struct {
	rules           Rules
	enablePartialTP bool
	partialPct      float64

	state models.PositionState

	// pending holds entry levels computed at signal time, committed by
	// Apply once the fill confirms.
	pending *Levels
}

// NewMachine creates a Machine for the given rule set.
func NewMachine(rules Rules, enablePartialTP bool, partialPct float64) *Machine {
	if partialPct <= 0 || partialPct >= 1 {
		partialPct = 0.5
	}
	return &Machine{
		rules:           rules,
		enablePartialTP: enablePartialTP,
		partialPct:      partialPct,
	}
}

// State returns a copy of the current position state.
func (m *Machine) State() models.PositionState {
	return m.state
}

// Rules returns the underlying rule set.
func (m *Machine) Rules() Rules {
	return m.rules
}

// PartialPct returns the configured partial exit fraction.
func (m *Machine) PartialPct() float64 {
	return m.partialPct
}

// PartialEnabled reports whether partial take-profits are in use.
func (m *Machine) PartialEnabled() bool {
	return m.enablePartialTP
}

// Evaluate inspects the closed candle at idx and returns at most one
// signal. Priority order: trailing stop, partial take-profit, then the rule
// set's own entries and exits. A NaN closed price yields NONE.
func (m *Machine) Evaluate(f *indicators.Frame, idx int) models.Signal {
	closed := f.Close(idx)
	if math.IsNaN(closed) {
		return models.None(idx)
	}

	dir := m.state.Direction

	// Ratchet the trailing stop before checking it. Long stops only move
	// up, short stops only move down.
	if m.state.TrailingStop != nil && dir != models.Flat {
		if candidate, ok := m.rules.TrailCandidate(f, idx, dir); ok && !math.IsNaN(candidate) {
			switch {
			case dir == models.Long && candidate > *m.state.TrailingStop:
				*m.state.TrailingStop = candidate
			case dir == models.Short && candidate < *m.state.TrailingStop:
				*m.state.TrailingStop = candidate
			}
		}
	}

	if m.state.TrailingStop != nil {
		stop := *m.state.TrailingStop
		if dir == models.Long && closed <= stop {
			return models.Signal{
				Action:      models.ActionExitLong,
				Reason:      fmt.Sprintf("Trailing stop hit: %.4f <= %.4f", closed, stop),
				CandleIndex: idx,
			}
		}
		if dir == models.Short && closed >= stop {
			return models.Signal{
				Action:      models.ActionExitShort,
				Reason:      fmt.Sprintf("Trailing stop hit: %.4f >= %.4f", closed, stop),
				CandleIndex: idx,
			}
		}
	}

	if m.enablePartialTP && !m.state.PartialExitTaken && m.state.TakeProfit != nil {
		tp := *m.state.TakeProfit
		if dir == models.Long && closed >= tp {
			return models.Signal{
				Action:      models.ActionPartialExit,
				Reason:      fmt.Sprintf("Partial take-profit hit: %.4f >= %.4f", closed, tp),
				CandleIndex: idx,
			}
		}
		if dir == models.Short && closed <= tp {
			return models.Signal{
				Action:      models.ActionPartialExit,
				Reason:      fmt.Sprintf("Partial take-profit hit: %.4f <= %.4f", closed, tp),
				CandleIndex: idx,
			}
		}
	}

	action, reason := m.rules.Evaluate(f, idx, dir)
	if action == models.ActionNone {
		return models.None(idx)
	}

	if action.IsEntry() {
		if levels, ok := m.rules.EntryLevels(f, idx, entryDirection(action)); ok {
			l := levels
			m.pending = &l
		} else {
			m.pending = nil
		}
	}

	return models.Signal{Action: action, Reason: reason, CandleIndex: idx}
}

func entryDirection(a models.Action) models.Direction {
	if a == models.ActionEnterLong {
		return models.Long
	}
	return models.Short
}

// Apply commits a confirmed fill to the position state. It is the only
// transition function: executor failures never reach it, so a failed order
// leaves the state exactly as it was.
func (m *Machine) Apply(sig models.Signal, fillPrice float64, fillQty int, at time.Time) error {
	switch {
	case sig.Action.IsEntry():
		if !m.state.IsFlat() {
			return apperrors.NewOrderError("", string(sig.Action), "entry while position open", nil)
		}
		m.state = models.PositionState{
			Direction:  entryDirection(sig.Action),
			EntryPrice: fillPrice,
			EntryTime:  at,
			Quantity:   fillQty,
		}
		if m.pending != nil {
			tp := m.pending.TakeProfit
			ts := m.pending.TrailingStop
			m.state.TakeProfit = &tp
			m.state.TrailingStop = &ts
			m.pending = nil
		}

	case sig.Action.IsPartialExit():
		if m.state.IsFlat() {
			return apperrors.NewOrderError("", string(sig.Action), "partial exit while flat", nil)
		}
		if fillQty >= m.state.Quantity {
			return apperrors.NewOrderError("", string(sig.Action), "partial exit would close position", nil)
		}
		m.state.Quantity -= fillQty
		m.state.PartialExitTaken = true

	case sig.Action.IsExit():
		journalRef := m.state.JournalRef
		m.state = models.PositionState{JournalRef: journalRef}

	default:
		return apperrors.NewValidationError("action", sig.Action, "not an applicable fill action")
	}

	return nil
}

// SetJournalRef stores the opaque journal reference for the open trade.
func (m *Machine) SetJournalRef(ref string) {
	m.state.JournalRef = ref
}

// Reconcile forces the local state to match the exchange position. The
// exchange is authoritative without exception. The exchange cannot report
// strategy-internal fields, so a reconciled position re-derives them
// conservatively: trailing stop reset to the entry price, take-profit
// dropped, partial latch cleared. The returned error is a
// ReconciliationMismatchError to be logged as a warning, nil when local and
// exchange already agree.
func (m *Machine) Reconcile(pos models.ExchangePosition) error {
	exchDir := pos.Direction()
	exchQty := pos.Contracts()

	if m.state.Direction == exchDir && m.state.Quantity == exchQty {
		return nil
	}

	local := fmt.Sprintf("%s qty=%d", m.state.Direction, m.state.Quantity)
	remote := fmt.Sprintf("%s qty=%d", exchDir, exchQty)

	if exchDir == models.Flat {
		m.state = models.PositionState{}
	} else {
		stop := pos.EntryPrice
		m.state = models.PositionState{
			Direction:    exchDir,
			EntryPrice:   pos.EntryPrice,
			EntryTime:    time.Now().UTC(),
			Quantity:     exchQty,
			TrailingStop: &stop,
		}
	}

	return apperrors.NewReconciliationMismatchError(pos.Symbol, local, remote)
}
