// Package models provides domain models for the trading engine.
package models

import (
	"time"
)

// Timeframe represents a candle interval.
type Timeframe string

const (
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe3h  Timeframe = "3h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// Duration returns the wall-clock length of one candle interval.
// Unknown timeframes default to one hour.
func (t Timeframe) Duration() time.Duration {
	switch t {
	case Timeframe5m:
		return 5 * time.Minute
	case Timeframe15m:
		return 15 * time.Minute
	case Timeframe1h:
		return time.Hour
	case Timeframe3h:
		return 3 * time.Hour
	case Timeframe4h:
		return 4 * time.Hour
	case Timeframe1d:
		return 24 * time.Hour
	default:
		return time.Hour
	}
}

// Candle represents OHLCV data for one interval. OpenTime marks the start of
// the interval; the candle is closed once OpenTime + Timeframe has elapsed.
type Candle struct {
	OpenTime  time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
	Timeframe Timeframe
}

// Direction represents the side of an open position.
type Direction int

const (
	Flat  Direction = 0
	Long  Direction = 1
	Short Direction = -1
)

func (d Direction) String() string {
	switch d {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	default:
		return "FLAT"
	}
}

// Action is the decision emitted by a strategy evaluation.
type Action string

const (
	ActionNone             Action = "NONE"
	ActionEnterLong        Action = "ENTER_LONG"
	ActionEnterShort       Action = "ENTER_SHORT"
	ActionExitLong         Action = "EXIT_LONG"
	ActionExitShort        Action = "EXIT_SHORT"
	ActionExitLongPartial  Action = "EXIT_LONG_PARTIAL"
	ActionExitShortPartial Action = "EXIT_SHORT_PARTIAL"
	ActionPartialExit      Action = "PARTIAL_EXIT"
)

// IsEntry reports whether the action opens a new position.
func (a Action) IsEntry() bool {
	return a == ActionEnterLong || a == ActionEnterShort
}

// IsExit reports whether the action fully closes a position.
func (a Action) IsExit() bool {
	return a == ActionExitLong || a == ActionExitShort
}

// IsPartialExit reports whether the action reduces a position without
// closing it. PARTIAL_EXIT infers direction from the live position;
// EXIT_LONG_PARTIAL / EXIT_SHORT_PARTIAL carry it explicitly.
func (a Action) IsPartialExit() bool {
	return a == ActionPartialExit || a == ActionExitLongPartial || a == ActionExitShortPartial
}

// Signal is the result of one strategy evaluation over a closed candle.
// Produced fresh each tick and never persisted.
type Signal struct {
	Action      Action
	Reason      string
	CandleIndex int
}

// None returns the no-op signal for the given candle index.
func None(idx int) Signal {
	return Signal{Action: ActionNone, CandleIndex: idx}
}

// PositionState is the strategy-local view of the open position. It is
// mutated only by the strategy machine's transition function; the executor
// and reconciler go through that function rather than writing fields
// directly.
type PositionState struct {
	Direction        Direction
	EntryPrice       float64
	EntryTime        time.Time
	Quantity         int
	TrailingStop     *float64
	TakeProfit       *float64
	PartialExitTaken bool

	// JournalRef is an opaque reference handed back by the journal sink.
	// It is forwarded on subsequent events and never interpreted.
	JournalRef string
}

// IsFlat reports whether no position is open.
func (p *PositionState) IsFlat() bool {
	return p.Direction == Flat
}

// ExchangePosition is the authoritative position as reported by the
// exchange. Size is signed: positive for long, negative for short.
type ExchangePosition struct {
	Symbol     string
	Size       float64
	EntryPrice float64
}

// Direction derives the position side from the signed size.
func (e ExchangePosition) Direction() Direction {
	switch {
	case e.Size > 0:
		return Long
	case e.Size < 0:
		return Short
	default:
		return Flat
	}
}

// Contracts returns the absolute position size in whole contracts.
func (e ExchangePosition) Contracts() int {
	if e.Size < 0 {
		return int(-e.Size)
	}
	return int(e.Size)
}

// OrderSide represents the side of an order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderIntent is a market order derived from a signal. It exists only for
// the duration of one submission attempt, including retries.
type OrderIntent struct {
	Symbol        string
	Side          OrderSide
	Quantity      int
	ClientOrderID string
	Signal        Signal
}

// OrderResult is the confirmed outcome of an order placement.
type OrderResult struct {
	OrderID     string
	FilledPrice float64
}

// TradeEvent is the record handed to the journaling and alerting sinks.
// PnL and PnLPercent are populated on exits and partial exits, zero on
// entries.
type TradeEvent struct {
	Symbol     string
	Strategy   string
	Action     Action
	Price      float64
	Quantity   int
	Reason     string
	OrderID    string
	JournalRef string
	PnL        float64
	PnLPercent float64
	At         time.Time
}

// TickOutcome is returned by the engine for every tick. Exactly one of
// Order / Err may be set alongside the signal.
type TickOutcome struct {
	Signal Signal
	Order  *OrderResult
	Err    error
}
