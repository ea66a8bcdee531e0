// Package sizing converts a margin target into a whole number of contracts.
package sizing

import (
	"math"

	apperrors "delta-trader/internal/errors"
)

// Params are the inputs for one sizing computation. ContractValue is the
// underlying amount represented by one contract, taken from the product
// definition.
type Params struct {
	TargetMargin  float64
	Leverage      float64
	Price         float64
	ContractValue float64
	EvenContracts bool
}

// Contracts computes the position size for an entry:
//
//	floor((targetMargin * leverage) / (price * contractValue))
//
// with a floor of one contract. With EvenContracts set the size is rounded
// down to an even number with a floor of two, so a half exit always lands on
// a whole contract count.
func Contracts(p Params) (int, error) {
	if p.TargetMargin <= 0 {
		return 0, apperrors.NewValidationError("target_margin", p.TargetMargin, "must be positive")
	}
	if p.Leverage <= 0 {
		return 0, apperrors.NewValidationError("leverage", p.Leverage, "must be positive")
	}
	if p.Price <= 0 {
		return 0, apperrors.NewValidationError("price", p.Price, "must be positive")
	}
	if p.ContractValue <= 0 {
		return 0, apperrors.NewValidationError("contract_value", p.ContractValue, "must be positive")
	}

	notional := p.TargetMargin * p.Leverage
	size := int(math.Floor(notional / (p.Price * p.ContractValue)))
	if size < 1 {
		size = 1
	}

	if p.EvenContracts {
		size -= size % 2
		if size < 2 {
			size = 2
		}
	}

	return size, nil
}

// PartialQuantity returns the number of contracts a partial exit of the
// given fraction covers, rounded to the nearest whole contract and clamped
// so at least one contract remains open.
func PartialQuantity(open int, fraction float64) int {
	if open <= 1 {
		return 0
	}
	qty := int(math.Round(float64(open) * fraction))
	if qty < 1 {
		qty = 1
	}
	if qty >= open {
		qty = open - 1
	}
	return qty
}
