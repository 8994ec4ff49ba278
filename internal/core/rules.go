package core

import (
	"github.com/shopspring/decimal"
)

// DefaultFilterMinimum is used for any filter minimum the exchange does not report.
var DefaultFilterMinimum = decimal.New(1, -8)

// NewSymbolFilter returns a filter for pair with every minimum set to
// DefaultFilterMinimum and no tick or step.
func NewSymbolFilter(exchange, pair string) SymbolFilter {
	return SymbolFilter{
		MinPrice:    DefaultFilterMinimum,
		MinAmount:   DefaultFilterMinimum,
		MinNotional: DefaultFilterMinimum,
		PriceTick:   decimal.Zero,
		AmountStep:  decimal.Zero,
		Pair:        pair,
		Exchange:    exchange,
	}
}

// PrecisionStep converts a decimal-places count into its smallest step (3 -> 0.001).
func PrecisionStep(places int32) decimal.Decimal {
	return decimal.New(1, -places)
}

// CheckOrder rounds req down to the filter's tick and step and verifies the
// minimums. Market orders skip the price checks; their notional is only
// checked when a reference rate is supplied. The returned error is one of
// ErrInvalidPrice or ErrInvalidQuantity.
func CheckOrder(req OrderRequest, filter SymbolFilter) (OrderRequest, error) {
	if req.Amount.Cmp(decimal.Zero) <= 0 {
		return req, ErrInvalidQuantity
	}
	req.Amount = RoundDown(req.Amount, filter.AmountStep)
	if req.Amount.Cmp(decimal.Zero) <= 0 {
		return req, ErrInvalidQuantity
	}
	if filter.MinAmount.Cmp(decimal.Zero) > 0 && req.Amount.Cmp(filter.MinAmount) < 0 {
		return req, ErrInvalidQuantity
	}
	if req.Market {
		if req.Rate.Cmp(decimal.Zero) <= 0 {
			return req, nil
		}
		return req, checkNotional(req, filter)
	}
	if req.Rate.Cmp(decimal.Zero) <= 0 {
		return req, ErrInvalidPrice
	}
	req.Rate = RoundDown(req.Rate, filter.PriceTick)
	if req.Rate.Cmp(decimal.Zero) <= 0 {
		return req, ErrInvalidPrice
	}
	if filter.MinPrice.Cmp(decimal.Zero) > 0 && req.Rate.Cmp(filter.MinPrice) < 0 {
		return req, ErrInvalidPrice
	}
	return req, checkNotional(req, filter)
}

func checkNotional(req OrderRequest, filter SymbolFilter) error {
	if filter.MinNotional.Cmp(decimal.Zero) <= 0 {
		return nil
	}
	if req.Rate.Mul(req.Amount).Cmp(filter.MinNotional) < 0 {
		return ErrInvalidQuantity
	}
	return nil
}

func RoundDown(value, step decimal.Decimal) decimal.Decimal {
	if step.Cmp(decimal.Zero) <= 0 {
		return value
	}
	return value.Div(step).Floor().Mul(step)
}
