package core

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrFeeAlreadyApplied = errors.New("fee already applied to order")

// ApplyFee returns a copy of order with the taker fee folded into Total:
// sells receive Total×(1−taker), buys pay Total×(1+taker). The input is not
// modified. An order that already carries a fee adjustment is refused so a
// second call cannot compound the fee.
func ApplyFee(order Order, fee FeeInfo) (Order, error) {
	if order.FeeApplied {
		return order, ErrFeeAlreadyApplied
	}
	one := decimal.NewFromInt(1)
	out := order
	switch order.Side {
	case Sell:
		out.Total = order.Total.Mul(one.Sub(fee.TakerFee))
	case Buy:
		out.Total = order.Total.Mul(one.Add(fee.TakerFee))
	default:
		return order, errors.New("apply fee: unknown order side " + string(order.Side))
	}
	out.FeeApplied = true
	return out, nil
}
