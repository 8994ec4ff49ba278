package core

import "github.com/shopspring/decimal"

// FillPrice walks the side of the book a taker order of the given side
// consumes and returns the price of the level at which amount is covered.
// ok is false when the book is too thin.
func (b OrderBook) FillPrice(side Side, amount decimal.Decimal) (decimal.Decimal, bool) {
	levels := b.Asks
	if side == Sell {
		levels = b.Bids
	}
	remaining := amount
	for _, lvl := range levels {
		remaining = remaining.Sub(lvl.Amount)
		if remaining.Cmp(decimal.Zero) <= 0 {
			return lvl.Price, true
		}
	}
	return decimal.Zero, false
}
