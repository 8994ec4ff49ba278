package core

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// BridgeCurrency prices assets that have no direct market to the quote.
const BridgeCurrency = "BTC"

// ValueBalances converts every non-zero balance to quote using the last
// prices in tickers. Ticker symbols are matched as BASE+QUOTE ignoring case;
// an inverse market is used divided, and BTC bridges assets without either.
func ValueBalances(quote string, balances []Balance, tickers []Ticker) Valuation {
	quote = strings.ToUpper(strings.TrimSpace(quote))
	prices := make(map[string]decimal.Decimal, len(tickers))
	for _, t := range tickers {
		if t.Last.IsPositive() {
			prices[strings.ToUpper(t.Symbol)] = t.Last
		}
	}
	v := Valuation{Quote: quote, Total: decimal.Zero}
	unpriced := map[string]bool{}
	for _, b := range balances {
		if b.Amount.IsZero() {
			continue
		}
		currency := strings.ToUpper(b.Currency)
		price, ok := priceIn(prices, currency, quote)
		if !ok {
			unpriced[currency] = true
			continue
		}
		v.Total = v.Total.Add(b.Amount.Mul(price))
	}
	for c := range unpriced {
		v.Unpriced = append(v.Unpriced, c)
	}
	sort.Strings(v.Unpriced)
	return v
}

func priceIn(prices map[string]decimal.Decimal, base, quote string) (decimal.Decimal, bool) {
	if base == quote {
		return decimal.NewFromInt(1), true
	}
	if p, ok := marketPrice(prices, base, quote); ok {
		return p, true
	}
	if base == BridgeCurrency || quote == BridgeCurrency {
		return decimal.Zero, false
	}
	toBridge, ok := marketPrice(prices, base, BridgeCurrency)
	if !ok {
		return decimal.Zero, false
	}
	fromBridge, ok := marketPrice(prices, BridgeCurrency, quote)
	if !ok {
		return decimal.Zero, false
	}
	return toBridge.Mul(fromBridge), true
}

func marketPrice(prices map[string]decimal.Decimal, base, quote string) (decimal.Decimal, bool) {
	if p, ok := prices[base+quote]; ok {
		return p, true
	}
	if p, ok := prices[quote+base]; ok {
		return decimal.NewFromInt(1).Div(p), true
	}
	return decimal.Zero, false
}
