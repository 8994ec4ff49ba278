package binance

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"exchange-gateway/internal/core"
)

func parseErr(entity, field string) error {
	return &core.ParseError{Exchange: Name, Entity: entity, Field: field}
}

// normalizeOrder maps an order payload. Market orders report price 0, so the
// rate falls back to the fill-weighted average, then to quote/executed qty.
func normalizeOrder(src orderResponse) (core.Order, error) {
	if src.OrderID == nil {
		return core.Order{}, parseErr("order", "orderId")
	}
	symbol, err := core.RequireString(Name, "order", "symbol", src.Symbol)
	if err != nil {
		return core.Order{}, err
	}
	side, ok := core.ParseSide(src.Side)
	if !ok {
		return core.Order{}, parseErr("order", "side")
	}
	amount, err := core.RequireDecimal(Name, "order", "origQty", src.OrigQty)
	if err != nil {
		return core.Order{}, err
	}
	rate, err := core.RequireDecimal(Name, "order", "price", src.Price)
	if err != nil {
		return core.Order{}, err
	}
	if rate.IsZero() {
		rate, err = executedRate(src)
		if err != nil {
			return core.Order{}, err
		}
	}
	return core.NewOrder(Name, strconv.FormatInt(*src.OrderID, 10), symbol, side, rate, amount), nil
}

func executedRate(src orderResponse) (decimal.Decimal, error) {
	quote, qty := decimal.Zero, decimal.Zero
	for i, f := range src.Fills {
		p, err := core.RequireDecimal(Name, "order", "fills["+strconv.Itoa(i)+"].price", f.Price)
		if err != nil {
			return decimal.Zero, err
		}
		q, err := core.RequireDecimal(Name, "order", "fills["+strconv.Itoa(i)+"].qty", f.Qty)
		if err != nil {
			return decimal.Zero, err
		}
		quote = quote.Add(p.Mul(q))
		qty = qty.Add(q)
	}
	if qty.IsPositive() {
		return quote.Div(qty), nil
	}
	executed := core.OptionalDecimal(src.ExecutedQty, decimal.Zero)
	cum := core.OptionalDecimal(src.CumulativeQuoteQty, decimal.Zero)
	if executed.IsPositive() {
		return cum.Div(executed), nil
	}
	return decimal.Zero, nil
}

func normalizeTrade(src myTradeResponse) (core.Trade, error) {
	if src.ID == nil {
		return core.Trade{}, parseErr("trade", "id")
	}
	if src.OrderID == nil {
		return core.Trade{}, parseErr("trade", "orderId")
	}
	symbol, err := core.RequireString(Name, "trade", "symbol", src.Symbol)
	if err != nil {
		return core.Trade{}, err
	}
	price, err := core.RequireDecimal(Name, "trade", "price", src.Price)
	if err != nil {
		return core.Trade{}, err
	}
	qty, err := core.RequireDecimal(Name, "trade", "qty", src.Qty)
	if err != nil {
		return core.Trade{}, err
	}
	if src.Time <= 0 {
		return core.Trade{}, parseErr("trade", "time")
	}
	side := core.Sell
	if src.IsBuyer {
		side = core.Buy
	}
	return core.Trade{
		Currency:     symbol,
		OrderID:      strconv.FormatInt(*src.OrderID, 10),
		TradeID:      strconv.FormatInt(*src.ID, 10),
		Side:         side,
		Amount:       qty,
		Price:        price,
		Fee:          core.OptionalDecimal(src.Commission, decimal.Zero),
		FeeAsset:     src.CommissionAsset,
		FilledAmount: qty,
		Timestamp:    time.UnixMilli(src.Time).UTC(),
	}, nil
}

// normalizeBalances aggregates free+locked per asset. Zero rows are dropped
// unless includeZero is set.
func normalizeBalances(src accountResponse, includeZero bool) ([]core.Balance, error) {
	out := make([]core.Balance, 0, len(src.Balances))
	for _, b := range src.Balances {
		asset, err := core.RequireString(Name, "balance", "asset", b.Asset)
		if err != nil {
			return nil, err
		}
		free, err := core.RequireDecimal(Name, "balance", "free", b.Free)
		if err != nil {
			return nil, err
		}
		locked, err := core.RequireDecimal(Name, "balance", "locked", b.Locked)
		if err != nil {
			return nil, err
		}
		if !includeZero && free.IsZero() && locked.IsZero() {
			continue
		}
		out = append(out, core.Balance{
			Currency: strings.ToUpper(asset),
			Amount:   free.Add(locked),
			Kind:     core.KindExchange,
		})
	}
	return out, nil
}

// normalizeFeeInfo converts commissions expressed in basis points / 100 (10 = 0.1%).
func normalizeFeeInfo(src accountResponse) (core.FeeInfo, error) {
	if src.MakerCommission == nil {
		return core.FeeInfo{}, parseErr("fee info", "makerCommission")
	}
	if src.TakerCommission == nil {
		return core.FeeInfo{}, parseErr("fee info", "takerCommission")
	}
	scale := decimal.NewFromInt(10000)
	return core.FeeInfo{
		MakerFee: decimal.NewFromInt(*src.MakerCommission).Div(scale),
		TakerFee: decimal.NewFromInt(*src.TakerCommission).Div(scale),
	}, nil
}

func normalizeFilter(src symbolInfoResponse) core.SymbolFilter {
	f := core.NewSymbolFilter(Name, src.Symbol)
	for _, sf := range src.Filters {
		switch sf.FilterType {
		case "PRICE_FILTER":
			f.MinPrice = core.PositiveOr(core.OptionalDecimal(sf.MinPrice, decimal.Zero), f.MinPrice)
			f.PriceTick = core.OptionalDecimal(sf.TickSize, decimal.Zero)
		case "LOT_SIZE":
			f.MinAmount = core.PositiveOr(core.OptionalDecimal(sf.MinQty, decimal.Zero), f.MinAmount)
			f.AmountStep = core.OptionalDecimal(sf.StepSize, decimal.Zero)
		case "MIN_NOTIONAL", "NOTIONAL":
			v := core.OptionalDecimal(sf.MinNotional, decimal.Zero)
			// If both MIN_NOTIONAL and NOTIONAL are present, keep the stricter minimum.
			if v.IsPositive() && (f.MinNotional.Equal(core.DefaultFilterMinimum) || v.Cmp(f.MinNotional) > 0) {
				f.MinNotional = v
			}
		}
	}
	return f
}

func normalizeTicker(src ticker24hrResponse) (core.Ticker, error) {
	symbol, err := core.RequireString(Name, "ticker", "symbol", src.Symbol)
	if err != nil {
		return core.Ticker{}, err
	}
	last, err := core.RequireDecimal(Name, "ticker", "lastPrice", src.LastPrice)
	if err != nil {
		return core.Ticker{}, err
	}
	return core.Ticker{
		Symbol: symbol,
		Last:   last,
		Bid:    core.OptionalDecimal(src.BidPrice, decimal.Zero),
		Ask:    core.OptionalDecimal(src.AskPrice, decimal.Zero),
		High:   core.OptionalDecimal(src.HighPrice, decimal.Zero),
		Low:    core.OptionalDecimal(src.LowPrice, decimal.Zero),
		Volume: core.OptionalDecimal(src.Volume, decimal.Zero),
	}, nil
}

func normalizeBookTicker(src bookTickerResponse) (core.OrderBook, error) {
	book := core.OrderBook{Symbol: src.Symbol}
	bid, err := core.RequireDecimal(Name, "order book", "bidPrice", src.BidPrice)
	if err != nil {
		return book, err
	}
	bidQty, err := core.RequireDecimal(Name, "order book", "bidQty", src.BidQty)
	if err != nil {
		return book, err
	}
	ask, err := core.RequireDecimal(Name, "order book", "askPrice", src.AskPrice)
	if err != nil {
		return book, err
	}
	askQty, err := core.RequireDecimal(Name, "order book", "askQty", src.AskQty)
	if err != nil {
		return book, err
	}
	book.Bids = []core.BookLevel{{Price: bid, Amount: bidQty}}
	book.Asks = []core.BookLevel{{Price: ask, Amount: askQty}}
	return book, nil
}
