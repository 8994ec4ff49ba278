package kraken

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"exchange-gateway/internal/core"
)

func parseErr(entity, field string) error {
	return &core.ParseError{Exchange: Name, Entity: entity, Field: field}
}

// requireDecimal also accepts the explicit "+" sign Kraken puts on P/L values.
func requireDecimal(entity, field, raw string) (decimal.Decimal, error) {
	return core.RequireDecimal(Name, entity, field, strings.TrimPrefix(strings.TrimSpace(raw), "+"))
}

// NormalizeAsset strips the X/Z class prefix of legacy asset codes (XXBT -> XBT, ZUSD -> USD).
func NormalizeAsset(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	if len(name) == 4 && (name[0] == 'X' || name[0] == 'Z') {
		return name[1:]
	}
	return name
}

// parseTime converts Kraken's fractional unix seconds without going through float64.
func parseTime(entity, field, raw string) (time.Time, error) {
	secs, err := requireDecimal(entity, field, raw)
	if err != nil {
		return time.Time{}, err
	}
	if !secs.IsPositive() {
		return time.Time{}, parseErr(entity, field)
	}
	return time.UnixMilli(secs.Shift(3).IntPart()).UTC(), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func normalizeBalances(src map[string]string, includeZero bool) ([]core.Balance, error) {
	totals := make(map[string]decimal.Decimal, len(src))
	for asset, raw := range src {
		amount, err := requireDecimal("balance", asset, raw)
		if err != nil {
			return nil, err
		}
		currency := NormalizeAsset(asset)
		totals[currency] = totals[currency].Add(amount)
	}
	out := make([]core.Balance, 0, len(totals))
	for _, currency := range sortedKeys(totals) {
		total := totals[currency]
		if !includeZero && total.IsZero() {
			continue
		}
		out = append(out, core.Balance{Currency: currency, Amount: total, Kind: core.KindExchange})
	}
	return out, nil
}

func first(v []string) string {
	if len(v) == 0 {
		return ""
	}
	return v[0]
}

// last24h picks the rolling 24h entry of a [today, last 24 hours] pair.
func last24h(v []string) string {
	if len(v) < 2 {
		return first(v)
	}
	return v[1]
}

func normalizeTicker(pair string, src tickerResponse) (core.Ticker, error) {
	last, err := requireDecimal("ticker", "c[0]", first(src.C))
	if err != nil {
		return core.Ticker{}, err
	}
	return core.Ticker{
		Symbol: pair,
		Last:   last,
		Bid:    core.OptionalDecimal(first(src.B), decimal.Zero),
		Ask:    core.OptionalDecimal(first(src.A), decimal.Zero),
		High:   core.OptionalDecimal(last24h(src.H), decimal.Zero),
		Low:    core.OptionalDecimal(last24h(src.L), decimal.Zero),
		Volume: core.OptionalDecimal(last24h(src.V), decimal.Zero),
	}, nil
}

func normalizeDepth(symbol string, src depthResponse) (core.OrderBook, error) {
	bids, err := bookLevels("bids", src.Bids)
	if err != nil {
		return core.OrderBook{}, err
	}
	asks, err := bookLevels("asks", src.Asks)
	if err != nil {
		return core.OrderBook{}, err
	}
	return core.OrderBook{Symbol: symbol, Bids: bids, Asks: asks}, nil
}

func bookLevels(side string, rows [][]json.Number) ([]core.BookLevel, error) {
	out := make([]core.BookLevel, 0, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			return nil, parseErr("order book", side)
		}
		price, err := requireDecimal("order book", side+".price", row[0].String())
		if err != nil {
			return nil, err
		}
		amount, err := requireDecimal("order book", side+".volume", row[1].String())
		if err != nil {
			return nil, err
		}
		out = append(out, core.BookLevel{Price: price, Amount: amount})
	}
	return out, nil
}

// normalizeFilter keys the filter by altname (XBTUSD), the form orders accept.
func normalizeFilter(key string, src assetPairResponse) core.SymbolFilter {
	pair := src.Altname
	if pair == "" {
		pair = key
	}
	f := core.NewSymbolFilter(Name, pair)
	tick := core.OptionalDecimal(src.TickSize, decimal.Zero)
	if !tick.IsPositive() && src.PairDecimals != nil {
		tick = core.PrecisionStep(*src.PairDecimals)
	}
	if tick.IsPositive() {
		f.PriceTick = tick
		f.MinPrice = tick
	}
	if src.LotDecimals != nil {
		f.AmountStep = core.PrecisionStep(*src.LotDecimals)
	}
	f.MinAmount = core.PositiveOr(core.OptionalDecimal(src.OrderMin, decimal.Zero), f.MinAmount)
	f.MinNotional = core.PositiveOr(core.OptionalDecimal(src.CostMin, decimal.Zero), f.MinNotional)
	return f
}

// normalizeOrder maps an OpenOrders/QueryOrders entry keyed by txid. Market
// orders report no descr price; their rate is the executed average.
func normalizeOrder(txid string, src orderInfoResponse) (core.Order, error) {
	if txid == "" {
		return core.Order{}, parseErr("order", "txid")
	}
	pair, err := core.RequireString(Name, "order", "descr.pair", src.Descr.Pair)
	if err != nil {
		return core.Order{}, err
	}
	side, ok := core.ParseSide(src.Descr.Type)
	if !ok {
		return core.Order{}, parseErr("order", "descr.type")
	}
	amount, err := requireDecimal("order", "vol", src.Vol)
	if err != nil {
		return core.Order{}, err
	}
	rate := core.OptionalDecimal(src.Descr.Price, decimal.Zero)
	if rate.IsZero() {
		rate = core.OptionalDecimal(src.Price, decimal.Zero)
	}
	return core.NewOrder(Name, txid, pair, side, rate, amount), nil
}

func normalizeTrade(tradeID string, src tradeResponse) (core.Trade, error) {
	orderID, err := core.RequireString(Name, "trade", "ordertxid", src.OrderTxID)
	if err != nil {
		return core.Trade{}, err
	}
	pair, err := core.RequireString(Name, "trade", "pair", src.Pair)
	if err != nil {
		return core.Trade{}, err
	}
	side, ok := core.ParseSide(src.Type)
	if !ok {
		return core.Trade{}, parseErr("trade", "type")
	}
	price, err := requireDecimal("trade", "price", src.Price)
	if err != nil {
		return core.Trade{}, err
	}
	vol, err := requireDecimal("trade", "vol", src.Vol)
	if err != nil {
		return core.Trade{}, err
	}
	ts, err := parseTime("trade", "time", src.Time.String())
	if err != nil {
		return core.Trade{}, err
	}
	return core.Trade{
		Currency:     pair,
		OrderID:      orderID,
		TradeID:      tradeID,
		Side:         side,
		Amount:       vol,
		Price:        price,
		Fee:          core.OptionalDecimal(src.Fee, decimal.Zero),
		FilledAmount: vol,
		Timestamp:    ts,
	}, nil
}

// normalizeMarginPosition reports the open (unclosed) volume. BasePrice is
// the position's average entry, cost over volume.
func normalizeMarginPosition(id string, src positionResponse) (core.MarginPosition, error) {
	pair, err := core.RequireString(Name, "margin position", "pair", src.Pair)
	if err != nil {
		return core.MarginPosition{}, err
	}
	vol, err := requireDecimal("margin position", "vol", src.Vol)
	if err != nil {
		return core.MarginPosition{}, err
	}
	if !vol.IsPositive() {
		return core.MarginPosition{}, parseErr("margin position", "vol")
	}
	cost, err := requireDecimal("margin position", "cost", src.Cost)
	if err != nil {
		return core.MarginPosition{}, err
	}
	side, ok := core.ParseSide(src.Type)
	if !ok {
		return core.MarginPosition{}, parseErr("margin position", "type")
	}
	pos := core.Long
	if side == core.Sell {
		pos = core.Short
	}
	closed := core.OptionalDecimal(src.VolClosed, decimal.Zero)
	return core.MarginPosition{
		ID:         id,
		Amount:     vol.Sub(closed),
		ProfitLoss: core.OptionalDecimal(strings.TrimPrefix(src.Net, "+"), decimal.Zero),
		Symbol:     pair,
		BasePrice:  cost.Div(vol),
		Side:       pos,
	}, nil
}

// normalizeMarginInfo maps TradeBalance. ml is absent without open positions.
func normalizeMarginInfo(src tradeBalanceResponse) (core.MarginInfo, error) {
	equity, err := requireDecimal("margin info", "e", src.E)
	if err != nil {
		return core.MarginInfo{}, err
	}
	net, err := requireDecimal("margin info", "eb", src.EB)
	if err != nil {
		return core.MarginInfo{}, err
	}
	free, err := requireDecimal("margin info", "mf", src.MF)
	if err != nil {
		return core.MarginInfo{}, err
	}
	pl, err := requireDecimal("margin info", "n", src.N)
	if err != nil {
		return core.MarginInfo{}, err
	}
	return core.MarginInfo{
		Equity:       equity,
		NetValue:     net,
		MarginLevel:  core.OptionalDecimal(src.ML, decimal.Zero),
		FreeMargin:   free,
		UnrealizedPL: pl,
	}, nil
}

func sortTrades(trades []core.Trade) {
	sort.SliceStable(trades, func(i, j int) bool {
		if !trades[i].Timestamp.Equal(trades[j].Timestamp) {
			return trades[i].Timestamp.Before(trades[j].Timestamp)
		}
		return trades[i].TradeID < trades[j].TradeID
	})
}
