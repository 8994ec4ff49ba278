package huobi

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"exchange-gateway/internal/core"
)

// marginQuote is the currency margin account values are summed in.
const marginQuote = "usdt"

func parseErr(entity, field string) error {
	return &core.ParseError{Exchange: Name, Entity: entity, Field: field}
}

func isMarketType(t string) bool {
	return strings.HasSuffix(strings.ToLower(t), "-market")
}

// executed returns the executed base amount and quote value. Order detail
// uses field-*, open orders use filled-*.
func (o orderResponse) executed() (decimal.Decimal, decimal.Decimal) {
	amount := core.OptionalDecimal(o.FieldAmount, decimal.Zero)
	cash := core.OptionalDecimal(o.FieldCashAmount, decimal.Zero)
	if amount.IsZero() {
		amount = core.OptionalDecimal(o.FilledAmount, decimal.Zero)
		cash = core.OptionalDecimal(o.FilledCashAmount, decimal.Zero)
	}
	return amount, cash
}

// normalizeOrder maps an order detail. Market orders carry no price; their
// rate is the executed average, and buy-market amounts (quoted in the quote
// currency) are replaced by the executed base amount.
func normalizeOrder(src orderResponse) (core.Order, error) {
	if src.ID == nil {
		return core.Order{}, parseErr("order", "id")
	}
	symbol, err := core.RequireString(Name, "order", "symbol", src.Symbol)
	if err != nil {
		return core.Order{}, err
	}
	side, ok := core.ParseSide(src.Type)
	if !ok {
		return core.Order{}, parseErr("order", "type")
	}
	amount, err := core.RequireDecimal(Name, "order", "amount", src.Amount)
	if err != nil {
		return core.Order{}, err
	}
	rate := decimal.Zero
	if isMarketType(src.Type) {
		execAmount, execCash := src.executed()
		if execAmount.IsPositive() {
			rate = execCash.Div(execAmount)
			if side == core.Buy {
				amount = execAmount
			}
		}
	} else {
		rate, err = core.RequireDecimal(Name, "order", "price", src.Price)
		if err != nil {
			return core.Order{}, err
		}
	}
	return core.NewOrder(Name, strconv.FormatInt(*src.ID, 10), symbol, side, rate, amount), nil
}

func normalizeTrade(src matchResultResponse) (core.Trade, error) {
	if src.ID == nil {
		return core.Trade{}, parseErr("trade", "id")
	}
	if src.OrderID == nil {
		return core.Trade{}, parseErr("trade", "order-id")
	}
	symbol, err := core.RequireString(Name, "trade", "symbol", src.Symbol)
	if err != nil {
		return core.Trade{}, err
	}
	side, ok := core.ParseSide(src.Type)
	if !ok {
		return core.Trade{}, parseErr("trade", "type")
	}
	price, err := core.RequireDecimal(Name, "trade", "price", src.Price)
	if err != nil {
		return core.Trade{}, err
	}
	amount, err := core.RequireDecimal(Name, "trade", "filled-amount", src.FilledAmount)
	if err != nil {
		return core.Trade{}, err
	}
	if src.CreatedAt <= 0 {
		return core.Trade{}, parseErr("trade", "created-at")
	}
	tradeID := *src.ID
	if src.TradeID != nil {
		tradeID = *src.TradeID
	}
	return core.Trade{
		Currency:     symbol,
		OrderID:      strconv.FormatInt(*src.OrderID, 10),
		TradeID:      strconv.FormatInt(tradeID, 10),
		Side:         side,
		Amount:       amount,
		Price:        price,
		Fee:          core.OptionalDecimal(src.FilledFees, decimal.Zero),
		FeeAsset:     strings.ToUpper(src.FeeCurrency),
		FilledAmount: amount,
		Timestamp:    time.UnixMilli(src.CreatedAt).UTC(),
	}, nil
}

// normalizeBalances sums the trade and frozen rows of each currency, keeping
// the order in which currencies first appear.
func normalizeBalances(list []balanceItem, kind core.BalanceKind, includeZero bool) ([]core.Balance, error) {
	totals := make(map[string]decimal.Decimal, len(list))
	var order []string
	for _, item := range list {
		currency, err := core.RequireString(Name, "balance", "currency", item.Currency)
		if err != nil {
			return nil, err
		}
		amount, err := core.RequireDecimal(Name, "balance", "balance", item.Balance)
		if err != nil {
			return nil, err
		}
		if item.Type != "trade" && item.Type != "frozen" {
			continue
		}
		currency = strings.ToUpper(currency)
		if _, seen := totals[currency]; !seen {
			order = append(order, currency)
			totals[currency] = decimal.Zero
		}
		totals[currency] = totals[currency].Add(amount)
	}
	out := make([]core.Balance, 0, len(order))
	for _, currency := range order {
		total := totals[currency]
		if !includeZero && total.IsZero() {
			continue
		}
		out = append(out, core.Balance{Currency: currency, Amount: total, Kind: kind})
	}
	return out, nil
}

// normalizeFilter derives minimums from the symbol precisions. Reported
// order minimums win over the precision step.
func normalizeFilter(src symbolResponse) core.SymbolFilter {
	pair := src.Symbol
	if pair == "" {
		pair = src.BaseCurrency + src.QuoteCurrency
	}
	f := core.NewSymbolFilter(Name, pair)
	if src.PricePrecision != nil {
		f.PriceTick = core.PrecisionStep(*src.PricePrecision)
		f.MinPrice = f.PriceTick
	}
	if src.AmountPrecision != nil {
		f.AmountStep = core.PrecisionStep(*src.AmountPrecision)
		f.MinAmount = f.AmountStep
	}
	f.MinAmount = core.PositiveOr(core.OptionalDecimal(src.MinOrderAmt.String(), decimal.Zero), f.MinAmount)
	f.MinNotional = core.PositiveOr(core.OptionalDecimal(src.MinOrderValue.String(), decimal.Zero), f.MinNotional)
	return f
}

func normalizeMergedTicker(symbol string, src mergedTickResponse) (core.Ticker, error) {
	last, err := core.RequireDecimal(Name, "ticker", "close", src.Close.String())
	if err != nil {
		return core.Ticker{}, err
	}
	t := core.Ticker{
		Symbol: symbol,
		Last:   last,
		High:   core.OptionalDecimal(src.High.String(), decimal.Zero),
		Low:    core.OptionalDecimal(src.Low.String(), decimal.Zero),
		Volume: core.OptionalDecimal(src.Vol.String(), decimal.Zero),
	}
	if len(src.Bid) > 0 {
		t.Bid = core.OptionalDecimal(src.Bid[0].String(), decimal.Zero)
	}
	if len(src.Ask) > 0 {
		t.Ask = core.OptionalDecimal(src.Ask[0].String(), decimal.Zero)
	}
	return t, nil
}

func normalizeTicker(src tickerResponse) (core.Ticker, error) {
	symbol, err := core.RequireString(Name, "ticker", "symbol", src.Symbol)
	if err != nil {
		return core.Ticker{}, err
	}
	last, err := core.RequireDecimal(Name, "ticker", "close", src.Close.String())
	if err != nil {
		return core.Ticker{}, err
	}
	return core.Ticker{
		Symbol: symbol,
		Last:   last,
		Bid:    core.OptionalDecimal(src.Bid.String(), decimal.Zero),
		Ask:    core.OptionalDecimal(src.Ask.String(), decimal.Zero),
		High:   core.OptionalDecimal(src.High.String(), decimal.Zero),
		Low:    core.OptionalDecimal(src.Low.String(), decimal.Zero),
		Volume: core.OptionalDecimal(src.Vol.String(), decimal.Zero),
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
	for i, row := range rows {
		field := side + "[" + strconv.Itoa(i) + "]"
		if len(row) < 2 {
			return nil, parseErr("order book", field)
		}
		price, err := core.RequireDecimal(Name, "order book", field+".price", row[0].String())
		if err != nil {
			return nil, err
		}
		amount, err := core.RequireDecimal(Name, "order book", field+".amount", row[1].String())
		if err != nil {
			return nil, err
		}
		out = append(out, core.BookLevel{Price: price, Amount: amount})
	}
	return out, nil
}

// normalizeMarginPosition maps a filled margin order. Huobi reports no
// position P/L, so ProfitLoss stays zero.
func normalizeMarginPosition(src orderResponse) (core.MarginPosition, error) {
	order, err := normalizeOrder(src)
	if err != nil {
		return core.MarginPosition{}, err
	}
	amount, cash := src.executed()
	if !amount.IsPositive() {
		return core.MarginPosition{}, parseErr("margin position", "field-amount")
	}
	side := core.Long
	if order.Side == core.Sell {
		side = core.Short
	}
	return core.MarginPosition{
		ID:         order.Number,
		Amount:     amount,
		ProfitLoss: decimal.Zero,
		Symbol:     order.Symbol,
		BasePrice:  cash.Div(amount),
		Side:       side,
	}, nil
}

// normalizeMarginInfo sums the isolated margin accounts in marginQuote.
// MarginLevel is the lowest risk rate among the accounts.
func normalizeMarginInfo(accounts []marginBalanceResponse) (core.MarginInfo, error) {
	info := core.MarginInfo{
		Equity:       decimal.Zero,
		NetValue:     decimal.Zero,
		MarginLevel:  decimal.Zero,
		FreeMargin:   decimal.Zero,
		UnrealizedPL: decimal.Zero,
	}
	debt := decimal.Zero
	levelSet := false
	for _, acc := range accounts {
		if acc.RiskRate != "" {
			rate, err := core.RequireDecimal(Name, "margin info", "risk-rate", acc.RiskRate)
			if err != nil {
				return core.MarginInfo{}, err
			}
			if !levelSet || rate.Cmp(info.MarginLevel) < 0 {
				info.MarginLevel = rate
				levelSet = true
			}
		}
		for _, item := range acc.List {
			if !strings.EqualFold(item.Currency, marginQuote) {
				continue
			}
			amount, err := core.RequireDecimal(Name, "margin info", "balance", item.Balance)
			if err != nil {
				return core.MarginInfo{}, err
			}
			switch item.Type {
			case "trade":
				info.Equity = info.Equity.Add(amount)
				info.FreeMargin = info.FreeMargin.Add(amount)
			case "frozen":
				info.Equity = info.Equity.Add(amount)
			case "loan", "interest":
				debt = debt.Add(amount.Abs())
			}
		}
	}
	info.NetValue = info.Equity.Sub(debt)
	return info, nil
}
