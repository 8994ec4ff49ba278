package core

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

type BalanceKind string

type PositionSide string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

const (
	KindExchange BalanceKind = "exchange"
	KindMargin   BalanceKind = "margin"
)

const (
	Long  PositionSide = "long"
	Short PositionSide = "short"
)

// ParseSide accepts the casing variants exchanges use ("BUY", "sell", "buy-limit").
func ParseSide(v string) (Side, bool) {
	v = strings.ToLower(strings.TrimSpace(v))
	switch {
	case v == "buy" || strings.HasPrefix(v, "buy-"):
		return Buy, true
	case v == "sell" || strings.HasPrefix(v, "sell-"):
		return Sell, true
	}
	return "", false
}

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Opposite returns the order side that reduces a position on this side.
func (p PositionSide) Opposite() Side {
	if p == Long {
		return Sell
	}
	return Buy
}

// Order is a snapshot of an exchange order. Exchange names the adapter that
// produced it; the order keeps no handle to it.
type Order struct {
	Number     string
	Rate       decimal.Decimal
	Side       Side
	Amount     decimal.Decimal
	Total      decimal.Decimal
	Symbol     string
	Exchange   string
	FeeApplied bool
}

// NewOrder builds an order whose Total is the raw notional Amount×Rate.
func NewOrder(exchange, number, symbol string, side Side, rate, amount decimal.Decimal) Order {
	return Order{
		Number:   number,
		Rate:     rate,
		Side:     side,
		Amount:   amount,
		Total:    amount.Mul(rate),
		Symbol:   symbol,
		Exchange: exchange,
	}
}

type Trade struct {
	Currency     string
	OrderID      string
	TradeID      string
	Side         Side
	Amount       decimal.Decimal
	Price        decimal.Decimal
	Fee          decimal.Decimal
	FeeAsset     string
	FilledAmount decimal.Decimal
	Timestamp    time.Time
}

type Balance struct {
	Currency string
	Amount   decimal.Decimal
	Kind     BalanceKind
}

type MarginPosition struct {
	ID         string
	Amount     decimal.Decimal
	ProfitLoss decimal.Decimal
	Symbol     string
	BasePrice  decimal.Decimal
	Side       PositionSide
}

type MarginInfo struct {
	Equity       decimal.Decimal
	NetValue     decimal.Decimal
	MarginLevel  decimal.Decimal
	FreeMargin   decimal.Decimal
	UnrealizedPL decimal.Decimal
}

type SymbolFilter struct {
	MinPrice    decimal.Decimal
	MinAmount   decimal.Decimal
	MinNotional decimal.Decimal
	PriceTick   decimal.Decimal
	AmountStep  decimal.Decimal
	Pair        string
	Exchange    string
}

// Valuation is the value of the whole account expressed in Quote.
type Valuation struct {
	Quote string
	Total decimal.Decimal
	// Unpriced lists held currencies with no market to Quote; they are
	// left out of Total.
	Unpriced []string
}

type FeeInfo struct {
	MakerFee decimal.Decimal
	TakerFee decimal.Decimal
}

type Ticker struct {
	Symbol string
	Last   decimal.Decimal
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Volume decimal.Decimal
}

type BookLevel struct {
	Price  decimal.Decimal
	Amount decimal.Decimal
}

type OrderBook struct {
	Symbol string
	Bids   []BookLevel
	Asks   []BookLevel
}

type OrderRequest struct {
	Symbol   string
	Side     Side
	Rate     decimal.Decimal
	Amount   decimal.Decimal
	Market   bool
	ClientID string
}

type MarginRequest struct {
	Symbol   string
	Side     Side
	Rate     decimal.Decimal
	Amount   decimal.Decimal
	Leverage int
}

// TradeFilter narrows a trade history query. Zero fields are not sent.
type TradeFilter struct {
	Symbol string
	Start  time.Time
	End    time.Time
	Limit  int
}

// Placement is the outcome of a call that creates an order. Exactly one of
// Order or Rejection is meaningful.
type Placement struct {
	Order     Order
	Rejection *Rejection
}

func Accepted(order Order) Placement {
	return Placement{Order: order}
}

func Rejected(r *Rejection) Placement {
	return Placement{Rejection: r}
}

func (p Placement) OK() bool {
	return p.Rejection == nil && p.Order.Number != ""
}
