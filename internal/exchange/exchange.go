package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"exchange-gateway/internal/core"
)

// Exchange is the normalized trading surface every adapter implements.
// Business rejections come back inside core.Placement or as a false result;
// errors are reserved for configuration, transport and parse failures and for
// exchange API errors on read-only calls.
type Exchange interface {
	Name() string
	Balances(ctx context.Context) ([]core.Balance, error)
	FullBalances(ctx context.Context) ([]core.Balance, error)
	Tickers(ctx context.Context, symbol string) ([]core.Ticker, error)
	OrderBook(ctx context.Context, symbol string) (*core.OrderBook, error)
	Filters(ctx context.Context) ([]core.SymbolFilter, error)
	FeeInfo(ctx context.Context) (core.FeeInfo, error)
	// Valuation is the value of every balance expressed in quote.
	Valuation(ctx context.Context, quote string) (core.Valuation, error)
	NewOrder(ctx context.Context, req core.OrderRequest) (core.Placement, error)
	CancelOrder(ctx context.Context, order core.Order) (bool, error)
	OpenOrders(ctx context.Context) ([]core.Order, error)
	TradeHistory(ctx context.Context, filter core.TradeFilter) ([]core.Trade, error)
	IsOrderFulfilled(ctx context.Context, order core.Order) (bool, error)
	// ExecutedAmount is the base quantity of order filled so far. After a
	// confirmed cancel it is final.
	ExecutedAmount(ctx context.Context, order core.Order) (decimal.Decimal, error)
}

// MarginExchange is implemented by adapters that can trade on margin.
type MarginExchange interface {
	Exchange
	OpenMarginPosition(ctx context.Context, req core.MarginRequest) (core.Placement, error)
	CloseMarginPosition(ctx context.Context, symbol string) (bool, error)
	MarginPositions(ctx context.Context) ([]core.MarginPosition, error)
	MarginInfo(ctx context.Context) (core.MarginInfo, error)
}

type Credentials interface {
	Key() string
	Secret() string
}

// StaticCredentials is a Credentials backed by two strings.
type StaticCredentials struct {
	APIKey    string
	APISecret string
}

func (c StaticCredentials) Key() string    { return c.APIKey }
func (c StaticCredentials) Secret() string { return c.APISecret }
