package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func level(price, amount string) BookLevel {
	return BookLevel{Price: decimal.RequireFromString(price), Amount: decimal.RequireFromString(amount)}
}

func TestFillPrice(t *testing.T) {
	book := OrderBook{
		Bids: []BookLevel{level("99", "1"), level("98", "2")},
		Asks: []BookLevel{level("101", "0.5"), level("102", "1")},
	}

	price, ok := book.FillPrice(Buy, decimal.RequireFromString("1"))
	require.True(t, ok)
	require.True(t, price.Equal(decimal.NewFromInt(102)))

	price, ok = book.FillPrice(Sell, decimal.RequireFromString("1"))
	require.True(t, ok)
	require.True(t, price.Equal(decimal.NewFromInt(99)))

	_, ok = book.FillPrice(Sell, decimal.RequireFromString("5"))
	require.False(t, ok)
}

func TestParseSide(t *testing.T) {
	for in, want := range map[string]Side{"BUY": Buy, "sell": Sell, "buy-limit": Buy, "sell-ioc": Sell} {
		got, ok := ParseSide(in)
		require.True(t, ok, in)
		require.Equal(t, want, got, in)
	}
	_, ok := ParseSide("hold")
	require.False(t, ok)
}

func TestErrorTaxonomyMatchesSentinels(t *testing.T) {
	var err error = &ParseError{Exchange: "binance", Entity: "order", Field: "orderId"}
	require.True(t, errors.Is(err, ErrParse))
	require.Contains(t, err.Error(), `"orderId"`)

	err = &TransportError{Method: "GET", URL: "http://x", Status: 502, Body: []byte("bad gateway")}
	require.True(t, errors.Is(err, ErrTransport))
	require.False(t, errors.Is(err, ErrParse))

	err = &ConfigurationError{Exchange: "kraken", Reason: "api key missing"}
	require.True(t, errors.Is(err, ErrConfiguration))

	rej := NewRejection(ErrInsufficientBalance, "-2010", "Account has insufficient balance")
	require.True(t, errors.Is(rej, ErrInsufficientBalance))
	require.Equal(t, ErrOrderRejected, NewRejection(nil, "", "").Kind)
}

func TestPlacementOK(t *testing.T) {
	require.True(t, Accepted(Order{Number: "1"}).OK())
	require.False(t, Rejected(NewRejection(ErrInvalidPrice, "", "")).OK())
	require.False(t, Placement{}.OK())
}
