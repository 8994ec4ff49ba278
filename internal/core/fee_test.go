package core

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestApplyFee(t *testing.T) {
	fee := FeeInfo{TakerFee: decimal.RequireFromString("0.001")}
	cases := []struct {
		side Side
		want string
	}{
		{Sell, "99.9"},
		{Buy, "100.1"},
	}
	for _, tc := range cases {
		t.Run(string(tc.side), func(t *testing.T) {
			order := Order{Number: "1", Side: tc.side, Total: decimal.NewFromInt(100)}
			got, err := ApplyFee(order, fee)
			require.NoError(t, err)
			require.True(t, got.Total.Equal(decimal.RequireFromString(tc.want)), "total = %s", got.Total)
			require.True(t, got.FeeApplied)
			require.True(t, order.Total.Equal(decimal.NewFromInt(100)), "input order mutated")
			require.False(t, order.FeeApplied)
		})
	}
}

func TestApplyFeeRefusesSecondApplication(t *testing.T) {
	fee := FeeInfo{TakerFee: decimal.RequireFromString("0.001")}
	once, err := ApplyFee(Order{Side: Sell, Total: decimal.NewFromInt(100)}, fee)
	require.NoError(t, err)

	twice, err := ApplyFee(once, fee)
	require.True(t, errors.Is(err, ErrFeeAlreadyApplied))
	require.True(t, twice.Total.Equal(once.Total))
}

func TestApplyFeeUnknownSide(t *testing.T) {
	_, err := ApplyFee(Order{Total: decimal.NewFromInt(1)}, FeeInfo{})
	require.Error(t, err)
}

func TestNewOrderTotalIsNotional(t *testing.T) {
	o := NewOrder("binance", "7", "BTCUSDT", Buy, decimal.RequireFromString("20000.5"), decimal.RequireFromString("0.002"))
	require.True(t, o.Total.Equal(decimal.RequireFromString("40.001")))
	require.False(t, o.FeeApplied)
}
