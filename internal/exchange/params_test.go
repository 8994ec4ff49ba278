package exchange

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParamsEncodeKeepsOrder(t *testing.T) {
	p := NewParams("symbol", "BTCUSDT", "side", "BUY", "amount", "1 2")
	require.Equal(t, "symbol=BTCUSDT&side=BUY&amount=1+2", p.Encode())
	require.Equal(t, "amount=1+2&side=BUY&symbol=BTCUSDT", p.Sorted().Encode())
	require.Equal(t, "symbol", p[0].Key, "Sorted must not reorder the receiver")
}

func TestParamsWithDoesNotAlias(t *testing.T) {
	base := make(Params, 0, 4)
	base = append(base, Param{Key: "a", Value: "1"})
	x := base.With("b", "2")
	y := base.With("c", "3")
	require.Equal(t, "a=1&b=2", x.Encode())
	require.Equal(t, "a=1&c=3", y.Encode())
	require.Len(t, base, 1)

	v, ok := x.Get("b")
	require.True(t, ok)
	require.Equal(t, "2", v)
	_, ok = x.Get("c")
	require.False(t, ok)
}
