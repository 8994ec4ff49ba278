package binance

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"exchange-gateway/internal/core"
	"exchange-gateway/internal/exchange"
)

func fixedSigner(secret string) *Signer {
	s := NewSigner(exchange.StaticCredentials{APIKey: "key", APISecret: secret}, 0)
	s.now = func() time.Time { return time.UnixMilli(1499827319559) }
	return s
}

// Vector from the Binance REST API documentation.
func TestSignMatchesDocumentedVector(t *testing.T) {
	s := fixedSigner("NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j")
	s.recvWindow = 5 * time.Second
	params := exchange.NewParams(
		"symbol", "LTCBTC", "side", "BUY", "type", "LIMIT", "timeInForce", "GTC",
		"quantity", "1", "price", "0.1",
	)
	signed, err := s.Sign(exchange.SignRequest{Method: "POST", Path: "/api/v3/order", Params: params})
	require.NoError(t, err)
	require.Equal(t,
		"symbol=LTCBTC&side=BUY&type=LIMIT&timeInForce=GTC&quantity=1&price=0.1&recvWindow=5000&timestamp=1499827319559"+
			"&signature=c8db56825ae71d6d79447849e617115f4a920fa2acdcab2b053c4b2838bd6b71",
		signed.Query)
	require.Equal(t, "key", signed.Header[apiKeyHeader])
	require.Len(t, params, 6, "caller params must not be modified")
}

func TestSignDeterministicAndSensitive(t *testing.T) {
	s := fixedSigner("secret")
	req := exchange.SignRequest{Method: "GET", Path: "/api/v3/account", Params: exchange.NewParams("symbol", "BTCUSDT")}
	a, err := s.Sign(req)
	require.NoError(t, err)
	b, err := s.Sign(req)
	require.NoError(t, err)
	require.Equal(t, a.Query, b.Query)

	req.Params = exchange.NewParams("symbol", "ETHUSDT")
	c, err := s.Sign(req)
	require.NoError(t, err)
	require.NotEqual(t, signatureOf(a.Query), signatureOf(c.Query))
}

func TestSignRequiresCredentials(t *testing.T) {
	_, err := NewSigner(exchange.StaticCredentials{APIKey: "k"}, 0).Sign(exchange.SignRequest{})
	require.True(t, errors.Is(err, core.ErrConfiguration))
	_, err = NewSigner(nil, 0).Sign(exchange.SignRequest{})
	require.True(t, errors.Is(err, core.ErrConfiguration))
}

func signatureOf(query string) string {
	i := strings.LastIndex(query, "signature=")
	return query[i+len("signature="):]
}
