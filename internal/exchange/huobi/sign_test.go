package huobi

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"exchange-gateway/internal/core"
	"exchange-gateway/internal/exchange"
)

func fixedSigner() *Signer {
	s := NewSigner(exchange.StaticCredentials{APIKey: "AK", APISecret: "SK"})
	s.now = func() time.Time { return time.Date(2017, 5, 11, 16, 22, 6, 0, time.UTC) }
	return s
}

func TestSignGetCoversSortedParams(t *testing.T) {
	params := exchange.NewParams("symbol", "ethusdt", "states", "filled")
	signed, err := fixedSigner().Sign(exchange.SignRequest{
		Method: "GET",
		Host:   "API.HUOBI.PRO",
		Path:   "/v1/order/orders",
		Params: params,
	})
	require.NoError(t, err)
	require.Equal(t,
		"AccessKeyId=AK&SignatureMethod=HmacSHA256&SignatureVersion=2&Timestamp=2017-05-11T16%3A22%3A06&states=filled&symbol=ethusdt"+
			"&Signature=mbg3WM5qUqL5NBkob%2BrnQFyqc1YEkrK98MEUHJcebmQ%3D",
		signed.Query)
	require.Empty(t, signed.Body)
	require.Equal(t, "symbol", params[0].Key, "caller params must keep their order")
}

func TestSignPostMovesParamsToBody(t *testing.T) {
	signed, err := fixedSigner().Sign(exchange.SignRequest{
		Method: "POST",
		Host:   "api.huobi.pro",
		Path:   "/v1/order/orders/place",
		Params: exchange.NewParams("symbol", "btcusdt", "amount", "0.5"),
	})
	require.NoError(t, err)
	require.Equal(t,
		"AccessKeyId=AK&SignatureMethod=HmacSHA256&SignatureVersion=2&Timestamp=2017-05-11T16%3A22%3A06"+
			"&Signature=682FfJBIdCMKwYvIPg0MgSrXMR06pjwa4msDZT1aH9Y%3D",
		signed.Query)
	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(signed.Body), &body))
	require.Equal(t, map[string]string{"symbol": "btcusdt", "amount": "0.5"}, body)
	require.Equal(t, "application/json", signed.Header["Content-Type"])
}

func TestSignSensitiveToInputs(t *testing.T) {
	s := fixedSigner()
	base := exchange.SignRequest{Method: "GET", Host: "api.huobi.pro", Path: "/v1/account/accounts"}
	a, err := s.Sign(base)
	require.NoError(t, err)
	again, err := s.Sign(base)
	require.NoError(t, err)
	require.Equal(t, a.Query, again.Query)

	other := base
	other.Path = "/v1/order/openOrders"
	b, err := s.Sign(other)
	require.NoError(t, err)
	require.NotEqual(t, a.Query, b.Query)

	s.now = func() time.Time { return time.Date(2017, 5, 11, 16, 22, 7, 0, time.UTC) }
	c, err := s.Sign(base)
	require.NoError(t, err)
	require.NotEqual(t, a.Query, c.Query)
}

func TestSignRequiresCredentials(t *testing.T) {
	_, err := NewSigner(exchange.StaticCredentials{}).Sign(exchange.SignRequest{Method: "GET"})
	require.True(t, errors.Is(err, core.ErrConfiguration))
}
