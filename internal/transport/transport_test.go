package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"exchange-gateway/internal/core"
)

func TestExecuteSendsQueryHeadersAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v3/order", r.URL.Path)
		require.Equal(t, "symbol=BTCUSDT&side=BUY", r.URL.RawQuery)
		require.Equal(t, "k", r.Header.Get("X-MBX-APIKEY"))
		body, _ := io.ReadAll(r.Body)
		require.Equal(t, `{"a":1}`, string(body))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(Options{})
	resp, err := c.Execute(context.Background(), Request{
		Method: "post",
		URL:    srv.URL + "/api/v3/order",
		Query:  "symbol=BTCUSDT&side=BUY",
		Body:   `{"a":1}`,
		Header: map[string]string{"X-MBX-APIKEY": "k", "Content-Type": "application/json"},
	})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"ok":true}`, string(resp.Body))
}

func TestExecuteNon2xxIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-2010,"msg":"Account has insufficient balance for requested action."}`))
	}))
	defer srv.Close()

	_, err := New(Options{}).Execute(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	require.Error(t, err)
	require.True(t, errors.Is(err, core.ErrTransport))
	var te *core.TransportError
	require.True(t, errors.As(err, &te))
	require.Equal(t, http.StatusBadRequest, te.Status)
	require.Contains(t, string(te.Body), "-2010")
}

func TestExecuteTimeoutIsTransportError(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := New(Options{Timeout: 50 * time.Millisecond}).Execute(context.Background(), Request{Method: http.MethodGet, URL: srv.URL})
	var te *core.TransportError
	require.True(t, errors.As(err, &te))
	require.Equal(t, 0, te.Status)
}
