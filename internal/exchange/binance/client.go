package binance

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"exchange-gateway/internal/core"
	"exchange-gateway/internal/exchange"
	"exchange-gateway/internal/transport"
)

const (
	Name           = "binance"
	DefaultBaseURL = "https://api.binance.com"
)

type AuthType int

const (
	AuthNone AuthType = iota
	AuthSigned
)

type Client struct {
	baseURL           string
	clientOrderPrefix string
	signer            exchange.Signer
	doer              transport.Doer
}

type Options struct {
	Credentials       exchange.Credentials
	RestBaseURL       string
	ClientOrderPrefix string
	RecvWindow        time.Duration
	Doer              transport.Doer
	// Signer overrides the default HMAC signer built from Credentials.
	Signer exchange.Signer
}

var _ exchange.Exchange = (*Client)(nil)

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.RestBaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	signer := opts.Signer
	if signer == nil {
		signer = NewSigner(opts.Credentials, opts.RecvWindow)
	}
	doer := opts.Doer
	if doer == nil {
		doer = transport.New(transport.Options{})
	}
	return &Client{
		baseURL:           baseURL,
		clientOrderPrefix: normalizeClientOrderPrefix(opts.ClientOrderPrefix),
		signer:            signer,
		doer:              doer,
	}
}

func normalizeClientOrderPrefix(v string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "gw"
	}
	b := strings.Builder{}
	for _, r := range v {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			b.WriteRune(r)
		}
	}
	out := b.String()
	if out == "" {
		return "gw"
	}
	if len(out) > 20 {
		out = out[:20]
	}
	return out
}

// newClientOrderID stays within Binance's 36 character limit.
func (c *Client) newClientOrderID() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	out := c.clientOrderPrefix + "-" + id
	if len(out) > 36 {
		out = out[:36]
	}
	return out
}

func (c *Client) Name() string { return Name }

func (c *Client) account(ctx context.Context) (accountResponse, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/account", nil, AuthSigned)
	if err != nil {
		return accountResponse{}, err
	}
	var resp accountResponse
	if err := core.DecodeJSON(Name, "account", body, &resp); err != nil {
		return accountResponse{}, err
	}
	return resp, nil
}

func (c *Client) Balances(ctx context.Context) ([]core.Balance, error) {
	resp, err := c.account(ctx)
	if err != nil {
		return nil, err
	}
	return normalizeBalances(resp, false)
}

func (c *Client) FullBalances(ctx context.Context) ([]core.Balance, error) {
	resp, err := c.account(ctx)
	if err != nil {
		return nil, err
	}
	return normalizeBalances(resp, true)
}

func (c *Client) FeeInfo(ctx context.Context) (core.FeeInfo, error) {
	resp, err := c.account(ctx)
	if err != nil {
		return core.FeeInfo{}, err
	}
	return normalizeFeeInfo(resp)
}

// Valuation prices the balances with the last trade of every market.
func (c *Client) Valuation(ctx context.Context, quote string) (core.Valuation, error) {
	balances, err := c.Balances(ctx)
	if err != nil {
		return core.Valuation{}, err
	}
	tickers, err := c.Tickers(ctx, "")
	if err != nil {
		return core.Valuation{}, err
	}
	return core.ValueBalances(quote, balances, tickers), nil
}

func (c *Client) Tickers(ctx context.Context, symbol string) ([]core.Ticker, error) {
	var params exchange.Params
	if symbol != "" {
		params = exchange.NewParams("symbol", symbol)
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/ticker/24hr", params, AuthNone)
	if err != nil {
		return nil, err
	}
	var raw []ticker24hrResponse
	if symbol != "" {
		var one ticker24hrResponse
		if err := core.DecodeJSON(Name, "ticker", body, &one); err != nil {
			return nil, err
		}
		raw = append(raw, one)
	} else if err := core.DecodeJSON(Name, "ticker", body, &raw); err != nil {
		return nil, err
	}
	out := make([]core.Ticker, 0, len(raw))
	for _, r := range raw {
		t, err := normalizeTicker(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// OrderBook returns the top of book, or nil when Binance does not know the symbol.
func (c *Client) OrderBook(ctx context.Context, symbol string) (*core.OrderBook, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/ticker/bookTicker", exchange.NewParams("symbol", symbol), AuthNone)
	if err != nil {
		if IsAPIErrorCode(err, apiCodeBadSymbol) {
			return nil, nil
		}
		return nil, err
	}
	var resp bookTickerResponse
	if err := core.DecodeJSON(Name, "order book", body, &resp); err != nil {
		return nil, err
	}
	if resp.Symbol == "" {
		return nil, nil
	}
	book, err := normalizeBookTicker(resp)
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *Client) Filters(ctx context.Context) ([]core.SymbolFilter, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/exchangeInfo", nil, AuthNone)
	if err != nil {
		return nil, err
	}
	var resp exchangeInfoResponse
	if err := core.DecodeJSON(Name, "exchange info", body, &resp); err != nil {
		return nil, err
	}
	out := make([]core.SymbolFilter, 0, len(resp.Symbols))
	for _, s := range resp.Symbols {
		if s.Symbol == "" {
			return nil, parseErr("exchange info", "symbols[].symbol")
		}
		out = append(out, normalizeFilter(s))
	}
	return out, nil
}

func (c *Client) NewOrder(ctx context.Context, req core.OrderRequest) (core.Placement, error) {
	clientID := req.ClientID
	if clientID == "" {
		clientID = c.newClientOrderID()
	}
	params := exchange.NewParams(
		"symbol", req.Symbol,
		"side", strings.ToUpper(string(req.Side)),
		"quantity", req.Amount.String(),
		"newClientOrderId", clientID,
		"newOrderRespType", "FULL",
	)
	if req.Market {
		params = params.With("type", "MARKET")
	} else {
		params = params.With("timeInForce", "GTC").
			With("price", req.Rate.String()).
			With("type", "LIMIT")
	}
	body, err := c.doRequest(ctx, http.MethodPost, "/api/v3/order", params, AuthSigned)
	if err != nil {
		if rej, ok := businessRejection(err); ok {
			logrus.WithFields(logrus.Fields{
				"event":    "order_rejected",
				"exchange": Name,
				"symbol":   req.Symbol,
				"side":     req.Side,
				"reason":   rej.Error(),
			}).Info("order rejected")
			return core.Rejected(rej), nil
		}
		return core.Placement{}, err
	}
	var resp orderResponse
	if err := core.DecodeJSON(Name, "order", body, &resp); err != nil {
		return core.Placement{}, err
	}
	order, err := normalizeOrder(resp)
	if err != nil {
		return core.Placement{}, err
	}
	return core.Accepted(order), nil
}

// CancelOrder reports true only when Binance echoes the order as CANCELED.
func (c *Client) CancelOrder(ctx context.Context, order core.Order) (bool, error) {
	params := exchange.NewParams("symbol", order.Symbol, "orderId", order.Number)
	body, err := c.doRequest(ctx, http.MethodDelete, "/api/v3/order", params, AuthSigned)
	if err != nil {
		if _, ok := businessRejection(err); ok {
			logrus.WithFields(logrus.Fields{
				"event":    "cancel_rejected",
				"exchange": Name,
				"order_id": order.Number,
				"err":      err.Error(),
			}).Info("cancel not confirmed")
			return false, nil
		}
		return false, err
	}
	var resp cancelResponse
	if err := core.DecodeJSON(Name, "cancel", body, &resp); err != nil {
		return false, err
	}
	if resp.OrderID == nil || strconv.FormatInt(*resp.OrderID, 10) != order.Number {
		return false, nil
	}
	return resp.Status == "CANCELED", nil
}

func (c *Client) OpenOrders(ctx context.Context) ([]core.Order, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/openOrders", nil, AuthSigned)
	if err != nil {
		return nil, err
	}
	var resp []orderResponse
	if err := core.DecodeJSON(Name, "open orders", body, &resp); err != nil {
		return nil, err
	}
	orders := make([]core.Order, 0, len(resp))
	for _, ord := range resp {
		o, err := normalizeOrder(ord)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (c *Client) TradeHistory(ctx context.Context, filter core.TradeFilter) ([]core.Trade, error) {
	if filter.Symbol == "" {
		return nil, errors.Wrap(core.ErrUnsupported, "binance trade history requires a symbol")
	}
	params := exchange.NewParams("symbol", filter.Symbol)
	if !filter.Start.IsZero() {
		params = params.With("startTime", strconv.FormatInt(filter.Start.UnixMilli(), 10))
	}
	if !filter.End.IsZero() {
		params = params.With("endTime", strconv.FormatInt(filter.End.UnixMilli(), 10))
	}
	if filter.Limit > 0 {
		params = params.With("limit", strconv.Itoa(filter.Limit))
	}
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/myTrades", params, AuthSigned)
	if err != nil {
		return nil, err
	}
	var resp []myTradeResponse
	if err := core.DecodeJSON(Name, "trades", body, &resp); err != nil {
		return nil, err
	}
	trades := make([]core.Trade, 0, len(resp))
	for _, r := range resp {
		t, err := normalizeTrade(r)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, nil
}

// IsOrderFulfilled queries the order status.
func (c *Client) IsOrderFulfilled(ctx context.Context, order core.Order) (bool, error) {
	resp, err := c.queryOrder(ctx, order)
	if err != nil {
		return false, err
	}
	if resp.Status == "" {
		return false, parseErr("order", "status")
	}
	return resp.Status == "FILLED", nil
}

// ExecutedAmount is the base quantity the order filled before it was
// cancelled or while it is still open.
func (c *Client) ExecutedAmount(ctx context.Context, order core.Order) (decimal.Decimal, error) {
	resp, err := c.queryOrder(ctx, order)
	if err != nil {
		return decimal.Zero, err
	}
	return core.RequireDecimal(Name, "order", "executedQty", resp.ExecutedQty)
}

// queryOrder reads GET /api/v3/order. Orders without a symbol are resolved
// against the open order list first.
func (c *Client) queryOrder(ctx context.Context, order core.Order) (orderResponse, error) {
	symbol := order.Symbol
	if symbol == "" {
		open, err := c.OpenOrders(ctx)
		if err != nil {
			return orderResponse{}, err
		}
		for _, o := range open {
			if o.Number == order.Number {
				symbol = o.Symbol
				break
			}
		}
		if symbol == "" {
			return orderResponse{}, errors.Wrapf(core.ErrOrderNotFound, "binance order %s has no symbol", order.Number)
		}
	}
	params := exchange.NewParams("symbol", symbol, "orderId", order.Number)
	body, err := c.doRequest(ctx, http.MethodGet, "/api/v3/order", params, AuthSigned)
	if err != nil {
		return orderResponse{}, err
	}
	var resp orderResponse
	if err := core.DecodeJSON(Name, "order", body, &resp); err != nil {
		return orderResponse{}, err
	}
	return resp, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, params exchange.Params, auth AuthType) ([]byte, error) {
	req := transport.Request{
		Method: method,
		URL:    c.baseURL + path,
		Query:  params.Encode(),
	}
	if auth == AuthSigned {
		host := ""
		if u, err := url.Parse(c.baseURL); err == nil {
			host = u.Host
		}
		signed, err := c.signer.Sign(exchange.SignRequest{Method: method, Host: host, Path: path, Params: params})
		if err != nil {
			return nil, err
		}
		req.Query = signed.Query
		req.Header = signed.Header
	}
	resp, err := c.doer.Execute(ctx, req)
	if err != nil {
		if apiErr, ok := apiErrorFrom(err); ok {
			return nil, classifyAPIError(apiErr)
		}
		return nil, err
	}
	return resp.Body, nil
}
