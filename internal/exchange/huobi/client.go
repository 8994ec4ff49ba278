package huobi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"exchange-gateway/internal/core"
	"exchange-gateway/internal/exchange"
	"exchange-gateway/internal/transport"
)

const (
	Name           = "huobi"
	DefaultBaseURL = "https://api.huobi.pro"

	sourceSpot   = "spot-api"
	sourceMargin = "margin-api"
)

var DefaultFee = decimal.RequireFromString("0.002")

type AuthType int

const (
	AuthNone AuthType = iota
	AuthSigned
)

type Client struct {
	baseURL           string
	host              string
	clientOrderPrefix string
	fees              core.FeeInfo
	signer            exchange.Signer
	doer              transport.Doer
}

type Options struct {
	Credentials       exchange.Credentials
	RestBaseURL       string
	ClientOrderPrefix string
	// Huobi has no fee endpoint for spot accounts; zero values use DefaultFee.
	MakerFee decimal.Decimal
	TakerFee decimal.Decimal
	Doer     transport.Doer
	Signer   exchange.Signer
}

var _ exchange.MarginExchange = (*Client)(nil)

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.RestBaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	host := ""
	if u, err := url.Parse(baseURL); err == nil {
		host = strings.ToLower(u.Host)
	}
	signer := opts.Signer
	if signer == nil {
		signer = NewSigner(opts.Credentials)
	}
	doer := opts.Doer
	if doer == nil {
		doer = transport.New(transport.Options{})
	}
	prefix := strings.ToLower(strings.TrimSpace(opts.ClientOrderPrefix))
	if prefix == "" {
		prefix = "gw"
	}
	return &Client{
		baseURL:           baseURL,
		host:              host,
		clientOrderPrefix: prefix,
		fees: core.FeeInfo{
			MakerFee: core.PositiveOr(opts.MakerFee, DefaultFee),
			TakerFee: core.PositiveOr(opts.TakerFee, DefaultFee),
		},
		signer: signer,
		doer:   doer,
	}
}

func (c *Client) Name() string { return Name }

// newClientOrderID stays within Huobi's 64 character limit.
func (c *Client) newClientOrderID() string {
	out := c.clientOrderPrefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if len(out) > 64 {
		out = out[:64]
	}
	return out
}

func (c *Client) accounts(ctx context.Context) ([]accountResponse, error) {
	env, err := c.call(ctx, http.MethodGet, "/v1/account/accounts", nil, AuthSigned)
	if err != nil {
		return nil, err
	}
	var resp []accountResponse
	if err := core.DecodeJSON(Name, "accounts", env.Data, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) spotAccountID(ctx context.Context) (string, error) {
	accounts, err := c.accounts(ctx)
	if err != nil {
		return "", err
	}
	for _, acc := range accounts {
		if acc.Type == "spot" && acc.ID != nil {
			return strconv.FormatInt(*acc.ID, 10), nil
		}
	}
	return "", errors.Wrap(core.ErrUnsupported, "huobi spot account not found")
}

// marginAccountID returns the isolated margin account for symbol, or "" when
// the account has none.
func (c *Client) marginAccountID(ctx context.Context, symbol string) (string, error) {
	accounts, err := c.accounts(ctx)
	if err != nil {
		return "", err
	}
	for _, acc := range accounts {
		if acc.Type == "margin" && strings.EqualFold(acc.Subtype, symbol) && acc.ID != nil {
			return strconv.FormatInt(*acc.ID, 10), nil
		}
	}
	return "", nil
}

func (c *Client) spotBalances(ctx context.Context, includeZero bool) ([]core.Balance, error) {
	id, err := c.spotAccountID(ctx)
	if err != nil {
		return nil, err
	}
	env, err := c.call(ctx, http.MethodGet, "/v1/account/accounts/"+id+"/balance", nil, AuthSigned)
	if err != nil {
		return nil, err
	}
	var resp accountBalanceResponse
	if err := core.DecodeJSON(Name, "balance", env.Data, &resp); err != nil {
		return nil, err
	}
	return normalizeBalances(resp.List, core.KindExchange, includeZero)
}

func (c *Client) Balances(ctx context.Context) ([]core.Balance, error) {
	return c.spotBalances(ctx, false)
}

func (c *Client) FullBalances(ctx context.Context) ([]core.Balance, error) {
	return c.spotBalances(ctx, true)
}

func (c *Client) FeeInfo(context.Context) (core.FeeInfo, error) {
	return c.fees, nil
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
	if symbol != "" {
		env, err := c.call(ctx, http.MethodGet, "/market/detail/merged", exchange.NewParams("symbol", symbol), AuthNone)
		if err != nil {
			return nil, err
		}
		var tick mergedTickResponse
		if err := core.DecodeJSON(Name, "ticker", env.Tick, &tick); err != nil {
			return nil, err
		}
		t, err := normalizeMergedTicker(symbol, tick)
		if err != nil {
			return nil, err
		}
		return []core.Ticker{t}, nil
	}
	env, err := c.call(ctx, http.MethodGet, "/market/tickers", nil, AuthNone)
	if err != nil {
		return nil, err
	}
	var raw []tickerResponse
	if err := core.DecodeJSON(Name, "ticker", env.Data, &raw); err != nil {
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

// OrderBook returns the step0 depth, or nil when Huobi answers with an error
// status (unknown symbol).
func (c *Client) OrderBook(ctx context.Context, symbol string) (*core.OrderBook, error) {
	params := exchange.NewParams("symbol", symbol, "type", "step0")
	env, err := c.call(ctx, http.MethodGet, "/market/depth", params, AuthNone)
	if err != nil {
		if _, ok := AsAPIError(err); ok {
			return nil, nil
		}
		return nil, err
	}
	var depth depthResponse
	if err := core.DecodeJSON(Name, "order book", env.Tick, &depth); err != nil {
		return nil, err
	}
	book, err := normalizeDepth(symbol, depth)
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *Client) Filters(ctx context.Context) ([]core.SymbolFilter, error) {
	env, err := c.call(ctx, http.MethodGet, "/v1/common/symbols", nil, AuthNone)
	if err != nil {
		return nil, err
	}
	var resp []symbolResponse
	if err := core.DecodeJSON(Name, "symbols", env.Data, &resp); err != nil {
		return nil, err
	}
	out := make([]core.SymbolFilter, 0, len(resp))
	for _, s := range resp {
		if s.Symbol == "" && (s.BaseCurrency == "" || s.QuoteCurrency == "") {
			return nil, parseErr("symbols", "symbol")
		}
		out = append(out, normalizeFilter(s))
	}
	return out, nil
}

// NewOrder places a spot order and reads it back. Market buys are sized in the
// quote currency, so they need req.Rate as a reference price.
func (c *Client) NewOrder(ctx context.Context, req core.OrderRequest) (core.Placement, error) {
	accountID, err := c.spotAccountID(ctx)
	if err != nil {
		return core.Placement{}, err
	}
	clientID := req.ClientID
	if clientID == "" {
		clientID = c.newClientOrderID()
	}
	side := string(req.Side)
	params := exchange.NewParams(
		"account-id", accountID,
		"symbol", req.Symbol,
		"source", sourceSpot,
		"client-order-id", clientID,
	)
	if req.Market {
		amount := req.Amount
		if req.Side == core.Buy {
			if !req.Rate.IsPositive() {
				return core.Rejected(core.NewRejection(core.ErrInvalidPrice, "", "market buy needs a reference rate")), nil
			}
			amount = req.Amount.Mul(req.Rate)
		}
		params = params.With("type", side+"-market").With("amount", amount.String())
	} else {
		params = params.With("type", side+"-limit").
			With("amount", req.Amount.String()).
			With("price", req.Rate.String())
	}
	return c.place(ctx, params, req.Symbol, req.Side, req.Rate, req.Amount)
}

// place submits an order and fetches its detail. When the read-back fails the
// order is reported from the request values, since it is live on the exchange.
func (c *Client) place(ctx context.Context, params exchange.Params, symbol string, side core.Side, rate, amount decimal.Decimal) (core.Placement, error) {
	env, err := c.call(ctx, http.MethodPost, "/v1/order/orders/place", params, AuthSigned)
	if err != nil {
		if rej, ok := businessRejection(err); ok {
			logrus.WithFields(logrus.Fields{
				"event":    "order_rejected",
				"exchange": Name,
				"symbol":   symbol,
				"side":     side,
				"reason":   rej.Error(),
			}).Info("order rejected")
			return core.Rejected(rej), nil
		}
		return core.Placement{}, err
	}
	var id json.Number
	if err := core.DecodeJSON(Name, "order", env.Data, &id); err != nil {
		return core.Placement{}, err
	}
	if id.String() == "" {
		return core.Placement{}, parseErr("order", "data")
	}
	detail, err := c.orderDetail(ctx, id.String())
	if err == nil {
		var order core.Order
		order, err = normalizeOrder(detail)
		if err == nil {
			return core.Accepted(order), nil
		}
	}
	logrus.WithFields(logrus.Fields{
		"event":    "order_readback_failed",
		"exchange": Name,
		"order_id": id.String(),
		"err":      err.Error(),
	}).Warn("order placed but detail unavailable")
	return core.Accepted(core.NewOrder(Name, id.String(), symbol, side, rate, amount)), nil
}

func (c *Client) orderDetail(ctx context.Context, id string) (orderResponse, error) {
	env, err := c.call(ctx, http.MethodGet, "/v1/order/orders/"+id, nil, AuthSigned)
	if err != nil {
		return orderResponse{}, err
	}
	var resp orderResponse
	if err := core.DecodeJSON(Name, "order", env.Data, &resp); err != nil {
		return orderResponse{}, err
	}
	return resp, nil
}

// CancelOrder reports true only when Huobi answers ok and echoes the order id.
func (c *Client) CancelOrder(ctx context.Context, order core.Order) (bool, error) {
	env, err := c.call(ctx, http.MethodPost, "/v1/order/orders/"+order.Number+"/submitcancel", nil, AuthSigned)
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
	var id json.Number
	if err := core.DecodeJSON(Name, "cancel", env.Data, &id); err != nil {
		return false, err
	}
	return id.String() == order.Number, nil
}

func (c *Client) OpenOrders(ctx context.Context) ([]core.Order, error) {
	accountID, err := c.spotAccountID(ctx)
	if err != nil {
		return nil, err
	}
	env, err := c.call(ctx, http.MethodGet, "/v1/order/openOrders", exchange.NewParams("account-id", accountID), AuthSigned)
	if err != nil {
		return nil, err
	}
	var resp []orderResponse
	if err := core.DecodeJSON(Name, "open orders", env.Data, &resp); err != nil {
		return nil, err
	}
	orders := make([]core.Order, 0, len(resp))
	for _, r := range resp {
		o, err := normalizeOrder(r)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (c *Client) TradeHistory(ctx context.Context, filter core.TradeFilter) ([]core.Trade, error) {
	if filter.Symbol == "" {
		return nil, errors.Wrap(core.ErrUnsupported, "huobi trade history requires a symbol")
	}
	params := exchange.NewParams("symbol", filter.Symbol)
	if !filter.Start.IsZero() {
		params = params.With("start-time", strconv.FormatInt(filter.Start.UnixMilli(), 10))
	}
	if !filter.End.IsZero() {
		params = params.With("end-time", strconv.FormatInt(filter.End.UnixMilli(), 10))
	}
	if filter.Limit > 0 {
		params = params.With("size", strconv.Itoa(filter.Limit))
	}
	env, err := c.call(ctx, http.MethodGet, "/v1/order/matchresults", params, AuthSigned)
	if err != nil {
		return nil, err
	}
	var resp []matchResultResponse
	if err := core.DecodeJSON(Name, "trades", env.Data, &resp); err != nil {
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

func (c *Client) IsOrderFulfilled(ctx context.Context, order core.Order) (bool, error) {
	detail, err := c.orderDetail(ctx, order.Number)
	if err != nil {
		return false, err
	}
	if detail.State == "" {
		return false, parseErr("order", "state")
	}
	return detail.State == "filled", nil
}

// ExecutedAmount reads field-amount from the order detail.
func (c *Client) ExecutedAmount(ctx context.Context, order core.Order) (decimal.Decimal, error) {
	detail, err := c.orderDetail(ctx, order.Number)
	if err != nil {
		return decimal.Zero, err
	}
	return core.RequireDecimal(Name, "order", "field-amount", detail.FieldAmount)
}

func (c *Client) MarginInfo(ctx context.Context) (core.MarginInfo, error) {
	env, err := c.call(ctx, http.MethodGet, "/v1/margin/accounts/balance", nil, AuthSigned)
	if err != nil {
		return core.MarginInfo{}, err
	}
	var resp []marginBalanceResponse
	if err := core.DecodeJSON(Name, "margin info", env.Data, &resp); err != nil {
		return core.MarginInfo{}, err
	}
	return normalizeMarginInfo(resp)
}

// MarginPositions returns the filled margin-api orders of every isolated
// margin account, one position per order. Huobi has no position endpoint, so
// this is not net exposure: an order that was later offset still shows up.
func (c *Client) MarginPositions(ctx context.Context) ([]core.MarginPosition, error) {
	accounts, err := c.accounts(ctx)
	if err != nil {
		return nil, err
	}
	var out []core.MarginPosition
	for _, acc := range accounts {
		if acc.Type != "margin" || acc.Subtype == "" {
			continue
		}
		positions, err := c.symbolMarginPositions(ctx, acc.Subtype)
		if err != nil {
			return nil, err
		}
		out = append(out, positions...)
	}
	return out, nil
}

func (c *Client) symbolMarginPositions(ctx context.Context, symbol string) ([]core.MarginPosition, error) {
	params := exchange.NewParams("symbol", symbol, "states", "filled")
	env, err := c.call(ctx, http.MethodGet, "/v1/order/orders", params, AuthSigned)
	if err != nil {
		return nil, err
	}
	var resp []orderResponse
	if err := core.DecodeJSON(Name, "margin positions", env.Data, &resp); err != nil {
		return nil, err
	}
	var out []core.MarginPosition
	for _, r := range resp {
		if r.Source != sourceMargin {
			continue
		}
		p, err := normalizeMarginPosition(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// OpenMarginPosition places an IOC order on the symbol's isolated margin
// account. Leverage is fixed by the account on Huobi and ignored.
func (c *Client) OpenMarginPosition(ctx context.Context, req core.MarginRequest) (core.Placement, error) {
	accountID, err := c.marginAccountID(ctx, req.Symbol)
	if err != nil {
		return core.Placement{}, err
	}
	if accountID == "" {
		return core.Rejected(core.NewRejection(core.ErrUnsupported, "", "no margin account for "+req.Symbol)), nil
	}
	params := exchange.NewParams(
		"account-id", accountID,
		"symbol", req.Symbol,
		"source", sourceMargin,
		"client-order-id", c.newClientOrderID(),
		"type", string(req.Side)+"-ioc",
		"amount", req.Amount.String(),
		"price", req.Rate.String(),
	)
	return c.place(ctx, params, req.Symbol, req.Side, req.Rate, req.Amount)
}

// CloseMarginPosition offsets the net margin exposure on symbol with an
// opposite IOC order priced at the level of the book that covers it.
func (c *Client) CloseMarginPosition(ctx context.Context, symbol string) (bool, error) {
	positions, err := c.symbolMarginPositions(ctx, symbol)
	if err != nil {
		return false, err
	}
	net := decimal.Zero
	for _, p := range positions {
		if p.Side == core.Long {
			net = net.Add(p.Amount)
		} else {
			net = net.Sub(p.Amount)
		}
	}
	if net.IsZero() {
		return false, nil
	}
	side := core.Sell
	if net.IsNegative() {
		side = core.Buy
	}
	amount := net.Abs()
	book, err := c.OrderBook(ctx, symbol)
	if err != nil {
		return false, err
	}
	if book == nil {
		return false, nil
	}
	rate, ok := book.FillPrice(side, amount)
	if !ok {
		return false, nil
	}
	p, err := c.OpenMarginPosition(ctx, core.MarginRequest{Symbol: symbol, Side: side, Rate: rate, Amount: amount})
	if err != nil {
		return false, err
	}
	return p.OK(), nil
}

// call executes one request and unwraps the status envelope. Error statuses
// come back as APIError joined with the matching core error.
func (c *Client) call(ctx context.Context, method, path string, params exchange.Params, auth AuthType) (envelope, error) {
	req := transport.Request{
		Method: method,
		URL:    c.baseURL + path,
		Query:  params.Encode(),
	}
	if auth == AuthSigned {
		signed, err := c.signer.Sign(exchange.SignRequest{Method: method, Host: c.host, Path: path, Params: params})
		if err != nil {
			return envelope{}, err
		}
		req.Query = signed.Query
		req.Body = signed.Body
		req.Header = signed.Header
	}
	resp, err := c.doer.Execute(ctx, req)
	if err != nil {
		var te *core.TransportError
		if errors.As(err, &te) && te.Status > 0 && te.Status < http.StatusInternalServerError {
			var env envelope
			if jsonErr := json.Unmarshal(te.Body, &env); jsonErr == nil && env.Status == "error" {
				return envelope{}, checkEnvelope(env)
			}
		}
		return envelope{}, err
	}
	var env envelope
	if err := core.DecodeJSON(Name, "response", resp.Body, &env); err != nil {
		return envelope{}, err
	}
	if err := checkEnvelope(env); err != nil {
		return envelope{}, err
	}
	return env, nil
}
