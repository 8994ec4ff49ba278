package kraken

import (
	"context"
	"net/http"
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
	Name            = "kraken"
	DefaultBaseURL  = "https://api.kraken.com"
	DefaultLeverage = 2
)

var (
	DefaultMakerFee = decimal.RequireFromString("0.0016")
	DefaultTakerFee = decimal.RequireFromString("0.0026")
)

type Client struct {
	baseURL  string
	fees     core.FeeInfo
	leverage int
	signer   exchange.Signer
	doer     transport.Doer
}

type Options struct {
	Credentials exchange.Credentials
	RestBaseURL string
	// Kraken fees depend on the 30 day volume; zero values use the base tier.
	MakerFee decimal.Decimal
	TakerFee decimal.Decimal
	// Leverage applies to margin orders that do not set their own.
	Leverage int
	// Nonce must be shared by every client using the same API key.
	Nonce  *Nonce
	Doer   transport.Doer
	Signer exchange.Signer
}

var _ exchange.MarginExchange = (*Client)(nil)

func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.RestBaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	signer := opts.Signer
	if signer == nil {
		signer = NewSigner(opts.Credentials, opts.Nonce)
	}
	doer := opts.Doer
	if doer == nil {
		doer = transport.New(transport.Options{})
	}
	leverage := opts.Leverage
	if leverage <= 0 {
		leverage = DefaultLeverage
	}
	return &Client{
		baseURL: baseURL,
		fees: core.FeeInfo{
			MakerFee: core.PositiveOr(opts.MakerFee, DefaultMakerFee),
			TakerFee: core.PositiveOr(opts.TakerFee, DefaultTakerFee),
		},
		leverage: leverage,
		signer:   signer,
		doer:     doer,
	}
}

func (c *Client) Name() string { return Name }

func (c *Client) balances(ctx context.Context, includeZero bool) ([]core.Balance, error) {
	var resp map[string]string
	if err := c.private(ctx, "Balance", nil, "balance", &resp); err != nil {
		return nil, err
	}
	return normalizeBalances(resp, includeZero)
}

func (c *Client) Balances(ctx context.Context) ([]core.Balance, error) {
	return c.balances(ctx, false)
}

func (c *Client) FullBalances(ctx context.Context) ([]core.Balance, error) {
	return c.balances(ctx, true)
}

func (c *Client) FeeInfo(context.Context) (core.FeeInfo, error) {
	return c.fees, nil
}

// Tickers returns every pair when symbol is empty, sorted by pair.
func (c *Client) Tickers(ctx context.Context, symbol string) ([]core.Ticker, error) {
	var params exchange.Params
	if symbol != "" {
		params = exchange.NewParams("pair", symbol)
	}
	var resp map[string]tickerResponse
	if err := c.public(ctx, "Ticker", params, "ticker", &resp); err != nil {
		return nil, err
	}
	out := make([]core.Ticker, 0, len(resp))
	for _, pair := range sortedKeys(resp) {
		name := pair
		if symbol != "" && len(resp) == 1 {
			name = symbol
		}
		t, err := normalizeTicker(name, resp[pair])
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// OrderBook returns nil when Kraken reports the pair unknown. The result is
// keyed by Kraken's own pair name, which may differ from the one requested.
func (c *Client) OrderBook(ctx context.Context, symbol string) (*core.OrderBook, error) {
	var resp map[string]depthResponse
	if err := c.public(ctx, "Depth", exchange.NewParams("pair", symbol), "order book", &resp); err != nil {
		if errors.Is(err, core.ErrUnknownSymbol) {
			return nil, nil
		}
		return nil, err
	}
	for _, depth := range resp {
		book, err := normalizeDepth(symbol, depth)
		if err != nil {
			return nil, err
		}
		return &book, nil
	}
	return nil, nil
}

func (c *Client) Filters(ctx context.Context) ([]core.SymbolFilter, error) {
	var resp map[string]assetPairResponse
	if err := c.public(ctx, "AssetPairs", nil, "asset pairs", &resp); err != nil {
		return nil, err
	}
	out := make([]core.SymbolFilter, 0, len(resp))
	for _, key := range sortedKeys(resp) {
		out = append(out, normalizeFilter(key, resp[key]))
	}
	return out, nil
}

// NewOrder places a spot order. Kraken only echoes the txid, so the order is
// reported from the request values; market orders carry the caller's
// reference rate, which may be zero.
func (c *Client) NewOrder(ctx context.Context, req core.OrderRequest) (core.Placement, error) {
	clientID := req.ClientID
	if clientID == "" {
		clientID = uuid.NewString()
	}
	params := exchange.NewParams(
		"pair", req.Symbol,
		"type", string(req.Side),
		"volume", req.Amount.String(),
		"cl_ord_id", clientID,
	)
	if req.Market {
		params = params.With("ordertype", "market")
	} else {
		params = params.With("ordertype", "limit").With("price", req.Rate.String())
	}
	return c.addOrder(ctx, params, req.Symbol, req.Side, req.Rate, req.Amount)
}

func (c *Client) addOrder(ctx context.Context, params exchange.Params, symbol string, side core.Side, rate, amount decimal.Decimal) (core.Placement, error) {
	var resp addOrderResponse
	if err := c.private(ctx, "AddOrder", params, "order", &resp); err != nil {
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
	if len(resp.TxID) == 0 || resp.TxID[0] == "" {
		return core.Placement{}, parseErr("order", "txid")
	}
	return core.Accepted(core.NewOrder(Name, resp.TxID[0], symbol, side, rate, amount)), nil
}

// CancelOrder reports true only when Kraken counts at least one cancelled order.
func (c *Client) CancelOrder(ctx context.Context, order core.Order) (bool, error) {
	var resp cancelResponse
	if err := c.private(ctx, "CancelOrder", exchange.NewParams("txid", order.Number), "cancel", &resp); err != nil {
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
	if resp.Count == nil {
		return false, parseErr("cancel", "count")
	}
	return *resp.Count >= 1, nil
}

func (c *Client) OpenOrders(ctx context.Context) ([]core.Order, error) {
	var resp openOrdersResponse
	if err := c.private(ctx, "OpenOrders", nil, "open orders", &resp); err != nil {
		return nil, err
	}
	orders := make([]core.Order, 0, len(resp.Open))
	for _, txid := range sortedKeys(resp.Open) {
		o, err := normalizeOrder(txid, resp.Open[txid])
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

// TradeHistory filters by pair locally since TradesHistory has no pair
// parameter. Trades come back oldest first; Limit keeps the most recent ones.
func (c *Client) TradeHistory(ctx context.Context, filter core.TradeFilter) ([]core.Trade, error) {
	var params exchange.Params
	if !filter.Start.IsZero() {
		params = params.With("start", strconv.FormatInt(filter.Start.Unix(), 10))
	}
	if !filter.End.IsZero() {
		params = params.With("end", strconv.FormatInt(filter.End.Unix(), 10))
	}
	var resp tradesHistoryResponse
	if err := c.private(ctx, "TradesHistory", params, "trades", &resp); err != nil {
		return nil, err
	}
	trades := make([]core.Trade, 0, len(resp.Trades))
	for _, id := range sortedKeys(resp.Trades) {
		raw := resp.Trades[id]
		if filter.Symbol != "" && !strings.EqualFold(raw.Pair, filter.Symbol) {
			continue
		}
		t, err := normalizeTrade(id, raw)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	sortTrades(trades)
	if filter.Limit > 0 && len(trades) > filter.Limit {
		trades = trades[len(trades)-filter.Limit:]
	}
	return trades, nil
}

// IsOrderFulfilled is true once the order is closed with its whole volume executed.
func (c *Client) IsOrderFulfilled(ctx context.Context, order core.Order) (bool, error) {
	info, err := c.queryOrder(ctx, order.Number)
	if err != nil {
		return false, err
	}
	vol, err := requireDecimal("order", "vol", info.Vol)
	if err != nil {
		return false, err
	}
	executed, err := requireDecimal("order", "vol_exec", info.VolExec)
	if err != nil {
		return false, err
	}
	return info.Status == "closed" && vol.Equal(executed), nil
}

func (c *Client) ExecutedAmount(ctx context.Context, order core.Order) (decimal.Decimal, error) {
	info, err := c.queryOrder(ctx, order.Number)
	if err != nil {
		return decimal.Zero, err
	}
	return requireDecimal("order", "vol_exec", info.VolExec)
}

func (c *Client) queryOrder(ctx context.Context, txid string) (orderInfoResponse, error) {
	var resp map[string]orderInfoResponse
	if err := c.private(ctx, "QueryOrders", exchange.NewParams("txid", txid), "order", &resp); err != nil {
		return orderInfoResponse{}, err
	}
	info, ok := resp[txid]
	if !ok {
		return orderInfoResponse{}, errors.Wrapf(core.ErrOrderNotFound, "kraken order %s", txid)
	}
	return info, nil
}

func (c *Client) MarginInfo(ctx context.Context) (core.MarginInfo, error) {
	var resp tradeBalanceResponse
	if err := c.private(ctx, "TradeBalance", nil, "margin info", &resp); err != nil {
		return core.MarginInfo{}, err
	}
	return normalizeMarginInfo(resp)
}

// Valuation asks Kraken for the equivalent balance in quote. BTC is sent as
// Kraken's XBT.
func (c *Client) Valuation(ctx context.Context, quote string) (core.Valuation, error) {
	quote = strings.ToUpper(strings.TrimSpace(quote))
	asset := quote
	if asset == core.BridgeCurrency {
		asset = "XBT"
	}
	var resp tradeBalanceResponse
	if err := c.private(ctx, "TradeBalance", exchange.NewParams("asset", asset), "valuation", &resp); err != nil {
		return core.Valuation{}, err
	}
	total, err := requireDecimal("valuation", "eb", resp.EB)
	if err != nil {
		return core.Valuation{}, err
	}
	return core.Valuation{Quote: quote, Total: total}, nil
}

func (c *Client) MarginPositions(ctx context.Context) ([]core.MarginPosition, error) {
	var resp map[string]positionResponse
	if err := c.private(ctx, "OpenPositions", exchange.NewParams("docalcs", "true"), "margin positions", &resp); err != nil {
		return nil, err
	}
	out := make([]core.MarginPosition, 0, len(resp))
	for _, id := range sortedKeys(resp) {
		p, err := normalizeMarginPosition(id, resp[id])
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// OpenMarginPosition places a leveraged limit order.
func (c *Client) OpenMarginPosition(ctx context.Context, req core.MarginRequest) (core.Placement, error) {
	leverage := req.Leverage
	if leverage <= 0 {
		leverage = c.leverage
	}
	params := exchange.NewParams(
		"pair", req.Symbol,
		"type", string(req.Side),
		"ordertype", "limit",
		"price", req.Rate.String(),
		"volume", req.Amount.String(),
		"leverage", strconv.Itoa(leverage),
	)
	return c.addOrder(ctx, params, req.Symbol, req.Side, req.Rate, req.Amount)
}

// CloseMarginPosition closes every open position on symbol with an opposite
// leveraged market order per side. It reports true only when at least one
// position existed and every closing order was accepted.
func (c *Client) CloseMarginPosition(ctx context.Context, symbol string) (bool, error) {
	positions, err := c.MarginPositions(ctx)
	if err != nil {
		return false, err
	}
	open := map[core.PositionSide]decimal.Decimal{}
	for _, p := range positions {
		if !strings.EqualFold(p.Symbol, symbol) || !p.Amount.IsPositive() {
			continue
		}
		open[p.Side] = open[p.Side].Add(p.Amount)
	}
	if len(open) == 0 {
		return false, nil
	}
	for _, side := range []core.PositionSide{core.Long, core.Short} {
		amount, ok := open[side]
		if !ok {
			continue
		}
		params := exchange.NewParams(
			"pair", symbol,
			"type", string(side.Opposite()),
			"ordertype", "market",
			"volume", amount.String(),
			"leverage", strconv.Itoa(c.leverage),
		)
		p, err := c.addOrder(ctx, params, symbol, side.Opposite(), decimal.Zero, amount)
		if err != nil {
			return false, err
		}
		if !p.OK() {
			return false, nil
		}
	}
	return true, nil
}

func (c *Client) public(ctx context.Context, method string, params exchange.Params, entity string, out any) error {
	resp, err := c.doer.Execute(ctx, transport.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + "/0/public/" + method,
		Query:  params.Encode(),
	})
	if err != nil {
		return err
	}
	return decodeResult(resp.Body, entity, out)
}

func (c *Client) private(ctx context.Context, method string, params exchange.Params, entity string, out any) error {
	path := "/0/private/" + method
	signed, err := c.signer.Sign(exchange.SignRequest{Method: http.MethodPost, Path: path, Params: params})
	if err != nil {
		return err
	}
	resp, err := c.doer.Execute(ctx, transport.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + path,
		Body:   signed.Body,
		Header: signed.Header,
	})
	if err != nil {
		return err
	}
	return decodeResult(resp.Body, entity, out)
}

// decodeResult unwraps {"error": [...], "result": ...}. Error entries become
// APIError joined with the matching core error.
func decodeResult(body []byte, entity string, out any) error {
	var env envelope
	if err := core.DecodeJSON(Name, entity, body, &env); err != nil {
		return err
	}
	if err := checkEnvelope(env); err != nil {
		return err
	}
	if len(env.Result) == 0 {
		return parseErr(entity, "result")
	}
	return core.DecodeJSON(Name, entity, env.Result, out)
}
