package kraken

import (
	"encoding/json"
	"strings"
)

type envelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

// APIError is the first "E"-prefixed entry of a response error list, split
// into its category (EOrder, EQuery, ...) and message.
type APIError struct {
	Code string
	Msg  string
}

func (e APIError) Error() string {
	return "kraken api error " + e.Code + ":" + e.Msg
}

func parseAPIError(raw string) APIError {
	code, msg, ok := strings.Cut(raw, ":")
	if !ok {
		return APIError{Msg: raw}
	}
	return APIError{Code: code, Msg: msg}
}

// tickerResponse fields are [price, ...] arrays of strings. c is the last
// trade, a/b the best ask/bid, h/l/v the today and 24h values.
type tickerResponse struct {
	A []string `json:"a"`
	B []string `json:"b"`
	C []string `json:"c"`
	V []string `json:"v"`
	H []string `json:"h"`
	L []string `json:"l"`
}

// depth rows are [price, volume, timestamp] with string prices.
type depthResponse struct {
	Asks [][]json.Number `json:"asks"`
	Bids [][]json.Number `json:"bids"`
}

type assetPairResponse struct {
	Altname      string `json:"altname"`
	Base         string `json:"base"`
	Quote        string `json:"quote"`
	PairDecimals *int32 `json:"pair_decimals"`
	LotDecimals  *int32 `json:"lot_decimals"`
	OrderMin     string `json:"ordermin"`
	CostMin      string `json:"costmin"`
	TickSize     string `json:"tick_size"`
}

type addOrderResponse struct {
	Descr struct {
		Order string `json:"order"`
	} `json:"descr"`
	TxID []string `json:"txid"`
}

type cancelResponse struct {
	Count *int `json:"count"`
}

type orderDescr struct {
	Pair      string `json:"pair"`
	Type      string `json:"type"`
	OrderType string `json:"ordertype"`
	Price     string `json:"price"`
	Leverage  string `json:"leverage"`
}

type orderInfoResponse struct {
	Status  string     `json:"status"`
	Descr   orderDescr `json:"descr"`
	Vol     string     `json:"vol"`
	VolExec string     `json:"vol_exec"`
	Cost    string     `json:"cost"`
	Price   string     `json:"price"`
}

type openOrdersResponse struct {
	Open map[string]orderInfoResponse `json:"open"`
}

type tradeResponse struct {
	OrderTxID string      `json:"ordertxid"`
	Pair      string      `json:"pair"`
	Time      json.Number `json:"time"`
	Type      string      `json:"type"`
	Price     string      `json:"price"`
	Cost      string      `json:"cost"`
	Fee       string      `json:"fee"`
	Vol       string      `json:"vol"`
}

type tradesHistoryResponse struct {
	Trades map[string]tradeResponse `json:"trades"`
	Count  int                      `json:"count"`
}

type positionResponse struct {
	OrderTxID string `json:"ordertxid"`
	Pair      string `json:"pair"`
	Type      string `json:"type"`
	Cost      string `json:"cost"`
	Fee       string `json:"fee"`
	Vol       string `json:"vol"`
	VolClosed string `json:"vol_closed"`
	Margin    string `json:"margin"`
	Net       string `json:"net"`
}

type tradeBalanceResponse struct {
	EB string `json:"eb"`
	TB string `json:"tb"`
	M  string `json:"m"`
	N  string `json:"n"`
	E  string `json:"e"`
	MF string `json:"mf"`
	ML string `json:"ml"`
}
