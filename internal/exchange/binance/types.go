package binance

import (
	"strconv"
)

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type APIError struct {
	Code int
	Msg  string
}

func (e APIError) Error() string {
	return "binance api error " + strconv.Itoa(e.Code) + ": " + e.Msg
}

type fillResponse struct {
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
}

// orderResponse covers POST/GET /api/v3/order and /api/v3/openOrders items.
type orderResponse struct {
	Symbol             string         `json:"symbol"`
	OrderID            *int64         `json:"orderId"`
	ClientOrderID      string         `json:"clientOrderId"`
	Price              string         `json:"price"`
	OrigQty            string         `json:"origQty"`
	ExecutedQty        string         `json:"executedQty"`
	CumulativeQuoteQty string         `json:"cummulativeQuoteQty"`
	Status             string         `json:"status"`
	Side               string         `json:"side"`
	Type               string         `json:"type"`
	Fills              []fillResponse `json:"fills"`
}

type cancelResponse struct {
	Symbol  string `json:"symbol"`
	OrderID *int64 `json:"orderId"`
	Status  string `json:"status"`
}

type accountResponse struct {
	MakerCommission *int64 `json:"makerCommission"`
	TakerCommission *int64 `json:"takerCommission"`
	Balances        []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

type ticker24hrResponse struct {
	Symbol    string `json:"symbol"`
	LastPrice string `json:"lastPrice"`
	BidPrice  string `json:"bidPrice"`
	AskPrice  string `json:"askPrice"`
	HighPrice string `json:"highPrice"`
	LowPrice  string `json:"lowPrice"`
	Volume    string `json:"volume"`
}

type bookTickerResponse struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	BidQty   string `json:"bidQty"`
	AskPrice string `json:"askPrice"`
	AskQty   string `json:"askQty"`
}

type myTradeResponse struct {
	Symbol          string `json:"symbol"`
	ID              *int64 `json:"id"`
	OrderID         *int64 `json:"orderId"`
	Price           string `json:"price"`
	Qty             string `json:"qty"`
	Commission      string `json:"commission"`
	CommissionAsset string `json:"commissionAsset"`
	Time            int64  `json:"time"`
	IsBuyer         bool   `json:"isBuyer"`
}

type exchangeInfoResponse struct {
	Symbols []symbolInfoResponse `json:"symbols"`
}

type symbolFilterResponse struct {
	FilterType  string `json:"filterType"`
	MinPrice    string `json:"minPrice"`
	TickSize    string `json:"tickSize"`
	MinQty      string `json:"minQty"`
	StepSize    string `json:"stepSize"`
	MinNotional string `json:"minNotional"`
}

type symbolInfoResponse struct {
	Symbol     string                 `json:"symbol"`
	BaseAsset  string                 `json:"baseAsset"`
	QuoteAsset string                 `json:"quoteAsset"`
	Filters    []symbolFilterResponse `json:"filters"`
}
