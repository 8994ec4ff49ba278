package huobi

import "encoding/json"

// envelope is shared by every REST response. Trading endpoints answer HTTP 200
// with status "error" on business failures.
type envelope struct {
	Status  string          `json:"status"`
	ErrCode string          `json:"err-code"`
	ErrMsg  string          `json:"err-msg"`
	Data    json.RawMessage `json:"data"`
	Tick    json.RawMessage `json:"tick"`
}

type APIError struct {
	Code string
	Msg  string
}

func (e APIError) Error() string {
	return "huobi api error " + e.Code + ": " + e.Msg
}

type accountResponse struct {
	ID      *int64 `json:"id"`
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	State   string `json:"state"`
}

type balanceItem struct {
	Currency string `json:"currency"`
	Type     string `json:"type"`
	Balance  string `json:"balance"`
}

type accountBalanceResponse struct {
	ID   *int64        `json:"id"`
	Type string        `json:"type"`
	List []balanceItem `json:"list"`
}

type marginBalanceResponse struct {
	ID       *int64        `json:"id"`
	Symbol   string        `json:"symbol"`
	State    string        `json:"state"`
	RiskRate string        `json:"risk-rate"`
	List     []balanceItem `json:"list"`
}

// orderResponse covers /v1/order/orders/{id} and /v1/order/openOrders items.
// Open orders report the executed amount as filled-amount.
type orderResponse struct {
	ID               *int64 `json:"id"`
	Symbol           string `json:"symbol"`
	AccountID        *int64 `json:"account-id"`
	Amount           string `json:"amount"`
	Price            string `json:"price"`
	Type             string `json:"type"`
	State            string `json:"state"`
	Source           string `json:"source"`
	FieldAmount      string `json:"field-amount"`
	FieldCashAmount  string `json:"field-cash-amount"`
	FieldFees        string `json:"field-fees"`
	FilledAmount     string `json:"filled-amount"`
	FilledCashAmount string `json:"filled-cash-amount"`
	CreatedAt        int64  `json:"created-at"`
}

type matchResultResponse struct {
	ID           *int64 `json:"id"`
	OrderID      *int64 `json:"order-id"`
	TradeID      *int64 `json:"trade-id"`
	Symbol       string `json:"symbol"`
	Type         string `json:"type"`
	Price        string `json:"price"`
	FilledAmount string `json:"filled-amount"`
	FilledFees   string `json:"filled-fees"`
	FeeCurrency  string `json:"fee-currency"`
	CreatedAt    int64  `json:"created-at"`
}

// Market data endpoints report numbers, decoded as json.Number to keep
// their exact text.
type mergedTickResponse struct {
	Close json.Number   `json:"close"`
	High  json.Number   `json:"high"`
	Low   json.Number   `json:"low"`
	Vol   json.Number   `json:"vol"`
	Bid   []json.Number `json:"bid"`
	Ask   []json.Number `json:"ask"`
}

type tickerResponse struct {
	Symbol string      `json:"symbol"`
	Close  json.Number `json:"close"`
	High   json.Number `json:"high"`
	Low    json.Number `json:"low"`
	Vol    json.Number `json:"vol"`
	Bid    json.Number `json:"bid"`
	Ask    json.Number `json:"ask"`
}

type depthResponse struct {
	Bids [][]json.Number `json:"bids"`
	Asks [][]json.Number `json:"asks"`
}

type symbolResponse struct {
	Symbol          string      `json:"symbol"`
	BaseCurrency    string      `json:"base-currency"`
	QuoteCurrency   string      `json:"quote-currency"`
	PricePrecision  *int32      `json:"price-precision"`
	AmountPrecision *int32      `json:"amount-precision"`
	MinOrderAmt     json.Number `json:"min-order-amt"`
	MinOrderValue   json.Number `json:"min-order-value"`
}
