package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"exchange-gateway/internal/core"
	"exchange-gateway/internal/exchange"
)

type stubExchange struct {
	exchange.MarginExchange
	balancesErr error
}

func (s stubExchange) Name() string { return "stub" }

func (s stubExchange) FullBalances(context.Context) ([]core.Balance, error) {
	if s.balancesErr != nil {
		return nil, s.balancesErr
	}
	return []core.Balance{{Currency: "BTC", Amount: decimal.NewFromInt(1), Kind: core.KindExchange}}, nil
}

func (s stubExchange) FeeInfo(context.Context) (core.FeeInfo, error) {
	return core.FeeInfo{MakerFee: decimal.RequireFromString("0.001"), TakerFee: decimal.RequireFromString("0.001")}, nil
}

func (s stubExchange) Filters(context.Context) ([]core.SymbolFilter, error) {
	return []core.SymbolFilter{core.NewSymbolFilter("stub", "BTCUSDT")}, nil
}

func (s stubExchange) OpenOrders(context.Context) ([]core.Order, error) { return nil, nil }

func (s stubExchange) Tickers(_ context.Context, symbol string) ([]core.Ticker, error) {
	return []core.Ticker{{Symbol: symbol, Last: decimal.NewFromInt(100)}}, nil
}

func (s stubExchange) OrderBook(_ context.Context, symbol string) (*core.OrderBook, error) {
	if symbol != "BTCUSDT" {
		return nil, nil
	}
	return &core.OrderBook{
		Symbol: symbol,
		Bids:   []core.BookLevel{{Price: decimal.NewFromInt(99), Amount: decimal.NewFromInt(1)}},
		Asks:   []core.BookLevel{{Price: decimal.NewFromInt(101), Amount: decimal.NewFromInt(1)}},
	}, nil
}

func (s stubExchange) MarginInfo(context.Context) (core.MarginInfo, error) {
	return core.MarginInfo{Equity: decimal.NewFromInt(10)}, nil
}

func (s stubExchange) MarginPositions(context.Context) ([]core.MarginPosition, error) {
	return nil, nil
}

func (s stubExchange) Valuation(_ context.Context, quote string) (core.Valuation, error) {
	return core.Valuation{Quote: quote, Total: decimal.NewFromInt(30000), Unpriced: []string{"LUNC"}}, nil
}

func statuses(results []checkResult) map[string]checkStatus {
	out := make(map[string]checkStatus, len(results))
	for _, r := range results {
		out[r.Name] = r.Status
	}
	return out
}

func TestCheckExchangeRunsReadOnlyChecks(t *testing.T) {
	ex := stubExchange{}
	got := statuses(checkExchange(context.Background(), ex, ex, "BTCUSDT", "USDT"))
	for _, name := range []string{"full_balances", "fee_info", "filters", "open_orders", "valuation", "ticker", "order_book", "margin_info", "margin_positions"} {
		if got[name] != statusPass {
			t.Fatalf("%s = %q, want PASS (all=%v)", name, got[name], got)
		}
	}
}

func TestCheckExchangeSkipsOptionalChecks(t *testing.T) {
	got := statuses(checkExchange(context.Background(), stubExchange{}, nil, "", ""))
	if len(got) != 4 {
		t.Fatalf("checks = %v, want 4 base checks", got)
	}
	if _, ok := got["margin_info"]; ok {
		t.Fatalf("margin_info ran without a margin adapter")
	}
}

func TestCheckExchangeValuationDetail(t *testing.T) {
	results := checkExchange(context.Background(), stubExchange{}, nil, "", "USDT")
	for _, r := range results {
		if r.Name != "valuation" {
			continue
		}
		if r.Status != statusPass || r.Detail != "total=30000 USDT unpriced=LUNC" {
			t.Fatalf("valuation = %+v", r)
		}
		return
	}
	t.Fatalf("valuation check did not run: %v", statuses(results))
}

func TestCheckExchangeReportsFailures(t *testing.T) {
	ex := stubExchange{balancesErr: errors.New("boom")}
	results := checkExchange(context.Background(), ex, nil, "ETHUSDT", "")
	got := statuses(results)
	if got["full_balances"] != statusFail {
		t.Fatalf("full_balances = %q, want FAIL", got["full_balances"])
	}
	if got["filters"] != statusFail {
		t.Fatalf("filters = %q, want FAIL for missing symbol", got["filters"])
	}
	if got["order_book"] != statusFail {
		t.Fatalf("order_book = %q, want FAIL for unknown symbol", got["order_book"])
	}
	if results[0].Exchange != "stub" || !strings.Contains(results[0].Error, "boom") {
		t.Fatalf("first result = %+v", results[0])
	}
}

func TestParseSymbols(t *testing.T) {
	set, err := parseSymbols("BTCUSDT")
	if err != nil {
		t.Fatalf("parseSymbols() error = %v", err)
	}
	if set.forExchange("huobi") != "BTCUSDT" {
		t.Fatalf("forExchange(huobi) = %q", set.forExchange("huobi"))
	}

	set, err = parseSymbols("binance=BTCUSDT, Kraken=XBTUSDT")
	if err != nil {
		t.Fatalf("parseSymbols() error = %v", err)
	}
	if set.forExchange("kraken") != "XBTUSDT" || set.forExchange("binance") != "BTCUSDT" {
		t.Fatalf("per exchange symbols = %+v", set.perExchange)
	}
	if set.forExchange("huobi") != "" {
		t.Fatalf("forExchange(huobi) = %q, want empty", set.forExchange("huobi"))
	}

	if _, err := parseSymbols("binance=,huobi=btcusdt"); err == nil {
		t.Fatalf("parseSymbols() error = nil, want invalid entry")
	}
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	r := report{Exchanges: []string{"stub"}, Checks: []checkResult{{Exchange: "stub", Name: "fee_info", Status: statusPass}}}
	if err := writeReport(path, r); err != nil {
		t.Fatalf("writeReport() error = %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if !strings.Contains(string(data), `"status": "PASS"`) {
		t.Fatalf("report = %s", data)
	}
}
