// Command exchangecheck runs read-only checks against every configured
// exchange and prints a PASS/FAIL report. It never places or cancels orders.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"exchange-gateway/internal/config"
	"exchange-gateway/internal/exchange"
	"exchange-gateway/internal/gateway"
	"exchange-gateway/internal/logging"
)

type checkStatus string

const (
	statusPass checkStatus = "PASS"
	statusFail checkStatus = "FAIL"
)

type checkResult struct {
	Exchange   string      `json:"exchange"`
	Name       string      `json:"name"`
	Status     checkStatus `json:"status"`
	DurationMs int64       `json:"duration_ms"`
	Detail     string      `json:"detail,omitempty"`
	Error      string      `json:"error,omitempty"`
}

type report struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Exchanges  []string      `json:"exchanges"`
	Checks     []checkResult `json:"checks"`
}

func main() {
	var (
		configPath  string
		timeoutSec  int
		symbolFlag  string
		quote       string
		outJSONPath string
	)
	flag.StringVar(&configPath, "config", "config/config.yaml", "config yaml path")
	flag.IntVar(&timeoutSec, "timeout-sec", 60, "total timeout seconds")
	flag.StringVar(&symbolFlag, "symbol", "", "symbol for ticker and order book checks: SYMBOL or exchange=SYMBOL,...")
	flag.StringVar(&quote, "quote", "USDT", "currency for the account valuation check, empty to skip")
	flag.StringVar(&outJSONPath, "out-json", "", "optional output report path")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		fatal(err.Error())
	}
	closer, err := logging.Init(logging.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})
	if err != nil {
		fatal(err.Error())
	}
	defer closer.Close()

	symbols, err := parseSymbols(symbolFlag)
	if err != nil {
		fatal(err.Error())
	}
	if timeoutSec < 5 {
		timeoutSec = 5
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()

	g, err := gateway.New(cfg, gateway.Options{})
	if err != nil {
		fatal(err.Error())
	}

	r := report{StartedAt: time.Now().UTC(), Exchanges: g.Names()}
	for _, name := range g.Names() {
		ex, err := g.Exchange(name)
		if err != nil {
			fatal(err.Error())
		}
		margin, _ := g.Margin(name)
		r.Checks = append(r.Checks, checkExchange(ctx, ex, margin, symbols.forExchange(name), quote)...)
	}
	r.FinishedAt = time.Now().UTC()
	printSummary(r)

	if outJSONPath != "" {
		if err := writeReport(outJSONPath, r); err != nil {
			fatal(err.Error())
		}
		fmt.Printf("report written: %s\n", outJSONPath)
	}

	for _, c := range r.Checks {
		if c.Status == statusFail {
			os.Exit(1)
		}
	}
}

// checkExchange runs the read-only checks for one adapter. margin may be nil;
// symbol may be empty to skip market data checks and quote to skip valuation.
func checkExchange(ctx context.Context, ex exchange.Exchange, margin exchange.MarginExchange, symbol, quote string) []checkResult {
	var out []checkResult
	run := func(name string, fn func() (string, error)) {
		start := time.Now()
		detail, err := fn()
		cr := checkResult{
			Exchange:   ex.Name(),
			Name:       name,
			DurationMs: time.Since(start).Milliseconds(),
			Detail:     detail,
		}
		if err != nil {
			cr.Status = statusFail
			cr.Error = err.Error()
		} else {
			cr.Status = statusPass
		}
		out = append(out, cr)
		logrus.WithFields(logrus.Fields{
			"event":    "check_done",
			"exchange": cr.Exchange,
			"check":    name,
			"status":   cr.Status,
		}).Debug("check finished")
		if cr.Status == statusPass {
			fmt.Printf("[PASS] %s/%s (%dms)", cr.Exchange, name, cr.DurationMs)
			if cr.Detail != "" {
				fmt.Printf(" - %s", cr.Detail)
			}
			fmt.Println()
		} else {
			fmt.Printf("[FAIL] %s/%s (%dms) - %s\n", cr.Exchange, name, cr.DurationMs, cr.Error)
		}
	}

	run("full_balances", func() (string, error) {
		balances, err := ex.FullBalances(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("currencies=%d", len(balances)), nil
	})
	run("fee_info", func() (string, error) {
		fee, err := ex.FeeInfo(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("maker=%s taker=%s", fee.MakerFee.String(), fee.TakerFee.String()), nil
	})
	run("filters", func() (string, error) {
		filters, err := ex.Filters(ctx)
		if err != nil {
			return "", err
		}
		if len(filters) == 0 {
			return "", errors.New("no symbol filters returned")
		}
		if symbol == "" {
			return fmt.Sprintf("symbols=%d", len(filters)), nil
		}
		for _, f := range filters {
			if strings.EqualFold(f.Pair, symbol) {
				return fmt.Sprintf("symbols=%d %s minAmount=%s minNotional=%s tick=%s step=%s",
					len(filters), f.Pair, f.MinAmount.String(), f.MinNotional.String(), f.PriceTick.String(), f.AmountStep.String()), nil
			}
		}
		return "", errors.Errorf("no filter for %s among %d symbols", symbol, len(filters))
	})
	run("open_orders", func() (string, error) {
		orders, err := ex.OpenOrders(ctx)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("open=%d", len(orders)), nil
	})
	if quote != "" {
		run("valuation", func() (string, error) {
			v, err := ex.Valuation(ctx, quote)
			if err != nil {
				return "", err
			}
			detail := fmt.Sprintf("total=%s %s", v.Total.String(), v.Quote)
			if len(v.Unpriced) > 0 {
				detail += " unpriced=" + strings.Join(v.Unpriced, ",")
			}
			return detail, nil
		})
	}
	if symbol != "" {
		run("ticker", func() (string, error) {
			tickers, err := ex.Tickers(ctx, symbol)
			if err != nil {
				return "", err
			}
			if len(tickers) == 0 {
				return "", errors.Errorf("no ticker for %s", symbol)
			}
			t := tickers[0]
			return fmt.Sprintf("last=%s bid=%s ask=%s", t.Last.String(), t.Bid.String(), t.Ask.String()), nil
		})
		run("order_book", func() (string, error) {
			book, err := ex.OrderBook(ctx, symbol)
			if err != nil {
				return "", err
			}
			if book == nil {
				return "", errors.Errorf("unknown symbol %s", symbol)
			}
			if len(book.Bids) == 0 || len(book.Asks) == 0 {
				return "", errors.Errorf("empty book bids=%d asks=%d", len(book.Bids), len(book.Asks))
			}
			return fmt.Sprintf("bid=%s ask=%s depth=%d/%d", book.Bids[0].Price.String(), book.Asks[0].Price.String(), len(book.Bids), len(book.Asks)), nil
		})
	}
	if margin != nil {
		run("margin_info", func() (string, error) {
			info, err := margin.MarginInfo(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("equity=%s free=%s level=%s", info.Equity.String(), info.FreeMargin.String(), info.MarginLevel.String()), nil
		})
		run("margin_positions", func() (string, error) {
			positions, err := margin.MarginPositions(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("positions=%d", len(positions)), nil
		})
	}
	return out
}

type symbolSet struct {
	all         string
	perExchange map[string]string
}

func (s symbolSet) forExchange(name string) string {
	if v, ok := s.perExchange[name]; ok {
		return v
	}
	return s.all
}

// parseSymbols accepts "BTCUSDT" for every exchange or
// "binance=BTCUSDT,kraken=XBTUSDT" per exchange.
func parseSymbols(raw string) (symbolSet, error) {
	set := symbolSet{perExchange: map[string]string{}}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return set, nil
	}
	if !strings.Contains(raw, "=") {
		set.all = raw
		return set, nil
	}
	for _, part := range strings.Split(raw, ",") {
		name, symbol, ok := strings.Cut(strings.TrimSpace(part), "=")
		name = strings.ToLower(strings.TrimSpace(name))
		symbol = strings.TrimSpace(symbol)
		if !ok || name == "" || symbol == "" {
			return symbolSet{}, errors.Errorf("invalid -symbol entry %q", part)
		}
		set.perExchange[name] = symbol
	}
	return set, nil
}

func printSummary(r report) {
	pass := 0
	fail := 0
	for _, c := range r.Checks {
		if c.Status == statusPass {
			pass++
		} else {
			fail++
		}
	}
	fmt.Printf("\nsummary exchanges=%s pass=%d fail=%d duration=%s\n",
		strings.Join(r.Exchanges, ","),
		pass,
		fail,
		r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String(),
	)
}

func writeReport(path string, r report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, strings.TrimSpace(msg))
	os.Exit(1)
}
