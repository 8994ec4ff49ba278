// Package gateway builds the configured exchange adapters and the services
// layered on top of them.
package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"exchange-gateway/internal/alert"
	"exchange-gateway/internal/config"
	"exchange-gateway/internal/core"
	"exchange-gateway/internal/exchange"
	"exchange-gateway/internal/exchange/binance"
	"exchange-gateway/internal/exchange/huobi"
	"exchange-gateway/internal/exchange/kraken"
	"exchange-gateway/internal/lifecycle"
	"exchange-gateway/internal/safety"
	"exchange-gateway/internal/transport"
)

const serviceName = "exchange-gateway"

// Nonces hands out one kraken.Nonce per API key. Kraken rejects a nonce that
// is not larger than the last one seen for the key, so every client signing
// with the same key must draw from the same counter.
type Nonces struct {
	mu sync.Mutex
	m  map[string]*kraken.Nonce
}

func NewNonces() *Nonces {
	return &Nonces{m: make(map[string]*kraken.Nonce)}
}

func (n *Nonces) For(apiKey string) *kraken.Nonce {
	n.mu.Lock()
	defer n.mu.Unlock()
	nonce, ok := n.m[apiKey]
	if !ok {
		nonce = kraken.NewNonce()
		n.m[apiKey] = nonce
	}
	return nonce
}

type Options struct {
	// Doer replaces the shared HTTP transport, mainly for tests.
	Doer   transport.Doer
	Alerts alert.Alerter
	// Nonces lets several gateways share Kraken counters.
	Nonces *Nonces
}

type Gateway struct {
	names    []string
	adapters map[string]exchange.Exchange
	margins  map[string]exchange.MarginExchange
	breakers map[string]*safety.Breaker
	alerts   alert.Alerter
}

func New(cfg config.Config, opts Options) (*Gateway, error) {
	doer := opts.Doer
	if doer == nil {
		doer = transport.New(transport.Options{
			Timeout:   time.Duration(cfg.HTTP.TimeoutSec) * time.Second,
			UserAgent: serviceName,
		})
	}
	nonces := opts.Nonces
	if nonces == nil {
		nonces = NewNonces()
	}
	g := &Gateway{
		adapters: make(map[string]exchange.Exchange, len(cfg.Exchanges)),
		margins:  make(map[string]exchange.MarginExchange, len(cfg.Exchanges)),
		breakers: make(map[string]*safety.Breaker, len(cfg.Exchanges)),
		alerts:   opts.Alerts,
	}
	for _, ec := range cfg.Exchanges {
		switch ec.Name {
		case config.ExchangeBinance:
			g.add(ec.Name, binance.NewClient(binance.Options{
				Credentials:       ec,
				RestBaseURL:       ec.RestBaseURL,
				ClientOrderPrefix: ec.ClientOrderPrefix,
				RecvWindow:        time.Duration(ec.RecvWindowMs) * time.Millisecond,
				Doer:              doer,
			}), nil)
		case config.ExchangeHuobi:
			c := huobi.NewClient(huobi.Options{
				Credentials:       ec,
				RestBaseURL:       ec.RestBaseURL,
				ClientOrderPrefix: ec.ClientOrderPrefix,
				MakerFee:          ec.MakerFee.Decimal,
				TakerFee:          ec.TakerFee.Decimal,
				Doer:              doer,
			})
			g.add(ec.Name, c, c)
		case config.ExchangeKraken:
			c := kraken.NewClient(kraken.Options{
				Credentials: ec,
				RestBaseURL: ec.RestBaseURL,
				MakerFee:    ec.MakerFee.Decimal,
				TakerFee:    ec.TakerFee.Decimal,
				Leverage:    ec.Leverage,
				Nonce:       nonces.For(ec.APIKey),
				Doer:        doer,
			})
			g.add(ec.Name, c, c)
		default:
			return nil, &core.ConfigurationError{Exchange: ec.Name, Reason: "unknown exchange"}
		}
		if cfg.CircuitBreaker.Enabled {
			g.breakers[ec.Name] = safety.NewBreaker(ec.Name, safety.Options{
				MaxPlaceFailures:  cfg.CircuitBreaker.MaxPlaceFailures,
				MaxCancelFailures: cfg.CircuitBreaker.MaxCancelFailures,
				Cooldown:          time.Duration(cfg.CircuitBreaker.CooldownSec) * time.Second,
				Alerts:            opts.Alerts,
			})
		}
		logrus.WithFields(logrus.Fields{
			"event":    "adapter_ready",
			"exchange": ec.Name,
			"margin":   g.margins[ec.Name] != nil,
		}).Debug("exchange adapter configured")
	}
	return g, nil
}

func (g *Gateway) add(name string, ex exchange.Exchange, margin exchange.MarginExchange) {
	g.names = append(g.names, name)
	g.adapters[name] = ex
	if margin != nil {
		g.margins[name] = margin
	}
}

// Names lists the adapters in configuration order.
func (g *Gateway) Names() []string {
	return append([]string(nil), g.names...)
}

func (g *Gateway) Exchange(name string) (exchange.Exchange, error) {
	ex, ok := g.adapters[name]
	if !ok {
		return nil, &core.ConfigurationError{Exchange: name, Reason: "exchange not configured"}
	}
	return ex, nil
}

func (g *Gateway) Margin(name string) (exchange.MarginExchange, bool) {
	m, ok := g.margins[name]
	return m, ok
}

// Coordinator returns a lifecycle coordinator for name, preloaded with the
// exchange's symbol filters so replacements are checked before cancelling.
// Coordinators for the same exchange share its circuit breaker.
func (g *Gateway) Coordinator(ctx context.Context, name string) (*lifecycle.Coordinator, error) {
	ex, err := g.Exchange(name)
	if err != nil {
		return nil, err
	}
	filters, err := ex.Filters(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "%s filters", name)
	}
	opts := lifecycle.Options{Filters: filters, Alerts: g.alerts, Breaker: g.breakers[name]}
	if m, ok := g.margins[name]; ok {
		opts.Margin = m
	}
	return lifecycle.New(ex, opts), nil
}

// NewAlerts builds the alert manager described by cfg. Alerts are dropped
// silently when Telegram is disabled.
func NewAlerts(cfg config.AlertConfig) *alert.Manager {
	notifier := alert.NewTelegramNotifier(
		cfg.Telegram.Enabled,
		cfg.Telegram.BotToken,
		cfg.Telegram.ChatID,
		cfg.Telegram.APIBaseURL,
		time.Duration(cfg.Telegram.TimeoutSec)*time.Second,
	)
	return alert.NewManager(serviceName, notifier, alert.Options{
		QueueSize:          cfg.QueueSize,
		DropReportInterval: time.Duration(cfg.DropReportSec) * time.Second,
	})
}
