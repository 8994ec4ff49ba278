package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoadAppliesDefaults(t *testing.T) {
	cfgPath := writeTempConfig(t, `
exchanges:
  - name: Binance
    api_key: " k "
    api_secret: s
  - name: kraken
    api_key: k
    api_secret: c2VjcmV0
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "info" || cfg.Log.MaxSizeMB != 50 || cfg.Log.MaxBackups != 3 || cfg.Log.MaxAgeDays != 7 {
		t.Fatalf("log defaults = %+v", cfg.Log)
	}
	if cfg.HTTP.TimeoutSec != 15 {
		t.Fatalf("http.timeout_sec = %d, want 15", cfg.HTTP.TimeoutSec)
	}
	if cfg.Alert.QueueSize != 128 || cfg.Alert.DropReportSec != 60 {
		t.Fatalf("alert defaults = %+v", cfg.Alert)
	}
	if cfg.Alert.Telegram.APIBaseURL != "https://api.telegram.org" || cfg.Alert.Telegram.TimeoutSec != 10 {
		t.Fatalf("telegram defaults = %+v", cfg.Alert.Telegram)
	}
	if cfg.CircuitBreaker.Enabled || cfg.CircuitBreaker.MaxPlaceFailures != 5 || cfg.CircuitBreaker.MaxCancelFailures != 5 || cfg.CircuitBreaker.CooldownSec != 30 {
		t.Fatalf("circuit_breaker defaults = %+v", cfg.CircuitBreaker)
	}
	bin := cfg.Exchanges[0]
	if bin.Name != ExchangeBinance {
		t.Fatalf("name = %q, want binance", bin.Name)
	}
	if bin.Key() != "k" || bin.Secret() != "s" {
		t.Fatalf("credentials = %q/%q", bin.Key(), bin.Secret())
	}
	if bin.RecvWindowMs != 5000 {
		t.Fatalf("recv_window_ms = %d, want 5000", bin.RecvWindowMs)
	}
	if bin.Leverage != 0 {
		t.Fatalf("binance leverage = %d, want 0", bin.Leverage)
	}
	if cfg.Exchanges[1].Leverage != 2 || cfg.Exchanges[1].RecvWindowMs != 0 {
		t.Fatalf("kraken defaults = %+v", cfg.Exchanges[1])
	}
}

func TestLoadParsesFeesAndPrefix(t *testing.T) {
	cfgPath := writeTempConfig(t, `
exchanges:
  - name: huobi
    api_key: k
    api_secret: s
    client_order_prefix: grid_1
    maker_fee: "0.0015"
    taker_fee: "0.002"
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	e := cfg.Exchanges[0]
	if !e.MakerFee.Equal(decimal.RequireFromString("0.0015")) {
		t.Fatalf("maker_fee = %s, want 0.0015", e.MakerFee.String())
	}
	if !e.TakerFee.Equal(decimal.RequireFromString("0.002")) {
		t.Fatalf("taker_fee = %s, want 0.002", e.TakerFee.String())
	}
	if e.ClientOrderPrefix != "grid_1" {
		t.Fatalf("client_order_prefix = %q", e.ClientOrderPrefix)
	}
}

func TestLoadAcceptsPercentFees(t *testing.T) {
	cfgPath := writeTempConfig(t, `
exchanges:
  - name: kraken
    api_key: k
    api_secret: s
    maker_fee: "0.16%"
    taker_fee: 0.0026
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	e := cfg.Exchanges[0]
	if !e.MakerFee.Equal(decimal.RequireFromString("0.0016")) {
		t.Fatalf("maker_fee = %s, want 0.0016", e.MakerFee.String())
	}
	if !e.TakerFee.Equal(decimal.RequireFromString("0.0026")) {
		t.Fatalf("taker_fee = %s, want 0.0026", e.TakerFee.String())
	}
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("GW_TEST_BINANCE_KEY", "env-key")
	t.Setenv("GW_TEST_BINANCE_SECRET", "env-secret")
	cfgPath := writeTempConfig(t, `
exchanges:
  - name: binance
    api_key: ${GW_TEST_BINANCE_KEY}
    api_secret: ${GW_TEST_BINANCE_SECRET}
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Exchanges[0].APIKey != "env-key" || cfg.Exchanges[0].APISecret != "env-secret" {
		t.Fatalf("credentials = %+v", cfg.Exchanges[0])
	}
}

func TestLoadKeepsLiteralDollarInSecrets(t *testing.T) {
	t.Setenv("abc", "oops")
	t.Setenv("GW_TEST_KRAKEN_KEY", "env-key")
	cfgPath := writeTempConfig(t, `
exchanges:
  - name: kraken
    api_key: ${GW_TEST_KRAKEN_KEY}
    api_secret: 'pa$abc$word$'
`)

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Exchanges[0].APIKey != "env-key" {
		t.Fatalf("api_key = %q, want env-key", cfg.Exchanges[0].APIKey)
	}
	if cfg.Exchanges[0].APISecret != "pa$abc$word$" {
		t.Fatalf("api_secret = %q, want pa$abc$word$", cfg.Exchanges[0].APISecret)
	}
}

func TestLoadReadsDotEnvWithoutOverridingEnvironment(t *testing.T) {
	t.Setenv("GW_TEST_DOTENV_KEY", "from-env")
	t.Cleanup(func() { _ = os.Unsetenv("GW_TEST_DOTENV_SECRET") })
	cfgPath := writeTempConfig(t, `
exchanges:
  - name: huobi
    api_key: ${GW_TEST_DOTENV_KEY}
    api_secret: ${GW_TEST_DOTENV_SECRET}
`)
	dotenv := "GW_TEST_DOTENV_KEY=from-file\nGW_TEST_DOTENV_SECRET=file-secret\n"
	if err := os.WriteFile(filepath.Join(filepath.Dir(cfgPath), ".env"), []byte(dotenv), 0o600); err != nil {
		t.Fatalf("write .env failed: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Exchanges[0].APIKey != "from-env" {
		t.Fatalf("api_key = %q, want from-env", cfg.Exchanges[0].APIKey)
	}
	if cfg.Exchanges[0].APISecret != "file-secret" {
		t.Fatalf("api_secret = %q, want file-secret", cfg.Exchanges[0].APISecret)
	}
}

func TestLoadRejectsInvalidExchanges(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "none",
			body:    `log: {level: debug}`,
			wantErr: "at least one exchange",
		},
		{
			name: "unknown name",
			body: `
exchanges:
  - {name: bitfinex, api_key: k, api_secret: s}`,
			wantErr: "name must be",
		},
		{
			name: "duplicate",
			body: `
exchanges:
  - {name: kraken, api_key: k, api_secret: s}
  - {name: KRAKEN, api_key: k, api_secret: s}`,
			wantErr: "configured twice",
		},
		{
			name: "missing secret",
			body: `
exchanges:
  - {name: huobi, api_key: k}`,
			wantErr: "api_key/api_secret are required",
		},
		{
			name: "recv window",
			body: `
exchanges:
  - {name: binance, api_key: k, api_secret: s, recv_window_ms: 70000}`,
			wantErr: "recv_window_ms",
		},
		{
			name: "leverage",
			body: `
exchanges:
  - {name: kraken, api_key: k, api_secret: s, leverage: 9}`,
			wantErr: "leverage",
		},
		{
			name: "fee",
			body: `
exchanges:
  - {name: huobi, api_key: k, api_secret: s, taker_fee: "1.5"}`,
			wantErr: "maker_fee/taker_fee",
		},
		{
			name: "bad decimal",
			body: `
exchanges:
  - {name: huobi, api_key: k, api_secret: s, maker_fee: "abc"}`,
			wantErr: "invalid decimal",
		},
		{
			name: "rest url scheme",
			body: `
exchanges:
  - {name: binance, api_key: k, api_secret: s, rest_base_url: "ftp://api.binance.com"}`,
			wantErr: "scheme must be http or https",
		},
		{
			name: "prefix",
			body: `
exchanges:
  - {name: binance, api_key: k, api_secret: s, client_order_prefix: "bad prefix"}`,
			wantErr: "client_order_prefix",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeTempConfig(t, tc.body))
			if err == nil {
				t.Fatalf("Load() error = nil, want %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Load() error = %v, want it to contain %q", err, tc.wantErr)
			}
		})
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	cfgPath := writeTempConfig(t, `
exchanges:
  - name: binance
    api_key: k
    api_secret: s
    ws_base_url: wss://stream.binance.com
`)

	_, err := Load(cfgPath)
	if err == nil {
		t.Fatalf("Load() error = nil, want unknown field error")
	}
	if !strings.Contains(err.Error(), "ws_base_url") {
		t.Fatalf("Load() error = %v, want mention of ws_base_url", err)
	}
}

func TestLoadRejectsMultipleDocuments(t *testing.T) {
	cfgPath := writeTempConfig(t, `
exchanges:
  - {name: binance, api_key: k, api_secret: s}
---
exchanges: []
`)

	_, err := Load(cfgPath)
	if err == nil || !strings.Contains(err.Error(), "single YAML document") {
		t.Fatalf("Load() error = %v, want single document error", err)
	}
}

func TestLoadRejectsInvalidLogLevel(t *testing.T) {
	cfgPath := writeTempConfig(t, `
log:
  level: loud
exchanges:
  - {name: binance, api_key: k, api_secret: s}
`)

	_, err := Load(cfgPath)
	if err == nil || !strings.Contains(err.Error(), "log.level") {
		t.Fatalf("Load() error = %v, want log.level error", err)
	}
}

func TestLoadTelegramEnabledRequiresToken(t *testing.T) {
	cfgPath := writeTempConfig(t, `
alert:
  telegram:
    enabled: true
    chat_id: "42"
exchanges:
  - {name: binance, api_key: k, api_secret: s}
`)

	_, err := Load(cfgPath)
	if err == nil || !strings.Contains(err.Error(), "bot_token") {
		t.Fatalf("Load() error = %v, want bot_token error", err)
	}
}

func TestLoadTelegramDisabledIgnoresInvalidAPIBaseURL(t *testing.T) {
	cfgPath := writeTempConfig(t, `
alert:
  telegram:
    enabled: false
    api_base_url: "not a url"
exchanges:
  - {name: binance, api_key: k, api_secret: s}
`)

	if _, err := Load(cfgPath); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
}

func TestLoadRejectsInvalidAlertDropReportInterval(t *testing.T) {
	cfgPath := writeTempConfig(t, `
alert:
  drop_report_sec: 7200
exchanges:
  - {name: binance, api_key: k, api_secret: s}
`)

	_, err := Load(cfgPath)
	if err == nil || !strings.Contains(err.Error(), "drop_report_sec") {
		t.Fatalf("Load() error = %v, want drop_report_sec error", err)
	}
}

func TestLoadRejectsInvalidCircuitBreakerCooldown(t *testing.T) {
	cfgPath := writeTempConfig(t, `
circuit_breaker:
  enabled: true
  cooldown_sec: -1
exchanges:
  - {name: binance, api_key: k, api_secret: s}
`)

	_, err := Load(cfgPath)
	if err == nil || !strings.Contains(err.Error(), "circuit_breaker.cooldown_sec") {
		t.Fatalf("Load() error = %v, want cooldown_sec error", err)
	}
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o644); err != nil {
		t.Fatalf("write temp config failed: %v", err)
	}
	return path
}
