package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	ExchangeBinance = "binance"
	ExchangeHuobi   = "huobi"
	ExchangeKraken  = "kraken"
)

type Config struct {
	Log            LogConfig            `yaml:"log"`
	HTTP           HTTPConfig           `yaml:"http"`
	Alert          AlertConfig          `yaml:"alert"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	Exchanges      []ExchangeConfig     `yaml:"exchanges"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

type HTTPConfig struct {
	TimeoutSec int64 `yaml:"timeout_sec"`
}

type AlertConfig struct {
	Telegram      TelegramConfig `yaml:"telegram"`
	QueueSize     int            `yaml:"queue_size"`
	DropReportSec int64          `yaml:"drop_report_sec"`
}

// CircuitBreakerConfig bounds consecutive cancel and place failures per
// exchange before the lifecycle coordinator stops taking new operations.
type CircuitBreakerConfig struct {
	Enabled           bool  `yaml:"enabled"`
	MaxPlaceFailures  int   `yaml:"max_place_failures"`
	MaxCancelFailures int   `yaml:"max_cancel_failures"`
	CooldownSec       int64 `yaml:"cooldown_sec"`
}

type TelegramConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BotToken   string `yaml:"bot_token"`
	ChatID     string `yaml:"chat_id"`
	APIBaseURL string `yaml:"api_base_url"`
	TimeoutSec int64  `yaml:"timeout_sec"`
}

// ExchangeConfig describes one adapter. It satisfies exchange.Credentials.
type ExchangeConfig struct {
	Name              string  `yaml:"name"`
	APIKey            string  `yaml:"api_key"`
	APISecret         string  `yaml:"api_secret"`
	RestBaseURL       string  `yaml:"rest_base_url"`
	RecvWindowMs      int64   `yaml:"recv_window_ms"`
	ClientOrderPrefix string  `yaml:"client_order_prefix"`
	MakerFee          FeeRate `yaml:"maker_fee"`
	TakerFee          FeeRate `yaml:"taker_fee"`
	Leverage          int     `yaml:"leverage"`
}

func (e ExchangeConfig) Key() string    { return e.APIKey }
func (e ExchangeConfig) Secret() string { return e.APISecret }

// Load reads a single YAML document from path. A .env file next to it is
// loaded first (existing variables win) and ${VAR} references are expanded.
// A bare $ is left alone so secrets may contain it.
func Load(path string) (Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return Config{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	return Parse(expandEnv(data))
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(envRef.FindSubmatch(ref)[1])))
	})
}

// Parse decodes an already expanded document.
func Parse(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, err
	}
	var extra yaml.Node
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return Config{}, fmt.Errorf("config must contain a single YAML document")
		}
		return Config{}, err
	}
	cfg.normalize()
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func (c *Config) normalize() {
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.File = strings.TrimSpace(c.Log.File)
	c.Alert.Telegram.BotToken = strings.TrimSpace(c.Alert.Telegram.BotToken)
	c.Alert.Telegram.ChatID = strings.TrimSpace(c.Alert.Telegram.ChatID)
	c.Alert.Telegram.APIBaseURL = strings.TrimSpace(c.Alert.Telegram.APIBaseURL)
	for i := range c.Exchanges {
		e := &c.Exchanges[i]
		e.Name = strings.ToLower(strings.TrimSpace(e.Name))
		e.APIKey = strings.TrimSpace(e.APIKey)
		e.APISecret = strings.TrimSpace(e.APISecret)
		e.RestBaseURL = strings.TrimSpace(e.RestBaseURL)
		e.ClientOrderPrefix = strings.TrimSpace(e.ClientOrderPrefix)
	}
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSizeMB == 0 {
		c.Log.MaxSizeMB = 50
	}
	if c.Log.MaxBackups == 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAgeDays == 0 {
		c.Log.MaxAgeDays = 7
	}
	if c.HTTP.TimeoutSec == 0 {
		c.HTTP.TimeoutSec = 15
	}
	if c.Alert.QueueSize == 0 {
		c.Alert.QueueSize = 128
	}
	if c.Alert.DropReportSec == 0 {
		c.Alert.DropReportSec = 60
	}
	if c.Alert.Telegram.APIBaseURL == "" {
		c.Alert.Telegram.APIBaseURL = "https://api.telegram.org"
	}
	if c.Alert.Telegram.TimeoutSec == 0 {
		c.Alert.Telegram.TimeoutSec = 10
	}
	if c.CircuitBreaker.MaxPlaceFailures == 0 {
		c.CircuitBreaker.MaxPlaceFailures = 5
	}
	if c.CircuitBreaker.MaxCancelFailures == 0 {
		c.CircuitBreaker.MaxCancelFailures = 5
	}
	if c.CircuitBreaker.CooldownSec == 0 {
		c.CircuitBreaker.CooldownSec = 30
	}
	for i := range c.Exchanges {
		e := &c.Exchanges[i]
		if e.Name == ExchangeBinance && e.RecvWindowMs == 0 {
			e.RecvWindowMs = 5000
		}
		if e.Name == ExchangeKraken && e.Leverage == 0 {
			e.Leverage = 2
		}
	}
}

func (c Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level %v", err)
	}
	if c.Log.MaxSizeMB < 1 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return fmt.Errorf("log.max_size_mb must be >= 1 and log.max_backups/max_age_days >= 0")
	}
	if c.HTTP.TimeoutSec < 1 || c.HTTP.TimeoutSec > 120 {
		return fmt.Errorf("http.timeout_sec must be between 1 and 120")
	}
	if c.Alert.QueueSize < 1 || c.Alert.QueueSize > 10000 {
		return fmt.Errorf("alert.queue_size must be between 1 and 10000")
	}
	if c.Alert.DropReportSec < 0 || c.Alert.DropReportSec > 3600 {
		return fmt.Errorf("alert.drop_report_sec must be between 0 and 3600")
	}
	if c.Alert.Telegram.Enabled {
		if c.Alert.Telegram.BotToken == "" {
			return fmt.Errorf("alert.telegram.bot_token is required when telegram enabled")
		}
		if c.Alert.Telegram.ChatID == "" {
			return fmt.Errorf("alert.telegram.chat_id is required when telegram enabled")
		}
		if c.Alert.Telegram.TimeoutSec < 1 || c.Alert.Telegram.TimeoutSec > 120 {
			return fmt.Errorf("alert.telegram.timeout_sec must be between 1 and 120")
		}
		if err := validateURL(c.Alert.Telegram.APIBaseURL, "http", "https"); err != nil {
			return fmt.Errorf("alert.telegram.api_base_url %v", err)
		}
	}
	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.MaxPlaceFailures < 1 {
			return fmt.Errorf("circuit_breaker.max_place_failures must be >= 1")
		}
		if c.CircuitBreaker.MaxCancelFailures < 1 {
			return fmt.Errorf("circuit_breaker.max_cancel_failures must be >= 1")
		}
		if c.CircuitBreaker.CooldownSec < 1 || c.CircuitBreaker.CooldownSec > 3600 {
			return fmt.Errorf("circuit_breaker.cooldown_sec must be between 1 and 3600")
		}
	}
	if len(c.Exchanges) == 0 {
		return fmt.Errorf("at least one exchange is required")
	}
	seen := make(map[string]bool, len(c.Exchanges))
	for i, e := range c.Exchanges {
		if seen[e.Name] {
			return fmt.Errorf("exchanges[%d]: %s configured twice", i, e.Name)
		}
		seen[e.Name] = true
		if err := e.validate(); err != nil {
			return fmt.Errorf("exchanges[%d]: %w", i, err)
		}
	}
	return nil
}

func (e ExchangeConfig) validate() error {
	switch e.Name {
	case ExchangeBinance, ExchangeHuobi, ExchangeKraken:
	default:
		return fmt.Errorf("name must be binance, huobi, or kraken")
	}
	if e.APIKey == "" || e.APISecret == "" {
		return fmt.Errorf("%s api_key/api_secret are required", e.Name)
	}
	if e.RestBaseURL != "" {
		if err := validateURL(e.RestBaseURL, "http", "https"); err != nil {
			return fmt.Errorf("%s rest_base_url %v", e.Name, err)
		}
	}
	if e.Name == ExchangeBinance && (e.RecvWindowMs < 1 || e.RecvWindowMs > 60000) {
		return fmt.Errorf("binance recv_window_ms must be between 1 and 60000")
	}
	if e.Name == ExchangeKraken && (e.Leverage < 1 || e.Leverage > 5) {
		return fmt.Errorf("kraken leverage must be between 1 and 5")
	}
	if !isValidFee(e.MakerFee.Decimal) || !isValidFee(e.TakerFee.Decimal) {
		return fmt.Errorf("%s maker_fee/taker_fee must be in [0, 1)", e.Name)
	}
	if !isValidPrefix(e.ClientOrderPrefix) {
		return fmt.Errorf("%s client_order_prefix must match [A-Za-z0-9_-], length 0..12", e.Name)
	}
	return nil
}

func isValidFee(v decimal.Decimal) bool {
	return v.Cmp(decimal.Zero) >= 0 && v.Cmp(decimal.NewFromInt(1)) < 0
}

func isValidPrefix(v string) bool {
	if len(v) > 12 {
		return false
	}
	for _, r := range v {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' || r == '-' {
			continue
		}
		return false
	}
	return true
}

func validateURL(raw string, schemes ...string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("must be a valid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("must include scheme and host")
	}
	for _, s := range schemes {
		if parsed.Scheme == s {
			return nil
		}
	}
	return fmt.Errorf("scheme must be %s", strings.Join(schemes, " or "))
}
