package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/vitos/risk_guard/internal/domain"
	"github.com/vitos/risk_guard/internal/infrastructure/exchange"
	"github.com/vitos/risk_guard/internal/usecase"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Rules domain.RuleConfig `yaml:"rules"`

	Monitor struct {
		PollIntervalSeconds int `yaml:"poll_interval_seconds"`
		MaxConcurrentUsers  int `yaml:"max_concurrent_users"`
		TradeHistoryLimit   int `yaml:"trade_history_limit"`
	} `yaml:"monitor"`

	Recap struct {
		Enabled bool `yaml:"enabled"`
		HourUTC int  `yaml:"hour_utc"`
	} `yaml:"recap"`

	Exchange struct {
		Name         string `yaml:"name"`
		RESTEndpoint string `yaml:"rest_endpoint"`
		Testnet      bool   `yaml:"testnet"`
		APIKey       string `yaml:"api_key"`
		APISecret    string `yaml:"api_secret"`
	} `yaml:"exchange"`

	Telegram struct {
		BotToken string `yaml:"bot_token"`
	} `yaml:"telegram"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Server struct {
		Port              int     `yaml:"port"`
		RequestsPerSecond float64 `yaml:"requests_per_second"`
		Burst             int     `yaml:"burst"`
	} `yaml:"server"`

	Logging struct {
		Level    string `yaml:"level"`
		Encoding string `yaml:"encoding"`
	} `yaml:"logging"`
}

func Default() *Config {
	cfg := &Config{Rules: domain.DefaultRuleConfig()}
	cfg.Monitor.PollIntervalSeconds = 15
	cfg.Monitor.MaxConcurrentUsers = 8
	cfg.Monitor.TradeHistoryLimit = 20
	cfg.Recap.Enabled = true
	cfg.Recap.HourUTC = 20
	cfg.Exchange.Name = "bybit"
	cfg.Storage.Path = "risk_guard.db"
	cfg.Server.Port = 8080
	cfg.Server.RequestsPerSecond = 10
	cfg.Server.Burst = 20
	cfg.Logging.Level = "info"
	cfg.Logging.Encoding = "json"
	return cfg
}

// Load reads .env (if present), then the YAML file at path on top of the
// defaults, then the environment overrides. A missing YAML file is not an
// error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&c.Exchange.APIKey, "BYBIT_API_KEY")
	setString(&c.Exchange.APISecret, "BYBIT_API_SECRET")
	setString(&c.Telegram.BotToken, "TELEGRAM_BOT_TOKEN")
	setString(&c.Storage.Path, "DB_PATH")
	setString(&c.Logging.Level, "LOG_LEVEL")

	if v := os.Getenv("BYBIT_TESTNET"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Exchange.Testnet = b
		}
	}
	if v := os.Getenv("SERVER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.Port = n
		}
	}
}

func (c *Config) Validate() error {
	err := c.Rules.Validate()
	if c.Monitor.PollIntervalSeconds <= 0 {
		err = multierr.Append(err, &domain.ConfigError{Field: "monitor.poll_interval_seconds", Reason: "must be positive"})
	}
	if c.Monitor.MaxConcurrentUsers <= 0 {
		err = multierr.Append(err, &domain.ConfigError{Field: "monitor.max_concurrent_users", Reason: "must be positive"})
	}
	if c.Recap.HourUTC < 0 || c.Recap.HourUTC > 23 {
		err = multierr.Append(err, &domain.ConfigError{Field: "recap.hour_utc", Reason: "must be between 0 and 23"})
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		err = multierr.Append(err, &domain.ConfigError{Field: "server.port", Reason: "out of range"})
	}
	if c.Exchange.Name != "bybit" {
		err = multierr.Append(err, &domain.ConfigError{Field: "exchange.name", Reason: "only bybit is supported"})
	}
	return err
}

// MonitorConfig converts the monitor section for the position monitor.
func (c *Config) MonitorConfig() usecase.MonitorConfig {
	return usecase.MonitorConfig{
		PollInterval:       time.Duration(c.Monitor.PollIntervalSeconds) * time.Second,
		MaxConcurrentUsers: c.Monitor.MaxConcurrentUsers,
		TradeHistoryLimit:  c.Monitor.TradeHistoryLimit,
	}
}

// ExchangeBaseURL picks the REST endpoint, preferring an explicit one.
func (c *Config) ExchangeBaseURL() string {
	switch {
	case c.Exchange.RESTEndpoint != "":
		return c.Exchange.RESTEndpoint
	case c.Exchange.Testnet:
		return exchange.BybitTestnetBaseURL
	default:
		return exchange.BybitBaseURL
	}
}
