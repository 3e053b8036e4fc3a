// Package config exposes the typed application configuration loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Broker describes the exchange connectivity parameters.
type Broker struct {
	Name      string `yaml:"name"`
	KeyID     string `yaml:"key_id"`
	SecretKey string `yaml:"secret_key"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
	Paper     bool   `yaml:"paper"`
}

// EMAParams configures the EMA crossover strategy.
type EMAParams struct {
	Fast int `yaml:"fast"`
	Slow int `yaml:"slow"`
}

// RSIParams configures the RSI threshold strategy.
type RSIParams struct {
	Period     int     `yaml:"period"`
	Oversold   float64 `yaml:"oversold"`
	Overbought float64 `yaml:"overbought"`
}

// MACDParams configures the MACD crossover strategy.
type MACDParams struct {
	Fast   int `yaml:"fast"`
	Slow   int `yaml:"slow"`
	Signal int `yaml:"signal"`
}

// TrendPullbackParams configures the trend-pullback strategy.
type TrendPullbackParams struct {
	FastEMA     int     `yaml:"fast_ema"`
	SlowEMA     int     `yaml:"slow_ema"`
	PullbackEMA int     `yaml:"pullback_ema"`
	ATRPeriod   int     `yaml:"atr_period"`
	StopLossATR float64 `yaml:"stop_loss_atr"`
}

// HybridParams configures the hybrid predictive strategy.
type HybridParams struct {
	RSIPeriod int `yaml:"rsi_period"`
}

// Strategy selects the active strategy and carries every variant's knobs.
type Strategy struct {
	ID            string              `yaml:"id"`
	EMA           EMAParams           `yaml:"ema"`
	RSI           RSIParams           `yaml:"rsi"`
	MACD          MACDParams          `yaml:"macd"`
	TrendPullback TrendPullbackParams `yaml:"trend_pullback"`
	Hybrid        HybridParams        `yaml:"hybrid"`
}

// Risk encodes the process-wide risk policy, read-only during a run.
type Risk struct {
	RiskPerTrade  float64 `yaml:"risk_per_trade"`
	StopLossPct   float64 `yaml:"stop_loss_pct"`
	TakeProfitPct float64 `yaml:"take_profit_pct"`
	MaxPositions  int     `yaml:"max_positions"`
}

// Storage configures the sqlite bar cache / trade history.
type Storage struct {
	Path string `yaml:"path"`
}

// Server configures the dashboard HTTP server.
type Server struct {
	Port int `yaml:"port"`
}

// Logging configures the zap logger.
type Logging struct {
	Level string `yaml:"level"`
}

// Model points at the optional prediction-model weights consumed by the
// hybrid strategy.
type Model struct {
	Path string `yaml:"path"`
}

// Backtest configures the offline replay runner.
type Backtest struct {
	InitialCapital float64 `yaml:"initial_capital"`
	BarLimit       int     `yaml:"bar_limit"`
}

// Config collects every configuration leaf.
type Config struct {
	Broker          Broker   `yaml:"broker"`
	Symbols         []string `yaml:"symbols"`
	Timeframe       string   `yaml:"timeframe"`
	BarLimit        int      `yaml:"bar_limit"`
	MinBars         int      `yaml:"min_bars"`
	TickIntervalSec int      `yaml:"tick_interval_sec"`
	Strategy        Strategy `yaml:"strategy"`
	Risk            Risk     `yaml:"risk"`
	Storage         Storage  `yaml:"storage"`
	Server          Server   `yaml:"server"`
	Logging         Logging  `yaml:"logging"`
	Model           Model    `yaml:"model"`
	Backtest        Backtest `yaml:"backtest"`
}

// Load reads a YAML file, applies defaults, and returns the config.
// Validation is separate so the backtester can relax credential checks.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Broker.Name == "" {
		c.Broker.Name = "alpaca"
	}
	if c.Broker.BaseURL == "" {
		c.Broker.BaseURL = "https://paper-api.alpaca.markets"
	}
	if c.Broker.DataURL == "" {
		c.Broker.DataURL = "https://data.alpaca.markets"
	}
	if len(c.Symbols) == 0 {
		c.Symbols = []string{"BTC/USD", "ETH/USD"}
	}
	if c.Timeframe == "" {
		c.Timeframe = "5Min"
	}
	if c.BarLimit == 0 {
		c.BarLimit = 100
	}
	if c.MinBars == 0 {
		c.MinBars = 30
	}
	if c.TickIntervalSec == 0 {
		c.TickIntervalSec = 300
	}
	if c.Strategy.ID == "" {
		c.Strategy.ID = "rsi"
	}
	if c.Strategy.EMA.Fast == 0 {
		c.Strategy.EMA.Fast = 9
	}
	if c.Strategy.EMA.Slow == 0 {
		c.Strategy.EMA.Slow = 21
	}
	if c.Strategy.RSI.Period == 0 {
		c.Strategy.RSI.Period = 14
	}
	if c.Strategy.RSI.Oversold == 0 {
		c.Strategy.RSI.Oversold = 30
	}
	if c.Strategy.RSI.Overbought == 0 {
		c.Strategy.RSI.Overbought = 70
	}
	if c.Strategy.MACD.Fast == 0 {
		c.Strategy.MACD.Fast = 12
	}
	if c.Strategy.MACD.Slow == 0 {
		c.Strategy.MACD.Slow = 26
	}
	if c.Strategy.MACD.Signal == 0 {
		c.Strategy.MACD.Signal = 9
	}
	if c.Strategy.TrendPullback.FastEMA == 0 {
		c.Strategy.TrendPullback.FastEMA = 50
	}
	if c.Strategy.TrendPullback.SlowEMA == 0 {
		c.Strategy.TrendPullback.SlowEMA = 200
	}
	if c.Strategy.TrendPullback.PullbackEMA == 0 {
		c.Strategy.TrendPullback.PullbackEMA = 21
	}
	if c.Strategy.TrendPullback.ATRPeriod == 0 {
		c.Strategy.TrendPullback.ATRPeriod = 14
	}
	if c.Strategy.TrendPullback.StopLossATR == 0 {
		c.Strategy.TrendPullback.StopLossATR = 1.5
	}
	if c.Strategy.Hybrid.RSIPeriod == 0 {
		c.Strategy.Hybrid.RSIPeriod = 14
	}
	if c.Risk.RiskPerTrade == 0 {
		c.Risk.RiskPerTrade = 0.02
	}
	if c.Risk.StopLossPct == 0 {
		c.Risk.StopLossPct = 0.03
	}
	if c.Risk.TakeProfitPct == 0 {
		c.Risk.TakeProfitPct = 0.06
	}
	if c.Risk.MaxPositions == 0 {
		c.Risk.MaxPositions = 5
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "bot.db"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Backtest.InitialCapital == 0 {
		c.Backtest.InitialCapital = 10000
	}
	if c.Backtest.BarLimit == 0 {
		c.Backtest.BarLimit = 2000
	}
}

// Validate rejects configurations with no safe runtime default. Credential
// checks apply to the live bot; the backtester calls ValidateOffline.
func (c *Config) Validate() error {
	if err := c.ValidateOffline(); err != nil {
		return err
	}
	if c.Broker.KeyID == "" || c.Broker.SecretKey == "" {
		return fmt.Errorf("broker credentials are required (broker.key_id / broker.secret_key)")
	}
	return nil
}

// ValidateOffline checks everything except broker credentials.
func (c *Config) ValidateOffline() error {
	if len(c.Symbols) == 0 {
		return fmt.Errorf("at least one symbol is required")
	}
	if c.Risk.RiskPerTrade <= 0 || c.Risk.RiskPerTrade >= 1 {
		return fmt.Errorf("risk.risk_per_trade must be in (0,1), got %v", c.Risk.RiskPerTrade)
	}
	if c.Risk.StopLossPct <= 0 || c.Risk.TakeProfitPct <= 0 {
		return fmt.Errorf("risk stop_loss_pct and take_profit_pct must be positive")
	}
	if c.Risk.MaxPositions <= 0 {
		return fmt.Errorf("risk.max_positions must be positive, got %d", c.Risk.MaxPositions)
	}
	return nil
}
