package config

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Load 讀取 YAML 設定檔並套用預設值。
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults()
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":9980"
	}
	if c.Data.Root == "" {
		c.Data.Root = "data/stock"
	}
	if c.Rules.DBPath == "" {
		c.Rules.DBPath = "data/rules.db"
	}
	if c.Backtest.DefaultShares <= 0 {
		c.Backtest.DefaultShares = 1000
	}
	if c.Backtest.FeeRate <= 0 {
		c.Backtest.FeeRate = 0.001425
	}
	if c.Backtest.MinFee <= 0 {
		c.Backtest.MinFee = 20
	}
	if c.Backtest.TaxRate <= 0 {
		c.Backtest.TaxRate = 0.003
	}
}

func validate(c *Config) error {
	if c.Backtest.FeeRate >= 1 {
		return fmt.Errorf("fee_rate 必須小於 1（收到 %v）", c.Backtest.FeeRate)
	}
	if c.Backtest.TaxRate >= 1 {
		return fmt.Errorf("tax_rate 必須小於 1（收到 %v）", c.Backtest.TaxRate)
	}
	return nil
}
