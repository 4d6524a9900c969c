// Package config loads the bot's JSON configuration document.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	DefaultPrefix          = "!"
	DefaultGraphAPIVersion = "v18.0"
	DefaultPort            = 8080
	DefaultDBPath          = "./gagstock.db"
	DefaultStockAPIURL     = "https://growagardenstock.com/api/stocks"
	DefaultWeatherAPIURL   = "https://growagardenstock.com/api/stock/weather"
	DefaultPollSeconds     = 10
	DefaultBackoffSeconds  = 30
)

type Config struct {
	PageAccessToken string `json:"page_access_token"`
	VerifyToken     string `json:"verify_token"`
	GraphAPIVersion string `json:"graph_api_version"`
	Prefix          string `json:"prefix"`

	Port   int    `json:"port"`
	DBPath string `json:"db_path"`

	StockAPIURL   string `json:"stock_api_url"`
	WeatherAPIURL string `json:"weather_api_url"`

	PollIntervalSeconds int `json:"poll_interval_seconds"`
	BackoffSeconds      int `json:"backoff_seconds"`
}

// Load reads and validates the config document at path. A missing or
// malformed file is a startup failure, not something to limp past.
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.PageAccessToken == "" {
		return cfg, fmt.Errorf("config %s: page_access_token is required", path)
	}
	if cfg.VerifyToken == "" {
		return cfg, fmt.Errorf("config %s: verify_token is required", path)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.GraphAPIVersion == "" {
		c.GraphAPIVersion = DefaultGraphAPIVersion
	}
	if c.Prefix == "" {
		c.Prefix = DefaultPrefix
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath
	}
	if c.StockAPIURL == "" {
		c.StockAPIURL = DefaultStockAPIURL
	}
	if c.WeatherAPIURL == "" {
		c.WeatherAPIURL = DefaultWeatherAPIURL
	}
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = DefaultPollSeconds
	}
	if c.BackoffSeconds <= 0 {
		c.BackoffSeconds = DefaultBackoffSeconds
	}
}
