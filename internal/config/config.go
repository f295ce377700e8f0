// Package config loads the daemon configuration: compiled defaults, then an
// optional yaml file, then ROULETTE_* environment overrides, in that order.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/agentic-reserve/magic-roullete-sub000/internal/ledger"
)

const envPrefix = "ROULETTE_"

type Config struct {
	BaseRPC   string `yaml:"baseRpc" env:"BASE_RPC"`
	RollupRPC string `yaml:"rollupRpc" env:"ROLLUP_RPC"`
	Validator string `yaml:"validator" env:"VALIDATOR"`

	DataDir         string `yaml:"dataDir" env:"DATA_DIR"`
	StorePassphrase string `yaml:"-" env:"STORE_PASSPHRASE"`
	Mnemonic        string `yaml:"-" env:"MNEMONIC"`

	MetricsAddr string `yaml:"metricsAddr" env:"METRICS_ADDR"`
	LogLevel    string `yaml:"logLevel" env:"LOG_LEVEL"`

	SessionTTL     time.Duration `yaml:"sessionTtl" env:"SESSION_TTL"`
	GameSessionTTL time.Duration `yaml:"gameSessionTtl" env:"GAME_SESSION_TTL"`
	MaxActions     int           `yaml:"maxActions" env:"MAX_ACTIONS"`

	PreferCompressed *bool   `yaml:"preferCompressed" env:"PREFER_COMPRESSED"`
	RateLimitRPS     float64 `yaml:"rateLimitRps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst   int     `yaml:"rateLimitBurst" env:"RATE_LIMIT_BURST"`
}

func Default() Config {
	endpoints := ledger.DefaultEndpoints()
	return Config{
		BaseRPC:        endpoints.Base,
		RollupRPC:      endpoints.Rollup,
		Validator:      ledger.DefaultRollupValidator.String(),
		DataDir:        ".roulette",
		MetricsAddr:    "127.0.0.1:9190",
		LogLevel:       "info",
		SessionTTL:     time.Hour,
		GameSessionTTL: 30 * time.Minute,
		MaxActions:     6,
		RateLimitRPS:   30,
		RateLimitBurst: 60,
	}
}

// Load builds the effective configuration. A missing file at path is not an
// error; an unreadable or malformed one is.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			var parsed Config
			if err := yaml.Unmarshal(data, &parsed); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
			merge(&cfg, parsed)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, fmt.Errorf("env overrides: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.BaseRPC == "" || c.RollupRPC == "" {
		return fmt.Errorf("both rpc endpoints are required")
	}
	if _, err := ledger.PubkeyFromBase58(c.Validator); err != nil {
		return fmt.Errorf("validator: %w", err)
	}
	if c.SessionTTL <= 0 || c.GameSessionTTL <= 0 {
		return fmt.Errorf("session ttls must be positive")
	}
	if c.MaxActions <= 0 {
		return fmt.Errorf("maxActions must be positive")
	}
	return nil
}

func (c Config) Endpoints() ledger.Endpoints {
	return ledger.Endpoints{Base: c.BaseRPC, Rollup: c.RollupRPC}
}

func (c Config) ValidatorKey() ledger.Pubkey {
	return ledger.MustPubkey(c.Validator)
}

// UsesCompressed resolves the tri-state preference; compressed is the
// default.
func (c Config) UsesCompressed() bool {
	if c.PreferCompressed == nil {
		return true
	}
	return *c.PreferCompressed
}

func merge(dst *Config, src Config) {
	if src.BaseRPC != "" {
		dst.BaseRPC = src.BaseRPC
	}
	if src.RollupRPC != "" {
		dst.RollupRPC = src.RollupRPC
	}
	if src.Validator != "" {
		dst.Validator = src.Validator
	}
	if src.DataDir != "" {
		dst.DataDir = src.DataDir
	}
	if src.MetricsAddr != "" {
		dst.MetricsAddr = src.MetricsAddr
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.SessionTTL != 0 {
		dst.SessionTTL = src.SessionTTL
	}
	if src.GameSessionTTL != 0 {
		dst.GameSessionTTL = src.GameSessionTTL
	}
	if src.MaxActions != 0 {
		dst.MaxActions = src.MaxActions
	}
	if src.PreferCompressed != nil {
		dst.PreferCompressed = src.PreferCompressed
	}
	if src.RateLimitRPS != 0 {
		dst.RateLimitRPS = src.RateLimitRPS
	}
	if src.RateLimitBurst != 0 {
		dst.RateLimitBurst = src.RateLimitBurst
	}
}
