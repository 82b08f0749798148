// Package config loads the daemon configuration from defaults, an optional
// TOML file and AMMD_-prefixed environment variables, in that priority
// order.
package config

import (
	"log/slog"
	"time"
)

// Config is the full daemon configuration.
type Config struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`

	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Dex      DexConfig      `mapstructure:"dex"`
	Genesis  GenesisConfig  `mapstructure:"genesis"`

	configPath string
}

// ServerConfig configures the JSON-RPC and websocket listener.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// WSEnabled turns the /ws event stream on.
	WSEnabled bool `mapstructure:"ws_enabled"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig configures the state store.
type DatabaseConfig struct {
	// Backend is "pebble" or "memory".
	Backend string `mapstructure:"backend"`

	// Path is the on-disk location for the pebble backend. Ignored by
	// the memory backend.
	Path string `mapstructure:"path"`
}

// DexConfig configures the market maker engine.
type DexConfig struct {
	// CustodyAccount holds pooled reserves and accrued fees.
	CustodyAccount string `mapstructure:"custody_account"`

	// FeeBps is the swap output fee in basis points.
	FeeBps int64 `mapstructure:"fee_bps"`
}

// GenesisConfig seeds the in-process token ledgers at startup. Each listed
// asset gets its own ledger registered under its symbol; each balance entry
// mints to an account and grants the pool custody a matching allowance so
// the account can trade immediately.
type GenesisConfig struct {
	// Assets are the token symbols to register, beyond the base currency.
	Assets []string `mapstructure:"assets"`

	Balances []GenesisBalance `mapstructure:"balances"`
}

// GenesisBalance is one genesis mint.
type GenesisBalance struct {
	Account string `mapstructure:"account"`

	// Token is the asset symbol, or empty for the base currency.
	Token string `mapstructure:"token"`

	// Amount is a decimal string.
	Amount string `mapstructure:"amount"`
}

// GetConfigPath returns the path the configuration was loaded from, empty
// when running on defaults only.
func (c *Config) GetConfigPath() string {
	return c.configPath
}

// SlogLevel maps the configured level name to a slog level.
func (c *Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ListenAddr returns the host:port the server binds.
func (c *Config) ListenAddr() string {
	return joinHostPort(c.Server.Host, c.Server.Port)
}
