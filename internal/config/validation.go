package config

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidateConfig checks the loaded configuration for values the daemon
// cannot start with.
func ValidateConfig(c *Config) error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Server.Host == "" {
		return fmt.Errorf("%w: server.host is empty", ErrInvalidConfig)
	}

	switch c.Database.Backend {
	case "pebble":
		if c.Database.Path == "" {
			return fmt.Errorf("%w: database.path required for pebble backend", ErrInvalidConfig)
		}
	case "memory":
	default:
		return fmt.Errorf("%w: unknown database.backend %q", ErrInvalidConfig, c.Database.Backend)
	}

	if c.Dex.CustodyAccount == "" {
		return fmt.Errorf("%w: dex.custody_account is empty", ErrInvalidConfig)
	}
	if c.Dex.FeeBps < 0 || c.Dex.FeeBps >= 10_000 {
		return fmt.Errorf("%w: dex.fee_bps %d out of range", ErrInvalidConfig, c.Dex.FeeBps)
	}

	assets := make(map[string]bool, len(c.Genesis.Assets))
	for _, asset := range c.Genesis.Assets {
		if asset == "" {
			return fmt.Errorf("%w: empty genesis asset symbol", ErrInvalidConfig)
		}
		if assets[asset] {
			return fmt.Errorf("%w: duplicate genesis asset %q", ErrInvalidConfig, asset)
		}
		assets[asset] = true
	}

	for i, bal := range c.Genesis.Balances {
		if bal.Account == "" {
			return fmt.Errorf("%w: genesis balance %d has no account", ErrInvalidConfig, i)
		}
		if bal.Token != "" && !assets[bal.Token] {
			return fmt.Errorf("%w: genesis balance %d references unknown asset %q",
				ErrInvalidConfig, i, bal.Token)
		}
		amount, err := decimal.NewFromString(bal.Amount)
		if err != nil {
			return fmt.Errorf("%w: genesis balance %d has bad amount %q",
				ErrInvalidConfig, i, bal.Amount)
		}
		if !amount.IsPositive() {
			return fmt.Errorf("%w: genesis balance %d amount must be positive",
				ErrInvalidConfig, i)
		}
	}

	return nil
}
