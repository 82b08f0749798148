package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Default listener and engine settings. A bare daemon with no config file
// serves JSON-RPC on localhost against an on-disk pebble store.
const (
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 5005
	DefaultDatabaseBackend = "pebble"
	DefaultDatabasePath    = "data/statedb"
	DefaultCustodyAccount  = "amm_pool"
	DefaultFeeBps          = 30
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")

	v.SetDefault("server.host", DefaultHost)
	v.SetDefault("server.port", DefaultPort)
	v.SetDefault("server.ws_enabled", true)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.backend", DefaultDatabaseBackend)
	v.SetDefault("database.path", DefaultDatabasePath)

	v.SetDefault("dex.custody_account", DefaultCustodyAccount)
	v.SetDefault("dex.fee_bps", DefaultFeeBps)
}

func joinHostPort(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
