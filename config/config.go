// Package config loads service configuration with viper. Values come
// from an optional config file and from CBDC_-prefixed environment
// variables; the config file is watched, so values read through the
// getter methods at call time pick up edits without a restart.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/spf13/viper"

	crossborder "github.com/norges-bank/cbdc-sandbox-cross-border"
)

// Keys read by the services. Dots become underscores in environment
// variable form, e.g. CBDC_LOCK_MAX_DURATION_MINUTES.
const (
	KeyListenAddr       = "listen_addr"
	KeyDBPath           = "db_path"
	KeyRPCURL           = "rpc_url"
	KeyHTLCAddress      = "htlc_address"
	KeyTokenAddress     = "token_address"
	KeyKeystoreFile     = "keystore_file"
	KeyKeystorePassword = "keystore_password"

	KeyHubURL       = "hub_url"
	KeyGatewayURL   = "gateway_url"
	KeySharedSecret = "shared_secret"

	KeyLockMaxDurationMinutes  = "lock_max_duration_minutes"
	KeyHopProcessingMarginSecs = "hop_processing_margin_seconds"
	KeyHopNetworkMarginSecs    = "hop_network_margin_seconds"
	KeyRefundGraceSecs         = "refund_grace_seconds"
	KeyAllowanceTarget         = "allowance_target"
	KeyAllowanceRefreshMinutes = "allowance_refresh_minutes"
	KeyHubResponseHeader       = "hub_response_header"
	KeyHubDirectory            = "hub_directory"
	KeyIntermediatedEnabled    = "intermediated_enabled"
	KeyQuoteExpiryMinutes      = "quote_expiry_minutes"
)

// Config wraps a viper instance configured for one service process.
type Config struct {
	v *viper.Viper
}

// Load builds a Config. file may be empty, in which case only defaults
// and environment variables apply.
func Load(file string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CBDC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyListenAddr, ":8080")
	v.SetDefault(KeyDBPath, "crossborder.db")
	v.SetDefault(KeyLockMaxDurationMinutes, 60)
	v.SetDefault(KeyHopProcessingMarginSecs, int(crossborder.DefaultHopProcessingMargin/time.Second))
	v.SetDefault(KeyHopNetworkMarginSecs, int(crossborder.DefaultHopNetworkMargin/time.Second))
	v.SetDefault(KeyRefundGraceSecs, 1)
	v.SetDefault(KeyAllowanceTarget, "1000000000")
	v.SetDefault(KeyAllowanceRefreshMinutes, 10)
	v.SetDefault(KeyQuoteExpiryMinutes, 5)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", file, err)
		}
		v.WatchConfig()
	}
	return &Config{v: v}, nil
}

// String returns the raw string value of key.
func (c *Config) String(key string) string { return c.v.GetString(key) }

// ListenAddr is the HTTP listen address.
func (c *Config) ListenAddr() string { return c.v.GetString(KeyListenAddr) }

// LockMaxDuration reads the configured maximum lock duration. Called on
// every use so config-file edits apply to the next payment.
func (c *Config) LockMaxDuration() time.Duration {
	return time.Duration(c.v.GetInt(KeyLockMaxDurationMinutes)) * time.Minute
}

// HopMargin is the per-hop timelock safety margin: processing time plus
// network time.
func (c *Config) HopMargin() time.Duration {
	processing := time.Duration(c.v.GetInt(KeyHopProcessingMarginSecs)) * time.Second
	network := time.Duration(c.v.GetInt(KeyHopNetworkMarginSecs)) * time.Second
	return processing + network
}

// RefundGrace is the delay between a lock's expiry and its fail-safe
// refund attempt.
func (c *Config) RefundGrace() time.Duration {
	return time.Duration(c.v.GetInt(KeyRefundGraceSecs)) * time.Second
}

// AllowanceTarget is the token allowance figure locks are topped up to,
// in integer token units.
func (c *Config) AllowanceTarget() (*big.Int, error) {
	raw := c.v.GetString(KeyAllowanceTarget)
	target, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s value %q", KeyAllowanceTarget, raw)
	}
	return target, nil
}

// AllowanceRefresh is the interval of the background allowance top-up.
func (c *Config) AllowanceRefresh() time.Duration {
	return time.Duration(c.v.GetInt(KeyAllowanceRefreshMinutes)) * time.Minute
}

// QuoteExpiry bounds how long an issued quote may be acted on.
func (c *Config) QuoteExpiry() time.Duration {
	return time.Duration(c.v.GetInt(KeyQuoteExpiryMinutes)) * time.Minute
}

// HubDirectory maps participant host names to base URLs.
func (c *Config) HubDirectory() map[string]string {
	return c.v.GetStringMapString(KeyHubDirectory)
}

// IntermediatedEnabled reports whether the hub assembles intermediated
// routes for eligible corridors.
func (c *Config) IntermediatedEnabled() bool {
	return c.v.GetBool(KeyIntermediatedEnabled)
}

// Unmarshal decodes the value at key into out, for structured sections
// such as the hub's corridor table.
func (c *Config) Unmarshal(key string, out interface{}) error {
	return c.v.UnmarshalKey(key, out)
}
