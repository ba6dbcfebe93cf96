// Package config loads service configuration from the environment, with an
// optional .env file for local development.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Env      string
	LogLevel string

	HTTPHost string
	HTTPPort string

	DBPath string

	MaxHops            int
	MaxResults         int
	MaxPathsToEvaluate int
	AccountCeiling     int
	DefaultSlippageBps uint64

	QuoteCacheTTL time.Duration

	LiquidityRefreshInterval time.Duration
	DepthProbeBase           uint64
	MaxImpactBps             uint64

	FeedQueueDepth int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")
	v.SetDefault("log_level", "info")

	v.SetDefault("http_host", "0.0.0.0")
	v.SetDefault("http_port", "8080")

	v.SetDefault("db_path", "./data/autobahn.db")

	v.SetDefault("max_hops", 3)
	v.SetDefault("max_results", 5)
	v.SetDefault("max_paths_to_evaluate", 10)
	v.SetDefault("account_ceiling", 64)
	v.SetDefault("default_slippage_bps", 50)

	v.SetDefault("quote_cache_ttl", 200*time.Millisecond)

	v.SetDefault("liquidity_refresh_interval", 30*time.Second)
	v.SetDefault("depth_probe_base", uint64(1_000_000))
	v.SetDefault("max_impact_bps", uint64(3_000))

	v.SetDefault("feed_queue_depth", 256)
}

// Load reads the .env file if one exists, then resolves every setting from
// the environment on top of the defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("loaded .env file")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Env:      v.GetString("env"),
		LogLevel: v.GetString("log_level"),

		HTTPHost: v.GetString("http_host"),
		HTTPPort: v.GetString("http_port"),

		DBPath: v.GetString("db_path"),

		MaxHops:            v.GetInt("max_hops"),
		MaxResults:         v.GetInt("max_results"),
		MaxPathsToEvaluate: v.GetInt("max_paths_to_evaluate"),
		AccountCeiling:     v.GetInt("account_ceiling"),
		DefaultSlippageBps: v.GetUint64("default_slippage_bps"),

		QuoteCacheTTL: v.GetDuration("quote_cache_ttl"),

		LiquidityRefreshInterval: v.GetDuration("liquidity_refresh_interval"),
		DepthProbeBase:           v.GetUint64("depth_probe_base"),
		MaxImpactBps:             v.GetUint64("max_impact_bps"),

		FeedQueueDepth: v.GetInt("feed_queue_depth"),
	}
	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.HTTPHost == "" || c.HTTPPort == "" {
		return errors.New("invalid http config")
	}
	if c.MaxHops < 1 || c.MaxHops > 8 {
		return errors.New("max_hops must be between 1 and 8")
	}
	if c.MaxResults < 1 {
		return errors.New("max_results must be positive")
	}
	if c.DefaultSlippageBps >= 10_000 {
		return errors.New("default_slippage_bps must be below 10000")
	}
	if c.DepthProbeBase == 0 {
		return errors.New("depth_probe_base must be positive")
	}
	return nil
}
