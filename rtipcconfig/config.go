// Package rtipcconfig loads cmd/rtipcd's configuration from the
// environment.
package rtipcconfig

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/rtipc/rtipc/rtipclog"
)

// Config holds every knob the owner-process entrypoint needs.
//
// Tags:
//
//	env: environment variable name
//	envDefault: default value if not set
type Config struct {
	// SocketPath is the AF_UNIX SOCK_SEQPACKET path the handshake
	// listener binds.
	SocketPath string `env:"RTIPC_SOCKET_PATH" envDefault:"/run/rtipc/handshake.sock"`
	// Backlog is the listen() backlog for the handshake socket.
	Backlog int `env:"RTIPC_BACKLOG" envDefault:"16"`

	// DefaultAddMsgs is a default add_msgs value. It is validated and
	// logged; no code in this module applies it when building channels.
	DefaultAddMsgs int `env:"RTIPC_DEFAULT_ADD_MSGS" envDefault:"5"`

	// Accept-rate limiting (disabled unless the per-peer pair is
	// positive). The per-peer values bound each remote uid; the global
	// values bound the listener as a whole, falling back to the
	// handshake package's defaults when zero.
	AcceptRateBurst       int     `env:"RTIPC_ACCEPT_RATE_BURST" envDefault:"0"`
	AcceptRate            float64 `env:"RTIPC_ACCEPT_RATE" envDefault:"0"`
	AcceptGlobalRateBurst int     `env:"RTIPC_ACCEPT_GLOBAL_RATE_BURST" envDefault:"0"`
	AcceptGlobalRate      float64 `env:"RTIPC_ACCEPT_GLOBAL_RATE" envDefault:"0"`

	// DiagInterval is how often cmd/rtipcd samples RSS and system memory
	// via diag.
	DiagInterval time.Duration `env:"RTIPC_DIAG_INTERVAL" envDefault:"15s"`

	LogLevel  string `env:"RTIPC_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"RTIPC_LOG_FORMAT" envDefault:"json"`
}

// Load reads configuration from a .env file (if present) and the process
// environment, then validates it. Priority: env vars > .env file >
// defaults.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("rtipcconfig: parse: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("rtipcconfig: validate: %w", err)
	}

	return cfg, nil
}

// Validate checks range and enum constraints.
func (c *Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("RTIPC_SOCKET_PATH is required")
	}
	if c.Backlog < 1 {
		return fmt.Errorf("RTIPC_BACKLOG must be > 0, got %d", c.Backlog)
	}
	if c.DefaultAddMsgs < 0 {
		return fmt.Errorf("RTIPC_DEFAULT_ADD_MSGS must be >= 0, got %d", c.DefaultAddMsgs)
	}
	if c.AcceptRateBurst < 0 || c.AcceptRate < 0 {
		return fmt.Errorf("RTIPC_ACCEPT_RATE_BURST/RTIPC_ACCEPT_RATE must be >= 0")
	}
	if c.AcceptGlobalRateBurst < 0 || c.AcceptGlobalRate < 0 {
		return fmt.Errorf("RTIPC_ACCEPT_GLOBAL_RATE_BURST/RTIPC_ACCEPT_GLOBAL_RATE must be >= 0")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("RTIPC_LOG_LEVEL must be one of debug, info, warn, error (got %s)", c.LogLevel)
	}
	validFormats := map[string]bool{"json": true, "pretty": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("RTIPC_LOG_FORMAT must be one of json, pretty (got %s)", c.LogFormat)
	}

	return nil
}

// LoggerConfig adapts this config into an rtipclog.Config.
func (c *Config) LoggerConfig() rtipclog.Config {
	return rtipclog.Config{Level: rtipclog.Level(c.LogLevel), Format: rtipclog.Format(c.LogFormat)}
}

// LogConfig dumps the loaded configuration via structured logging.
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("socket_path", c.SocketPath).
		Int("backlog", c.Backlog).
		Int("default_add_msgs", c.DefaultAddMsgs).
		Int("accept_rate_burst", c.AcceptRateBurst).
		Float64("accept_rate", c.AcceptRate).
		Int("accept_global_rate_burst", c.AcceptGlobalRateBurst).
		Float64("accept_global_rate", c.AcceptGlobalRate).
		Dur("diag_interval", c.DiagInterval).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("configuration loaded")
}
