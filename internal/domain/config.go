package domain

import (
	"fmt"
	"time"
)

// RunMode controls the gin runtime mode.
type RunMode string

const (
	// ReleaseMode is production mode, minimal logging.
	ReleaseMode RunMode = "release"
	// DebugMode has much more logging.
	DebugMode RunMode = "debug"
	// TestMode is for unit tests.
	TestMode RunMode = "test"
)

func (rm RunMode) String() string {
	return string(rm)
}

// Config defines the static service configuration read once at startup.
type Config struct {
	Mode                RunMode       `mapstructure:"mode"`
	HTTPHost            string        `mapstructure:"http_host"`
	HTTPPort            int           `mapstructure:"http_port"`
	HTTPCorsOrigins     []string      `mapstructure:"http_cors_origins"`
	HTTPRequestTimeout  time.Duration `mapstructure:"http_request_timeout"`
	DatabaseDSN         string        `mapstructure:"database_dsn" json:"-"`
	DatabaseAutoMigrate bool          `mapstructure:"database_auto_migrate"`
	DatabaseLogQueries  bool          `mapstructure:"database_log_queries"`
	TokenSecret         string        `mapstructure:"token_secret" json:"-"`
	TokenLifetime       time.Duration `mapstructure:"token_lifetime"`
	// ReadonlyWhitelist lists the CIDR blocks readonly users are scoped to.
	// An empty list means readonly users see nothing.
	ReadonlyWhitelist []string `mapstructure:"readonly_whitelist"`
	LogLevel          string   `mapstructure:"log_level"`
	LogFile           string   `mapstructure:"log_file"`
	PProfEnabled      bool     `mapstructure:"pprof_enabled"`
	PrometheusEnabled bool     `mapstructure:"prometheus_enabled"`
}

// Addr returns the listen address in host:port format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.HTTPHost, c.HTTPPort)
}
