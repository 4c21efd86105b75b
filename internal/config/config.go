package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"txview/internal/log"
)

// Store backends
const (
	BackendREST   = "rest"
	BackendMemory = "memory"
)

type Config struct {
	// HTTP Server
	Port               string   `mapstructure:"port"`
	RateLimitPerMinute int      `mapstructure:"rate_limit_per_minute"`
	TrustedProxies     []string `mapstructure:"trusted_proxies"`
	SecureCookies      bool     `mapstructure:"secure_cookies"`

	// Transaction store
	StoreBackend string        `mapstructure:"store_backend"`
	StoreBaseURL string        `mapstructure:"store_base_url"`
	StoreTimeout time.Duration `mapstructure:"store_timeout"`
	StoreDataDir string        `mapstructure:"store_data_dir"`

	// Logging
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`

	// Sessions
	SessionTTL time.Duration `mapstructure:"session_ttl"`
	SessionMax int           `mapstructure:"session_max"`

	// Diagnostics
	DiagnosticsDBPath    string        `mapstructure:"diagnostics_db_path"`
	DiagnosticsRetention time.Duration `mapstructure:"diagnostics_retention"`
	AMQPURL              string        `mapstructure:"amqp_url"`
	AMQPExchange         string        `mapstructure:"amqp_exchange"`
	AMQPQueue            string        `mapstructure:"amqp_queue"`
}

var defaults = map[string]any{
	"port":                  "8081",
	"rate_limit_per_minute": 60,
	"trusted_proxies":       []string{},
	"secure_cookies":        false,
	"store_backend":         BackendREST,
	"store_base_url":        "http://localhost:8001",
	"store_timeout":         "10s",
	"store_data_dir":        "",
	"log_level":             "info",
	"log_format":            "text",
	"session_ttl":           "30m",
	"session_max":           1000,
	"diagnostics_db_path":   "",
	"diagnostics_retention": "720h",
	"amqp_url":              "",
	"amqp_exchange":         "txview",
	"amqp_queue":            "txview_diagnostics",
}

// Load reads configuration from the optional TOML file at path and from the
// environment. Environment variables win over the file; the variable for a
// key is its upper-case name, e.g. STORE_BASE_URL for store_base_url.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))
	cfg.TrustedProxies = splitList(cfg.TrustedProxies)
	return &cfg, nil
}

// splitList flattens comma separated entries, which is how list values
// arrive from the environment.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	validBackends := []string{BackendREST, BackendMemory}
	if !slices.Contains(validBackends, c.StoreBackend) {
		errors = append(errors, fmt.Sprintf("invalid store backend '%s': must be one of %v", c.StoreBackend, validBackends))
	}

	if c.StoreBackend == BackendREST {
		if c.StoreBaseURL == "" {
			errors = append(errors, "store base URL cannot be empty when using rest backend")
		} else if u, err := url.Parse(c.StoreBaseURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid store base URL '%s': %v", c.StoreBaseURL, err))
		} else if u.Scheme != "http" && u.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid store base URL scheme '%s': must be 'http' or 'https'", u.Scheme))
		} else if u.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid store base URL '%s': missing host", c.StoreBaseURL))
		}
	}

	if c.StoreBackend == BackendMemory && c.StoreDataDir != "" {
		if info, err := os.Stat(c.StoreDataDir); err != nil || !info.IsDir() {
			errors = append(errors, fmt.Sprintf("store data directory does not exist: %s", c.StoreDataDir))
		}
	}

	if c.StoreTimeout < 0 {
		errors = append(errors, fmt.Sprintf("invalid store timeout %v: must not be negative", c.StoreTimeout))
	} else if c.StoreTimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid store timeout %v: must be at most 5 minutes", c.StoreTimeout))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errors = append(errors, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	} else if c.SessionTTL > 7*24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at most 7 days", c.SessionTTL))
	}
	if c.SessionMax < 1 {
		errors = append(errors, fmt.Sprintf("invalid session max %d: must be at least 1", c.SessionMax))
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}

	for _, p := range c.TrustedProxies {
		if _, _, err := net.ParseCIDR(p); err != nil && net.ParseIP(p) == nil {
			errors = append(errors, fmt.Sprintf("invalid trusted proxy '%s': must be an IP or CIDR", p))
		}
	}

	if c.DiagnosticsDBPath != "" {
		dir := filepath.Dir(c.DiagnosticsDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create diagnostics database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.DiagnosticsRetention < 0 {
		errors = append(errors, fmt.Sprintf("invalid diagnostics retention %v: must not be negative", c.DiagnosticsRetention))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// Addr is the listen address for the web UI.
func (c *Config) Addr() string {
	return ":" + c.Port
}
