package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds the complete application configuration.
type Config struct {
	Hub      HubConfig      `koanf:"hub"`
	Index    IndexConfig    `koanf:"index"`
	Schedule ScheduleConfig `koanf:"schedule"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// HubConfig describes how to reach and authenticate against Automation Hub.
type HubConfig struct {
	Host           string        `koanf:"host"`
	PathPrefix     string        `koanf:"path_prefix"`
	Username       string        `koanf:"username"`
	Password       string        `koanf:"password"`
	Token          string        `koanf:"token"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
	TLS            TLSConfig     `koanf:"tls"`
}

type TLSConfig struct {
	SkipVerify bool   `koanf:"skip_verify"`
	CACert     string `koanf:"ca_cert"` // PEM bundle used instead of the system pool.
}

// IndexConfig holds the indexing parameters used by the schedule command.
type IndexConfig struct {
	Wait     bool    `koanf:"wait"`
	Interval float64 `koanf:"interval"` // Seconds between task status requests.
	Timeout  int     `koanf:"timeout"`  // Seconds; 0 waits forever.
}

type ScheduleConfig struct {
	Cron       string   `koanf:"cron"`
	Registries []string `koanf:"registries"`
}

type MetricsConfig struct {
	Listen      string `koanf:"listen"`
	Pushgateway string `koanf:"pushgateway"`
	Job         string `koanf:"job"`
	HistoryFile string `koanf:"history_file"` // JSON lines log of every run; empty disables it.
}

type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// envKeys maps the collection's environment variables onto config keys.
var envKeys = map[string]string{
	"AH_HOST":            "hub.host",
	"AH_USERNAME":        "hub.username",
	"AH_PASSWORD":        "hub.password",
	"AH_API_TOKEN":       "hub.token",
	"AH_PATH_PREFIX":     "hub.path_prefix",
	"AH_REQUEST_TIMEOUT": "hub.request_timeout",
}

// envValue maps an AH_* variable to its config key. AH_REQUEST_TIMEOUT is
// given in seconds by the collection, so bare numbers get a unit.
func envValue(key, value string) (string, interface{}) {
	k, ok := envKeys[key]
	if !ok {
		return "", nil
	}
	if k == "hub.request_timeout" {
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			value += "s"
		}
	}
	return k, value
}

// Load reads configuration from the given YAML file path and overlays the
// AH_* environment variables. An empty path skips the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", path, err)
		}
	}

	if err := k.Load(env.ProviderWithValue("AH_", ".", envValue), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// A bool zero value can't tell "unset" from "false".
	if !k.Exists("index.wait") {
		cfg.Index.Wait = true
	}

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with only defaults applied.
func Default() *Config {
	cfg := &Config{Index: IndexConfig{Wait: true}}
	setDefaults(cfg)
	return cfg
}

// APIRoot returns the base URL of the galaxy API, e.g. https://hub/api/galaxy.
func (c *HubConfig) APIRoot() string {
	return strings.TrimRight(c.Host, "/") + "/api/" + strings.Trim(c.PathPrefix, "/")
}

func setDefaults(cfg *Config) {
	if cfg.Hub.PathPrefix == "" {
		cfg.Hub.PathPrefix = "galaxy"
	}
	if cfg.Hub.RequestTimeout <= 0 {
		cfg.Hub.RequestTimeout = 10 * time.Second
	}
	if cfg.Index.Interval <= 0 {
		cfg.Index.Interval = 1.0
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = "ah_ee_registry_index"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func validate(cfg *Config) error {
	if cfg.Hub.Host != "" {
		if err := cfg.Hub.validateHost(); err != nil {
			return err
		}
	}
	if cfg.Index.Timeout < 0 {
		return fmt.Errorf("index.timeout must not be negative")
	}
	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid logging.format %q: want text or json", cfg.Logging.Format)
	}
	return nil
}

// Validate checks that the hub can be reached and authenticated against.
// It runs after command line overrides have been applied.
func (c *HubConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("hub.host is required")
	}
	if err := c.validateHost(); err != nil {
		return err
	}
	if c.Token == "" && c.Username == "" {
		return fmt.Errorf("hub.token or hub.username is required")
	}
	return nil
}

func (c *HubConfig) validateHost() error {
	u, err := url.Parse(c.Host)
	if err != nil {
		return fmt.Errorf("invalid hub.host: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid hub.host %q: scheme must be http or https", c.Host)
	}
	return nil
}
