package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the config file inside the home directory.
const FileName = "config.yaml"

// Config is the full client configuration. Zero fields take defaults.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Poll      PollConfig      `yaml:"poll"`
	Log       LogConfig       `yaml:"log"`
	Server    ServerConfig    `yaml:"server"`
	Journal   JournalConfig   `yaml:"journal"`
	Notify    NotifyConfig    `yaml:"notify"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type APIConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type PollConfig struct {
	Interval  time.Duration `yaml:"interval"`
	Fecha     string        `yaml:"fecha,omitempty"` // restrict the board to one day (YYYY-MM-DD); empty = all
	Recompute bool          `yaml:"recompute"`       // POST /cirugias/actualizar-estados before each cycle
}

type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type JournalConfig struct {
	Driver string `yaml:"driver"` // sqlite (default), postgres, none
	DSN    string `yaml:"dsn,omitempty"`
}

type NotifyConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url,omitempty"`
	RedisAddr       string `yaml:"redis_addr,omitempty"`
	RedisPassword   string `yaml:"redis_password,omitempty"`
	RedisChannel    string `yaml:"redis_channel,omitempty"`
}

type TelemetryConfig struct {
	Metrics      bool   `yaml:"metrics"`
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty"` // host:port; empty disables tracing
	ServiceName  string `yaml:"service_name,omitempty"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API:       APIConfig{URL: "http://localhost:8000", Timeout: 30 * time.Second},
		Poll:      PollConfig{Interval: 10 * time.Second},
		Log:       LogConfig{Level: "info", Format: "console"},
		Server:    ServerConfig{Port: 4180},
		Journal:   JournalConfig{Driver: "sqlite"},
		Notify:    NotifyConfig{RedisChannel: "pabellon:status"},
		Telemetry: TelemetryConfig{Metrics: true, ServiceName: "pabellon"},
	}
}

// Path returns <home>/config.yaml.
func Path(home string) string {
	return filepath.Join(home, FileName)
}

// Load builds the configuration: defaults, then <home>/config.yaml when present,
// then envFile (if non-empty; existing variables win), then PABELLON_* variables.
func Load(home, envFile string) (*Config, error) {
	cfg := Default()
	b, err := os.ReadFile(Path(home))
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", Path(home), err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg to <home>/config.yaml.
func Save(home string, cfg *Config) error {
	if err := os.MkdirAll(home, 0o755); err != nil {
		return err
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(Path(home), b, 0o644)
}

func applyEnv(cfg *Config) error {
	str := map[string]*string{
		"PABELLON_API_URL":           &cfg.API.URL,
		"PABELLON_POLL_FECHA":        &cfg.Poll.Fecha,
		"PABELLON_LOG_LEVEL":         &cfg.Log.Level,
		"PABELLON_LOG_FORMAT":        &cfg.Log.Format,
		"PABELLON_JOURNAL_DRIVER":    &cfg.Journal.Driver,
		"PABELLON_SLACK_WEBHOOK_URL": &cfg.Notify.SlackWebhookURL,
		"PABELLON_REDIS_ADDR":        &cfg.Notify.RedisAddr,
		"PABELLON_REDIS_PASSWORD":    &cfg.Notify.RedisPassword,
		"PABELLON_REDIS_CHANNEL":     &cfg.Notify.RedisChannel,
		"PABELLON_OTLP_ENDPOINT":     &cfg.Telemetry.OTLPEndpoint,
	}
	for k, dst := range str {
		if v, ok := os.LookupEnv(k); ok {
			*dst = v
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" && cfg.Journal.DSN == "" && cfg.Journal.Driver == "postgres" {
		cfg.Journal.DSN = v
	}
	if v := os.Getenv("PABELLON_POLL_INTERVAL"); v != "" {
		d, err := parseInterval(v)
		if err != nil {
			return fmt.Errorf("PABELLON_POLL_INTERVAL: %w", err)
		}
		cfg.Poll.Interval = d
	}
	if v := os.Getenv("PABELLON_POLL_RECOMPUTE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("PABELLON_POLL_RECOMPUTE: %w", err)
		}
		cfg.Poll.Recompute = b
	}
	if v := os.Getenv("PABELLON_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PABELLON_PORT: %w", err)
		}
		cfg.Server.Port = p
	}
	return nil
}

// parseInterval accepts a Go duration ("15s") or plain seconds ("15").
func parseInterval(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(v)
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.url %q must be an http(s) URL", c.API.URL)
	}
	if c.Poll.Interval <= 0 {
		return errors.New("poll.interval must be positive")
	}
	if c.Poll.Fecha != "" {
		if _, err := time.Parse("2006-01-02", c.Poll.Fecha); err != nil {
			return fmt.Errorf("poll.fecha %q must be YYYY-MM-DD", c.Poll.Fecha)
		}
	}
	switch strings.ToLower(c.Journal.Driver) {
	case "", "sqlite", "none":
	case "postgres":
		if c.Journal.DSN == "" {
			return errors.New("journal.dsn (or DATABASE_URL) is required for postgres")
		}
	default:
		return fmt.Errorf("journal.driver %q: want sqlite, postgres or none", c.Journal.Driver)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	return nil
}
