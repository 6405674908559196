package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging  LoggingConfig  `yaml:"logging"`
	Server   ServerConfig   `yaml:"server"`
	Backend  BackendConfig  `yaml:"backend"`
	Fallback FallbackConfig `yaml:"fallback"`
	Polling  PollingConfig  `yaml:"polling"`
	Storage  StorageConfig  `yaml:"storage"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Encoding string `yaml:"encoding" validate:"omitempty,oneof=json console"`
	File     string `yaml:"file"`
}

type ServerConfig struct {
	Port int `yaml:"port" validate:"min=1,max=65535"`
}

type BackendConfig struct {
	BaseURL      string   `yaml:"base_url" validate:"required,url"`
	FallbackURLs []string `yaml:"fallback_urls" validate:"dive,url"`
	TimeoutMs    int      `yaml:"timeout_ms" validate:"gt=0"`
}

type FallbackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	BaseURL    string `yaml:"base_url" validate:"omitempty,url"`
	VsCurrency string `yaml:"vs_currency"`
	PerPage    int    `yaml:"per_page" validate:"min=1,max=250"`
}

type PollingConfig struct {
	MarketRefreshMs int `yaml:"market_refresh_ms" validate:"gte=1000"`
	SourceTimeoutMs int `yaml:"source_timeout_ms" validate:"gt=0"`
	HealthCheckMs   int `yaml:"health_check_ms" validate:"gte=1000"`
	HealthTimeoutMs int `yaml:"health_timeout_ms" validate:"gt=0"`
}

type StorageConfig struct {
	Driver     string      `yaml:"driver" validate:"oneof=sqlite redis"`
	SQLitePath string      `yaml:"sqlite_path" validate:"required_if=Driver sqlite"`
	Redis      RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix"`
}

func Defaults() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Encoding: "json"},
		Server:  ServerConfig{Port: 8080},
		Backend: BackendConfig{
			BaseURL:   "http://localhost:5000/api",
			TimeoutMs: 10000,
		},
		Fallback: FallbackConfig{
			Enabled:    true,
			BaseURL:    "https://api.coingecko.com/api/v3",
			VsCurrency: "usd",
			PerPage:    50,
		},
		Polling: PollingConfig{
			MarketRefreshMs: 60000,
			SourceTimeoutMs: 10000,
			HealthCheckMs:   30000,
			HealthTimeoutMs: 3000,
		},
		Storage: StorageConfig{
			Driver:     "sqlite",
			SQLitePath: "dashboard.db",
			Redis:      RedisConfig{Addr: "localhost:6379", Prefix: "crypto_watch:"},
		},
	}
}

// Load decodes the YAML file at path over Defaults, then applies .env and
// DASHBOARD_* overrides. A missing file is not an error. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		f, err := os.Open(path)
		switch {
		case err == nil:
			defer f.Close()
			if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, err
		}
	}

	// Missing .env is fine.
	_ = godotenv.Load()

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	var errs []string
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err.Error())
		}
	}

	setStr(&cfg.Logging.Level, "DASHBOARD_LOG_LEVEL")
	setStr(&cfg.Logging.Encoding, "DASHBOARD_LOG_ENCODING")
	setStr(&cfg.Logging.File, "DASHBOARD_LOG_FILE")
	collect(setInt(&cfg.Server.Port, "DASHBOARD_SERVER_PORT"))

	setStr(&cfg.Backend.BaseURL, "DASHBOARD_BACKEND_BASE_URL")
	setStringSlice(&cfg.Backend.FallbackURLs, "DASHBOARD_BACKEND_FALLBACK_URLS")
	collect(setInt(&cfg.Backend.TimeoutMs, "DASHBOARD_BACKEND_TIMEOUT_MS"))

	collect(setBool(&cfg.Fallback.Enabled, "DASHBOARD_FALLBACK_ENABLED"))
	setStr(&cfg.Fallback.BaseURL, "DASHBOARD_FALLBACK_BASE_URL")
	setStr(&cfg.Fallback.VsCurrency, "DASHBOARD_FALLBACK_VS_CURRENCY")
	collect(setInt(&cfg.Fallback.PerPage, "DASHBOARD_FALLBACK_PER_PAGE"))

	collect(setInt(&cfg.Polling.MarketRefreshMs, "DASHBOARD_POLLING_MARKET_REFRESH_MS"))
	collect(setInt(&cfg.Polling.SourceTimeoutMs, "DASHBOARD_POLLING_SOURCE_TIMEOUT_MS"))
	collect(setInt(&cfg.Polling.HealthCheckMs, "DASHBOARD_POLLING_HEALTH_CHECK_MS"))
	collect(setInt(&cfg.Polling.HealthTimeoutMs, "DASHBOARD_POLLING_HEALTH_TIMEOUT_MS"))

	setStr(&cfg.Storage.Driver, "DASHBOARD_STORAGE_DRIVER")
	setStr(&cfg.Storage.SQLitePath, "DASHBOARD_STORAGE_SQLITE_PATH")
	setStr(&cfg.Storage.Redis.Addr, "DASHBOARD_REDIS_ADDR")
	setStr(&cfg.Storage.Redis.Password, "DASHBOARD_REDIS_PASSWORD")
	collect(setInt(&cfg.Storage.Redis.DB, "DASHBOARD_REDIS_DB"))
	setStr(&cfg.Storage.Redis.Prefix, "DASHBOARD_REDIS_PREFIX")

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment overrides: %s", strings.Join(errs, "; "))
	}
	return nil
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setStringSlice(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Fallback.Enabled && (c.Fallback.BaseURL == "" || c.Fallback.VsCurrency == "") {
		return fmt.Errorf("invalid config: fallback.base_url and fallback.vs_currency are required when fallback is enabled")
	}
	if c.Storage.Driver == "redis" && c.Storage.Redis.Addr == "" {
		return fmt.Errorf("invalid config: storage.redis.addr is required for the redis driver")
	}
	return nil
}

func (p PollingConfig) MarketRefresh() time.Duration {
	return time.Duration(p.MarketRefreshMs) * time.Millisecond
}

func (p PollingConfig) SourceTimeout() time.Duration {
	return time.Duration(p.SourceTimeoutMs) * time.Millisecond
}

func (p PollingConfig) HealthCheck() time.Duration {
	return time.Duration(p.HealthCheckMs) * time.Millisecond
}

func (p PollingConfig) HealthTimeout() time.Duration {
	return time.Duration(p.HealthTimeoutMs) * time.Millisecond
}

func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutMs) * time.Millisecond
}
