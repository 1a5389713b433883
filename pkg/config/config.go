package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	AppEnv   string `yaml:"app_env"`
	LogLevel string `yaml:"log_level"`

	BackendURL  string        `yaml:"backend_url"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`

	Storage Storage `yaml:"storage"`

	TwinPort     int    `yaml:"twin_port"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// Storage selects where the session and the staged cart snapshot live.
type Storage struct {
	Driver    string `yaml:"driver"` // memory, file or redis
	Path      string `yaml:"path"`
	RedisAddr string `yaml:"redis_addr"`
	Namespace string `yaml:"namespace"`
}

func Load() Config {
	cfg := defaults()
	applyEnv(&cfg)
	return cfg
}

// LoadFile reads a YAML file over the defaults and then applies the
// environment on top, so an exported variable always wins over the file.
func LoadFile(path string) (Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

func defaults() Config {
	return Config{
		AppEnv:      "dev",
		LogLevel:    "info",
		BackendURL:  "http://127.0.0.1:8000",
		HTTPTimeout: 10 * time.Second,
		Storage: Storage{
			Driver:    "file",
			Path:      defaultStatePath(),
			Namespace: "storefront",
		},
		TwinPort: 8000,
	}
}

func applyEnv(cfg *Config) {
	cfg.AppEnv = getEnv("APP_ENV", cfg.AppEnv)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.BackendURL = getEnv("BACKEND_URL", cfg.BackendURL)
	cfg.HTTPTimeout = getEnvDuration("HTTP_TIMEOUT", cfg.HTTPTimeout)
	cfg.Storage.Driver = getEnv("STORAGE_DRIVER", cfg.Storage.Driver)
	cfg.Storage.Path = getEnv("STORAGE_PATH", cfg.Storage.Path)
	cfg.Storage.RedisAddr = getEnv("REDIS_ADDR", cfg.Storage.RedisAddr)
	cfg.Storage.Namespace = getEnv("STORAGE_NAMESPACE", cfg.Storage.Namespace)
	cfg.TwinPort = getEnvInt("TWIN_PORT", cfg.TwinPort)
	cfg.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTLPEndpoint)
}

func defaultStatePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".storefront", "state.json")
	}
	return filepath.Join(home, ".storefront", "state.json")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)

	if v == "" {
		return def
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}

	return n
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}

	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
