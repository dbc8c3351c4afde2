package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

const (
	DriverNhooyr  = "nhooyr"
	DriverGorilla = "gorilla"

	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type AppConfig struct {
	Endpoint         string            `yaml:"endpoint"`
	Driver           string            `yaml:"driver"`
	DialTimeout      time.Duration     `yaml:"dial_timeout"`
	WriteTimeout     time.Duration     `yaml:"write_timeout"`
	ReadLimit        int64             `yaml:"read_limit"`
	Subprotocols     []string          `yaml:"subprotocols"`
	Headers          map[string]string `yaml:"headers"`
	CloseOnReconnect bool              `yaml:"close_on_reconnect"`

	ListenAddr string `yaml:"listen_addr"`
	Welcome    string `yaml:"welcome"`

	StatusAddr string `yaml:"status_addr"`
	StatusURL  string `yaml:"status_url"`

	TranscriptBackend string        `yaml:"transcript_backend"`
	RedisURL          string        `yaml:"redis_url"`
	DatabaseURL       string        `yaml:"database_url"`
	TranscriptTTL     time.Duration `yaml:"transcript_ttl"`
}

func defaults() *AppConfig {
	return &AppConfig{
		Driver:            DriverNhooyr,
		DialTimeout:       10 * time.Second,
		WriteTimeout:      5 * time.Second,
		ListenAddr:        ":8081",
		Welcome:           "Welcome to Eaze WebSocket Server!",
		StatusAddr:        ":8082",
		TranscriptBackend: BackendNone,
		TranscriptTTL:     24 * time.Hour,
	}
}

// Load reads the YAML file named by EAZE_CONFIG (if any) and applies environment overrides.
func Load() (*AppConfig, error) {
	return LoadFile(strings.TrimSpace(os.Getenv("EAZE_CONFIG")))
}

func LoadFile(path string) (*AppConfig, error) {
	cfg := defaults()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.Driver = strings.ToLower(strings.TrimSpace(cfg.Driver))
	cfg.TranscriptBackend = strings.ToLower(strings.TrimSpace(cfg.TranscriptBackend))
	if cfg.TranscriptBackend == "" {
		cfg.TranscriptBackend = BackendNone
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) error {
	if v := strings.TrimSpace(os.Getenv("EAZE_WS_URL")); v != "" {
		cfg.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv("EAZE_WS_DRIVER")); v != "" {
		cfg.Driver = v
	}
	if v := strings.TrimSpace(os.Getenv("EAZE_DIAL_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("EAZE_DIAL_TIMEOUT: %w", err)
		}
		cfg.DialTimeout = d
	}
	if v := strings.TrimSpace(os.Getenv("EAZE_WRITE_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("EAZE_WRITE_TIMEOUT: %w", err)
		}
		cfg.WriteTimeout = d
	}
	if v := strings.TrimSpace(os.Getenv("EAZE_READ_LIMIT")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.ReadLimit = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("EAZE_SUBPROTOCOLS")); v != "" {
		cfg.Subprotocols = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("EAZE_HEADERS")); v != "" {
		if cfg.Headers == nil {
			cfg.Headers = map[string]string{}
		}
		for _, kv := range splitList(v) {
			k, val, ok := strings.Cut(kv, "=")
			if !ok || strings.TrimSpace(k) == "" {
				return fmt.Errorf("EAZE_HEADERS: malformed entry %q", kv)
			}
			cfg.Headers[strings.TrimSpace(k)] = strings.TrimSpace(val)
		}
	}
	if v := strings.TrimSpace(os.Getenv("EAZE_CLOSE_ON_RECONNECT")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.CloseOnReconnect = b
		}
	}

	if v := strings.TrimSpace(os.Getenv("ECHO_LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	if v, ok := os.LookupEnv("ECHO_WELCOME"); ok {
		cfg.Welcome = v
	}
	if v := strings.TrimSpace(os.Getenv("STATUS_LISTEN_ADDR")); v != "" {
		cfg.StatusAddr = v
	}
	if v := strings.TrimSpace(os.Getenv("STATUS_URL")); v != "" {
		cfg.StatusURL = v
	}

	if v := strings.TrimSpace(os.Getenv("TRANSCRIPT_BACKEND")); v != "" {
		cfg.TranscriptBackend = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("TRANSCRIPT_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("TRANSCRIPT_TTL: %w", err)
		}
		cfg.TranscriptTTL = d
	}
	return nil
}

// ValidateClient checks the fields wscheck needs.
func (c *AppConfig) ValidateClient() error {
	if c.Endpoint == "" {
		return errors.New("EAZE_WS_URL is required")
	}
	if !strings.HasPrefix(c.Endpoint, "ws://") && !strings.HasPrefix(c.Endpoint, "wss://") {
		return fmt.Errorf("endpoint must use ws:// or wss://, got %q", c.Endpoint)
	}
	switch c.Driver {
	case DriverNhooyr, DriverGorilla:
	default:
		return fmt.Errorf("unknown driver %q", c.Driver)
	}
	return c.validateTranscript()
}

// ValidateServer checks the fields echo-server needs.
func (c *AppConfig) ValidateServer() error {
	if c.ListenAddr == "" {
		return errors.New("ECHO_LISTEN_ADDR is required")
	}
	return nil
}

func (c *AppConfig) validateTranscript() error {
	switch c.TranscriptBackend {
	case BackendNone, BackendMemory:
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis transcript backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres transcript backend")
		}
	default:
		return fmt.Errorf("unknown transcript backend %q", c.TranscriptBackend)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
