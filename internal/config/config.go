package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config holds everything the collaboration service reads from the environment.
type Config struct {
	Port            string
	DatabaseURL     string
	RedisAddr       string
	JWTSecret       string
	AllowedOrigins  []string
	SendBuffer      int
	MaxMessageBytes int64
	PingInterval    time.Duration
	EventQueueSize  int
	StatsSchedule   string
}

// fileConfig is the optional YAML file named by CONFIG_FILE. Every field is
// optional; environment variables take precedence over it.
type fileConfig struct {
	Port           string   `yaml:"port"`
	DatabaseURL    string   `yaml:"database_url"`
	RedisAddr      string   `yaml:"redis_addr"`
	JWTSecret      string   `yaml:"jwt_secret"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	EventQueueSize int      `yaml:"event_queue_size"`
	StatsSchedule  *string  `yaml:"stats_schedule"`
	WebSocket      struct {
		SendBuffer      int    `yaml:"send_buffer"`
		MaxMessageBytes int64  `yaml:"max_message_bytes"`
		PingInterval    string `yaml:"ping_interval"`
	} `yaml:"websocket"`
}

func defaults() Config {
	return Config{
		Port:            "8080",
		JWTSecret:       "dev",
		AllowedOrigins:  []string{"http://localhost:5173"},
		SendBuffer:      256,
		MaxMessageBytes: 1 << 20,
		PingInterval:    54 * time.Second,
		EventQueueSize:  1024,
		StatsSchedule:   "@every 5m",
	}
}

// Load builds the configuration from built-in defaults, then the YAML file
// named by CONFIG_FILE if any, then environment variables, and validates it.
func Load() (Config, error) {
	base := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		fc, err := readConfigFile(path)
		if err != nil {
			return Config{}, err
		}
		base = fc.apply(base)
	}
	if base.DatabaseURL == "" {
		base.DatabaseURL = postgresDSN()
	}

	cfg := Config{
		Port:            getEnvOrDefault("PORT", base.Port),
		DatabaseURL:     getEnvOrDefault("DATABASE_URL", base.DatabaseURL),
		RedisAddr:       getEnvOrDefault("REDIS_ADDR", base.RedisAddr),
		JWTSecret:       getEnvOrDefault("JWT_SECRET", base.JWTSecret),
		AllowedOrigins:  base.AllowedOrigins,
		SendBuffer:      getEnvInt("WS_SEND_BUFFER", base.SendBuffer),
		MaxMessageBytes: int64(getEnvInt("WS_MAX_MESSAGE_BYTES", int(base.MaxMessageBytes))),
		PingInterval:    getEnvDuration("WS_PING_INTERVAL", base.PingInterval),
		EventQueueSize:  getEnvInt("EVENT_QUEUE_SIZE", base.EventQueueSize),
		StatsSchedule:   base.StatsSchedule,
	}
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}
	if schedule, ok := os.LookupEnv("STATS_SCHEDULE"); ok {
		cfg.StatsSchedule = strings.TrimSpace(schedule)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string { return ":" + c.Port }

// AllowsAnyOrigin reports whether the wildcard origin is configured.
func (c Config) AllowsAnyOrigin() bool {
	for _, origin := range c.AllowedOrigins {
		if origin == "*" {
			return true
		}
	}
	return false
}

func readConfigFile(path string) (fileConfig, error) {
	var fc fileConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return fc, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return fc, nil
}

func (fc fileConfig) apply(cfg Config) Config {
	if fc.Port != "" {
		cfg.Port = fc.Port
	}
	if fc.DatabaseURL != "" {
		cfg.DatabaseURL = fc.DatabaseURL
	}
	if fc.RedisAddr != "" {
		cfg.RedisAddr = fc.RedisAddr
	}
	if fc.JWTSecret != "" {
		cfg.JWTSecret = fc.JWTSecret
	}
	if len(fc.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = fc.AllowedOrigins
	}
	if fc.EventQueueSize != 0 {
		cfg.EventQueueSize = fc.EventQueueSize
	}
	if fc.StatsSchedule != nil {
		cfg.StatsSchedule = strings.TrimSpace(*fc.StatsSchedule)
	}
	if fc.WebSocket.SendBuffer != 0 {
		cfg.SendBuffer = fc.WebSocket.SendBuffer
	}
	if fc.WebSocket.MaxMessageBytes != 0 {
		cfg.MaxMessageBytes = fc.WebSocket.MaxMessageBytes
	}
	if d, err := time.ParseDuration(fc.WebSocket.PingInterval); err == nil {
		cfg.PingInterval = d
	}
	return cfg
}

func validateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Port) == "" {
		return errors.New("PORT must not be empty")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if cfg.SendBuffer <= 0 {
		return fmt.Errorf("WS_SEND_BUFFER must be positive, got %d", cfg.SendBuffer)
	}
	if cfg.MaxMessageBytes <= 0 {
		return fmt.Errorf("WS_MAX_MESSAGE_BYTES must be positive, got %d", cfg.MaxMessageBytes)
	}
	if cfg.PingInterval < time.Second {
		return fmt.Errorf("WS_PING_INTERVAL must be at least 1s, got %s", cfg.PingInterval)
	}
	if cfg.EventQueueSize <= 0 {
		return fmt.Errorf("EVENT_QUEUE_SIZE must be positive, got %d", cfg.EventQueueSize)
	}
	if cfg.StatsSchedule != "" {
		if _, err := cron.ParseStandard(cfg.StatsSchedule); err != nil {
			return fmt.Errorf("STATS_SCHEDULE is not a valid cron spec: %w", err)
		}
	}
	return nil
}

func postgresDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		getEnvOrDefault("POSTGRES_HOST", "localhost"),
		getEnvOrDefault("POSTGRES_USER", "postgres"),
		getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
		getEnvOrDefault("POSTGRES_DB", "notes"),
		getEnvOrDefault("POSTGRES_PORT", "5432"),
		getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
