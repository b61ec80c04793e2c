package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type AppConfig struct {
	AppEnv   string
	LogLevel slog.Level
	Port     string

	// FeedURL is the Buienradar JSON feed polled by the collector.
	FeedURL     string
	HTTPTimeout time.Duration

	Scheduling Scheduling

	Database Database

	// Request performance log.
	PerformanceLogPath       string
	PerformanceLogMaxEntries int

	CORSOrigins string

	// CacheTTL bounds how long read-side query results are reused.
	CacheTTL time.Duration

	// LocationsCSV optionally seeds the location catalogue on startup.
	LocationsCSV string

	MQTT MQTT

	GeocoderAPIKey string
}

type Database struct {
	Driver          string // mysql, sqlite3, postgres or memory
	DSN             string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type MQTT struct {
	Broker      string // empty disables publishing
	Port        int
	ClientID    string
	TopicPrefix string
}

// Enabled reports whether observations should be published.
func (m MQTT) Enabled() bool {
	return m.Broker != ""
}

// Load reads configuration from environment with sensible defaults.
func Load() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}
	cfg := &AppConfig{}

	cfg.AppEnv = getenvDefault("APP_ENV", "dev")
	switch cfg.AppEnv {
	case "dev", "prod":
	default:
		return nil, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", cfg.AppEnv)
	}

	level, err := parseLogLevel(getenvDefault("LOG_LEVEL", "info"))
	if err != nil {
		return nil, err
	}
	cfg.LogLevel = level

	cfg.Port = getenvDefault("PORT", "8080")
	cfg.FeedURL = getenvDefault("FEED_URL", "https://data.buienradar.nl/2.0/feed/json")

	if cfg.HTTPTimeout, err = getenvDuration("HTTP_TIMEOUT", "30s"); err != nil {
		return nil, err
	}

	cfg.Scheduling = Scheduling{
		Enabled:         getenvBool("SCHEDULER_ENABLED", true),
		IntervalMinutes: getenvInt("SCHEDULE_INTERVAL_MINUTES", DefaultIntervalMinutes),
		StartMinute:     getenvInt("SCHEDULE_START_MINUTE", DefaultStartMinute),
		RunImmediately:  getenvBool("SCHEDULE_RUN_IMMEDIATELY", true),
	}.Normalize()

	cfg.Database = Database{
		Driver:     getenvDefault("DB_DRIVER", "sqlite3"),
		DSN:        strings.TrimSpace(os.Getenv("DB_DSN")),
		SQLitePath: getenvDefault("SQLITE_PATH", "data/weather.db"),
	}
	if cfg.Database.MaxOpenConns, err = getenvIntStrict("DB_MAX_OPEN_CONNS", 10); err != nil {
		return nil, err
	}
	if cfg.Database.MaxIdleConns, err = getenvIntStrict("DB_MAX_IDLE_CONNS", 5); err != nil {
		return nil, err
	}
	if cfg.Database.ConnMaxLifetime, err = getenvDuration("DB_CONN_MAX_LIFETIME", "30m"); err != nil {
		return nil, err
	}
	switch cfg.Database.Driver {
	case "mysql", "postgres":
		if cfg.Database.DSN == "" {
			return nil, fmt.Errorf("DB_DSN is required for DB_DRIVER=%s", cfg.Database.Driver)
		}
	case "sqlite3", "memory":
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER %q (allowed: mysql, sqlite3, postgres, memory)", cfg.Database.Driver)
	}

	cfg.PerformanceLogPath = getenvDefault("PERFORMANCE_LOG_PATH", "logs/request_performance.json")
	if cfg.PerformanceLogMaxEntries, err = getenvIntStrict("PERFORMANCE_LOG_MAX_ENTRIES", 10000); err != nil {
		return nil, err
	}
	if cfg.PerformanceLogMaxEntries <= 0 {
		return nil, fmt.Errorf("PERFORMANCE_LOG_MAX_ENTRIES must be positive")
	}

	cfg.CORSOrigins = getenvDefault("CORS_ORIGINS", "http://localhost:4200")

	if cfg.CacheTTL, err = getenvDuration("CACHE_TTL", "10m"); err != nil {
		return nil, err
	}

	cfg.LocationsCSV = strings.TrimSpace(os.Getenv("LOCATIONS_CSV"))

	cfg.MQTT = MQTT{
		Broker:      strings.TrimSpace(os.Getenv("MQTT_BROKER")),
		ClientID:    getenvDefault("MQTT_CLIENT_ID", "weatherservice"),
		TopicPrefix: getenvDefault("MQTT_TOPIC_PREFIX", "weather"),
	}
	if cfg.MQTT.Port, err = getenvIntStrict("MQTT_PORT", 1883); err != nil {
		return nil, err
	}
	if cfg.MQTT.Port <= 0 || cfg.MQTT.Port > 65535 {
		return nil, fmt.Errorf("invalid MQTT_PORT %d", cfg.MQTT.Port)
	}

	cfg.GeocoderAPIKey = strings.TrimSpace(os.Getenv("GEOCODER_API_KEY"))

	return cfg, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}

func getenvDefault(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// getenvInt is lenient: an unparsable value yields def. Only the
// scheduling keys use it, since Normalize repairs them anyway.
func getenvInt(key string, def int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getenvIntStrict(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getenvBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key, def string) (time.Duration, error) {
	s := getenvDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}
