package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Config represents the full application configuration surface.
type Config struct {
	Service   ServiceConfig
	Server    ServerConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Ledger    LedgerConfig
	Scheduler SchedulerConfig
	Tracing   TracingConfig
}

type ServiceConfig struct {
	Name     string
	Env      string
	Version  string
	LogLevel string
	LogFile  string
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// DatabaseConfig points at the archive. An empty URL selects the in-memory archive.
type DatabaseConfig struct {
	URL     string
	Migrate bool
}

// LedgerConfig carries the record and token lifetimes.
type LedgerConfig struct {
	RecordTTL        time.Duration
	OfflineRecordTTL time.Duration
	TokenTTL         time.Duration
}

// SchedulerConfig holds the maintenance job schedules.
type SchedulerConfig struct {
	Enabled          bool
	Timezone         string
	PurgeCron        string
	PurgeRetention   time.Duration
	IndexCleanupCron string
	JobTimeout       time.Duration
}

type TracingConfig struct {
	OTLPEndpoint string
}

// Load reads environment variables (optionally from envFile) and materializes a Config.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: load env file %s: %w", envFile, err)
		}
	} else {
		// a missing .env is fine when everything comes from the environment
		_ = godotenv.Load()
	}

	var p parser
	cfg := &Config{
		Service: ServiceConfig{
			Name:     getenvWithDefault("SERVICE_NAME", "stock-ledger"),
			Env:      getenvWithDefault("ENV", "dev"),
			Version:  getenvWithDefault("SERVICE_VERSION", "dev"),
			LogLevel: getenvWithDefault("LOG_LEVEL", "info"),
			LogFile:  os.Getenv("LOG_FILE"),
		},
		Server: ServerConfig{
			Addr:            getenvWithDefault("HTTP_ADDR", ":8080"),
			ShutdownTimeout: p.seconds("SHUTDOWN_TIMEOUT", 10),
		},
		Redis: RedisConfig{
			Addr:     getenvWithDefault("REDIS_ADDR", "localhost:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       p.int("REDIS_DB", 0),
			PoolSize: p.int("REDIS_POOL_SIZE", 0),
		},
		Database: DatabaseConfig{
			URL:     os.Getenv("DATABASE_URL"),
			Migrate: p.bool("DATABASE_MIGRATE", true),
		},
		Ledger: LedgerConfig{
			RecordTTL:        p.seconds("RECORD_TTL_SECONDS", 7*24*3600),
			OfflineRecordTTL: p.seconds("OFFLINE_RECORD_TTL_SECONDS", 24*3600),
			TokenTTL:         p.seconds("TOKEN_TTL_SECONDS", 300),
		},
		Scheduler: SchedulerConfig{
			Enabled:          p.bool("SCHEDULER_ENABLED", true),
			Timezone:         getenvWithDefault("TIMEZONE", "UTC"),
			PurgeCron:        getenvWithDefault("PURGE_CRON", "0 2 * * *"),
			PurgeRetention:   time.Duration(p.int("PURGE_RETENTION_DAYS", 30)) * 24 * time.Hour,
			IndexCleanupCron: getenvWithDefault("INDEX_CLEANUP_CRON", "@hourly"),
			JobTimeout:       p.seconds("SCHEDULER_JOB_TIMEOUT", 300),
		},
		Tracing: TracingConfig{
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
	}
	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate ensures that required configuration fields are populated and coherent.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	switch {
	case c.Server.Addr == "":
		return errors.New("HTTP_ADDR must be provided")
	case c.Redis.Addr == "":
		return errors.New("REDIS_ADDR must be provided")
	case c.Redis.DB < 0:
		return errors.New("REDIS_DB must not be negative")
	}

	if c.Ledger.RecordTTL < time.Second {
		return errors.New("RECORD_TTL_SECONDS must be positive")
	}
	if c.Ledger.OfflineRecordTTL < time.Second {
		return errors.New("OFFLINE_RECORD_TTL_SECONDS must be positive")
	}
	if c.Ledger.TokenTTL < time.Second {
		return errors.New("TOKEN_TTL_SECONDS must be positive")
	}

	if c.Scheduler.Enabled {
		if c.Scheduler.PurgeRetention <= 0 {
			return errors.New("PURGE_RETENTION_DAYS must be positive")
		}
		if _, err := time.LoadLocation(c.Scheduler.Timezone); err != nil {
			return fmt.Errorf("TIMEZONE is invalid: %w", err)
		}
		for key, spec := range map[string]string{
			"PURGE_CRON":         c.Scheduler.PurgeCron,
			"INDEX_CLEANUP_CRON": c.Scheduler.IndexCleanupCron,
		} {
			if _, err := cron.ParseStandard(spec); err != nil {
				return fmt.Errorf("%s is invalid: %w", key, err)
			}
		}
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parser reads typed variables and keeps the first error.
type parser struct {
	err error
}

func (p *parser) int(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.fail(fmt.Errorf("%s must be an integer: %w", key, err))
		return fallback
	}
	return v
}

func (p *parser) seconds(key string, fallback int) time.Duration {
	return time.Duration(p.int(key, fallback)) * time.Second
}

func (p *parser) bool(key string, fallback bool) bool {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.fail(fmt.Errorf("%s must be a boolean: %w", key, err))
		return fallback
	}
	return v
}

func (p *parser) fail(err error) {
	if p.err == nil {
		p.err = err
	}
}
