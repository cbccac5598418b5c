package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Migrations  MigrationsConfig
	Redis       RedisConfig
	Cache       CacheConfig
	CORS        CORSConfig
	Log         LogConfig
	Slots       SlotsConfig
	Maintenance MaintenanceConfig
	Telegram    TelegramConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// MigrationsConfig controls schema migration on start-up.
type MigrationsConfig struct {
	Enabled bool
	Path    string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// CacheConfig governs the court list cache.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// SlotsConfig configures slot generation and its job queue.
type SlotsConfig struct {
	PlaceholderProductID    string
	PlaceholderInstructorID string
	Workers                 int
	BufferSize              int
}

// MaintenanceConfig configures the periodic session sweeps.
type MaintenanceConfig struct {
	Enabled        bool
	FinalizeEvery  time.Duration
	ReminderEvery  time.Duration
	ReminderLead   time.Duration
	ReminderWindow time.Duration
}

// TelegramConfig configures customer notifications.
type TelegramConfig struct {
	Token      string
	Timeout    time.Duration
	RatePerSec float64
	Burst      int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *fs.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Migrations = MigrationsConfig{
		Enabled: v.GetBool("DB_MIGRATE_ON_START"),
		Path:    v.GetString("DB_MIGRATIONS_PATH"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_COURT_CACHE"),
		TTL:     parseDuration(v.GetString("COURT_CACHE_TTL"), 10*time.Minute),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Slots = SlotsConfig{
		PlaceholderProductID:    v.GetString("SLOTS_PLACEHOLDER_PRODUCT_ID"),
		PlaceholderInstructorID: v.GetString("SLOTS_PLACEHOLDER_INSTRUCTOR_ID"),
		Workers:                 v.GetInt("SLOTS_WORKERS"),
		BufferSize:              v.GetInt("SLOTS_BUFFER_SIZE"),
	}

	cfg.Maintenance = MaintenanceConfig{
		Enabled:        v.GetBool("ENABLE_MAINTENANCE"),
		FinalizeEvery:  parseDuration(v.GetString("MAINTENANCE_FINALIZE_INTERVAL"), 15*time.Minute),
		ReminderEvery:  parseDuration(v.GetString("MAINTENANCE_REMINDER_INTERVAL"), time.Hour),
		ReminderLead:   parseDuration(v.GetString("MAINTENANCE_REMINDER_LEAD"), time.Hour),
		ReminderWindow: parseDuration(v.GetString("MAINTENANCE_REMINDER_WINDOW"), time.Hour),
	}

	cfg.Telegram = TelegramConfig{
		Token:      v.GetString("TELEGRAM_BOT_TOKEN"),
		Timeout:    parseDuration(v.GetString("TELEGRAM_TIMEOUT"), 5*time.Second),
		RatePerSec: v.GetFloat64("TELEGRAM_RATE_PER_SEC"),
		Burst:      v.GetInt("TELEGRAM_BURST"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "tennis_club")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_MIGRATE_ON_START", true)
	v.SetDefault("DB_MIGRATIONS_PATH", "./migrations")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ENABLE_COURT_CACHE", false)
	v.SetDefault("COURT_CACHE_TTL", "10m")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SLOTS_PLACEHOLDER_PRODUCT_ID", "")
	v.SetDefault("SLOTS_PLACEHOLDER_INSTRUCTOR_ID", "")
	v.SetDefault("SLOTS_WORKERS", 2)
	v.SetDefault("SLOTS_BUFFER_SIZE", 32)

	v.SetDefault("ENABLE_MAINTENANCE", true)
	v.SetDefault("MAINTENANCE_FINALIZE_INTERVAL", "15m")
	v.SetDefault("MAINTENANCE_REMINDER_INTERVAL", "1h")
	v.SetDefault("MAINTENANCE_REMINDER_LEAD", "1h")
	v.SetDefault("MAINTENANCE_REMINDER_WINDOW", "1h")

	v.SetDefault("TELEGRAM_BOT_TOKEN", "")
	v.SetDefault("TELEGRAM_TIMEOUT", "5s")
	v.SetDefault("TELEGRAM_RATE_PER_SEC", 20)
	v.SetDefault("TELEGRAM_BURST", 5)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
