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

	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	StoreDriver string
	Database    DatabaseConfig
	Mongo       MongoConfig
	Redis       RedisConfig
	Log         LogConfig
	Source      SourceConfig
	Sync        SyncConfig
	Dashboard   DashboardConfig
	CORS        CORSConfig
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

// MongoConfig configures the document-store backend used when STORE_DRIVER=mongo.
type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LogConfig struct {
	Level  string
	Format string
}

// SourceConfig points the reader at the external record API.
type SourceConfig struct {
	BaseURL     string
	Token       string
	TimeZone    string
	Locale      string
	HTTPTimeout time.Duration
	BasesFile   string
}

// SyncConfig tunes ledger writes and the background trigger queue.
type SyncConfig struct {
	BatchSize        int
	YearlessFallback bool
	OnlyBases        []string
	QueueWorkers     int
	QueueRetries     int
}

// DashboardConfig governs read-side cache tuning.
type DashboardConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// CORSConfig lists the dashboard front-ends allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(v.GetString("STORE_DRIVER")))

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

	cfg.Mongo = MongoConfig{
		URI:      v.GetString("MONGO_URI"),
		Database: v.GetString("MONGO_DATABASE"),
		Timeout:  parseDuration(v.GetString("MONGO_TIMEOUT"), 10*time.Second),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Source = SourceConfig{
		BaseURL:     strings.TrimRight(v.GetString("SOURCE_API_URL"), "/"),
		Token:       v.GetString("SOURCE_API_TOKEN"),
		TimeZone:    v.GetString("SOURCE_TIMEZONE"),
		Locale:      v.GetString("SOURCE_LOCALE"),
		HTTPTimeout: parseDuration(v.GetString("SOURCE_HTTP_TIMEOUT"), 30*time.Second),
		BasesFile:   v.GetString("SOURCES_FILE"),
	}

	batchSize := v.GetInt("SYNC_BATCH_SIZE")
	if batchSize <= 0 {
		batchSize = 499
	}
	cfg.Sync = SyncConfig{
		BatchSize:        batchSize,
		YearlessFallback: v.GetBool("SYNC_YEARLESS_FALLBACK"),
		OnlyBases:        splitAndTrim(v.GetString("SYNC_ONLY_BASES")),
		QueueWorkers:     v.GetInt("SYNC_QUEUE_WORKERS"),
		QueueRetries:     v.GetInt("SYNC_QUEUE_RETRIES"),
	}

	cfg.Dashboard = DashboardConfig{
		CacheEnabled: v.GetBool("ENABLE_DASHBOARD_CACHE"),
		CacheTTL:     parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitAndTrim(v.GetString("CORS_ALLOWED_ORIGINS")),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("STORE_DRIVER", StoreDriverPostgres)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "enrollment_kpi")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "enrollment_kpi")
	v.SetDefault("MONGO_TIMEOUT", "10s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("SOURCE_API_URL", "https://api.airtable.com/v0")
	v.SetDefault("SOURCE_API_TOKEN", "")
	v.SetDefault("SOURCE_TIMEZONE", "America/Denver")
	v.SetDefault("SOURCE_LOCALE", "en-us")
	v.SetDefault("SOURCE_HTTP_TIMEOUT", "30s")
	v.SetDefault("SOURCES_FILE", "config/sources.yaml")

	v.SetDefault("SYNC_BATCH_SIZE", 499)
	v.SetDefault("SYNC_YEARLESS_FALLBACK", true)
	v.SetDefault("SYNC_ONLY_BASES", "")
	v.SetDefault("SYNC_QUEUE_WORKERS", 1)
	v.SetDefault("SYNC_QUEUE_RETRIES", 1)

	v.SetDefault("ENABLE_DASHBOARD_CACHE", false)
	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
