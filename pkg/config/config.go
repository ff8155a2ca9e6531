package config

import (
	"errors"
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
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Aggregation AggregationConfig
	Exports     ExportsConfig
	Cleanup     CleanupConfig
	AdminGrades AdminGradesConfig
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

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AggregationConfig tunes the aggregation engine and its bulk workers.
type AggregationConfig struct {
	// CompletionThreshold is the minimum completion percentage a top
	// level category needs before its weighted average is trusted as
	// the course total.
	CompletionThreshold float64
	WorkerConcurrency   int
	WorkerRetries       int
	ProvisionalCacheTTL time.Duration
	ProgressTTL         time.Duration
}

// ExportsConfig controls aggregation export generation and download links.
type ExportsConfig struct {
	Enabled         bool
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

// CleanupConfig governs the stale grade record sweeper.
type CleanupConfig struct {
	Enabled  bool
	Interval time.Duration
	// RetainFor is how long retired intermediate category records are
	// kept before they become eligible for deletion.
	RetainFor time.Duration
}

// AdminGradesConfig carries per-code display overrides, e.g.
// ADMINGRADE_DEFERRED="DFR:Grade deferred".
type AdminGradesConfig struct {
	DisplayOverrides map[string]string
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
		if !errors.As(err, &notFound) {
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

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Aggregation = AggregationConfig{
		CompletionThreshold: v.GetFloat64("AGGREGATION_COMPLETION_THRESHOLD"),
		WorkerConcurrency:   v.GetInt("AGGREGATION_WORKER_CONCURRENCY"),
		WorkerRetries:       v.GetInt("AGGREGATION_WORKER_RETRIES"),
		ProvisionalCacheTTL: parseDuration(v.GetString("PROVISIONAL_CACHE_TTL"), time.Hour),
		ProgressTTL:         parseDuration(v.GetString("PROGRESS_TTL"), 15*time.Minute),
	}

	cfg.Exports = ExportsConfig{
		Enabled:         v.GetBool("ENABLE_EXPORTS"),
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
	}

	cfg.Cleanup = CleanupConfig{
		Enabled:   v.GetBool("ENABLE_CLEANUP"),
		Interval:  parseDuration(v.GetString("CLEANUP_INTERVAL"), 24*time.Hour),
		RetainFor: parseDuration(v.GetString("CLEANUP_RETAIN_FOR"), 183*24*time.Hour),
	}

	cfg.AdminGrades = AdminGradesConfig{DisplayOverrides: adminGradeOverrides(v)}

	return cfg, nil
}

// adminGradeOverrides collects ADMINGRADE_<NAME> display settings.
func adminGradeOverrides(v *viper.Viper) map[string]string {
	names := []string{
		"DEFERRED", "INTERRUPTIONOFSTUDIES", "GOODCAUSE_FO", "GOODCAUSE_NR",
		"NOSUBMISSION", "NOSUBMISSION_0", "CREDITWITHHELD", "GOODCAUSECREDITWITHHELD",
		"SATISFACTORY", "UNSATISFACTORY", "PASSED", "NOTPASSED",
		"COMPLETE", "NOTCOMPLETE", "CREDITREFUSED", "CREDITAWARDED", "AUDITONLY",
	}
	overrides := make(map[string]string)
	for _, name := range names {
		if raw := v.GetString("ADMINGRADE_" + name); raw != "" {
			overrides[name] = raw
		}
	}
	return overrides
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "mygrades")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("AGGREGATION_COMPLETION_THRESHOLD", 75.0)
	v.SetDefault("AGGREGATION_WORKER_CONCURRENCY", 4)
	v.SetDefault("AGGREGATION_WORKER_RETRIES", 3)
	v.SetDefault("PROVISIONAL_CACHE_TTL", "1h")
	v.SetDefault("PROGRESS_TTL", "15m")

	v.SetDefault("ENABLE_EXPORTS", false)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "24h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")

	v.SetDefault("ENABLE_CLEANUP", false)
	v.SetDefault("CLEANUP_INTERVAL", "24h")
	v.SetDefault("CLEANUP_RETAIN_FOR", "4392h")
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
