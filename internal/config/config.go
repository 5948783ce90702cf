// Package config loads application configuration from environment variables.
// No other package reads the environment directly. A .env file in the working
// directory is loaded first when present, so local development needs no
// exported variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Env is "development" or "production".
	Env string

	// Port is the HTTP listen port.
	Port int

	// BaseURL is the public URL, used for OAuth redirects and absolute links.
	BaseURL string

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string

	// Theme is the default UI theme ("light" or "dark") handed to layouts.
	Theme string

	// MigrationsPath is the directory holding golang-migrate SQL files.
	MigrationsPath string

	// TrustedProxies lists CIDRs whose forwarding headers are believed.
	TrustedProxies []string

	Database DatabaseConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Storage  StorageConfig
	Jobs     JobsConfig
}

// DatabaseConfig holds MariaDB connection parameters. DATABASE_URL, when set,
// takes precedence over the individual fields.
type DatabaseConfig struct {
	Host     string
	User     string
	Password string
	Name     string

	dsnOverride string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN returns the go-sql-driver/mysql connection string.
func (d DatabaseConfig) DSN() string {
	if d.dsnOverride != "" {
		return d.dsnOverride
	}
	cfg := mysql.NewConfig()
	cfg.User = d.User
	cfg.Passwd = d.Password
	cfg.Net = "tcp"
	cfg.Addr = ensurePort(d.Host, "3306")
	cfg.DBName = d.Name
	cfg.ParseTime = true
	cfg.MultiStatements = true
	return cfg.FormatDSN()
}

// ensurePort appends defaultPort when host has none.
func ensurePort(host, defaultPort string) string {
	if _, _, err := net.SplitHostPort(host); err != nil {
		return net.JoinHostPort(host, defaultPort)
	}
	return host
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	URL string

	// CacheTTL bounds how long cached miqaat lists live.
	CacheTTL time.Duration
}

// AuthConfig holds Google sign-in and session settings.
type AuthConfig struct {
	GoogleClientID     string
	GoogleClientSecret string

	// GoogleRedirectURL defaults to BaseURL + "/auth/google/callback".
	GoogleRedirectURL string

	// AdminEmails is the lower-cased sign-in whitelist.
	AdminEmails []string

	// AdminDomain, when set, admits any verified address at that domain.
	AdminDomain string

	SessionTTL time.Duration
}

// StorageConfig selects and configures the media storage backend.
type StorageConfig struct {
	// Driver is "local" or "s3".
	Driver string

	// MediaPath is the root directory for the local driver.
	MediaPath string

	// MaxUploadSize is the upload limit in bytes.
	MaxUploadSize int64

	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3UseSSL    bool

	// S3PublicURL is the base URL objects are served from. Empty means
	// files are proxied through /media/.
	S3PublicURL string
}

// JobsConfig holds cron schedules for background maintenance.
type JobsConfig struct {
	WarmSchedule   string
	PruneSchedule  string
	AuditRetention time.Duration
}

// Load reads configuration from the environment, applying defaults suitable
// for local development.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("ignoring unreadable .env file", slog.Any("error", err))
	}

	baseURL := strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/")
	cfg := &Config{
		Env:            getEnv("ENV", "development"),
		Port:           getEnvInt("PORT", 8080),
		BaseURL:        baseURL,
		LogLevel:       getEnv("LOG_LEVEL", "debug"),
		Theme:          getEnv("THEME", "light"),
		MigrationsPath: getEnv("MIGRATIONS_PATH", "db/migrations"),
		TrustedProxies: getEnvListOr("TRUSTED_PROXIES", []string{"127.0.0.1/8", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "::1/128"}),

		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost:3306"),
			User:            getEnv("DB_USER", "miqaat"),
			Password:        getEnv("DB_PASSWORD", "miqaat"),
			Name:            getEnv("DB_NAME", "miqaat"),
			dsnOverride:     getEnv("DATABASE_URL", ""),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},

		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", "redis://localhost:6379"),
			CacheTTL: getEnvDuration("CACHE_TTL", time.Hour),
		},

		Auth: AuthConfig{
			GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
			GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", baseURL+"/auth/google/callback"),
			AdminEmails:        getEnvList("ADMIN_EMAILS"),
			AdminDomain:        strings.ToLower(strings.TrimPrefix(getEnv("ADMIN_DOMAIN", ""), "@")),
			SessionTTL:         getEnvDuration("SESSION_TTL", 168*time.Hour),
		},

		Storage: StorageConfig{
			Driver:        strings.ToLower(getEnv("STORAGE_DRIVER", "local")),
			MediaPath:     getEnv("MEDIA_PATH", "./media"),
			MaxUploadSize: getEnvInt64("MAX_UPLOAD_SIZE", 25*1024*1024),
			S3Endpoint:    getEnv("S3_ENDPOINT", ""),
			S3Bucket:      getEnv("S3_BUCKET", ""),
			S3AccessKey:   getEnv("S3_ACCESS_KEY", ""),
			S3SecretKey:   getEnv("S3_SECRET_KEY", ""),
			S3UseSSL:      getEnvBool("S3_USE_SSL", true),
			S3PublicURL:   strings.TrimRight(getEnv("S3_PUBLIC_URL", ""), "/"),
		},

		Jobs: JobsConfig{
			WarmSchedule:   getEnv("JOBS_WARM_SCHEDULE", "@every 30m"),
			PruneSchedule:  getEnv("JOBS_PRUNE_SCHEDULE", "@daily"),
			AuditRetention: getEnvDuration("AUDIT_RETENTION", 365*24*time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "local":
	case "s3":
		if c.Storage.S3Endpoint == "" || c.Storage.S3Bucket == "" {
			return fmt.Errorf("S3_ENDPOINT and S3_BUCKET are required when STORAGE_DRIVER=s3")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q (want local or s3)", c.Storage.Driver)
	}

	if !c.IsProduction() {
		return nil
	}
	if c.Auth.GoogleClientID == "" || c.Auth.GoogleClientSecret == "" {
		return fmt.Errorf("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required in production")
	}
	if len(c.Auth.AdminEmails) == 0 && c.Auth.AdminDomain == "" {
		return fmt.Errorf("ADMIN_EMAILS or ADMIN_DOMAIN is required in production")
	}
	return nil
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	env := strings.ToLower(c.Env)
	return env == "development" || env == "dev"
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	env := strings.ToLower(c.Env)
	return env == "production" || env == "prod"
}

// SlogLevel maps LogLevel onto a slog.Level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// --- env helpers ---

func getEnv(key, defaultVal string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

// getEnvListOr is getEnvList with a fallback for unset variables.
func getEnvListOr(key string, defaultVal []string) []string {
	if _, ok := os.LookupEnv(key); !ok {
		return defaultVal
	}
	return getEnvList(key)
}

// getEnvList splits a comma-separated variable into trimmed, lower-cased,
// non-empty entries.
func getEnvList(key string) []string {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.ToLower(strings.TrimSpace(part)); p != "" {
			out = append(out, p)
		}
	}
	return out
}
