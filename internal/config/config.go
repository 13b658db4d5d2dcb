package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Session     SessionConfig     `yaml:"session"`
	Security    SecurityConfig    `yaml:"security"`
	Audit       AuditConfig       `yaml:"audit"`
	Redis       RedisConfig       `yaml:"redis"`
	Log         LogConfig         `yaml:"log"`
	DefaultUser DefaultUserConfig `yaml:"default_user"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"`
}

type DatabaseConfig struct {
	Type     string         `yaml:"type"`
	SQLite   SQLiteConfig   `yaml:"sqlite"`
	MySQL    MySQLConfig    `yaml:"mysql"`
	Postgres PostgresConfig `yaml:"postgres"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// SessionConfig controls the lifetime and carrier of authenticated sessions.
// TTL is fixed from creation; sessions are never extended on activity.
type SessionConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	CookieSecret string        `yaml:"cookie_secret"`
	CookieSecure bool          `yaml:"cookie_secure"`
	Issuer       string        `yaml:"issuer"`
}

type SecurityConfig struct {
	BcryptCost int             `yaml:"bcrypt_cost"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// AuditConfig tunes the audit write path. With Async off every record is a
// synchronous single-row insert.
type AuditConfig struct {
	Async         bool          `yaml:"async"`
	BufferSize    int           `yaml:"buffer_size"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// RedisConfig is optional. An empty Addr disables the revocation cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type DefaultUserConfig struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

const (
	DefaultSessionTTL    = 30 * time.Minute
	DefaultBcryptCost    = 10
	DefaultAuditBuffer   = 1024
	DefaultAuditBatch    = 64
	DefaultFlushInterval = 500 * time.Millisecond
)

// Default returns a configuration usable for local development: sqlite
// storage, synchronous audit writes and no redis.
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 8080, Mode: "debug"},
		Database: DatabaseConfig{
			Type:   "sqlite",
			SQLite: SQLiteConfig{Path: "data/authtrail.db"},
		},
		Session: SessionConfig{Issuer: "authtrail"},
		Log:     LogConfig{Level: "info", Format: "json"},
	}
	cfg.applyDefaults()
	return cfg
}

// Load reads the configuration file and environment variables
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Ensure data directory exists for SQLite
	if cfg.Database.Type == "sqlite" {
		dataDir := filepath.Dir(cfg.Database.SQLite.Path)
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if secret := os.Getenv("AUTHTRAIL_COOKIE_SECRET"); secret != "" {
		c.Session.CookieSecret = secret
	}

	if ttl := os.Getenv("AUTHTRAIL_SESSION_TTL"); ttl != "" {
		if d, err := time.ParseDuration(ttl); err == nil {
			c.Session.TTL = d
		}
	}

	if dbType := os.Getenv("AUTHTRAIL_DB_TYPE"); dbType != "" {
		c.Database.Type = dbType
	}

	if dbPath := os.Getenv("AUTHTRAIL_DB_PATH"); dbPath != "" {
		c.Database.SQLite.Path = dbPath
	}

	if mysqlHost := os.Getenv("AUTHTRAIL_MYSQL_HOST"); mysqlHost != "" {
		c.Database.MySQL.Host = mysqlHost
	}

	if mysqlUser := os.Getenv("AUTHTRAIL_MYSQL_USER"); mysqlUser != "" {
		c.Database.MySQL.Username = mysqlUser
	}

	if mysqlPass := os.Getenv("AUTHTRAIL_MYSQL_PASSWORD"); mysqlPass != "" {
		c.Database.MySQL.Password = mysqlPass
	}

	if mysqlDB := os.Getenv("AUTHTRAIL_MYSQL_DATABASE"); mysqlDB != "" {
		c.Database.MySQL.Database = mysqlDB
	}

	if pgDSN := os.Getenv("AUTHTRAIL_POSTGRES_DSN"); pgDSN != "" {
		c.Database.Postgres.DSN = pgDSN
	}

	if adminPass := os.Getenv("AUTHTRAIL_DEFAULT_USER_PASSWORD"); adminPass != "" {
		c.DefaultUser.Password = adminPass
	}

	if redisAddr := os.Getenv("AUTHTRAIL_REDIS_ADDR"); redisAddr != "" {
		c.Redis.Addr = redisAddr
	}

	if redisPass := os.Getenv("AUTHTRAIL_REDIS_PASSWORD"); redisPass != "" {
		c.Redis.Password = redisPass
	}

	if async := os.Getenv("AUTHTRAIL_AUDIT_ASYNC"); async != "" {
		if v, err := strconv.ParseBool(async); err == nil {
			c.Audit.Async = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Session.TTL <= 0 {
		c.Session.TTL = DefaultSessionTTL
	}
	if c.Session.Issuer == "" {
		c.Session.Issuer = "authtrail"
	}
	if c.Security.BcryptCost == 0 {
		c.Security.BcryptCost = DefaultBcryptCost
	}
	if c.Security.RateLimit.RequestsPerMinute <= 0 {
		c.Security.RateLimit.RequestsPerMinute = 30
	}
	if c.Security.RateLimit.Burst <= 0 {
		c.Security.RateLimit.Burst = 5
	}
	if c.Audit.BufferSize <= 0 {
		c.Audit.BufferSize = DefaultAuditBuffer
	}
	if c.Audit.BatchSize <= 0 {
		c.Audit.BatchSize = DefaultAuditBatch
	}
	if c.Audit.FlushInterval <= 0 {
		c.Audit.FlushInterval = DefaultFlushInterval
	}
	if c.Database.MySQL.Port == 0 {
		c.Database.MySQL.Port = 3306
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.DefaultUser.Role == "" {
		c.DefaultUser.Role = "ADMIN"
	}
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return errors.New("sqlite path is required")
		}
	case "mysql":
		if c.Database.MySQL.Username == "" {
			return fmt.Errorf("MySQL username is required")
		}
		if c.Database.MySQL.Database == "" {
			return fmt.Errorf("MySQL database name is required")
		}
	case "postgres":
		if c.Database.Postgres.DSN == "" {
			return errors.New("postgres dsn is required")
		}
	default:
		return fmt.Errorf("unsupported database type: %s", c.Database.Type)
	}

	if len(c.Session.CookieSecret) < 16 {
		return errors.New("session cookie_secret must be at least 16 characters")
	}

	return nil
}
