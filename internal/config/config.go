// Package config loads server settings from the environment.
//
// An optional .env file is read first (godotenv); real environment variables
// win over it. Every key can be set as GROUPLEDGER_<SECTION>_<NAME>, for
// example GROUPLEDGER_DATABASE_DSN.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "GROUPLEDGER"

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	JWT      JWTConfig
	Log      LogConfig
	Tracing  TracingConfig
}

type ServerConfig struct {
	Port        int
	CORSOrigins []string
}

type DatabaseConfig struct {
	Driver string // sqlite or postgres
	DSN    string
}

// RedisConfig configures the balance cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type CacheConfig struct {
	TTL time.Duration
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

// TracingConfig selects the span exporter: "none" or "stdout".
type TracingConfig struct {
	Exporter string
}

var keys = []string{
	"server.port",
	"server.cors_origins",
	"database.driver",
	"database.dsn",
	"redis.addr",
	"redis.password",
	"redis.db",
	"cache.ttl",
	"jwt.secret",
	"jwt.ttl",
	"log.level",
	"log.format",
	"tracing.exporter",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./data/groupledger.db")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.ttl", 30*time.Second)
	v.SetDefault("jwt.secret", "dev-secret-change-in-production")
	v.SetDefault("jwt.ttl", 24*time.Hour)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("tracing.exporter", "none")
}

// Load reads envFiles (missing files are skipped) and the environment.
// With no arguments it looks for ".env" in the working directory.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetInt("server.port"),
			CORSOrigins: splitList(v.GetString("server.cors_origins")),
		},
		Database: DatabaseConfig{
			Driver: strings.ToLower(v.GetString("database.driver")),
			DSN:    v.GetString("database.dsn"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Cache: CacheConfig{TTL: v.GetDuration("cache.ttl")},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			TTL:    v.GetDuration("jwt.ttl"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Tracing: TracingConfig{Exporter: strings.ToLower(v.GetString("tracing.exporter"))},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database dsn must not be empty")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt secret must not be empty")
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("invalid jwt ttl %s", c.JWT.TTL)
	}
	switch c.Tracing.Exporter {
	case "none", "stdout":
	default:
		return fmt.Errorf("unsupported tracing exporter %q", c.Tracing.Exporter)
	}
	return nil
}

// CacheEnabled reports whether a redis address is configured.
func (c *Config) CacheEnabled() bool {
	return c.Redis.Addr != ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
