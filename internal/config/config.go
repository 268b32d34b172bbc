package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config carries everything the service needs at startup. Both JWT secrets and
// both TTLs are mandatory: refusing to boot beats signing tokens with an empty
// secret.
type Config struct {
	AppPort string `mapstructure:"APP_PORT"`

	DBHost     string `mapstructure:"DB_HOST"`
	DBPort     int    `mapstructure:"DB_PORT"`
	DBUser     string `mapstructure:"DB_USER"`
	DBPassword string `mapstructure:"DB_PASSWORD"`
	DBName     string `mapstructure:"DB_NAME"`

	RedisHost     string `mapstructure:"REDIS_HOST"`
	RedisPort     int    `mapstructure:"REDIS_PORT"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	JWTAccessSecret     string `mapstructure:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret    string `mapstructure:"JWT_REFRESH_SECRET"`
	JWTAccessExpiresIn  int    `mapstructure:"JWT_ACCESS_EXPIRES_IN"`  // seconds
	JWTRefreshExpiresIn int    `mapstructure:"JWT_REFRESH_EXPIRES_IN"` // seconds

	CacheTTLSeconds int `mapstructure:"CACHE_TTL"`
}

const defaultCacheTTL = 60

// LoadFromEnv загружает конфигурацию из переменных окружения
// (и .env для локальной разработки).
func LoadFromEnv() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, errors.New("failed to load .env")
		}
	}

	v := viper.New()
	v.AutomaticEnv()

	keys := []string{
		"APP_PORT",
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME",
		"REDIS_HOST", "REDIS_PORT", "REDIS_PASSWORD", "REDIS_DB",
		"JWT_ACCESS_SECRET", "JWT_REFRESH_SECRET",
		"JWT_ACCESS_EXPIRES_IN", "JWT_REFRESH_EXPIRES_IN",
		"CACHE_TTL",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	v.SetDefault("APP_PORT", "8080")
	v.SetDefault("CACHE_TTL", defaultCacheTTL)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTAccessSecret == "" {
		return errors.New("JWT_ACCESS_SECRET is required")
	}
	if c.JWTRefreshSecret == "" {
		return errors.New("JWT_REFRESH_SECRET is required")
	}
	if c.JWTAccessExpiresIn <= 0 {
		return errors.New("JWT_ACCESS_EXPIRES_IN must be a positive number of seconds")
	}
	if c.JWTRefreshExpiresIn <= 0 {
		return errors.New("JWT_REFRESH_EXPIRES_IN must be a positive number of seconds")
	}
	if c.JWTAccessSecret == c.JWTRefreshSecret {
		return errors.New("access and refresh secrets must differ")
	}
	return nil
}

// GetDSN собирает строку подключения к Postgres.
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser,
		c.DBPassword,
		c.DBHost,
		c.DBPort,
		c.DBName,
	)
}

// RedisAddr returns host:port for the cache backend; empty when Redis is not
// configured and the in-memory store should be used instead.
func (c *Config) RedisAddr() string {
	if c.RedisHost == "" {
		return ""
	}
	port := c.RedisPort
	if port == 0 {
		port = 6379
	}
	return fmt.Sprintf("%s:%d", c.RedisHost, port)
}

// AccessTTL returns the access token lifetime.
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessExpiresIn) * time.Second
}

// RefreshTTL returns the refresh token lifetime.
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWTRefreshExpiresIn) * time.Second
}

// CacheTTL returns the TTL applied to cached list/entity entries.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}
