package config

import (
	"fmt"
	"log"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort    string `env:"SERVER_PORT" env-default:"8080"`
	MySQLDSN      string `env:"MYSQL_DSN" env-default:"user:password@tcp(localhost:3306)/library?charset=utf8mb4&parseTime=True&loc=UTC"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" env-default:"false"`
	RedisAddr     string `env:"REDIS_ADDR" env-default:"localhost:6379"`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`
	RedisPass     string `env:"REDIS_PASSWORD"`
	JWTSecret     string `env:"JWT_SECRET" env-default:"change-me"`
	SwaggerHost   string `env:"SWAGGER_HOST"`
	LogLevel      string `env:"LOG_LEVEL" env-default:"info"`

	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" env-default:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" env-default:"168h"`
	// AuthRateLimit is the sustained requests per second allowed per client IP on /auth routes.
	AuthRateLimit float64 `env:"AUTH_RATE_LIMIT" env-default:"5"`

	Seed Seed
}

// Seed configures the cmd/seed bootstrap.
type Seed struct {
	AdminUsername string `env:"ADMIN_USERNAME" env-default:"admin"`
	AdminEmail    string `env:"ADMIN_EMAIL" env-default:"admin@library.local"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	File          string `env:"SEED_FILE"`
}

// Load builds Config from environment with sensible defaults.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read env: %w", err)
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, fmt.Errorf("token ttls must be positive")
	}
	return &cfg, nil
}

// MustLoad is Load for binaries: it exits on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}
