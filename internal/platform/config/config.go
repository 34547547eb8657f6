package config

import (
	"errors"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type HTTPConfig struct {
	Addr string
}

type AppConfig struct {
	ServiceName string
	LogLevel    string
	LogFormat   string
	HTTP        HTTPConfig

	// Backing services. Empty values mean "not configured"; each
	// service decides whether that is fatal or triggers an in-memory
	// fallback (development only).
	DatabaseURL string
	NATSURL     string
	RedisURL    string

	JWTSecret string

	// PostRoute is the path segment used when building deep links,
	// e.g. "posts" yields /posts/{post_id}?comment_id=....
	PostRoute string
}

// Load reads configuration from the environment. A .env file in the
// working directory is applied first if present (never an error when
// missing).
func Load() (AppConfig, error) {
	_ = godotenv.Load()

	cfg := AppConfig{
		ServiceName: env("SERVICE_NAME"),
		LogLevel:    env("LOG_LEVEL"),
		LogFormat:   env("LOG_FORMAT"),
		HTTP: HTTPConfig{
			Addr: env("HTTP_ADDR"),
		},
		DatabaseURL: env("DATABASE_URL"),
		NATSURL:     env("NATS_URL"),
		RedisURL:    env("REDIS_URL"),
		JWTSecret:   env("JWT_SECRET"),
		PostRoute:   env("POST_ROUTE"),
	}
	if cfg.ServiceName == "" {
		return AppConfig{}, errors.New("SERVICE_NAME is required")
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.PostRoute == "" {
		cfg.PostRoute = "posts"
	}
	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
