// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	// Loads a .env file from the working directory into the environment, if present.
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

const (
	DefaultPort        = 3001
	DefaultRedisURL    = "redis://localhost:6379"
	DefaultCORSOrigins = "http://localhost:5173"
)

// Config is the process configuration read from the environment.
type Config struct {
	Port        int
	RedisURL    string
	CORSOrigins []string
	LogLevel    logrus.Level
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Load reads PORT, REDIS_URL, CORS_ORIGINS and LOG_LEVEL.
func Load() (Config, error) {
	cfg := Config{
		Port:     DefaultPort,
		RedisURL: getenv("REDIS_URL", DefaultRedisURL),
		LogLevel: logrus.InfoLevel,
	}

	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil || p <= 0 || p > 65535 {
			return cfg, fmt.Errorf("invalid PORT %q", port)
		}
		cfg.Port = p
	}

	for _, origin := range strings.Split(getenv("CORS_ORIGINS", DefaultCORSOrigins), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
		}
	}

	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsed, err := logrus.ParseLevel(lvl)
		if err != nil {
			return cfg, fmt.Errorf("invalid LOG_LEVEL: %w", err)
		}
		cfg.LogLevel = parsed
	}

	return cfg, nil
}

// OriginPatterns converts CORS origins to the host patterns the WebSocket
// handshake checks against.
func (c Config) OriginPatterns() []string {
	patterns := make([]string, 0, len(c.CORSOrigins))
	for _, origin := range c.CORSOrigins {
		if i := strings.Index(origin, "://"); i >= 0 {
			origin = origin[i+3:]
		}
		patterns = append(patterns, strings.TrimSuffix(origin, "/"))
	}
	return patterns
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
