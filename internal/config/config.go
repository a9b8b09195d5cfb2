package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port                 string
	DatabaseURL          string
	SessionSecret        string
	SessionTTL           time.Duration
	BcryptCost           int
	RateLimitPerMinute   int
	RateLimitBurst       int
	LoginRateLimitPerMin int
	LoginRateLimitBurst  int
}

func Load() Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:                 port,
		DatabaseURL:          os.Getenv("DB_DSN"),
		SessionSecret:        os.Getenv("SESSION_SECRET"),
		SessionTTL:           readDurationHours("SESSION_TTL_HOURS", 24),
		BcryptCost:           readInt("BCRYPT_COST", 0),
		RateLimitPerMinute:   readInt("RATE_LIMIT_PER_MIN", 120),
		RateLimitBurst:       readInt("RATE_LIMIT_BURST", 30),
		LoginRateLimitPerMin: readInt("LOGIN_RATE_LIMIT_PER_MIN", 10),
		LoginRateLimitBurst:  readInt("LOGIN_RATE_LIMIT_BURST", 5),
	}
}

func readDurationHours(key string, fallback int) time.Duration {
	value := readInt(key, fallback)
	if value <= 0 {
		value = fallback
	}
	return time.Duration(value) * time.Hour
}

func readInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
