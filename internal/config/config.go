// Package config loads runtime configuration from the environment.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds every tunable the server needs. Values are read once at
// startup and passed into constructors; nothing reads the environment at
// call time.
type Config struct {
	Env                 string
	Port                string
	DatabasePath        string
	JWTSecret           string
	DefaultDurationDays int    // auction duration when the listing does not choose one
	SweepInterval       int    // seconds between settlement sweeps, 0 disables the sweeper
	AMQPURL             string // empty disables event publishing
}

// Load reads configuration from the environment, after sourcing a .env file
// if one is present. Missing optional values fall back to development
// defaults.
func Load() Config {
	// Ignore the error: a missing .env file just means plain env vars.
	_ = godotenv.Load()

	return Config{
		Env:                 getEnv("ENV", "development"),
		Port:                getEnv("PORT", "8080"),
		DatabasePath:        getEnv("DATABASE_PATH", "auction.db"),
		JWTSecret:           getEnv("JWT_SECRET", "openbid-secret-key"),
		DefaultDurationDays: getEnvInt("DEFAULT_AUCTION_DURATION_DAYS", 7),
		SweepInterval:       getEnvInt("SETTLEMENT_SWEEP_SECONDS", 60),
		AMQPURL:             os.Getenv("AMQP_URL"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
