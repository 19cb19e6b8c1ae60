package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"modpatch/internal/retry"
)

type Config struct {
	// Root is the directory that holds patch mods.
	Root          string
	Game          string
	RulesFile     string
	DatabaseURL   string
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string
	WorkerCount   int
	RetryAttempts int
	RetryDelay    time.Duration
	LogLevel      string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("No .env file found, using environment variables")
	}

	return &Config{
		Root:          getEnv("MODPATCH_ROOT", "."),
		Game:          getEnv("MODPATCH_GAME", "stellaris"),
		RulesFile:     getEnv("RULES_FILE", ""),
		DatabaseURL:   getEnv("DATABASE_URL", "postgres://localhost:5432/modpatch?sslmode=disable"),
		Neo4jURI:      getEnv("NEO4J_URI", "bolt://localhost:7687"),
		Neo4jUser:     getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword: getEnv("NEO4J_PASSWORD", "password"),
		WorkerCount:   getEnvInt("WORKER_COUNT", 8),
		RetryAttempts: getEnvInt("RETRY_ATTEMPTS", retry.DefaultAttempts),
		RetryDelay:    time.Duration(getEnvInt("RETRY_DELAY_MS", int(retry.DefaultDelay/time.Millisecond))) * time.Millisecond,
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

// RetryPolicy returns the retry policy for file I/O.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{Attempts: c.RetryAttempts, Delay: c.RetryDelay}
}

// Level parses LogLevel, falling back to info.
func (c *Config) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
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
