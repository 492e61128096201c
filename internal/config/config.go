package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	StatsCacheTTLSeconds  int
	AuthSecret            string
	AccessTokenTTLMinutes int
	CommissionRate        decimal.Decimal
	LogLevel              string
	LogDevelopment        bool
	SeedDemo              bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; real env vars take precedence.
func Load() Config {
	_ = godotenv.Load()

	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("STATS_CACHE_TTL_SECONDS", "30"))
	if err != nil || ttl < 1 {
		ttl = 30
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	rate, err := decimal.NewFromString(getEnv("COMMISSION_RATE", "0.10"))
	if err != nil || !rate.IsPositive() || rate.GreaterThan(decimal.NewFromInt(1)) {
		rate = decimal.RequireFromString("0.10")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	seedDefault := "false"
	if databaseURL == "" {
		seedDefault = "true"
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           databaseURL,
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		StatsCacheTTLSeconds:  ttl,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		CommissionRate:        rate,
		LogLevel:              strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogDevelopment:        getBool("LOG_DEVELOPMENT", "false"),
		SeedDemo:              getBool("SEED_DEMO", seedDefault),
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getBool(key string, fallback string) bool {
	val, err := strconv.ParseBool(getEnv(key, fallback))
	if err != nil {
		val, _ = strconv.ParseBool(fallback)
	}
	return val
}
