package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// defaultSeedTokens is the fixed set of pre-provisioned license tokens
// inserted when the store is created empty.
var defaultSeedTokens = []string{
	"NSB897sb64cX",
	"Zcu5o5H4gkJw",
	"0dSC8p3GYwcB",
	"xYIBwZ309PL6",
	"8T36n2wOiSe8",
}

type Config struct {
	DBPath string

	ServerPort string

	// RedisURL enables the token record cache when non-empty.
	RedisURL string

	SeedTokens   []string
	SeedMaxUsers int

	LogLevel  string
	LogPretty bool
}

func LoadConfig() (*Config, error) {
	err := godotenv.Load()
	if err != nil {
		log.Println("No .env file found or error loading it, relying on environment variables")
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = "tokens.db"
	}

	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = "3000"
	}

	seedTokens := defaultSeedTokens
	if raw := os.Getenv("SEED_TOKENS"); raw != "" {
		seedTokens = nil
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				seedTokens = append(seedTokens, t)
			}
		}
	}

	seedMaxUsers, err := strconv.Atoi(os.Getenv("SEED_MAX_USERS"))
	if err != nil || seedMaxUsers <= 0 {
		seedMaxUsers = 1
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}

	return &Config{
		DBPath: dbPath,

		ServerPort: serverPort,

		RedisURL: os.Getenv("REDIS_URL"),

		SeedTokens:   seedTokens,
		SeedMaxUsers: seedMaxUsers,

		LogLevel:  logLevel,
		LogPretty: os.Getenv("LOG_PRETTY") == "true",
	}, nil
}
