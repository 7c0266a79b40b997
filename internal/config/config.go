package config

import (
	"os"
	"strconv"
)

// Storage backends selectable with STORAGE.
const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
)

type Config struct {
	Port        string
	Environment string
	CORSOrigins string
	// Storage
	Storage       string // memory | postgres | mongo
	DatabaseURL   string
	TablePrefix   string
	MongoURI      string
	MongoDatabase string
	RedisURL      string // optional, activity stamps go to the user model when empty
	// Auth
	JWKSURL string // optional, every request is anonymous when empty
	// Model catalog
	ModelsFile string // optional, the embedded catalog is used when empty
	// Logging
	LogDir      string
	LogMaxFiles int
	// Debug flags
	Debug bool // Enables debug level logging
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")
	tablePrefix := getTablePrefix(env)

	return &Config{
		Port:          getEnv("PORT", "8080"),
		Environment:   env,
		CORSOrigins:   getEnv("CORS_ORIGINS", "http://localhost:3000"),
		Storage:       getEnv("STORAGE", StorageMemory),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		TablePrefix:   tablePrefix,
		MongoURI:      getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGO_DATABASE", "modelgate_"+env),
		RedisURL:      getEnv("REDIS_URL", ""),
		JWKSURL:       getEnv("JWKS_URL", ""),
		ModelsFile:    getEnv("MODELS_FILE", ""),
		LogDir:        getEnv("LOG_DIR", ""),
		LogMaxFiles:   getEnvInt("LOG_MAX_FILES", 10),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true" // Enable DEBUG in dev/test by default
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	// Auto-generate based on environment
	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
