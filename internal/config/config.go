package config // package config loads application configuration from environment variables

import (
	"os" // os provides access to environment variables
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Secrets and connection details are required;
// everything else falls back to a default suited for local development.
type Config struct {
	Env             string        // application environment (e.g. "dev", "prod")
	Port            string        // HTTP port to listen on
	LogLevel        string        // zerolog level name
	BasePath        string        // REST namespace all API routes are mounted under
	DBUser          string        // database username
	DBPass          string        // database password (optional)
	DBHost          string        // database host address
	DBPort          string        // database port number
	DBName          string        // database name
	TablePrefix     string        // WordPress table prefix, e.g. "wp_"
	SessionSecret   string        // HMAC secret used to sign session tokens
	SessionTTL      time.Duration // lifetime of a login session
	SweepInterval   time.Duration // how often stale sessions are deleted
	SweepRetention  time.Duration // how long expired/revoked sessions are kept
	BcryptCost      int           // bcrypt cost for password hashing
	RequestTimeout  time.Duration // upper bound for storage calls per request
	ShutdownTimeout time.Duration // grace period for in-flight requests
}

// Load reads configuration values from the environment, after merging an
// optional .env file.  Required variables are enforced by must() and missing
// values cause the program to exit with a fatal log message.
func Load() Config {
	if err := godotenv.Load(".env"); err != nil {
		log.Debug().Err(err).Msg(".env not loaded, using process environment")
	}
	return Config{
		Env:             envStr("APP_ENV", "dev"),
		Port:            envStr("APP_PORT", "8080"),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		BasePath:        envStr("API_BASE_PATH", "/wp-json/ims/v1"),
		DBUser:          must("DB_USER"),
		DBPass:          os.Getenv("DB_PASS"), // empty allowed
		DBHost:          must("DB_HOST"),
		DBPort:          envStr("DB_PORT", "3306"),
		DBName:          must("DB_NAME"),
		TablePrefix:     envStr("DB_TABLE_PREFIX", "wp_"),
		SessionSecret:   must("SESSION_SECRET"),
		SessionTTL:      time.Duration(envInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		SweepInterval:   envDur("SESSION_SWEEP_INTERVAL", time.Hour),
		SweepRetention:  envDur("SESSION_RETENTION", 7*24*time.Hour),
		BcryptCost:      envInt("BCRYPT_COST", 12),
		RequestTimeout:  envDur("REQUEST_TIMEOUT", 5*time.Second),
		ShutdownTimeout: envDur("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatal().Str("key", key).Msg("missing required env var")
	}
	return v
}
