package app

import (
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/gatekeeper/pkg/jwtx"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Config struct {
	Issuer string // iss claim, checked on verification (default: http://localhost:8080)

	KeysFile     string // YAML key file; empty generates an ephemeral key
	EphemeralKID string // kid of the ephemeral key (default: ephemeral-0)
	RSABits      int    // size of the ephemeral key (default: 2048)

	UsersFile string // YAML user directory; empty means no users

	StoreDriver  string        // sqlite or postgres (default: sqlite)
	DatabaseFile string        // sqlite database path (default: gatekeeper.db)
	DatabaseURL  string        // postgres connection string
	StoreTimeout time.Duration // bound on every store call (default: 5s)

	AccessTTL  time.Duration // default access token lifetime (default: 1h)
	RefreshTTL time.Duration // default refresh token lifetime (default: 720h)

	Env                 string        // dev, staging, prod (default: dev)
	LogLevel            string        // debug, info, warn, error (default: info)
	LogFormat           string        // json, text (default: json)
	Port                int           // HTTP port (default: 8080)
	ShutdownGracePeriod time.Duration // graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	return Config{
		Issuer:              getEnvOrDefault("GATEKEEPER_ISSUER", "http://localhost:8080"),
		KeysFile:            os.Getenv("GATEKEEPER_KEYS_FILE"),
		EphemeralKID:        getEnvOrDefault("GATEKEEPER_EPHEMERAL_KID", "ephemeral-0"),
		RSABits:             getEnvIntOrDefault("GATEKEEPER_RSA_BITS", 2048),
		UsersFile:           os.Getenv("GATEKEEPER_USERS_FILE"),
		StoreDriver:         getEnvOrDefault("GATEKEEPER_STORE_DRIVER", DriverSQLite),
		DatabaseFile:        getEnvOrDefault("GATEKEEPER_DATABASE_FILE", "gatekeeper.db"),
		DatabaseURL:         os.Getenv("GATEKEEPER_DATABASE_URL"),
		StoreTimeout:        getEnvDurationOrDefault("GATEKEEPER_STORE_TIMEOUT", 5*time.Second),
		AccessTTL:           getEnvDurationOrDefault("GATEKEEPER_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:          getEnvDurationOrDefault("GATEKEEPER_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),
		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are seconds.
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
