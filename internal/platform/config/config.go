package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvBool returns the boolean value of key as understood by strconv.ParseBool,
// or fallback.
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}

// GetEnvDuration returns key parsed by time.ParseDuration (e.g. "1500ms"), or
// fallback if unset or invalid.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return fallback
}

// GetEnvList splits key on commas and drops empty items. fallback is returned
// when the variable is unset or holds no items.
func GetEnvList(key string, fallback []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// Settings is the full runtime configuration of the server.
type Settings struct {
	Port      string
	LogLevel  string
	LogFormat string

	DirectoryType    string // "http", "file", "redis" or "static"
	DirectoryURL     string
	DirectoryFile    string
	DirectoryTimeout time.Duration
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisKey         string

	CountdownInterval time.Duration
	FailoverGrace     time.Duration
	LivePagePrefix    string
	HiddenRoutes      []string
}

// FromEnv builds Settings from the environment, applying defaults.
// hiddenRoutes is the default hidden-route table.
func FromEnv(hiddenRoutes []string) Settings {
	return Settings{
		Port:      GetEnv("PORT", "8080"),
		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "json"),

		DirectoryType:    strings.ToLower(GetEnv("DIRECTORY_TYPE", "http")),
		DirectoryURL:     GetEnv("DIRECTORY_URL", "http://localhost:3000/api/livestreams"),
		DirectoryFile:    GetEnv("DIRECTORY_FILE", "livestreams.yaml"),
		DirectoryTimeout: GetEnvDuration("DIRECTORY_TIMEOUT", 5*time.Second),
		RedisAddr:        GetEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    GetEnv("REDIS_PASSWORD", ""),
		RedisDB:          GetEnvInt("REDIS_DB", 0),
		RedisKey:         GetEnv("REDIS_KEY", ""),

		CountdownInterval: GetEnvDuration("COUNTDOWN_INTERVAL", time.Second),
		FailoverGrace:     GetEnvDuration("FAILOVER_GRACE", 1500*time.Millisecond),
		LivePagePrefix:    GetEnv("LIVE_PAGE_PREFIX", "/live"),
		HiddenRoutes:      GetEnvList("HIDDEN_ROUTES", hiddenRoutes),
	}
}
