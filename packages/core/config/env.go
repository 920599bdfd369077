package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment variable hitfetch reads.
const EnvPrefix = "HITFETCH_"

// LoadEnvFile exports the variables in a .env file into the process
// environment without overriding variables that are already set. An empty
// path loads ./.env if it exists.
func LoadEnvFile(path string) error {
	if path == "" {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}
	return godotenv.Load(path)
}

// FromEnv builds a partial config from HITFETCH_* variables, for use with
// Merge. Unparseable numbers and booleans are ignored.
func FromEnv() *Config {
	c := &Config{
		Timeout:      getEnvInt("TIMEOUT", 0),
		MaxRedirects: getEnvInt("MAX_REDIRECTS", 0),
		Locale:       getEnvString("LOCALE"),
		UserAgent:    getEnvString("USER_AGENT"),
		ValidateSSL:  getEnvBool("VALIDATE_SSL"),
		Proxy:        getEnvString("PROXY"),
		Session:      expandHome(getEnvString("SESSION")),
		LogLevel:     getEnvString("LOG_LEVEL"),
		LogFile:      getEnvString("LOG_FILE"),
		NoColor:      getEnvBool("NO_COLOR"),
		Verbose:      getEnvBool("VERBOSE"),
	}

	// HITFETCH_HEADER_X_API_KEY=abc sets the X-API-KEY header.
	for _, kv := range os.Environ() {
		key, value, _ := strings.Cut(kv, "=")
		name, ok := strings.CutPrefix(key, EnvPrefix+"HEADER_")
		if !ok || name == "" {
			continue
		}
		if c.Headers == nil {
			c.Headers = make(map[string]string)
		}
		c.Headers[strings.ReplaceAll(name, "_", "-")] = value
	}
	return c
}

func getEnvString(key string) string {
	return os.Getenv(EnvPrefix + key)
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
		slog.Debug("ignoring invalid integer in environment", "key", EnvPrefix+key)
	}
	return defaultVal
}

func getEnvBool(key string) *bool {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return &b
		}
		slog.Debug("ignoring invalid boolean in environment", "key", EnvPrefix+key)
	}
	return nil
}
