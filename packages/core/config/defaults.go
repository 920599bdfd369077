package config

import "path/filepath"

const (
	DefaultTimeout      = 30000 // milliseconds
	DefaultMaxRedirects = 20
	DefaultLocale       = "en-US"
	DefaultUserAgent    = "hitfetch"
	DefaultLogLevel     = "info"
)

// DefaultSessionPath is the session database used when none is configured.
func DefaultSessionPath() string {
	return expandHome(filepath.Join("~", ".hitfetch", "session.db"))
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Timeout:      DefaultTimeout,
		MaxRedirects: DefaultMaxRedirects,
		Locale:       DefaultLocale,
		UserAgent:    DefaultUserAgent,
		ValidateSSL:  BoolPtr(true),
		Session:      DefaultSessionPath(),
		LogLevel:     DefaultLogLevel,
		NoColor:      BoolPtr(false),
		Verbose:      BoolPtr(false),
	}
}
