package credentials

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
)

// ErrMissingOrigin is returned when a record has no authentication URL with a host.
var ErrMissingOrigin = errors.New("credential has no authentication URL")

// OriginKey returns the storage key for a host.
func OriginKey(host string) string {
	return base64.StdEncoding.EncodeToString([]byte(host))
}

// HostFromKey reverses OriginKey.
func HostFromKey(key string) (string, error) {
	b, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return "", fmt.Errorf("invalid origin key %q: %w", key, err)
	}
	return string(b), nil
}

// HostOf returns the host component of a URL.
func HostOf(rawURL string) (string, error) {
	if rawURL == "" {
		return "", ErrMissingOrigin
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMissingOrigin, err)
	}
	if u.Host == "" {
		return "", ErrMissingOrigin
	}
	return u.Host, nil
}
