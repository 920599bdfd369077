// Package cookies provides a cookie jar that can be serialized to a string
// and restored later, so cookie sessions survive between runs.
package cookies

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Jar is an http.CookieJar that remembers what it was given so it can be serialized.
type Jar struct {
	mu      sync.Mutex
	jar     *cookiejar.Jar
	entries map[string]storedCookie
	now     func() time.Time
}

type storedCookie struct {
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Domain   string    `json:"domain,omitempty"`
	Path     string    `json:"path,omitempty"`
	Expires  time.Time `json:"expires,omitzero"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"httpOnly,omitempty"`
}

// key identifies a cookie the way the jar does: by domain, path and name.
// Host-only cookies use the request host as their domain.
func (c storedCookie) key(host string) string {
	domain := c.Domain
	if domain == "" {
		domain = host
	}
	return strings.TrimPrefix(domain, ".") + ";" + c.Path + ";" + c.Name
}

// effectivePath is the path the jar files a cookie under. A missing or
// relative Path attribute falls back to the request path's directory.
func effectivePath(cookiePath, requestPath string) string {
	if cookiePath != "" && cookiePath[0] == '/' {
		return cookiePath
	}
	if requestPath == "" || requestPath[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(requestPath, "/")
	if i == 0 {
		return "/"
	}
	return requestPath[:i]
}

func (c storedCookie) expired(now time.Time) bool {
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

func (c storedCookie) httpCookie() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Domain:   c.Domain,
		Path:     c.Path,
		Expires:  c.Expires,
		Secure:   c.Secure,
		HttpOnly: c.HttpOnly,
	}
}

// New creates an empty jar using the public suffix list for domain rules.
func New() *Jar {
	return &Jar{
		jar:     newCookieJar(),
		entries: make(map[string]storedCookie),
		now:     time.Now,
	}
}

func newCookieJar() *cookiejar.Jar {
	// cookiejar.New never returns an error.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return jar
}

// Deserialize creates a jar from the output of Serialize. An empty string
// yields an empty jar.
func Deserialize(data string) (*Jar, error) {
	j := New()
	if strings.TrimSpace(data) == "" {
		return j, nil
	}

	var stored []storedCookie
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return nil, fmt.Errorf("failed to parse cookie jar: %w", err)
	}

	for _, c := range stored {
		u, err := url.Parse(c.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid cookie url %q: %w", c.URL, err)
		}
		j.SetCookies(u, []*http.Cookie{c.httpCookie()})
	}
	return j, nil
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)

	now := j.now()
	for _, c := range cookies {
		sc := storedCookie{
			URL:      (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: u.Path}).String(),
			Name:     c.Name,
			Value:    c.Value,
			Domain:   strings.ToLower(c.Domain),
			Path:     effectivePath(c.Path, u.Path),
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
		key := sc.key(strings.ToLower(u.Hostname()))
		switch {
		case c.MaxAge < 0:
			delete(j.entries, key)
			continue
		case c.MaxAge > 0:
			sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		if sc.expired(now) {
			delete(j.entries, key)
			continue
		}
		j.entries[key] = sc
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Serialize encodes all unexpired cookies as a JSON string.
func (j *Jar) Serialize() (string, error) {
	j.mu.Lock()
	now := j.now()
	stored := make([]storedCookie, 0, len(j.entries))
	for k, c := range j.entries {
		if c.expired(now) {
			delete(j.entries, k)
			continue
		}
		stored = append(stored, c)
	}
	j.mu.Unlock()

	slices.SortFunc(stored, func(a, b storedCookie) int {
		if n := strings.Compare(a.URL, b.URL); n != 0 {
			return n
		}
		if n := strings.Compare(a.Path, b.Path); n != 0 {
			return n
		}
		return strings.Compare(a.Name, b.Name)
	})

	data, err := json.Marshal(stored)
	if err != nil {
		return "", fmt.Errorf("failed to serialize cookie jar: %w", err)
	}
	return string(data), nil
}

// Len returns the number of cookies held, including ones that have expired
// since they were set.
func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// Clear removes all cookies.
func (j *Jar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar = newCookieJar()
	j.entries = make(map[string]storedCookie)
}
