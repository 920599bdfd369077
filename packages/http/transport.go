package http

import (
	"crypto/tls"
	"net"
	"net/http"
	neturl "net/url"
	"time"
)

const (
	// DefaultTimeout is the default timeout for each physical exchange
	DefaultTimeout = 30 * time.Second
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
)

// Transport performs exactly one physical exchange. Implementations must not
// follow redirects; the client decides how to follow them.
type Transport interface {
	Exchange(req *http.Request, agent http.RoundTripper) (*http.Response, error)
}

// AgentConfig describes the connection settings of an agent.
type AgentConfig struct {
	Timeout     time.Duration
	ValidateSSL bool
	Proxy       string
}

// NewAgent builds a pooled round tripper with connection-level timeouts.
func NewAgent(cfg AgentConfig) *http.Transport {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: timeout,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}

	// Configure TLS verification
	if !cfg.ValidateSSL {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	// Configure proxy if specified
	if cfg.Proxy != "" {
		proxyURL, err := neturl.Parse(cfg.Proxy)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}

	return transport
}

// NetTransport is the net/http implementation of Transport. Cookies are read
// from and written to the jar on every exchange, including redirect responses.
type NetTransport struct {
	jar  http.CookieJar
	base http.RoundTripper
}

// TransportOption configures a NetTransport.
type TransportOption func(*NetTransport)

// WithBaseAgent sets the agent used when an exchange supplies none.
func WithBaseAgent(rt http.RoundTripper) TransportOption {
	return func(t *NetTransport) {
		t.base = rt
	}
}

// NewTransport creates a transport backed by jar. A nil jar disables cookies.
func NewTransport(jar http.CookieJar, opts ...TransportOption) *NetTransport {
	t := &NetTransport{jar: jar}
	for _, opt := range opts {
		opt(t)
	}
	if t.base == nil {
		t.base = NewAgent(AgentConfig{Timeout: DefaultTimeout, ValidateSSL: true})
	}
	return t
}

// Exchange implements Transport.
func (t *NetTransport) Exchange(req *http.Request, agent http.RoundTripper) (*http.Response, error) {
	if agent == nil {
		agent = t.base
	}
	client := &http.Client{
		Transport: agent,
		Jar:       t.jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return client.Do(req)
}

// CloseIdleConnections closes idle connections held by the base agent.
func (t *NetTransport) CloseIdleConnections() {
	if c, ok := t.base.(interface{ CloseIdleConnections() }); ok {
		c.CloseIdleConnections()
	}
}
