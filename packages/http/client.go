package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	neturl "net/url"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitfetch/packages/auth/credentials"
	"github.com/abdul-hamid-achik/hitfetch/packages/cookies"
)

const (
	// DefaultUserAgent is sent with every request
	DefaultUserAgent = "hitfetch"
	// DefaultLocale leads the accept-language header
	DefaultLocale = "en-US"
)

// Client executes requests with cookie sessions, manual redirects and
// bearer-token authentication with refresh on 401.
type Client struct {
	transport      Transport
	store          *credentials.Store
	logger         *slog.Logger
	timeout        time.Duration
	maxRedirects   int
	userAgent      string
	locale         string
	validateSSL    bool
	proxyURL       string
	defaultHeaders map[string]string

	agentsMu sync.Mutex
	agents   map[time.Duration]*http.Transport
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		logger:         slog.Default(),
		timeout:        DefaultTimeout,
		maxRedirects:   DefaultMaxRedirects,
		userAgent:      DefaultUserAgent,
		locale:         DefaultLocale,
		validateSSL:    true,
		defaultHeaders: make(map[string]string),
		agents:         make(map[time.Duration]*http.Transport),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		c.transport = NewTransport(cookies.New(), WithBaseAgent(NewAgent(AgentConfig{
			Timeout:     c.timeout,
			ValidateSSL: c.validateSSL,
			Proxy:       c.proxyURL,
		})))
	}
	if c.store == nil {
		c.store = credentials.NewStore(credentials.WithLogger(c.logger))
	}

	return c
}

// WithTransport sets the capability that performs physical exchanges.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) {
		c.transport = t
	}
}

// WithStore sets the credential store consulted by Get.
func WithStore(s *credentials.Store) ClientOption {
	return func(c *Client) {
		c.store = s
	}
}

func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

func WithLocale(locale string) ClientOption {
	return func(c *Client) {
		c.locale = locale
	}
}

func WithDefaultHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.defaultHeaders[key] = value
	}
}

// WithDefaultHeaders sets multiple default headers for all requests
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// Store returns the credential store used by the client.
func (c *Client) Store() *credentials.Store {
	return c.store
}

// secureAgent returns the TLS agent for timeout, creating it on first use.
func (c *Client) secureAgent(timeout time.Duration) http.RoundTripper {
	c.agentsMu.Lock()
	defer c.agentsMu.Unlock()

	if agent, ok := c.agents[timeout]; ok {
		return agent
	}
	agent := NewAgent(AgentConfig{
		Timeout:     timeout,
		ValidateSSL: c.validateSSL,
		Proxy:       c.proxyURL,
	})
	c.agents[timeout] = agent
	return agent
}

// CloseIdleConnections closes idle connections of every agent the client created.
func (c *Client) CloseIdleConnections() {
	c.agentsMu.Lock()
	for _, agent := range c.agents {
		agent.CloseIdleConnections()
	}
	c.agentsMu.Unlock()

	if t, ok := c.transport.(interface{ CloseIdleConnections() }); ok {
		t.CloseIdleConnections()
	}
}

// Get issues a GET with stored credentials for the URL's host, if any.
func (c *Client) Get(ctx context.Context, url string, opts *Options, cb Callback[any]) (*FetchResult[any], error) {
	return Get(ctx, c, url, opts, cb)
}

// Post issues a POST without consulting the credential store.
func (c *Client) Post(ctx context.Context, url string, opts *Options, cb Callback[any]) (*FetchResult[any], error) {
	return Post(ctx, c, url, opts, cb)
}

// Get issues a GET for url. When the credential store holds a record for the
// URL's host its token is attached, and a 401 triggers a token refresh or a
// retry without the token. The returned error is non-nil only when the
// refresh request fails or cb returns an error; transport failures are
// reported through the result.
func Get[T any](ctx context.Context, c *Client, url string, opts *Options, cb Callback[T]) (*FetchResult[T], error) {
	opts = opts.clone()
	opts.Method = http.MethodGet

	flow := &authFlow[T]{
		client:   c,
		url:      url,
		opts:     opts,
		callback: cb,
	}
	return flow.run(ctx)
}

// Post issues a POST for url. Stored credentials are not used.
func Post[T any](ctx context.Context, c *Client, url string, opts *Options, cb Callback[T]) (*FetchResult[T], error) {
	opts = opts.clone()
	opts.Method = http.MethodPost
	return fetchAndFinalize(ctx, c, url, opts, cb)
}

// fetch runs the exchange chain and normalizes the outcome. The result still
// holds the raw body.
func fetch[T any](ctx context.Context, c *Client, url string, opts *Options) *FetchResult[T] {
	start := time.Now()
	resp, err := c.executeRaw(ctx, url, opts)
	res := normalize[T](url, resp, err)
	res.Duration = time.Since(start)

	if err != nil {
		c.logger.Debug("fetch failed", "method", opts.Method, "url", url, "error", err)
	}
	return res
}

func fetchAndFinalize[T any](ctx context.Context, c *Client, url string, opts *Options, cb Callback[T]) (*FetchResult[T], error) {
	return finalize(ctx, fetch[T](ctx, c, url, opts), cb)
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := neturl.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}

	// Check for valid scheme
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", u.Scheme)
	}

	// Check for valid host
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}

	return nil
}
