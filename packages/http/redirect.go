package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"
	"strings"
	"time"
)

// DefaultMaxRedirects is the maximum number of redirects followed for one request.
const DefaultMaxRedirects = 20

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

// executeRaw performs the exchange for rawURL and follows redirects manually
// so the cookie jar sees every hop. Only the terminal response is returned.
func (c *Client) executeRaw(ctx context.Context, rawURL string, opts *Options) (*http.Response, error) {
	opts.ensureHeaders()
	for k, v := range c.defaultHeaders {
		if opts.Headers.Get(k) == "" {
			opts.Headers.Set(k, v)
		}
	}

	locale := opts.Locale
	if locale == "" {
		locale = c.locale
	}
	opts.Headers.Set("User-Agent", c.userAgent)
	opts.Headers.Set("Accept-Language", acceptLanguage(locale))
	opts.Method = opts.method()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}

	target := rawURL
	for depth := 0; ; depth++ {
		agent := opts.Agent
		if agent == nil && strings.HasPrefix(strings.ToLower(target), "https:") {
			agent = c.secureAgent(timeout)
		}

		resp, err := c.exchange(ctx, target, opts, agent, timeout)
		if err != nil {
			return nil, err
		}

		c.logger.Debug("fetch", "method", opts.Method, "url", target, "status", resp.StatusCode)

		if !isRedirect(resp.StatusCode) {
			return resp, nil
		}

		location := resp.Header.Get("Location")
		if location == "" {
			c.logger.Debug("redirect without location", "status", resp.StatusCode, "url", target)
			return resp, nil
		}

		next, err := resolveLocation(resp, location)
		if err != nil {
			discard(resp)
			return nil, fmt.Errorf("invalid redirect location %q: %w", location, err)
		}

		if depth >= c.maxRedirects {
			discard(resp)
			return nil, fmt.Errorf("%w at: %s", ErrRedirectLimit, target)
		}

		c.logger.Debug("redirect", "status", resp.StatusCode, "to", next.String())

		if resp.StatusCode == http.StatusSeeOther ||
			((resp.StatusCode == http.StatusMovedPermanently || resp.StatusCode == http.StatusFound) &&
				opts.Method == http.MethodPost) {
			opts.Method = http.MethodGet
			opts.Body = nil
			opts.Headers.Del("Content-Length")
		}

		if !sameHost(responseURL(resp), next) {
			opts.Headers.Del("Authorization")
		}

		discard(resp)
		target = next.String()
	}
}

func resolveLocation(resp *http.Response, location string) (*neturl.URL, error) {
	loc, err := neturl.Parse(location)
	if err != nil {
		return nil, err
	}
	base := responseURL(resp)
	if base == nil {
		return loc, nil
	}
	return base.ResolveReference(loc), nil
}

func responseURL(resp *http.Response) *neturl.URL {
	if resp.Request == nil {
		return nil
	}
	return resp.Request.URL
}

func sameHost(a, b *neturl.URL) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.Host, b.Host)
}

// discard drains a little of the body so the connection can be reused, then closes it.
func discard(resp *http.Response) {
	_, _ = io.CopyN(io.Discard, resp.Body, 4096)
	_ = resp.Body.Close()
}

// exchange performs one physical exchange bounded by timeout and opts.Signal.
// Both stay armed until the body is closed, so a body that stalls past the
// timeout fails its reads with ErrTimeout.
func (c *Client) exchange(ctx context.Context, target string, opts *Options, agent http.RoundTripper, timeout time.Duration) (*http.Response, error) {
	if opts.Signal != nil && opts.Signal.Aborted() {
		return nil, ErrAborted
	}

	ctx, cancel := context.WithCancelCause(ctx)
	timer := time.AfterFunc(timeout, func() { cancel(ErrTimeout) })
	removeListener := func() {}
	if opts.Signal != nil {
		removeListener = opts.Signal.AddListener(func() { cancel(ErrAborted) })
	}
	release := func() {
		timer.Stop()
		removeListener()
		cancel(nil)
	}

	var body io.Reader
	if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, opts.Method, target, body)
	if err != nil {
		release()
		return nil, err
	}
	req.Header = opts.Headers.Clone()

	resp, err := c.transport.Exchange(req, agent)
	if err != nil {
		cause := context.Cause(ctx)
		release()
		if errors.Is(cause, ErrTimeout) || errors.Is(cause, ErrAborted) {
			return nil, fmt.Errorf("%w: %v", cause, err)
		}
		return nil, err
	}

	resp.Body = &releaseOnClose{ReadCloser: resp.Body, ctx: ctx, release: release}
	return resp, nil
}

type releaseOnClose struct {
	io.ReadCloser
	ctx     context.Context
	release func()
	closed  bool
}

// Read reports a read cut short by the timeout or the signal as ErrTimeout or ErrAborted.
func (r *releaseOnClose) Read(p []byte) (int, error) {
	n, err := r.ReadCloser.Read(p)
	if err != nil && err != io.EOF && !r.closed {
		if cause := context.Cause(r.ctx); errors.Is(cause, ErrTimeout) || errors.Is(cause, ErrAborted) {
			err = fmt.Errorf("%w: %v", cause, err)
		}
	}
	return n, err
}

func (r *releaseOnClose) Close() error {
	err := r.ReadCloser.Close()
	if !r.closed {
		r.closed = true
		r.release()
	}
	return err
}
