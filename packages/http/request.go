package http

import (
	"net/http"
	"strings"
	"time"
)

// Options configure one logical request. They are copied on entry to Get and
// Post, then rewritten hop by hop as redirects and authentication require.
type Options struct {
	Method  string
	Headers http.Header
	Body    []byte
	// Timeout applies to each physical exchange. Zero means the client default.
	Timeout time.Duration
	// Agent performs the exchange. When nil, secure targets get a TLS agent
	// with certificate validation and the client's transport handles the rest.
	Agent http.RoundTripper
	// Signal cancels the request when fired.
	Signal *AbortSignal
	// Locale leads the accept-language header. Empty means the client default.
	Locale string
}

// NewOptions returns options with a materialized header container.
func NewOptions() *Options {
	return &Options{Headers: make(http.Header)}
}

// SetHeader sets a header and returns the options for chaining.
func (o *Options) SetHeader(key, value string) *Options {
	o.ensureHeaders()
	o.Headers.Set(key, value)
	return o
}

// SetBody sets the request body and returns the options for chaining.
func (o *Options) SetBody(body []byte) *Options {
	o.Body = body
	return o
}

// SetTimeout sets the per-exchange timeout and returns the options for chaining.
func (o *Options) SetTimeout(d time.Duration) *Options {
	o.Timeout = d
	return o
}

func (o *Options) ensureHeaders() {
	if o.Headers == nil {
		o.Headers = make(http.Header)
	}
}

func (o *Options) clone() *Options {
	if o == nil {
		return NewOptions()
	}
	c := *o
	c.Headers = o.Headers.Clone()
	c.ensureHeaders()
	if o.Body != nil {
		c.Body = append([]byte(nil), o.Body...)
	}
	return &c
}

func (o *Options) method() string {
	if o.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(o.Method)
}

// acceptLanguage builds the accept-language value for a locale.
func acceptLanguage(locale string) string {
	return locale + ",en-US;q=0.7,en;q=0.5"
}
