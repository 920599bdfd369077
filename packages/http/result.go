package http

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// FetchResult is the outcome of one logical request. Exactly one of
// IsSuccess and IsFailure is set. Body and Response are only populated while
// a Callback runs; results returned from Get and Post never carry them.
type FetchResult[T any] struct {
	URL            string        `json:"url"`
	IsSuccess      bool          `json:"isSuccess"`
	IsFailure      bool          `json:"isFailure"`
	IsNetworkError bool          `json:"isNetworkError"`
	IsTimeout      bool          `json:"isTimeout"`
	IsAbort        bool          `json:"isAbort"`
	StatusCode     int           `json:"statusCode,omitempty"`
	StatusMessage  string        `json:"statusMessage,omitempty"`
	ResponseURL    string        `json:"responseUrl,omitempty"`
	ContentType    string        `json:"contentType,omitempty"`
	Duration       time.Duration `json:"duration,omitempty"`
	Data           T             `json:"data,omitempty"`

	Body     io.ReadCloser  `json:"-"`
	Response *http.Response `json:"-"`
	// Err holds the transport error behind a failure, if any.
	Err error `json:"-"`
}

// pendingResult is the placeholder used until an exchange completes.
func pendingResult[T any](url string) *FetchResult[T] {
	return &FetchResult[T]{URL: url, IsFailure: true}
}

// normalize converts the outcome of executeRaw into a result. It never fails.
func normalize[T any](url string, resp *http.Response, err error) *FetchResult[T] {
	res := pendingResult[T](url)

	switch {
	case err != nil:
		kind := classify(err)
		res.Err = wrapKind(kind, err)
		switch {
		case errors.Is(kind, ErrAborted):
			res.IsAbort = true
		case errors.Is(kind, ErrTimeout):
			res.IsNetworkError = true
			res.IsTimeout = true
			res.StatusMessage = err.Error()
		default:
			res.IsNetworkError = true
			res.StatusMessage = err.Error()
		}
	case resp != nil:
		ok := resp.StatusCode >= 200 && resp.StatusCode < 300
		res.IsSuccess = ok
		res.IsFailure = !ok
		res.StatusCode = resp.StatusCode
		res.StatusMessage = statusText(resp)
		res.ContentType = resp.Header.Get("Content-Type")
		res.Body = resp.Body
		res.Response = resp
		if u := responseURL(resp); u != nil {
			res.ResponseURL = u.String()
		} else {
			res.ResponseURL = url
		}
	}

	return res
}

func statusText(resp *http.Response) string {
	if msg := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)+" "); msg != "" && msg != resp.Status {
		return msg
	}
	return http.StatusText(resp.StatusCode)
}

// release closes the raw body and clears the transport handles.
func (r *FetchResult[T]) release() {
	if r == nil {
		return
	}
	if r.Body != nil {
		_ = r.Body.Close()
	}
	if r.Response != nil && r.Response.Body != nil && r.Response.Body != r.Body {
		_ = r.Response.Body.Close()
	}
	r.Body = nil
	r.Response = nil
}

// buffer reads the body into memory so the connection is released while the
// result is held. A read error keeps whatever arrived before it.
func (r *FetchResult[T]) buffer(logger *slog.Logger) {
	if r.Body == nil {
		return
	}
	data, err := io.ReadAll(r.Body)
	_ = r.Body.Close()
	if err != nil {
		logger.Debug("failed to buffer response body", "url", r.URL, "read", len(data), "error", err)
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	if r.Response != nil {
		r.Response.Body = r.Body
	}
}
