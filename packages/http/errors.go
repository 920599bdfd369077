package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

var (
	// ErrAborted is reported when an exchange is cancelled through an AbortSignal.
	ErrAborted = errors.New("request aborted")
	// ErrTimeout is reported when an exchange exceeds its timeout.
	ErrTimeout = errors.New("request timeout")
	// ErrNetwork covers every other transport failure.
	ErrNetwork = errors.New("network error")
	// ErrRedirectLimit is reported when a redirect chain exceeds the maximum depth.
	ErrRedirectLimit = errors.New("maximum redirect reached")
	// ErrRefreshFailed is reported when the token refresh request is not successful.
	ErrRefreshFailed = errors.New("token refresh failed")
)

// RefreshError describes an unsuccessful token refresh POST.
type RefreshError struct {
	URL           string
	StatusCode    int
	StatusMessage string
}

func (e *RefreshError) Error() string {
	return "http post error " + e.StatusMessage
}

func (e *RefreshError) Unwrap() error {
	return ErrRefreshFailed
}

// classify maps a transport error to exactly one of ErrAborted, ErrTimeout or ErrNetwork.
func classify(err error) error {
	switch {
	case errors.Is(err, ErrAborted), errors.Is(err, context.Canceled):
		return ErrAborted
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout
	}
	if strings.Contains(strings.ToLower(err.Error()), "timeout") {
		return ErrTimeout
	}
	return ErrNetwork
}

func wrapKind(kind, err error) error {
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}
