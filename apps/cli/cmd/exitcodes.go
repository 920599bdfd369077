package cmd

import (
	"errors"

	"github.com/abdul-hamid-achik/hitfetch/packages/http"
)

// Exit codes for hitfetch CLI
const (
	// ExitSuccess indicates every request succeeded
	ExitSuccess = 0

	// ExitRequestFailure indicates a non-2xx response or a failed callback
	ExitRequestFailure = 1

	// ExitConfigError indicates a configuration error
	ExitConfigError = 3

	// ExitNetworkError indicates a network, timeout or abort failure
	ExitNetworkError = 4

	// ExitRefreshError indicates the token refresh endpoint rejected a refresh
	ExitRefreshError = 5

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)

// exitError carries the process exit code for an error.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func withExitCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// exitCode maps an error returned by a command to an exit code. Errors that
// carry no code come from cobra's argument and flag parsing.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	if errors.Is(err, http.ErrRefreshFailed) {
		return ExitRefreshError
	}
	return ExitUsageError
}

// outcomeCode ranks the results of a batch; the most severe wins.
type outcomeCode struct {
	code int
}

func (o *outcomeCode) observe(code int) {
	if severity(code) > severity(o.code) {
		o.code = code
	}
}

func severity(code int) int {
	switch code {
	case ExitRefreshError:
		return 3
	case ExitNetworkError:
		return 2
	case ExitRequestFailure:
		return 1
	default:
		return 0
	}
}

func resultCode[T any](res *http.FetchResult[T], err error) int {
	switch {
	case errors.Is(err, http.ErrRefreshFailed):
		return ExitRefreshError
	case err != nil:
		return ExitRequestFailure
	case res.IsNetworkError, res.IsTimeout, res.IsAbort:
		return ExitNetworkError
	case res.IsFailure:
		return ExitRequestFailure
	default:
		return ExitSuccess
	}
}
