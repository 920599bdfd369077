package http

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
)

// readBody stores the response body in Data.
func readBody(_ context.Context, res *FetchResult[string]) (*FetchResult[string], error) {
	if res.Body == nil {
		return res, nil
	}
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	res.Data = string(b)
	return res, nil
}

type transportFunc func(req *http.Request, agent http.RoundTripper) (*http.Response, error)

func (f transportFunc) Exchange(req *http.Request, agent http.RoundTripper) (*http.Response, error) {
	return f(req, agent)
}

type trackingBody struct {
	io.Reader
	closed atomic.Bool
}

func (b *trackingBody) Close() error {
	b.closed.Store(true)
	return nil
}
