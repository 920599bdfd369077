package http

import "context"

// Callback transforms a result before it is handed back to the caller. It
// runs on the calling goroutine and may block; ctx is the request context.
// The raw Body and Response are available to it. The returned result
// replaces the input, and a nil result keeps the input. An error aborts the
// call and is returned from Get or Post.
type Callback[T any] func(ctx context.Context, res *FetchResult[T]) (*FetchResult[T], error)

// finalize applies cb and strips the transport handles from whatever result
// comes back, whether or not a callback ran.
func finalize[T any](ctx context.Context, res *FetchResult[T], cb Callback[T]) (*FetchResult[T], error) {
	in := res
	defer in.release()

	if cb != nil {
		out, err := cb(ctx, res)
		if err != nil {
			return nil, err
		}
		if out != nil {
			res = out
		}
	}

	res.release()
	return res, nil
}
