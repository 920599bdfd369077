package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	neturl "net/url"

	"github.com/tidwall/gjson"

	"github.com/abdul-hamid-achik/hitfetch/packages/auth/credentials"
)

type authState int

const (
	stateUnauthenticated authState = iota
	stateAttemptingWithStoredToken
	stateReceivedUnauthorized
	stateRefreshing
	stateRetryWithoutToken
	stateDone
)

func (s authState) String() string {
	switch s {
	case stateUnauthenticated:
		return "unauthenticated"
	case stateAttemptingWithStoredToken:
		return "attempting-with-stored-token"
	case stateReceivedUnauthorized:
		return "received-unauthorized"
	case stateRefreshing:
		return "refreshing"
	case stateRetryWithoutToken:
		return "retry-without-token"
	case stateDone:
		return "done"
	default:
		return "unknown"
	}
}

// authFlow drives one logical GET through the authentication states. Each
// state method performs its work and returns the next state.
type authFlow[T any] struct {
	client   *Client
	url      string
	opts     *Options
	callback Callback[T]

	host   string
	record *credentials.Record

	// unauthorized is the first 401 result, kept as the fallback answer.
	unauthorized *FetchResult[T]
	// callbackRan is set once the callback has been handed a result.
	callbackRan bool

	result *FetchResult[T]
	err    error
}

func (f *authFlow[T]) run(ctx context.Context) (*FetchResult[T], error) {
	state := f.start()
	for state != stateDone {
		next := f.step(ctx, state)
		f.client.logger.Debug("auth transition", "host", f.host, "from", state.String(), "to", next.String())
		state = next
	}
	return f.result, f.err
}

func (f *authFlow[T]) step(ctx context.Context, state authState) authState {
	switch state {
	case stateUnauthenticated:
		return f.unauthenticated(ctx)
	case stateAttemptingWithStoredToken:
		return f.attemptWithStoredToken(ctx)
	case stateReceivedUnauthorized:
		return f.receivedUnauthorized()
	case stateRefreshing:
		return f.refreshing(ctx)
	case stateRetryWithoutToken:
		return f.retryWithoutToken(ctx)
	default:
		return stateDone
	}
}

// start looks up stored credentials for the URL's host.
func (f *authFlow[T]) start() authState {
	if f.client.store == nil {
		return stateUnauthenticated
	}
	u, err := neturl.Parse(f.url)
	if err != nil || u.Host == "" {
		return stateUnauthenticated
	}
	f.host = u.Host

	rec := f.client.store.Get(u.Host)
	if rec == nil || rec.AccessToken == "" {
		return stateUnauthenticated
	}
	f.record = rec
	return stateAttemptingWithStoredToken
}

func (f *authFlow[T]) unauthenticated(ctx context.Context) authState {
	f.result, f.err = f.finalize(ctx, fetch[T](ctx, f.client, f.url, f.opts.clone()))
	return stateDone
}

func (f *authFlow[T]) attemptWithStoredToken(ctx context.Context) authState {
	f.opts.Headers.Set("Authorization", f.record.AuthorizationHeader())

	res := fetch[T](ctx, f.client, f.url, f.opts.clone())
	if res.StatusCode != http.StatusUnauthorized {
		f.result, f.err = f.finalize(ctx, res)
		return stateDone
	}

	res.buffer(f.client.logger)
	f.unauthorized = res
	return stateReceivedUnauthorized
}

func (f *authFlow[T]) receivedUnauthorized() authState {
	if f.record.CanRefresh() {
		return stateRefreshing
	}
	return stateRetryWithoutToken
}

func (f *authFlow[T]) refreshing(ctx context.Context) authState {
	res, err := f.refreshAndRetry(ctx)
	if err != nil {
		var refreshErr *RefreshError
		if errors.As(err, &refreshErr) {
			f.discardUnauthorized()
			f.err = err
			return stateDone
		}
		f.client.logger.Warn("token refresh failed, returning original response", "host", f.host, "error", err)
		f.fallback(ctx)
		return stateDone
	}

	return f.complete(ctx, res, "retry after refresh failed, returning original response")
}

// refreshAndRetry refreshes the host's tokens and repeats the request while
// holding the host lock. The callback runs after the lock is released.
func (f *authFlow[T]) refreshAndRetry(ctx context.Context) (*FetchResult[T], error) {
	unlock := f.client.store.Lock(f.host)
	defer unlock()

	// Another call may have refreshed while this one waited on the lock.
	if cur := f.client.store.Get(f.host); cur != nil && cur.AccessToken != f.record.AccessToken {
		f.client.logger.Debug("using credentials refreshed by a concurrent call", "host", f.host)
		return f.retryWith(ctx, cur, false), nil
	}

	updated, err := f.client.refresh(ctx, f.record, f.opts)
	if err != nil {
		return nil, err
	}
	return f.retryWith(ctx, updated, true), nil
}

// retryWith repeats the request with rec's token and returns the raw result.
// When save is set and the token is accepted, rec replaces the stored record.
func (f *authFlow[T]) retryWith(ctx context.Context, rec *credentials.Record, save bool) *FetchResult[T] {
	opts := f.opts.clone()
	opts.Headers.Set("Authorization", rec.AuthorizationHeader())

	res := fetch[T](ctx, f.client, f.url, opts)

	// Only keep tokens that were accepted.
	if save && res.StatusCode != http.StatusUnauthorized {
		if err := f.client.store.Set(rec); err != nil {
			f.client.logger.Warn("failed to save refreshed credentials", "host", f.host, "error", err)
		} else {
			f.client.logger.Debug("saved refreshed credentials", "host", f.host)
		}
	}
	return res
}

func (f *authFlow[T]) retryWithoutToken(ctx context.Context) authState {
	opts := f.opts.clone()
	opts.Headers.Del("Authorization")

	res := fetch[T](ctx, f.client, f.url, opts)
	return f.complete(ctx, res, "retry without token failed, returning original response")
}

// complete finalizes a retried result, answering with the original 401 if
// that fails.
func (f *authFlow[T]) complete(ctx context.Context, res *FetchResult[T], msg string) authState {
	out, err := f.finalize(ctx, res)
	if err != nil {
		f.client.logger.Warn(msg, "host", f.host, "error", err)
		f.fallback(ctx)
		return stateDone
	}

	f.discardUnauthorized()
	f.result = out
	return stateDone
}

func (f *authFlow[T]) finalize(ctx context.Context, res *FetchResult[T]) (*FetchResult[T], error) {
	if f.callback != nil {
		f.callbackRan = true
	}
	return finalize(ctx, res, f.callback)
}

// fallback answers with the original 401. The callback sees it only if it
// has not already run for this call.
func (f *authFlow[T]) fallback(ctx context.Context) {
	res := f.unauthorized
	f.unauthorized = nil

	if f.callbackRan {
		res.release()
		f.result, f.err = res, nil
		return
	}
	f.result, f.err = f.finalize(ctx, res)
}

func (f *authFlow[T]) discardUnauthorized() {
	f.unauthorized.release()
	f.unauthorized = nil
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
	GrantType    string `json:"grant_type"`
}

type refreshedTokens struct {
	AccessToken  string
	RefreshToken string
}

// refresh exchanges rec's refresh token for new tokens and returns an updated
// copy of rec. A token missing from the response keeps its previous value.
func (c *Client) refresh(ctx context.Context, rec *credentials.Record, base *Options) (*credentials.Record, error) {
	body, err := json.Marshal(refreshRequest{
		RefreshToken: rec.RefreshToken,
		GrantType:    "refresh_token",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode refresh request: %w", err)
	}

	opts := NewOptions().
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetTimeout(base.Timeout)
	opts.Signal = base.Signal
	opts.Locale = base.Locale

	res, err := Post(ctx, c, rec.RefreshURL, opts, readRefreshedTokens)
	if err != nil {
		return nil, err
	}
	if !res.IsSuccess {
		return nil, &RefreshError{
			URL:           rec.RefreshURL,
			StatusCode:    res.StatusCode,
			StatusMessage: res.StatusMessage,
		}
	}

	updated := rec.Clone()
	if res.Data.AccessToken != "" {
		updated.AccessToken = res.Data.AccessToken
	}
	if res.Data.RefreshToken != "" {
		updated.RefreshToken = res.Data.RefreshToken
	}
	return updated, nil
}

func readRefreshedTokens(_ context.Context, res *FetchResult[refreshedTokens]) (*FetchResult[refreshedTokens], error) {
	if !res.IsSuccess || res.Body == nil {
		return res, nil
	}

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read refresh response: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("refresh response is not valid JSON")
	}

	if v := gjson.GetBytes(data, "access_token"); v.Type == gjson.String {
		res.Data.AccessToken = v.String()
	}
	if v := gjson.GetBytes(data, "refresh_token"); v.Type == gjson.String {
		res.Data.RefreshToken = v.String()
	}
	return res, nil
}
