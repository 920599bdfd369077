package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitfetch/packages/auth/credentials"
)

// authServer serves /resource, which accepts only the token in valid, and
// /refresh, which answers with refreshBody and refreshStatus.
type authServer struct {
	*httptest.Server

	mu            sync.Mutex
	valid         string
	refreshStatus int
	refreshBody   string

	resourceAuth   []string
	refreshCalls   atomic.Int32
	refreshRequest map[string]string
	inflight       atomic.Int32
	maxInflight    atomic.Int32
}

func newAuthServer(t *testing.T, valid string) *authServer {
	t.Helper()
	s := &authServer{
		valid:         valid,
		refreshStatus: http.StatusOK,
		refreshBody:   `{"access_token":"T2","refresh_token":"R2"}`,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/resource":
			auth := r.Header.Get("Authorization")
			s.mu.Lock()
			s.resourceAuth = append(s.resourceAuth, auth)
			valid := s.valid
			s.mu.Unlock()
			if auth != valid {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte("denied"))
				return
			}
			_, _ = w.Write([]byte("ok"))
		case "/refresh":
			n := s.inflight.Add(1)
			defer s.inflight.Add(-1)
			for {
				max := s.maxInflight.Load()
				if n <= max || s.maxInflight.CompareAndSwap(max, n) {
					break
				}
			}
			s.refreshCalls.Add(1)
			assert.Equal(t, "POST", r.Method)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.Empty(t, r.Header.Get("Authorization"))
			var body map[string]string
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			s.mu.Lock()
			s.refreshRequest = body
			status, payload := s.refreshStatus, s.refreshBody
			s.mu.Unlock()
			time.Sleep(10 * time.Millisecond)
			w.WriteHeader(status)
			_, _ = w.Write([]byte(payload))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	return s
}

func (s *authServer) authHeaders() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.resourceAuth...)
}

func newAuthClient(t *testing.T, server *authServer, rec credentials.Record) (*Client, *credentials.Store) {
	t.Helper()
	rec.AuthenticationURL = server.URL + "/login"
	store := credentials.NewStore()
	require.NoError(t, store.Set(&rec))
	return NewClient(WithStore(store)), store
}

func hostOf(t *testing.T, server *authServer) string {
	t.Helper()
	host, err := credentials.HostOf(server.URL)
	require.NoError(t, err)
	return host
}

func TestAuth_NoStoredCredentials(t *testing.T) {
	server := newAuthServer(t, "")
	defer server.Close()

	res, err := Get(context.Background(), NewClient(), server.URL+"/resource", nil, readBody)

	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, []string{""}, server.authHeaders())
}

func TestAuth_AttachesStoredToken(t *testing.T) {
	server := newAuthServer(t, "Bearer T1")
	defer server.Close()
	client, store := newAuthClient(t, server, credentials.Record{AccessToken: "T1"})

	res, err := Get(context.Background(), client, server.URL+"/resource", nil, readBody)

	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, "ok", res.Data)
	assert.Equal(t, []string{"Bearer T1"}, server.authHeaders())
	assert.Equal(t, "T1", store.Get(hostOf(t, server)).AccessToken)
	assert.Zero(t, server.refreshCalls.Load())
}

func TestAuth_CustomTokenType(t *testing.T) {
	server := newAuthServer(t, "Token T1")
	defer server.Close()
	client, _ := newAuthClient(t, server, credentials.Record{AccessToken: "T1", TokenType: "Token"})

	res, err := client.Get(context.Background(), server.URL+"/resource", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
}

func TestAuth_RefreshOnUnauthorized(t *testing.T) {
	server := newAuthServer(t, "Bearer T2")
	defer server.Close()
	client, store := newAuthClient(t, server, credentials.Record{
		AccessToken:  "T1",
		RefreshToken: "R1",
		RefreshURL:   server.URL + "/refresh",
	})

	calls := 0
	res, err := Get(context.Background(), client, server.URL+"/resource", nil, func(ctx context.Context, r *FetchResult[string]) (*FetchResult[string], error) {
		calls++
		return readBody(ctx, r)
	})

	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, "ok", res.Data)
	assert.Equal(t, 1, calls)
	assert.Nil(t, res.Body)
	assert.Nil(t, res.Response)

	assert.Equal(t, int32(1), server.refreshCalls.Load())
	assert.Equal(t, map[string]string{"refresh_token": "R1", "grant_type": "refresh_token"}, server.refreshRequest)
	assert.Equal(t, []string{"Bearer T1", "Bearer T2"}, server.authHeaders())

	rec := store.Get(hostOf(t, server))
	assert.Equal(t, "T2", rec.AccessToken)
	assert.Equal(t, "R2", rec.RefreshToken)
}

func TestAuth_RefreshKeepsMissingTokens(t *testing.T) {
	server := newAuthServer(t, "Bearer T2")
	server.refreshBody = `{"access_token":"T2","refresh_token":42}`
	defer server.Close()
	client, store := newAuthClient(t, server, credentials.Record{
		AccessToken:  "T1",
		RefreshToken: "R1",
		RefreshURL:   server.URL + "/refresh",
	})

	res, err := client.Get(context.Background(), server.URL+"/resource", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	rec := store.Get(hostOf(t, server))
	assert.Equal(t, "T2", rec.AccessToken)
	assert.Equal(t, "R1", rec.RefreshToken)
}

func TestAuth_RefreshedTokenStillRejected(t *testing.T) {
	server := newAuthServer(t, "Bearer never")
	defer server.Close()
	client, store := newAuthClient(t, server, credentials.Record{
		AccessToken:  "T1",
		RefreshToken: "R1",
		RefreshURL:   server.URL + "/refresh",
	})

	res, err := Get(context.Background(), client, server.URL+"/resource", nil, readBody)

	require.NoError(t, err)
	assert.Equal(t, 401, res.StatusCode)
	assert.Equal(t, "denied", res.Data)
	assert.Equal(t, int32(1), server.refreshCalls.Load())

	rec := store.Get(hostOf(t, server))
	assert.Equal(t, "T1", rec.AccessToken, "rejected tokens are not saved")
	assert.Equal(t, "R1", rec.RefreshToken)
}

func TestAuth_RefreshFailure(t *testing.T) {
	server := newAuthServer(t, "Bearer T2")
	server.refreshStatus = http.StatusInternalServerError
	defer server.Close()
	client, store := newAuthClient(t, server, credentials.Record{
		AccessToken:  "T1",
		RefreshToken: "R1",
		RefreshURL:   server.URL + "/refresh",
	})

	calls := 0
	res, err := Get(context.Background(), client, server.URL+"/resource", nil, func(_ context.Context, r *FetchResult[string]) (*FetchResult[string], error) {
		calls++
		return r, nil
	})

	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrRefreshFailed)
	var refreshErr *RefreshError
	require.True(t, errors.As(err, &refreshErr))
	assert.Equal(t, 500, refreshErr.StatusCode)
	assert.Contains(t, err.Error(), "Internal Server Error")
	assert.Equal(t, 0, calls)

	assert.Equal(t, "T1", store.Get(hostOf(t, server)).AccessToken)
}

func TestAuth_InvalidRefreshResponseFallsBack(t *testing.T) {
	server := newAuthServer(t, "Bearer T2")
	server.refreshBody = `not json`
	defer server.Close()
	client, store := newAuthClient(t, server, credentials.Record{
		AccessToken:  "T1",
		RefreshToken: "R1",
		RefreshURL:   server.URL + "/refresh",
	})

	calls := 0
	res, err := Get(context.Background(), client, server.URL+"/resource", nil, func(ctx context.Context, r *FetchResult[string]) (*FetchResult[string], error) {
		calls++
		return readBody(ctx, r)
	})

	require.NoError(t, err)
	assert.Equal(t, 401, res.StatusCode)
	assert.Equal(t, "denied", res.Data)
	assert.Equal(t, 1, calls)
	assert.Nil(t, res.Body)
	assert.Equal(t, "T1", store.Get(hostOf(t, server)).AccessToken)
}

func TestAuth_RetryWithoutToken(t *testing.T) {
	server := newAuthServer(t, "")
	defer server.Close()
	client, store := newAuthClient(t, server, credentials.Record{AccessToken: "stale"})

	calls := 0
	res, err := Get(context.Background(), client, server.URL+"/resource", nil, func(ctx context.Context, r *FetchResult[string]) (*FetchResult[string], error) {
		calls++
		return readBody(ctx, r)
	})

	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, "ok", res.Data)
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"Bearer stale", ""}, server.authHeaders())
	assert.Zero(t, server.refreshCalls.Load())
	assert.NotNil(t, store.Get(hostOf(t, server)))
}

func TestAuth_RetryWithoutTokenOnlyRefreshTokenMissing(t *testing.T) {
	server := newAuthServer(t, "")
	defer server.Close()
	client, _ := newAuthClient(t, server, credentials.Record{
		AccessToken: "stale",
		RefreshURL:  server.URL + "/refresh",
	})

	res, err := client.Get(context.Background(), server.URL+"/resource", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Zero(t, server.refreshCalls.Load())
}

func TestAuth_RetryFailureReturnsOriginal(t *testing.T) {
	server := newAuthServer(t, "")
	defer server.Close()
	client, _ := newAuthClient(t, server, credentials.Record{AccessToken: "stale"})

	calls := 0
	res, err := Get(context.Background(), client, server.URL+"/resource", nil, func(_ context.Context, r *FetchResult[string]) (*FetchResult[string], error) {
		calls++
		if r.StatusCode == http.StatusOK {
			return nil, errors.New("callback failed")
		}
		return r, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 401, res.StatusCode)
	assert.Equal(t, 1, calls, "the callback runs once per logical call")
	assert.Nil(t, res.Body)
	assert.Nil(t, res.Response)
}

func TestAuth_PostIgnoresStoredCredentials(t *testing.T) {
	server := newAuthServer(t, "")
	defer server.Close()
	client, _ := newAuthClient(t, server, credentials.Record{AccessToken: "T1"})

	res, err := client.Post(context.Background(), server.URL+"/resource", nil, nil)

	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, []string{""}, server.authHeaders())
}

func TestAuth_ConcurrentRefreshesDoNotInterleave(t *testing.T) {
	server := newAuthServer(t, "Bearer T2")
	defer server.Close()
	client, store := newAuthClient(t, server, credentials.Record{
		AccessToken:  "T1",
		RefreshToken: "R1",
		RefreshURL:   server.URL + "/refresh",
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := client.Get(context.Background(), server.URL+"/resource", nil, nil)
			assert.NoError(t, err)
			if assert.NotNil(t, res) {
				assert.Equal(t, 200, res.StatusCode)
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, server.maxInflight.Load(), int32(1))
	assert.Equal(t, int32(1), server.refreshCalls.Load(), "later calls reuse the refreshed token")
	assert.Equal(t, "T2", store.Get(hostOf(t, server)).AccessToken)
}

func TestAuth_CallbackMayRequestSameHost(t *testing.T) {
	server := newAuthServer(t, "Bearer never")
	defer server.Close()
	client, _ := newAuthClient(t, server, credentials.Record{
		AccessToken:  "T1",
		RefreshToken: "R1",
		RefreshURL:   server.URL + "/refresh",
	})

	var nested *FetchResult[string]
	done := make(chan struct{})
	go func() {
		defer close(done)
		res, err := Get(context.Background(), client, server.URL+"/resource", nil, func(ctx context.Context, r *FetchResult[string]) (*FetchResult[string], error) {
			var err error
			nested, err = Get[string](ctx, client, server.URL+"/resource", nil, nil)
			if err != nil {
				return nil, err
			}
			return r, nil
		})
		assert.NoError(t, err)
		if assert.NotNil(t, res) {
			assert.Equal(t, 401, res.StatusCode)
		}
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("nested request from the callback did not complete")
	}

	require.NotNil(t, nested)
	assert.Equal(t, 401, nested.StatusCode)
	assert.Equal(t, int32(2), server.refreshCalls.Load())
}

func TestAuthState_String(t *testing.T) {
	assert.Equal(t, "refreshing", stateRefreshing.String())
	assert.Equal(t, "done", stateDone.String())
	assert.Equal(t, "unknown", authState(99).String())
}
