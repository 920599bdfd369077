package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "GET", r.Method)
		assert.Equal(t, "/test", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message": "hello"}`))
	}))
	defer server.Close()

	client := NewClient()
	res, err := Get(context.Background(), client, server.URL+"/test", nil, readBody)

	require.NoError(t, err)
	assert.True(t, res.IsSuccess)
	assert.False(t, res.IsFailure)
	assert.Equal(t, 200, res.StatusCode)
	assert.Equal(t, "OK", res.StatusMessage)
	assert.Equal(t, "application/json", res.ContentType)
	assert.Equal(t, server.URL+"/test", res.ResponseURL)
	assert.Contains(t, res.Data, "hello")
	assert.Nil(t, res.Body)
	assert.Nil(t, res.Response)
}

func TestClient_Post(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"name": "test"}`, string(body))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 123}`))
	}))
	defer server.Close()

	client := NewClient()
	opts := NewOptions().
		SetHeader("Content-Type", "application/json").
		SetBody([]byte(`{"name": "test"}`))
	res, err := Post(context.Background(), client, server.URL, opts, readBody)

	require.NoError(t, err)
	assert.Equal(t, 201, res.StatusCode)
	assert.True(t, res.IsSuccess)
	assert.Contains(t, res.Data, "123")
}

func TestClient_FailureStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	res, err := NewClient().Get(context.Background(), server.URL, nil, nil)

	require.NoError(t, err)
	assert.True(t, res.IsFailure)
	assert.False(t, res.IsSuccess)
	assert.False(t, res.IsNetworkError)
	assert.Equal(t, 404, res.StatusCode)
	assert.Equal(t, "Not Found", res.StatusMessage)
}

func TestClient_WithTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithTimeout(50 * time.Millisecond))
	res, err := client.Get(context.Background(), server.URL, nil, nil)

	require.NoError(t, err)
	assert.True(t, res.IsFailure)
	assert.True(t, res.IsTimeout)
	assert.True(t, res.IsNetworkError)
	assert.False(t, res.IsAbort)
	assert.ErrorIs(t, res.Err, ErrTimeout)
	assert.NotEmpty(t, res.StatusMessage)
}

func TestClient_OptionsTimeoutOverridesDefault(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client := NewClient()
	res, err := client.Get(context.Background(), server.URL, NewOptions().SetTimeout(50*time.Millisecond), nil)

	require.NoError(t, err)
	assert.True(t, res.IsTimeout)
}

func TestClient_WithDefaultHeader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "value", r.Header.Get("X-Custom"))
		assert.Equal(t, "override", r.Header.Get("X-Other"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithDefaultHeaders(map[string]string{
		"X-Custom": "value",
		"X-Other":  "default",
	}))
	res, err := client.Get(context.Background(), server.URL, NewOptions().SetHeader("X-Other", "override"), nil)

	require.NoError(t, err)
	assert.Equal(t, 200, res.StatusCode)
}

func TestClient_UserAgentAndLanguage(t *testing.T) {
	var ua, lang string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
		lang = r.Header.Get("Accept-Language")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(WithUserAgent("custom-agent"))
	opts := NewOptions().SetHeader("User-Agent", "ignored")
	opts.Locale = "fr-FR"
	_, err := client.Get(context.Background(), server.URL, opts, nil)
	require.NoError(t, err)

	assert.Equal(t, "custom-agent", ua)
	assert.Equal(t, "fr-FR,en-US;q=0.7,en;q=0.5", lang)

	_, err = NewClient().Get(context.Background(), server.URL, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, ua)
	assert.Equal(t, "en-US,en-US;q=0.7,en;q=0.5", lang)
}

func TestClient_DoesNotMutateCallerOptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/end", http.StatusSeeOther)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	opts := NewOptions().SetBody([]byte("payload"))
	_, err := NewClient().Post(context.Background(), server.URL+"/start", opts, nil)
	require.NoError(t, err)

	assert.Equal(t, "", opts.Method)
	assert.Equal(t, []byte("payload"), opts.Body)
	assert.Empty(t, opts.Headers.Get("User-Agent"))
}

func TestClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	res, err := NewClient().Get(context.Background(), url, nil, nil)

	require.NoError(t, err)
	assert.True(t, res.IsFailure)
	assert.True(t, res.IsNetworkError)
	assert.False(t, res.IsTimeout)
	assert.False(t, res.IsAbort)
	assert.ErrorIs(t, res.Err, ErrNetwork)
	assert.NotEmpty(t, res.StatusMessage)
}

func TestClient_TLSValidation(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	res, err := NewClient().Get(context.Background(), server.URL, nil, nil)
	require.NoError(t, err)
	assert.True(t, res.IsNetworkError, "self-signed certificate must be rejected")

	insecure := NewClient(WithValidateSSL(false))
	defer insecure.CloseIdleConnections()
	res, err = insecure.Get(context.Background(), server.URL, nil, nil)
	require.NoError(t, err)
	assert.True(t, res.IsSuccess)

	opts := NewOptions()
	opts.Agent = server.Client().Transport
	res, err = NewClient().Get(context.Background(), server.URL, opts, nil)
	require.NoError(t, err)
	assert.True(t, res.IsSuccess, "a supplied agent is used as-is")
}

func TestClient_SecureAgentIsReused(t *testing.T) {
	client := NewClient()
	a := client.secureAgent(time.Second)
	b := client.secureAgent(time.Second)
	c := client.secureAgent(2 * time.Second)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid http URL",
			url:     "http://example.com/path",
			wantErr: false,
		},
		{
			name:    "valid https URL",
			url:     "https://example.com/path",
			wantErr: false,
		},
		{
			name:    "invalid scheme",
			url:     "ftp://example.com",
			wantErr: true,
			errMsg:  "unsupported URL scheme",
		},
		{
			name:    "missing scheme",
			url:     "example.com/path",
			wantErr: true,
			errMsg:  "unsupported URL scheme",
		},
		{
			name:    "missing host",
			url:     "http:///path",
			wantErr: true,
			errMsg:  "URL must have a host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURL(tt.url)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
