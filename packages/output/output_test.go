package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/abdul-hamid-achik/hitfetch/packages/stats"
)

func sampleSummary() *stats.Summary {
	return &stats.Summary{
		Duration: 1500 * time.Millisecond,
		Total:    3,
		Success:  2,
		Failures: 1,
		P50:      20 * time.Millisecond,
		P95:      40 * time.Millisecond,
		P99:      45 * time.Millisecond,
		Max:      50 * time.Millisecond,
		RPS:      2,
	}
}

func TestConsoleFormatter_Result(t *testing.T) {
	tests := []struct {
		name     string
		result   *http.FetchResult[any]
		contains []string
	}{
		{
			name: "success with JSON data",
			result: &http.FetchResult[any]{
				URL: "https://api.example.com/users", IsSuccess: true,
				StatusCode: 200, StatusMessage: "OK", Duration: 12 * time.Millisecond,
				Data: map[string]any{"id": 1},
			},
			contains: []string{"✓ https://api.example.com/users 200 OK (12ms)", `"id": 1`},
		},
		{
			name: "failure status",
			result: &http.FetchResult[any]{
				URL: "https://api.example.com/x", IsFailure: true,
				StatusCode: 404, StatusMessage: "Not Found",
			},
			contains: []string{"✗ https://api.example.com/x 404 Not Found"},
		},
		{
			name: "timeout",
			result: &http.FetchResult[any]{
				URL: "https://slow.example.com", IsFailure: true, IsTimeout: true,
				StatusMessage: "request timed out",
			},
			contains: []string{"x https://slow.example.com timeout: request timed out"},
		},
		{
			name: "network error",
			result: &http.FetchResult[any]{
				URL: "https://down.example.com", IsFailure: true, IsNetworkError: true,
				StatusMessage: "connection refused",
			},
			contains: []string{"network error: connection refused"},
		},
		{
			name:     "abort",
			result:   &http.FetchResult[any]{URL: "https://a.example.com", IsFailure: true, IsAbort: true},
			contains: []string{"- https://a.example.com aborted"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

			f.FormatResult(tt.result)

			for _, want := range tt.contains {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestConsoleFormatter_Verbose(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithVerbose(true))

	f.FormatResult(&http.FetchResult[any]{
		URL: "http://a/", ResponseURL: "http://a/final", ContentType: "text/plain",
		IsSuccess: true, StatusCode: 200, StatusMessage: "OK",
	})

	assert.Contains(t, buf.String(), "Final URL:    http://a/final")
	assert.Contains(t, buf.String(), "Content-Type: text/plain")
}

func TestConsoleFormatter_Truncates(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true), WithMaxBody(5))

	f.FormatResult(&http.FetchResult[any]{URL: "u", IsSuccess: true, StatusCode: 200, Data: "abcdefghij"})

	assert.Contains(t, buf.String(), "abcde...")
	assert.NotContains(t, buf.String(), "abcdef")
}

func TestConsoleFormatter_Summary(t *testing.T) {
	var buf bytes.Buffer
	f := NewConsoleFormatter(WithWriter(&buf), WithNoColor(true))

	f.FormatSummary(sampleSummary())
	f.FormatError(errors.New("boom"))
	require.NoError(t, f.Flush())

	out := buf.String()
	assert.Contains(t, out, "2 succeeded, 1 failed, 3 total")
	assert.Contains(t, out, "p50 20ms  p95 40ms  p99 45ms  max 50ms")
	assert.Contains(t, out, "Error: boom")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	f := New(true, nil, []JSONOption{JSONWithWriter(&buf)})

	f.FormatResult(&http.FetchResult[any]{
		URL: "https://api.example.com", IsSuccess: true, StatusCode: 200,
		Data: map[string]any{"ok": true},
	})
	f.FormatError(errors.New("refresh failed"))
	f.FormatSummary(sampleSummary())
	assert.Empty(t, buf.String(), "nothing is written before Flush")
	require.NoError(t, f.Flush())

	var out struct {
		Results []map[string]any `json:"results"`
		Errors  []string         `json:"errors"`
		Summary JSONSummary      `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))

	require.Len(t, out.Results, 1)
	assert.Equal(t, "https://api.example.com", out.Results[0]["url"])
	assert.Equal(t, float64(200), out.Results[0]["statusCode"])
	assert.Equal(t, map[string]any{"ok": true}, out.Results[0]["data"])
	assert.Equal(t, []string{"refresh failed"}, out.Errors)
	assert.Equal(t, int64(3), out.Summary.Total)
	assert.Equal(t, int64(1), out.Summary.Failed)
	assert.Equal(t, float64(40), out.Summary.P95)
}

func TestNew_Console(t *testing.T) {
	_, ok := New(false, []ConsoleOption{WithNoColor(true)}, nil).(*ConsoleFormatter)
	assert.True(t, ok)
}
