package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/abdul-hamid-achik/hitfetch/packages/stats"
)

// formatValue formats data for display, truncating long values
func formatValue(v any, maxLen int) string {
	var str string
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		str = val
	case []byte:
		str = string(val)
	default:
		data, err := json.MarshalIndent(val, "", "  ")
		if err != nil {
			str = fmt.Sprintf("%v", val)
		} else {
			str = string(data)
		}
	}
	if maxLen > 0 && len(str) > maxLen {
		return str[:maxLen] + "..."
	}
	return str
}

type ConsoleFormatter struct {
	mu      sync.Mutex
	writer  io.Writer
	verbose bool
	noColor bool
	maxBody int
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer:  os.Stdout,
		maxBody: 4096,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// WithMaxBody caps how much of the data is printed. Zero prints everything.
func WithMaxBody(n int) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.maxBody = n
	}
}

func (f *ConsoleFormatter) FormatResult(r *http.FetchResult[any]) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	f.mu.Lock()
	defer f.mu.Unlock()

	elapsed := cyan(fmt.Sprintf("(%dms)", r.Duration.Milliseconds()))
	switch {
	case r.IsAbort:
		fmt.Fprintf(f.writer, "%s %s %s %s\n", yellow("-"), r.URL, yellow("aborted"), elapsed)
		return
	case r.IsTimeout:
		fmt.Fprintf(f.writer, "%s %s %s %s\n", red("x"), r.URL, red("timeout: "+r.StatusMessage), elapsed)
		return
	case r.IsNetworkError:
		fmt.Fprintf(f.writer, "%s %s %s %s\n", red("x"), r.URL, red("network error: "+r.StatusMessage), elapsed)
		return
	}

	symbol, status := green("✓"), green(fmt.Sprintf("%d %s", r.StatusCode, r.StatusMessage))
	if r.IsFailure {
		symbol, status = red("✗"), red(fmt.Sprintf("%d %s", r.StatusCode, r.StatusMessage))
	}
	fmt.Fprintf(f.writer, "%s %s %s %s\n", symbol, r.URL, status, elapsed)

	if f.verbose {
		if r.ResponseURL != "" && r.ResponseURL != r.URL {
			fmt.Fprintf(f.writer, "    Final URL:    %s\n", r.ResponseURL)
		}
		if r.ContentType != "" {
			fmt.Fprintf(f.writer, "    Content-Type: %s\n", r.ContentType)
		}
	}

	if body := formatValue(r.Data, f.maxBody); body != "" {
		fmt.Fprintf(f.writer, "%s\n", body)
	}
}

func (f *ConsoleFormatter) FormatSummary(s *stats.Summary) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	f.mu.Lock()
	defer f.mu.Unlock()

	fmt.Fprintf(f.writer, "\n%s ", bold("Requests:"))
	if s.Success > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d succeeded", s.Success)))
	}
	if errs := s.Errors(); errs > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", errs)))
	}
	fmt.Fprintf(f.writer, "%d total\n", s.Total)
	fmt.Fprintf(f.writer, "%s  p50 %s  p95 %s  p99 %s  max %s\n", bold("Latency:"),
		s.P50.Round(10_000), s.P95.Round(10_000), s.P99.Round(10_000), s.Max.Round(10_000))
	fmt.Fprintf(f.writer, "%s     %dms (%.1f req/s)\n", bold("Time:"), s.Duration.Milliseconds(), s.RPS)

	if f.verbose && len(s.Hosts) > 1 {
		for _, h := range s.Hosts {
			fmt.Fprintf(f.writer, "  %s: %d requests, %d errors, p95 %s\n", h.Host, h.Total, h.Errors, h.P95.Round(10_000))
		}
	}
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

// Flush is a no-op; console output is written as it arrives.
func (f *ConsoleFormatter) Flush() error {
	return nil
}
