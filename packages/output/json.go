package output

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/abdul-hamid-achik/hitfetch/packages/stats"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Results []*http.FetchResult[any] `json:"results"`
	Errors  []string                 `json:"errors,omitempty"`
	Summary *JSONSummary             `json:"summary,omitempty"`
	Time    string                   `json:"time"`
}

// JSONSummary represents the batch summary
type JSONSummary struct {
	Total    int64   `json:"total"`
	Success  int64   `json:"success"`
	Failed   int64   `json:"failed"`
	Duration float64 `json:"duration"` // milliseconds
	P50      float64 `json:"p50"`
	P95      float64 `json:"p95"`
	P99      float64 `json:"p99"`
	Max      float64 `json:"max"`
}

// JSONFormatter accumulates results and writes them as one document on Flush.
type JSONFormatter struct {
	mu      sync.Mutex
	writer  io.Writer
	results []*http.FetchResult[any]
	errors  []string
	summary *JSONSummary
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer:  os.Stdout,
		results: make([]*http.FetchResult[any], 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(result *http.FetchResult[any]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
}

func (f *JSONFormatter) FormatSummary(s *stats.Summary) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summary = &JSONSummary{
		Total:    s.Total,
		Success:  s.Success,
		Failed:   s.Errors(),
		Duration: ms(s.Duration),
		P50:      ms(s.P50),
		P95:      ms(s.P95),
		P99:      ms(s.P99),
		Max:      ms(s.Max),
	}
}

func (f *JSONFormatter) FormatError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, err.Error())
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := JSONOutput{
		Results: f.results,
		Errors:  f.errors,
		Summary: f.summary,
		Time:    time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
