package output

import (
	"github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/abdul-hamid-achik/hitfetch/packages/stats"
)

// Formatter renders results as they complete.
type Formatter interface {
	FormatResult(result *http.FetchResult[any])
	FormatSummary(summary *stats.Summary)
	FormatError(err error)
	// Flush writes anything the formatter buffered.
	Flush() error
}

// New returns the JSON formatter when asJSON is set and the console
// formatter otherwise.
func New(asJSON bool, console []ConsoleOption, jsonOpts []JSONOption) Formatter {
	if asJSON {
		return NewJSONFormatter(jsonOpts...)
	}
	return NewConsoleFormatter(console...)
}
