package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/abdul-hamid-achik/hitfetch/packages/callbacks"
	"github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/abdul-hamid-achik/hitfetch/packages/output"
)

// parseHeaders turns "Name: value" flags into request options.
func parseHeaders(opts *http.Options, headers []string) error {
	for _, h := range headers {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return fmt.Errorf("invalid header %q (use \"Name: value\")", h)
		}
		opts.SetHeader(name, strings.TrimSpace(value))
	}
	return nil
}

// decodeBody stores JSON bodies as decoded values and anything else as text.
func decodeBody(ctx context.Context, res *http.FetchResult[any]) (*http.FetchResult[any], error) {
	if strings.Contains(strings.ToLower(res.ContentType), "json") {
		return callbacks.JSON[any]()(ctx, res)
	}
	data, err := callbacks.Body(res)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		res.Data = string(data)
	}
	return res, nil
}

// resultCallback builds the callback for the --schema and --query flags.
func resultCallback(schemaPath, query string) (http.Callback[any], error) {
	var chain []http.Callback[any]
	if schemaPath != "" {
		schema, err := callbacks.SchemaFile[any](schemaPath)
		if err != nil {
			return nil, err
		}
		chain = append(chain, schema)
	}
	if query != "" {
		chain = append(chain, callbacks.Query(query))
	} else {
		chain = append(chain, decodeBody)
	}
	return callbacks.Chain(chain...), nil
}

// abortOnSignal returns a signal that is aborted on SIGINT or SIGTERM.
// stop releases the signal handler.
func abortOnSignal() (abort *http.AbortSignal, stop func()) {
	abort = http.NewAbortSignal()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		select {
		case <-sigs:
			abort.Abort()
		case <-done:
		}
	}()
	return abort, func() {
		signal.Stop(sigs)
		close(done)
	}
}

func newFormatter(asJSON bool, w io.Writer) output.Formatter {
	console := []output.ConsoleOption{
		output.WithWriter(w),
		output.WithVerbose(settings.GetVerbose()),
		output.WithNoColor(settings.GetNoColor()),
	}
	return output.New(asJSON, console, []output.JSONOption{output.JSONWithWriter(w)})
}
