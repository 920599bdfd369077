// Package callbacks provides ready-made result callbacks for hitfetch
// requests: decoding, querying and validating JSON bodies.
//
// Callbacks read the body and leave a rewound copy behind, so they can be
// combined with Chain.
package callbacks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/abdul-hamid-achik/hitfetch/packages/http"
)

// Body reads the response body and rewinds it for the next reader. A
// result without a body yields nil.
func Body[T any](res *http.FetchResult[T]) ([]byte, error) {
	if res.Body == nil {
		return nil, nil
	}
	data, err := io.ReadAll(res.Body)
	_ = res.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	res.Body = io.NopCloser(bytes.NewReader(data))
	if res.Response != nil {
		res.Response.Body = res.Body
	}
	return data, nil
}

// Text stores the body as a string.
func Text() http.Callback[string] {
	return func(_ context.Context, res *http.FetchResult[string]) (*http.FetchResult[string], error) {
		data, err := Body(res)
		if err != nil {
			return nil, err
		}
		res.Data = string(data)
		return res, nil
	}
}

// JSON decodes the body into Data. An empty body leaves Data at its zero
// value.
func JSON[T any]() http.Callback[T] {
	return func(_ context.Context, res *http.FetchResult[T]) (*http.FetchResult[T], error) {
		data, err := Body(res)
		if err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(data)) == 0 {
			return res, nil
		}
		if err := json.Unmarshal(data, &res.Data); err != nil {
			return nil, fmt.Errorf("failed to decode JSON body: %w", err)
		}
		return res, nil
	}
}

// Query stores the value at the gjson path in Data. A path that matches
// nothing leaves Data nil.
func Query(path string) http.Callback[any] {
	return func(_ context.Context, res *http.FetchResult[any]) (*http.FetchResult[any], error) {
		data, err := Body(res)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return res, nil
		}
		if !gjson.ValidBytes(data) {
			return nil, fmt.Errorf("response body is not valid JSON")
		}

		v := gjson.GetBytes(data, path)
		if !v.Exists() {
			res.Data = nil
			return res, nil
		}
		res.Data = v.Value()
		return res, nil
	}
}

// SchemaError lists the ways a body failed schema validation.
type SchemaError struct {
	Errors []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema validation failed: %s", strings.Join(e.Errors, "; "))
}

// Schema validates the body against a JSON schema. Results without a body,
// such as transport failures, pass through untouched.
func Schema[T any](schema []byte) http.Callback[T] {
	loader := gojsonschema.NewBytesLoader(schema)
	return func(_ context.Context, res *http.FetchResult[T]) (*http.FetchResult[T], error) {
		data, err := Body(res)
		if err != nil {
			return nil, err
		}
		if data == nil {
			return res, nil
		}

		result, err := gojsonschema.Validate(loader, gojsonschema.NewBytesLoader(data))
		if err != nil {
			return nil, fmt.Errorf("schema validation error: %w", err)
		}
		if result.Valid() {
			return res, nil
		}

		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}
		return nil, &SchemaError{Errors: errs}
	}
}

// SchemaFile is Schema with the schema read from path.
func SchemaFile[T any](path string) (http.Callback[T], error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("schema file %s is not valid JSON", path)
	}
	return Schema[T](data), nil
}

// Chain runs cbs in order, each receiving the result of the previous one.
// The first error stops the chain.
func Chain[T any](cbs ...http.Callback[T]) http.Callback[T] {
	return func(ctx context.Context, res *http.FetchResult[T]) (*http.FetchResult[T], error) {
		for _, cb := range cbs {
			if cb == nil {
				continue
			}
			out, err := cb(ctx, res)
			if err != nil {
				return nil, err
			}
			if out != nil {
				res = out
			}
		}
		return res, nil
	}
}
