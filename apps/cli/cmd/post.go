package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitfetch/packages/http"
)

var postCmd = &cobra.Command{
	Use:   "post <url>",
	Short: "Send a POST request",
	Long: `Send a POST request. Redirects are followed and cookies are kept in
the session; stored tokens are not attached.

Examples:
  hitfetch post https://example.com/login -d '{"user":"ada"}'
  hitfetch post https://example.com/upload -d @payload.json -H "X-Trace: 1"`,
	Args: cobra.ExactArgs(1),
	RunE: runPost,
}

var (
	postDataFlag    string
	postHeadersFlag []string
	postJSONFlag    bool
)

func init() {
	postCmd.Flags().StringVarP(&postDataFlag, "data", "d", "", "Request body, or @file to read it from a file")
	postCmd.Flags().StringArrayVarP(&postHeadersFlag, "header", "H", nil, "Request header \"Name: value\" (repeatable)")
	postCmd.Flags().BoolVar(&postJSONFlag, "json", false, "Output the result as JSON")
}

func readBody(data string) ([]byte, error) {
	if path, ok := strings.CutPrefix(data, "@"); ok {
		body, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read body file: %w", err)
		}
		return body, nil
	}
	return []byte(data), nil
}

func runPost(cmd *cobra.Command, args []string) error {
	url := args[0]
	if err := http.ValidateURL(url); err != nil {
		return withExitCode(ExitUsageError, err)
	}

	opts := http.NewOptions()
	if err := parseHeaders(opts, postHeadersFlag); err != nil {
		return withExitCode(ExitUsageError, err)
	}

	body, err := readBody(postDataFlag)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}
	if len(body) > 0 {
		opts.SetBody(body)
		if opts.Headers.Get("Content-Type") == "" && json.Valid(body) {
			opts.SetHeader("Content-Type", "application/json")
		}
	}

	sess, err := currentSession()
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Close(); err != nil {
			sess.logger.Warn("failed to close session", "error", err)
		}
	}()

	abort, stop := abortOnSignal()
	defer stop()
	opts.Signal = abort

	formatter := newFormatter(postJSONFlag, cmd.OutOrStdout())
	res, err := sess.client.Post(cmd.Context(), url, opts, decodeBody)
	if err != nil {
		formatter.FormatError(err)
	} else {
		formatter.FormatResult(res)
	}
	if err := formatter.Flush(); err != nil {
		return fmt.Errorf("error writing output: %w", err)
	}

	if code := resultCode(res, err); code != ExitSuccess {
		return withExitCode(code, nil)
	}
	return nil
}
