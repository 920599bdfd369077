package cmd

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/abdul-hamid-achik/hitfetch/packages/auth/credentials"
	"github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/abdul-hamid-achik/hitfetch/packages/stats"
)

var getCmd = &cobra.Command{
	Use:   "get <url>...",
	Short: "Fetch one or more URLs",
	Long: `Fetch URLs with GET. Stored tokens for each host are attached and
refreshed on 401; cookies are kept in the session.

Examples:
  hitfetch get https://api.example.com/me
  hitfetch get https://api.example.com/users --query "data.#.name"
  hitfetch get https://api.example.com/me --schema user.schema.json
  hitfetch get $(cat urls.txt) --concurrency 10 --rate 20 --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGet,
}

var (
	getHeadersFlag     []string
	getQueryFlag       string
	getSchemaFlag      string
	getJSONFlag        bool
	getConcurrencyFlag int
	getRateFlag        float64
	getLocaleFlag      string
)

func init() {
	getCmd.Flags().StringArrayVarP(&getHeadersFlag, "header", "H", nil, "Request header \"Name: value\" (repeatable)")
	getCmd.Flags().StringVar(&getQueryFlag, "query", "", "Print only the value at this JSON path")
	getCmd.Flags().StringVar(&getSchemaFlag, "schema", "", "Validate the body against a JSON schema file")
	getCmd.Flags().BoolVar(&getJSONFlag, "json", false, "Output results as JSON")
	getCmd.Flags().IntVar(&getConcurrencyFlag, "concurrency", getEnvInt("HITFETCH_CONCURRENCY", 5), "Number of concurrent requests (env: HITFETCH_CONCURRENCY)")
	getCmd.Flags().Float64Var(&getRateFlag, "rate", getEnvFloat("HITFETCH_RATE", 0), "Maximum requests per second, 0 for unlimited (env: HITFETCH_RATE)")
	getCmd.Flags().StringVar(&getLocaleFlag, "locale", "", "Preferred language for accept-language")
}

func runGet(cmd *cobra.Command, args []string) error {
	for _, u := range args {
		if err := http.ValidateURL(u); err != nil {
			return withExitCode(ExitUsageError, err)
		}
	}
	if getConcurrencyFlag < 1 {
		return withExitCode(ExitUsageError, fmt.Errorf("--concurrency must be at least 1"))
	}

	opts := http.NewOptions()
	if err := parseHeaders(opts, getHeadersFlag); err != nil {
		return withExitCode(ExitUsageError, err)
	}
	opts.Locale = getLocaleFlag

	cb, err := resultCallback(getSchemaFlag, getQueryFlag)
	if err != nil {
		return withExitCode(ExitUsageError, err)
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

	formatter := newFormatter(getJSONFlag, cmd.OutOrStdout())
	metrics := stats.NewMetrics()

	var limiter *rate.Limiter
	if getRateFlag > 0 {
		limiter = rate.NewLimiter(rate.Limit(getRateFlag), 1)
	}

	var (
		mu    sync.Mutex
		worst outcomeCode
	)
	g, gctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(getConcurrencyFlag)

	metrics.Start()
	for _, u := range args {
		if limiter != nil {
			if err := limiter.Wait(gctx); err != nil {
				break
			}
		}
		if abort.Aborted() {
			break
		}

		g.Go(func() error {
			res, err := sess.client.Get(gctx, u, opts, cb)

			host, _ := credentials.HostOf(u)
			code := resultCode(res, err)
			if err != nil {
				formatter.FormatError(fmt.Errorf("%s: %w", u, err))
				metrics.Record(host, 0, stats.Failure)
			} else {
				formatter.FormatResult(res)
				metrics.Record(host, res.Duration, outcomeOf(res))
			}

			mu.Lock()
			worst.observe(code)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	metrics.Stop()

	if len(args) > 1 {
		formatter.FormatSummary(metrics.GetSummary())
	}
	if err := formatter.Flush(); err != nil {
		return fmt.Errorf("error writing output: %w", err)
	}

	if worst.code != ExitSuccess {
		return withExitCode(worst.code, nil)
	}
	return nil
}

func outcomeOf[T any](res *http.FetchResult[T]) stats.Outcome {
	switch {
	case res.IsAbort:
		return stats.Aborted
	case res.IsTimeout:
		return stats.Timeout
	case res.IsNetworkError:
		return stats.NetworkError
	case res.IsFailure:
		return stats.Failure
	default:
		return stats.Success
	}
}
