package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitfetch/packages/core/config"
	"github.com/abdul-hamid-achik/hitfetch/packages/logging"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag   string
	sessionFlag  string
	envFileFlag  string
	timeoutFlag  string
	insecureFlag bool
	proxyFlag    string
	logLevelFlag string
	logFileFlag  string
	noColorFlag  bool
	verboseFlag  int // 0=off, 1=-v, 2=-vv
)

// settings is resolved once per invocation by the root pre-run hook.
var (
	settings *config.Config
	logger   *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "hitfetch",
	Short: "HTTP requests with sessions, redirects and token refresh.",
	Long: `hitfetch makes HTTP requests that keep a cookie session, follow
redirects and attach stored bearer tokens, refreshing them on 401.

Session state (cookies and tokens) lives in a SQLite database, by default
~/.hitfetch/session.db.`,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logger != nil {
			return logger.Close()
		}
		return nil
	},
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		if msg := err.Error(); msg != "" {
			fmt.Fprintln(os.Stderr, "Error:", msg)
		}
		os.Exit(exitCode(err))
	}
}

func init() {
	rootCmd.SilenceErrors = true

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFlag, "config", getEnvString("HITFETCH_CONFIG", ""), "Path to config file (env: HITFETCH_CONFIG)")
	flags.StringVar(&sessionFlag, "session", "", "Session database path (env: HITFETCH_SESSION)")
	flags.StringVar(&envFileFlag, "env-file", getEnvString("HITFETCH_ENV_FILE", ""), "Path to .env file (env: HITFETCH_ENV_FILE)")
	flags.StringVar(&timeoutFlag, "timeout", "", "Request timeout (e.g., 30s, 500ms) (env: HITFETCH_TIMEOUT, in ms)")
	flags.BoolVarP(&insecureFlag, "insecure", "k", false, "Disable SSL certificate validation (env: HITFETCH_VALIDATE_SSL=false)")
	flags.StringVar(&proxyFlag, "proxy", "", "Proxy URL for HTTP requests (env: HITFETCH_PROXY)")
	flags.StringVar(&logLevelFlag, "log-level", "", "Log level: debug, info, warn, error (env: HITFETCH_LOG_LEVEL)")
	flags.StringVar(&logFileFlag, "log-file", "", "Also write logs to a rotating file (env: HITFETCH_LOG_FILE)")
	flags.BoolVar(&noColorFlag, "no-color", false, "Disable colored output (env: HITFETCH_NO_COLOR)")
	flags.CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v, -vv for debug logs)")

	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(postCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(cookiesCmd)
	rootCmd.AddCommand(versionCmd)
}

func setup(cmd *cobra.Command, args []string) error {
	// Past flag parsing, errors are runtime failures rather than misuse.
	cmd.SilenceUsage = true

	cfg, err := loadSettings()
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}

	l, err := logging.New(cfg.LogLevel, cfg.LogFile, cmd.ErrOrStderr())
	if err != nil {
		return withExitCode(ExitConfigError, err)
	}
	slog.SetDefault(l.Logger)

	settings = cfg
	logger = l
	return nil
}

// loadSettings layers defaults, the config file, HITFETCH_* variables and
// command line flags.
func loadSettings() (*config.Config, error) {
	if err := config.LoadEnvFile(envFileFlag); err != nil {
		return nil, fmt.Errorf("cannot load env file: %w", err)
	}

	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, fmt.Errorf("cannot load config: %w", err)
	}

	flagConfig, err := configFromFlags()
	if err != nil {
		return nil, err
	}

	cfg := fileConfig.Merge(config.FromEnv()).Merge(flagConfig)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func configFromFlags() (*config.Config, error) {
	c := &config.Config{
		Proxy:    proxyFlag,
		Session:  sessionFlag,
		LogLevel: logLevelFlag,
		LogFile:  logFileFlag,
	}

	if timeoutFlag != "" {
		timeout, err := time.ParseDuration(timeoutFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout value %q: %w (use format like 30s, 1m, 500ms)", timeoutFlag, err)
		}
		if timeout < time.Millisecond {
			return nil, errors.New("timeout must be at least 1ms")
		}
		c.Timeout = int(timeout.Milliseconds())
	}
	if insecureFlag {
		c.ValidateSSL = config.BoolPtr(false)
	}
	if noColorFlag {
		c.NoColor = config.BoolPtr(true)
	}
	if verboseFlag > 0 {
		c.Verbose = config.BoolPtr(true)
	}
	if verboseFlag > 1 && c.LogLevel == "" {
		c.LogLevel = "debug"
	}
	return c, nil
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
