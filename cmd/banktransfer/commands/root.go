package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"banktransfer/internal/app"
)

// skipWire marks commands that only need configuration.
const skipWire = "skip-wire"

var (
	configPath  string
	envFile     string
	baseURL     string
	timeout     time.Duration
	maxRetries  int
	debug       bool
	logFile     string
	showMetrics bool
	jsonOutput  bool

	cfg    app.Config
	appCtx *app.Wire
)

// Execute runs the CLI. SIGINT and SIGTERM cancel in-flight requests.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "banktransfer",
		Short:         "Transfer funds through the banking API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig(cmd)
			if err != nil {
				return usage(err)
			}
			cfg = loaded
			if cmd.Annotations[skipWire] == "true" {
				return nil
			}
			w, err := app.NewWire(cfg, app.Deps{})
			if err != nil {
				return usage(err)
			}
			appCtx = w
			return nil
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usage(err) })

	pf := root.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "config file (default ~/.banktransfer/config.yaml if present)")
	pf.StringVar(&envFile, "env-file", "", "read environment variables from this .env file")
	pf.StringVar(&baseURL, "base-url", "", "banking API base URL (overrides config)")
	pf.DurationVar(&timeout, "timeout", 0, "per-attempt request timeout (overrides config)")
	pf.IntVar(&maxRetries, "max-retries", 0, "retries for transient faults (overrides config)")
	pf.BoolVar(&debug, "debug", false, "enable debug logging")
	pf.StringVar(&logFile, "log-file", "", "also write logs to this file")
	pf.BoolVar(&showMetrics, "metrics", false, "print request counters on exit")
	pf.BoolVar(&jsonOutput, "json", false, "print results as JSON")

	root.AddCommand(
		transferCmd(),
		historyCmd(),
		accountsCmd(),
		balanceCmd(),
		validateCmd(),
		tokenCmd(),
		configCmd(),
	)
	return root
}

// loadConfig layers flags over the file and environment configuration.
func loadConfig(cmd *cobra.Command) (app.Config, error) {
	path := configPath
	if path == "" {
		if def, err := app.DefaultPath(); err == nil {
			if _, err := os.Stat(def); err == nil {
				path = def
			}
		}
	}

	c, err := app.Load(path, envFile)
	if err != nil {
		return app.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("base-url") {
		c.BaseURL = baseURL
	}
	if flags.Changed("timeout") {
		c.Timeout = app.Duration(timeout)
	}
	if flags.Changed("max-retries") {
		c.MaxRetries = maxRetries
	}
	if debug {
		c.LogLevel = "debug"
	}
	if flags.Changed("log-file") {
		c.LogFile = logFile
	}
	return c, nil
}

// withWire runs fn and then prints metrics when asked and releases the wire.
// It stands in for PersistentPostRun, which cobra skips when RunE fails.
func withWire(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		defer finish(cmd)
		return fn(cmd, args)
	}
}

func finish(cmd *cobra.Command) {
	if appCtx == nil {
		return
	}
	if showMetrics {
		if err := renderMetrics(cmd.OutOrStdout(), appCtx.Registry); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "metrics:", err)
		}
	}
	appCtx.Close()
	appCtx = nil
}
