package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/erp-adi/uiverify/internal/browser"
	"github.com/erp-adi/uiverify/internal/config"
	"github.com/erp-adi/uiverify/internal/fixture"
	"github.com/erp-adi/uiverify/internal/logging"
	"github.com/erp-adi/uiverify/internal/runner"
	"github.com/erp-adi/uiverify/internal/runner/tasks"
	"github.com/erp-adi/uiverify/internal/verify"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errVerificationFailed signals a failed run under run.strict_exit.
var errVerificationFailed = errors.New("verification failed")

var configFileFlag string

// newOpener builds the browser driver; tests swap it for an in-memory one.
var newOpener = browser.NewOpener

var rootCmd = &cobra.Command{
	Use:   "uiverify",
	Short: "End-to-end UI verification for the ERP dashboard",
	Long: `uiverify drives a headless browser through the accounts-master flow:
log in if needed, open the account list, open the create form and reveal
the sub-account fields. It writes one screenshot per run: the success
screenshot, or the failure screenshot when any step fails.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runVerify,
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the verification repeatedly on the configured cron schedule",
	Long: `Schedule runs the verification on schedule.cron (six fields, seconds first)
until interrupted. The configuration file is watched and changes apply
from the next run.`,
	Args: cobra.NoArgs,
	RunE: runSchedule,
}

var fixtureCmd = &cobra.Command{
	Use:   "fixture",
	Short: "Serve a local stand-in for the dashboard pages the flow visits",
	Args:  cobra.NoArgs,
	RunE:  runFixture,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE:  runPrintConfig,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "uiverify %s\n", rootCmd.Version)
	},
}

var fixtureNoTableFlag bool

func init() {
	rootCmd.PersistentFlags().StringVar(&configFileFlag, "config", "", "Path to a uiverify.yaml file (default: ./uiverify.yaml or ./config/uiverify.yaml)")
	fixtureCmd.Flags().BoolVar(&fixtureNoTableFlag, "no-table", false, "Omit the account table to exercise the failure path")

	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(fixtureCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errVerificationFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger every command shares.
func setup() (*config.Loader, *zap.Logger, error) {
	loader, err := config.Load(configFileFlag)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewStderr(loader.Get().Logging)
	if err != nil {
		return nil, nil, err
	}
	if f := loader.ConfigFile(); f != "" {
		logger.Debug("configuration loaded", zap.String("file", f))
	}
	return loader, logger, nil
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runVerify(cmd *cobra.Command, args []string) error {
	loader, logger, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync(logger)
	cfg := loader.Get()

	opener, err := newOpener(cfg.BrowserOptions(), logger)
	if err != nil {
		return err
	}
	metrics := verify.NewMetrics()
	r := verify.NewRunner(opener,
		verify.WithOutput(cmd.OutOrStdout()),
		verify.WithLogger(logger),
		verify.WithMetrics(metrics),
	)

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	res, err := r.Run(ctx, cfg, verify.AccountForm())
	if err != nil {
		return err
	}
	if err := metrics.Export(ctx, cfg.Metrics); err != nil {
		logger.Warn("metrics export failed", zap.Error(err))
	}
	if res.Outcome == verify.Failed && cfg.Run.StrictExit {
		return errVerificationFailed
	}
	return nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	loader, logger, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	// The browser driver is fixed for the life of the process; other
	// settings are re-read on every run.
	opener, err := newOpener(loader.Get().BrowserOptions(), logger)
	if err != nil {
		return err
	}
	metrics := verify.NewMetrics()
	r := verify.NewRunner(opener,
		verify.WithOutput(cmd.OutOrStdout()),
		verify.WithLogger(logger),
		verify.WithMetrics(metrics),
	)

	loader.Watch(
		func(*config.Config) { logger.Info("configuration reloaded", zap.String("file", loader.ConfigFile())) },
		func(err error) { logger.Warn("configuration reload rejected", zap.Error(err)) },
	)

	registry := runner.NewTaskRegistry()
	if err := registry.Register(tasks.NewVerificationTask(r, metrics, loader.Get, logger)); err != nil {
		return err
	}
	// SIGINT/SIGTERM also cancel an in-flight verification.
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	err = runner.NewRunner(registry, logger).Start(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runFixture(cmd *cobra.Command, args []string) error {
	loader, logger, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync(logger)
	cfg := loader.Get()

	gin.SetMode(gin.ReleaseMode)
	opts := []fixture.Option{fixture.WithCredentials(cfg.Credentials.Email, cfg.Credentials.Password)}
	if fixtureNoTableFlag {
		opts = append(opts, fixture.WithoutTable())
	}
	srv := &http.Server{
		Addr:              cfg.Fixture.Addr,
		Handler:           fixture.New(opts...).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("fixture listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func runPrintConfig(cmd *cobra.Command, args []string) error {
	loader, err := config.Load(configFileFlag)
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(loader.Get().Redacted()); err != nil {
		return err
	}
	return enc.Close()
}
