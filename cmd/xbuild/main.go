package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	core "github.com/3cpo-dev/xbuild/internal/core"
	"github.com/3cpo-dev/xbuild/internal/publish"
	"github.com/3cpo-dev/xbuild/internal/telemetry"
)

// Set at link time, the same way xbuild stamps the programs it builds.
var (
	version    = "0.1.2"
	gitHash    = ""
	buildStamp = ""
	goVersion  = ""
)

// Create the root command
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xbuild",
		Short: "xbuild: cross-compile a Go program for one or every supported target",
		Long: "xbuild discovers the platforms the installed Go toolchain supports, stamps every artifact\n" +
			"with the build date, VCS revision, toolchain and program version, and builds the selected targets.",
		Args:          cobra.NoArgs,
		RunE:          runBuild,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("log", "l", "info", "Set log level. Available: trace, debug, info, warn, error, fatal")
	cmd.PersistentFlags().String("config", "", "config file (default ./xbuild.yaml, then $XDG_CONFIG_HOME/xbuild/config.yaml)")
	cmd.PersistentFlags().String("history-db", "", "history database path (default $XDG_DATA_HOME/xbuild/history.db)")

	f := cmd.Flags()
	f.StringP("platform", "p", "", "target platform (GOOS), defaults to the host")
	f.StringP("arch", "a", "", "target architecture (GOARCH), defaults to the host")
	f.Bool("all", false, "build every supported platform/architecture pair")
	f.StringP("output-dir", "o", "", "directory artifacts are written to")
	f.String("program", "", "artifact name prefix")
	f.String("package", "", "package to build")
	f.BoolP("verbose", "x", false, "pass -x to go build and log its output")
	f.String("compress", "", "compression method: upx, zstd or none")
	f.Bool("publish", false, "upload successful artifacts to the configured publishers")
	f.Bool("history", false, "record the run in the history database")
	f.String("metrics-file", "", "write Prometheus metrics to this file after the run")
	f.Duration("timeout", 0, "per-target build timeout (0 disables)")

	cmd.PersistentPreRun = func(c *cobra.Command, args []string) {
		levelStr, _ := c.Flags().GetString("log")
		switch levelStr {
		case "trace":
			zerolog.SetGlobalLevel(zerolog.TraceLevel)
		case "debug":
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		case "info":
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		case "warn":
			zerolog.SetGlobalLevel(zerolog.WarnLevel)
		case "error":
			zerolog.SetGlobalLevel(zerolog.ErrorLevel)
		case "fatal":
			zerolog.SetGlobalLevel(zerolog.FatalLevel)
		default:
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newTargetsCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newKeygenCmd())
	return cmd
}

// Create the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "xbuild %s (%s) %s %s\n", version, gitHash, buildStamp, goVersion)
		},
	}
}

// loadConfig reads the config file and applies the flags that were set.
func loadConfig(cmd *cobra.Command) (core.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := core.LoadConfig(cfgPath)
	if err != nil {
		return cfg, err
	}
	f := cmd.Flags()
	if f.Changed("output-dir") {
		cfg.OutputDir, _ = f.GetString("output-dir")
	}
	if f.Changed("program") {
		cfg.Program, _ = f.GetString("program")
	}
	if f.Changed("package") {
		cfg.Package, _ = f.GetString("package")
	}
	if f.Changed("compress") {
		method, _ := f.GetString("compress")
		cfg.SetCompression(method)
	}
	if f.Changed("timeout") {
		cfg.Build.Timeout, _ = f.GetDuration("timeout")
	}
	if f.Changed("history") {
		cfg.History.Enabled, _ = f.GetBool("history")
	}
	if f.Changed("history-db") {
		cfg.History.Path, _ = f.GetString("history-db")
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Build the selected targets
func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	platform, _ := f.GetString("platform")
	arch, _ := f.GetString("arch")
	all, _ := f.GetBool("all")
	verbose, _ := f.GetBool("verbose")
	doPublish, _ := f.GetBool("publish")
	metricsFile, _ := f.GetString("metrics-file")

	o := core.NewOrchestrator(cfg, core.ExecRunner{})
	o.Metrics = telemetry.NewCollector(metricsFile != "")

	if cfg.History.Enabled {
		store, err := core.NewStore(cfg.History.Path)
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.History.Path).Msg("History disabled")
		} else {
			defer store.Close()
			o.Store = store
		}
	}
	if doPublish {
		reg, err := buildPublishers(cfg)
		if err != nil {
			return err
		}
		if reg.Len() == 0 {
			log.Warn().Msg("--publish given but no publisher is configured")
		}
		retry := publish.DefaultRetryConfig()
		retry.Attempts = cfg.Publish.Attempts
		o.Uploader = &publish.Uploader{Registry: reg, Retry: retry, Metrics: o.Metrics}
	}

	report, err := o.Run(cmd.Context(), core.RunRequest{
		Selection: core.SelectionRequest{Platform: platform, Arch: arch, All: all},
		Verbose:   verbose,
	})
	if report != nil {
		printSummary(cmd.OutOrStdout(), report)
	}
	if metricsFile != "" {
		if werr := o.Metrics.WriteTextfile(metricsFile); werr != nil {
			log.Warn().Err(werr).Msg("Failed to write metrics")
		}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("interrupted: %w", err)
		}
		return err
	}
	return nil
}

// Resolve the publisher registry from config
func buildPublishers(cfg core.Config) (*publish.Registry, error) {
	reg := publish.NewRegistry()
	if cfg.Publish.SFTP != nil {
		p, err := publish.NewSFTP(*cfg.Publish.SFTP)
		if err != nil {
			return nil, fmt.Errorf("sftp publisher: %w", err)
		}
		reg.Register(p)
	}
	if cfg.Publish.S3 != nil {
		reg.Register(publish.NewS3(*cfg.Publish.S3))
	}
	return reg, nil
}

// Setup the logger
func setupLogger() {
	level := zerolog.InfoLevel
	zerolog.TimeFieldFormat = time.RFC3339Nano
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	zerolog.SetGlobalLevel(level)
}

// Main entry point
func main() {
	setupLogger()
	root := newRootCmd()
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	root.SetContext(ctx)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "xbuild:", err)
		cancel()
		os.Exit(1)
	}
}
