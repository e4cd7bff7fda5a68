package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/crimson-sun/sentrylog/internal/config"
	"github.com/crimson-sun/sentrylog/internal/logging"
	"github.com/crimson-sun/sentrylog/internal/pipeline"
	"github.com/crimson-sun/sentrylog/internal/reporter/multi"
	sentryreporter "github.com/crimson-sun/sentrylog/internal/reporter/sentry"
	"github.com/crimson-sun/sentrylog/internal/reporter/stdout"
	"github.com/crimson-sun/sentrylog/internal/source"
	"github.com/crimson-sun/sentrylog/pkg/sentrylog"
	"github.com/crimson-sun/sentrylog/pkg/sentrylog/logrushook"

	// Register source implementations.
	_ "github.com/crimson-sun/sentrylog/internal/source/ndjson"
)

type flags struct {
	configPath       string
	dsn              string
	environment      string
	levels           string
	logrusLevels     bool
	silent           bool
	noAutoClearScope bool
	dryRun           bool
	tee              bool
	pretty           bool
	levelKey         string
	logLevel         string
	logJSON          bool
	flushTimeout     time.Duration
	sourceProvider   string
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "sentrylog [file]",
		Short: "Forward NDJSON log records to Sentry",
		Long: `Reads newline-delimited JSON log records from a file or stdin and reports
each one to Sentry: error and fatal records as exceptions, everything else as
messages. Gzip input is detected automatically.`,
		Version:       "0.1.0",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "-"
			if len(args) == 1 {
				path = args[0]
			}
			return run(cmd, f, path)
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.configPath, "config", "c", "", "YAML config file")
	fl.StringVar(&f.dsn, "dsn", "", "Sentry DSN (default $SENTRY_DSN)")
	fl.StringVar(&f.environment, "environment", "", "Sentry environment (default $SENTRY_ENVIRONMENT, $APP_ENV or production)")
	fl.StringVar(&f.levels, "levels", "", "level overlay, e.g. warn=info,error=fatal")
	fl.BoolVar(&f.logrusLevels, "logrus-levels", false, "add mappings for logrus level names")
	fl.BoolVar(&f.silent, "silent", false, "read and translate records without reporting them")
	fl.BoolVar(&f.noAutoClearScope, "no-auto-clear-scope", false, "let tags, extras and user carry over between records")
	fl.BoolVar(&f.dryRun, "dry-run", false, "print captures to stdout instead of sending them")
	fl.BoolVar(&f.tee, "tee", false, "send captures and also print them to stdout")
	fl.BoolVar(&f.pretty, "pretty", false, "indent printed captures")
	fl.StringVar(&f.levelKey, "level-key", "", "field holding the record's level (default level)")
	fl.StringVar(&f.logLevel, "log-level", "", "diagnostic log level: debug, info, warn, error")
	fl.BoolVar(&f.logJSON, "log-json", false, "emit diagnostics as JSON")
	fl.DurationVar(&f.flushTimeout, "flush-timeout", 0, "how long shutdown waits for pending reports (default 5s)")
	fl.StringVar(&f.sourceProvider, "source", "ndjson", "input format")
	cmd.MarkFlagsMutuallyExclusive("dry-run", "tee")

	return cmd
}

func run(cmd *cobra.Command, f *flags, path string) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, f, &cfg); err != nil {
		return err
	}
	logging.Init(cfg.Log.JSON, logging.ParseLevel(cfg.Log.Level))

	ctor, err := source.Get(f.sourceProvider)
	if err != nil {
		return err
	}

	opts, err := transportOptions(f, cfg, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	t, err := sentrylog.New(opts...)
	if err != nil {
		return err
	}

	p := pipeline.New(ctor(), t)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			fmt.Fprintf(os.Stderr, "\nreceived %v, shutting down...\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("sentrylog: starting", "source", f.sourceProvider, "path", path,
		"environment", cfg.Sentry.Environment, "silent", cfg.Transport.Silent)

	stats, streamErr := p.Stream(ctx, source.Config{
		Provider: f.sourceProvider,
		Path:     path,
		LevelKey: cfg.Transport.LevelKey,
	})
	if errors.Is(streamErr, context.Canceled) {
		streamErr = nil
	}

	// Flush even after cancellation.
	closeErr := p.Close(context.Background())
	slog.Info("sentrylog: done", "records", stats.Records, "messages", stats.Messages,
		"exceptions", stats.Exceptions, "suppressed", stats.Suppressed)

	return errors.Join(streamErr, closeErr)
}

// applyFlags overrides config values with flags set on the command line.
func applyFlags(cmd *cobra.Command, f *flags, cfg *config.Config) error {
	changed := cmd.Flags().Changed
	if changed("dsn") {
		cfg.Sentry.DSN = f.dsn
	}
	if changed("environment") {
		cfg.Sentry.Environment = f.environment
	}
	if changed("flush-timeout") {
		cfg.Sentry.FlushTimeout.Duration = f.flushTimeout
	}
	if changed("levels") {
		levels, err := config.ParseLevels(f.levels)
		if err != nil {
			return fmt.Errorf("--levels: %w", err)
		}
		if cfg.Transport.Levels == nil {
			cfg.Transport.Levels = make(map[string]string, len(levels))
		}
		for k, v := range levels {
			cfg.Transport.Levels[k] = string(v)
		}
	}
	if changed("silent") {
		cfg.Transport.Silent = f.silent
	}
	if changed("no-auto-clear-scope") {
		on := !f.noAutoClearScope
		cfg.Transport.AutoClearScope = &on
	}
	if changed("level-key") {
		cfg.Transport.LevelKey = f.levelKey
	}
	if changed("log-level") {
		cfg.Log.Level = f.logLevel
	}
	if changed("log-json") {
		cfg.Log.JSON = f.logJSON
	}
	return nil
}

func transportOptions(f *flags, cfg config.Config, out io.Writer) ([]sentrylog.Option, error) {
	opts := []sentrylog.Option{
		sentrylog.WithAutoClearScope(cfg.Transport.AutoClear()),
		sentrylog.WithSilent(cfg.Transport.Silent),
		sentrylog.WithLevelKey(cfg.Transport.LevelKey),
		sentrylog.WithFlushTimeout(cfg.Sentry.FlushTimeout.Duration),
	}
	if f.logrusLevels {
		opts = append(opts, sentrylog.WithLevels(logrushook.Levels()))
	}
	// Explicit overlays go last so they win over presets.
	if levels := cfg.Transport.LevelMap(); levels != nil {
		opts = append(opts, sentrylog.WithLevels(levels))
	}

	switch {
	case f.dryRun:
		opts = append(opts, sentrylog.WithReporter(stdout.New(out, f.pretty)))
	case f.tee:
		if err := sentry.Init(clientOptions(cfg.Sentry)); err != nil {
			return nil, fmt.Errorf("sentry init: %w", err)
		}
		rep := multi.New(
			sentryreporter.New(sentry.CurrentHub(), sentryreporter.WithFlushTimeout(cfg.Sentry.FlushTimeout.Duration)),
			stdout.New(out, f.pretty),
		)
		opts = append(opts, sentrylog.WithReporter(rep))
	default:
		opts = append(opts, sentrylog.WithClientOptions(clientOptions(cfg.Sentry)))
	}
	return opts, nil
}

func clientOptions(s config.SentryConfig) sentry.ClientOptions {
	return sentry.ClientOptions{
		Dsn:            s.DSN,
		ServerName:     s.ServerName,
		Environment:    s.Environment,
		Debug:          s.Debug,
		SampleRate:     s.SampleRate,
		MaxBreadcrumbs: s.MaxBreadcrumbs,
	}
}
