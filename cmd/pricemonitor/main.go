package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	cli "github.com/jawher/mow.cli"
	"github.com/joho/godotenv"

	"EasyPriceMonitor/internal/app"
	"EasyPriceMonitor/internal/config"
	"EasyPriceMonitor/internal/domain"
	"EasyPriceMonitor/internal/logging"
)

func main() {
	_ = godotenv.Load() // load .env if present; not fatal if missing

	monitor := cli.App("pricemonitor", "Easy Price Monitor: track shop prices and alert on drops")
	monitor.Spec = "[OPTIONS] [HANDLERS...]"

	var (
		configPath = monitor.StringOpt("c config", "", "config file (default config.yaml, or $"+config.PathEnv+")")
		handlers   = monitor.StringsOpt("handlers", nil, "storage handlers to run: csv, mysql, postgres, sqlite (repeatable or comma separated)")
		extra      = monitor.StringsArg("HANDLERS", nil, "additional storage handlers")
		interval   = monitor.StringOpt("i interval", "", "repeat the run on this interval, e.g. 6h (default: run once)")
		logLevel   = monitor.StringOpt("log-level", "", "debug, info, warn or error")
	)

	exitCode := 0
	monitor.Action = func() {
		exitCode = run(options{
			configPath: *configPath,
			handlers:   append(append([]string(nil), *handlers...), *extra...),
			interval:   *interval,
			logLevel:   *logLevel,
		})
	}

	if err := monitor.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	os.Exit(exitCode)
}

type options struct {
	configPath string
	handlers   []string
	interval   string
	logLevel   string
}

func run(opts options) int {
	path, explicit := config.Path(opts.configPath)
	cfg, err := config.Load(path, explicit)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	if err := applyOptions(&cfg, opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	logger := logging.New(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("application setup failed", "error", err)
		return 1
	}

	if err := application.Serve(ctx); err != nil {
		logger.Error("application stopped", "error", err)
		return 1
	}
	return 0
}

func applyOptions(cfg *config.Config, opts options) error {
	if names := config.NormalizeHandlers(opts.handlers); len(names) > 0 {
		cfg.Handlers = names
	}
	if v := strings.TrimSpace(opts.interval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return &domain.ConfigError{Field: "--interval", Reason: fmt.Sprintf("invalid duration %q", v)}
		}
		cfg.Scheduler.Interval = d
	}
	if v := strings.TrimSpace(opts.logLevel); v != "" {
		if _, err := logging.ParseLevel(v); err != nil {
			return &domain.ConfigError{Field: "--log-level", Reason: err.Error()}
		}
		cfg.Logging.Level = v
	}
	return cfg.Validate()
}
