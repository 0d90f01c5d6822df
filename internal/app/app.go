package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"EasyPriceMonitor/internal/alert"
	"EasyPriceMonitor/internal/config"
	"EasyPriceMonitor/internal/domain"
	"EasyPriceMonitor/internal/infrastructure/email"
	"EasyPriceMonitor/internal/infrastructure/scheduler"
	"EasyPriceMonitor/internal/infrastructure/shops"
	"EasyPriceMonitor/internal/infrastructure/storage"
	"EasyPriceMonitor/internal/infrastructure/telegram"
	"EasyPriceMonitor/internal/logging"
	"EasyPriceMonitor/internal/ports"
	"EasyPriceMonitor/internal/shop"
	"EasyPriceMonitor/internal/usecase"
)

const stopTimeout = 30 * time.Second

type handlerFactory func(ctx context.Context) (ports.PriceHandler, error)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	factories map[string]handlerFactory
	pipeline  *usecase.Pipeline
}

// New builds a runnable application instance from validated configuration.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	fetcher := shops.NewPageFetcher(cfg.HTTP.UserAgent, cfg.HTTP.Timeout)
	registry := shop.NewRegistry(
		shops.NewXKom(fetcher),
		shops.NewMediaExpert(fetcher),
	)
	baseLogger.Debug("shop plugins registered", "shops", registry.Names())
	source := shops.NewWatchlistSource(registry, cfg.Delay, baseLogger.With("component", "source"))

	notifiers, err := buildNotifiers(cfg, baseLogger)
	if err != nil {
		return nil, err
	}

	a := &Application{
		cfg:    cfg,
		logger: baseLogger.With("component", "app"),
		factories: map[string]handlerFactory{
			"csv": func(context.Context) (ports.PriceHandler, error) {
				return storage.OpenCSV(cfg.CSV.Path)
			},
			"mysql": func(ctx context.Context) (ports.PriceHandler, error) {
				return storage.OpenMySQL(ctx, cfg.MySQL)
			},
			"postgres": func(ctx context.Context) (ports.PriceHandler, error) {
				return storage.OpenPostgres(ctx, cfg.Postgres.DSN)
			},
			"sqlite": func(ctx context.Context) (ports.PriceHandler, error) {
				return storage.OpenSQLite(ctx, cfg.SQLite.Path)
			},
		},
	}

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		Watchlist: a.loadWatchlist,
		Source:    source,
		Handlers:  a.openHandlers,
		Evaluator: alert.NewEvaluator(cfg.Alerts),
		Notifiers: notifiers,
		Logger:    baseLogger.With("component", "pipeline"),
	})
	return a, nil
}

func buildNotifiers(cfg config.Config, baseLogger *slog.Logger) ([]ports.Notifier, error) {
	var notifiers []ports.Notifier

	if cfg.Email.Enabled() {
		n, err := email.NewNotifier(cfg.Email, email.NewSMTPSender(cfg.Email), baseLogger.With("component", "notifier.email"))
		if err != nil {
			return nil, fmt.Errorf("email notifier: %w", err)
		}
		notifiers = append(notifiers, n)
	}
	if cfg.Telegram.Enabled() {
		notifiers = append(notifiers, telegram.NewNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID))
	}
	return notifiers, nil
}

func (a *Application) loadWatchlist() ([]domain.Product, error) {
	return config.LoadWatchlist(a.cfg.Watchlist)
}

// openHandlers builds the selected handlers in order. Unknown names and
// handlers that fail to open are logged and skipped.
func (a *Application) openHandlers(ctx context.Context) ([]ports.PriceHandler, error) {
	var handlers []ports.PriceHandler
	for _, name := range a.cfg.Handlers {
		factory, ok := a.factories[name]
		if !ok {
			a.logger.Error("invalid handler", "handler", name)
			continue
		}
		h, err := factory(ctx)
		if err != nil {
			a.logger.Error("handler unavailable", "handler", name, "error", err)
			continue
		}
		handlers = append(handlers, h)
	}
	return handlers, nil
}

// RunOnce performs a single monitoring pass.
func (a *Application) RunOnce(ctx context.Context) (domain.RunReport, error) {
	return a.pipeline.Run(ctx, time.Now())
}

// Serve runs once when no interval is configured, otherwise it repeats the
// run on every interval until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	interval := a.cfg.Scheduler.Interval
	if interval <= 0 {
		_, err := a.RunOnce(ctx)
		return err
	}

	if _, err := a.loadWatchlist(); err != nil {
		return fmt.Errorf("load watchlist: %w", err)
	}

	sched := usecase.NewScheduler(scheduler.NewTickerScheduler(interval), a.pipeline, a.logger)
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("interval mode started", "interval", interval.String())

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop scheduler: %w", err)
	}
	a.logger.Info("interval mode stopped")
	return nil
}
