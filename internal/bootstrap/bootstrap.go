package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/teamply/intent-resolver/internal/config"
	"github.com/teamply/intent-resolver/internal/core/domain"
	"github.com/teamply/intent-resolver/internal/core/ports"
	"github.com/teamply/intent-resolver/internal/core/usecase"
	"github.com/teamply/intent-resolver/internal/infrastructure/llm/ollama"
	natsq "github.com/teamply/intent-resolver/internal/infrastructure/queue/nats"
	"github.com/teamply/intent-resolver/internal/infrastructure/resilience"
	sessionmem "github.com/teamply/intent-resolver/internal/infrastructure/session/memory"
	sessionpg "github.com/teamply/intent-resolver/internal/infrastructure/session/postgres"
	"github.com/teamply/intent-resolver/internal/observability/logging"
	"github.com/teamply/intent-resolver/internal/observability/metrics"
)

// sweeper is satisfied by both session store adapters.
type sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Sessions  ports.SessionStore
	ResolveUC *usecase.ResolveIntentUseCase
	Publisher ports.IntentEventPublisher
	Metrics   *metrics.ServerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger("intent-resolver", cfg.LogLevel)
	serverMetrics := metrics.NewServerMetrics("intent-resolver")
	executor := resilience.NewExecutor(resilience.DefaultPolicy())

	var (
		sessions ports.SessionStore
		sweep    sweeper
		db       *sql.DB
	)
	switch cfg.SessionBackend {
	case "postgres":
		var err error
		db, err = sessionpg.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		store := sessionpg.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		sessions, sweep = store, store
	default:
		store := sessionmem.NewStore(sessionmem.Options{})
		sessions, sweep = store, store
	}

	var publisher *natsq.Publisher
	if cfg.NATSEnabled {
		var err error
		publisher, err = natsq.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, natsq.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			if db != nil {
				_ = db.Close()
			}
			return nil, fmt.Errorf("init nats publisher: %w", err)
		}
	}

	completions := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, executor)
	resolveUC := usecase.NewResolveIntentUseCase(
		completions,
		sessions,
		domain.ResolverLimits{
			CompletionTimeout:  time.Duration(cfg.CompletionTimeoutSeconds) * time.Second,
			PromptHistoryTurns: cfg.PromptHistoryTurns,
		},
		logging.WithComponent(logger, "resolver"),
		serverMetrics,
	)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	go runSweepLoop(sweepCtx, sweep, sessions, time.Duration(cfg.SweepIntervalMinutes)*time.Minute, serverMetrics, logger)

	app := &App{
		Config:    cfg,
		Logger:    logger,
		Sessions:  sessions,
		ResolveUC: resolveUC,
		Metrics:   serverMetrics,
		closeFn: func() {
			stopSweep()
			if publisher != nil {
				publisher.Close()
			}
			if db != nil {
				_ = db.Close()
			}
		},
	}
	if publisher != nil {
		app.Publisher = publisher
	}
	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// runSweepLoop evicts stale contexts on a fixed interval, independent
// of request traffic, and samples the live-context gauge afterwards.
func runSweepLoop(ctx context.Context, sweep sweeper, sessions ports.SessionStore, interval time.Duration, m *metrics.ServerMetrics, logger *slog.Logger) {
	if interval <= 0 {
		interval = 60 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			evicted, err := sweep.Sweep(ctx)
			if err != nil {
				logger.Warn("session_sweep_failed", "error", err)
				continue
			}
			m.ObserveEvictions(evicted)
			if evicted > 0 {
				logger.Info("session_sweep", "evicted", evicted)
			}
			if stats, err := sessions.Stats(ctx); err == nil {
				m.ObserveLiveContexts(stats.TotalContexts)
			}
		}
	}
}
