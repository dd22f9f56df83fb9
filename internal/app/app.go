package app

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/semana/internal/agent"
	"github.com/ternarybob/semana/internal/common"
	"github.com/ternarybob/semana/internal/finnhub"
	"github.com/ternarybob/semana/internal/handlers"
	"github.com/ternarybob/semana/internal/interfaces"
	"github.com/ternarybob/semana/internal/marketdata"
	"github.com/ternarybob/semana/internal/services/mailer"
	"github.com/ternarybob/semana/internal/services/scheduler"
	"github.com/ternarybob/semana/internal/storage/badger"
)

// App owns every service and handler the server serves. Construction
// order follows the dependency chain: storage, clients, pipeline,
// mailer, scheduler, handlers.
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager

	Orchestrator *agent.Orchestrator
	Mailer       *mailer.Service
	Scheduler    *scheduler.Service

	AgentHandler     *handlers.AgentHandler
	WatchlistHandler *handlers.WatchlistHandler
	AnalysisHandler  *handlers.AnalysisHandler
	MailerHandler    *handlers.MailerHandler
	StatusHandler    *handlers.StatusHandler
}

// New builds the full application from configuration
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	storageManager, err := badger.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	quotes := marketdata.NewClient(
		marketdata.WithBaseURL(cfg.Quotes.BaseURL),
		marketdata.WithHTTPClient(&http.Client{Timeout: parseTimeout(cfg.Quotes.Timeout)}),
		marketdata.WithLogger(logger),
	)

	fundamentals := finnhub.NewClient(cfg.Finnhub.APIKey,
		finnhub.WithBaseURL(cfg.Finnhub.BaseURL),
		finnhub.WithHTTPClient(&http.Client{Timeout: parseTimeout(cfg.Finnhub.Timeout)}),
		finnhub.WithRateLimit(cfg.Finnhub.RateLimit),
		finnhub.WithLogger(logger),
	)

	analyzer, err := agent.NewAnalyzer(&cfg.Anthropic, logger)
	if err != nil {
		storageManager.Close()
		return nil, fmt.Errorf("failed to initialize analyzer: %w", err)
	}

	builder := agent.NewContextBuilder(quotes, fundamentals, logger)
	orchestrator := agent.NewOrchestrator(storageManager, builder, analyzer, fundamentals, &cfg.Agent, logger)

	mailerService := mailer.NewService(storageManager.KeyValueStorage(), logger)
	schedulerService := scheduler.NewService(orchestrator, mailerService, storageManager, cfg, logger)

	a := &App{
		Config:         cfg,
		Logger:         logger,
		StorageManager: storageManager,
		Orchestrator:   orchestrator,
		Mailer:         mailerService,
		Scheduler:      schedulerService,
	}

	a.AgentHandler = handlers.NewAgentHandler(schedulerService, cfg.Server.CronSecret, logger)
	a.WatchlistHandler = handlers.NewWatchlistHandler(storageManager.WatchlistStorage(), logger)
	a.AnalysisHandler = handlers.NewAnalysisHandler(storageManager.AnalysisStorage(), storageManager.RunStorage(), logger)
	a.MailerHandler = handlers.NewMailerHandler(mailerService, logger)
	a.StatusHandler = handlers.NewStatusHandler(storageManager, schedulerService, logger)

	return a, nil
}

// Close releases application resources in reverse construction order
func (a *App) Close() error {
	if a.Scheduler != nil {
		if err := a.Scheduler.Stop(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to stop scheduler")
		}
	}

	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			return fmt.Errorf("failed to close storage: %w", err)
		}
	}

	return nil
}

func parseTimeout(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
