package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/semana/internal/common"
	"github.com/ternarybob/semana/internal/interfaces"
	"github.com/ternarybob/semana/internal/models"
	"github.com/ternarybob/semana/internal/services/mailer"
)

// ErrRunInProgress is returned when a trigger arrives while an
// analysis run is still executing.
var ErrRunInProgress = errors.New("analysis run already in progress")

// AnalysisRunner executes one weekly analysis pass over a ticker list.
type AnalysisRunner interface {
	Run(ctx context.Context, tickers []string) (*models.RunResult, error)
}

// ReportSender emails weekly digests after a successful run.
type ReportSender interface {
	SendWeeklyReports(ctx context.Context, storage interfaces.StorageManager) (*mailer.ReportStats, error)
}

// Service triggers the weekly analysis run on a cron schedule and fires
// report emails afterwards. At most one analysis run executes at a time;
// overlapping triggers are rejected, not queued.
type Service struct {
	runner  AnalysisRunner
	reports ReportSender
	storage interfaces.StorageManager
	cfg     *common.Config
	cron    *cron.Cron
	logger  arbor.ILogger

	mu           sync.Mutex // Protects isProcessing
	isProcessing bool
	running      bool

	statusMu   sync.Mutex
	lastRun    *time.Time
	lastResult *models.RunResult
	lastError  string
}

// Status is a snapshot of scheduler state for the status endpoint.
type Status struct {
	Enabled    bool              `json:"enabled"`
	Running    bool              `json:"running"`
	Schedule   string            `json:"schedule"`
	Processing bool              `json:"processing"`
	LastRun    *time.Time        `json:"last_run,omitempty"`
	LastResult *models.RunResult `json:"last_result,omitempty"`
	LastError  string            `json:"last_error,omitempty"`
}

// NewService creates a new scheduler service
func NewService(runner AnalysisRunner, reports ReportSender, storage interfaces.StorageManager, cfg *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		runner:  runner,
		reports: reports,
		storage: storage,
		cfg:     cfg,
		cron:    cron.New(),
		logger:  logger,
	}
}

// Start registers the weekly analysis job and begins the cron loop
func (s *Service) Start() error {
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	if !s.cfg.Scheduler.Enabled {
		s.logger.Info().Msg("Scheduler disabled by configuration")
		return nil
	}

	schedule := s.cfg.Scheduler.Schedule
	if schedule == "" {
		schedule = "0 20 * * 0" // Default: Sunday 20:00 UTC
	}

	if _, err := s.cron.AddFunc(schedule, s.runScheduledTask); err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", schedule).
		Msg("Scheduler started")

	return nil
}

// Stop halts the scheduler. A run already in flight finishes on its own.
func (s *Service) Stop() error {
	if !s.running {
		return nil
	}

	s.cron.Stop()
	s.running = false

	s.logger.Info().Msg("Scheduler stopped")
	return nil
}

// IsRunning returns true if scheduler is active
func (s *Service) IsRunning() bool {
	return s.running
}

// Status returns a snapshot of the scheduler state
func (s *Service) Status() Status {
	s.mu.Lock()
	processing := s.isProcessing
	s.mu.Unlock()

	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	return Status{
		Enabled:    s.cfg.Scheduler.Enabled,
		Running:    s.running,
		Schedule:   s.cfg.Scheduler.Schedule,
		Processing: processing,
		LastRun:    s.lastRun,
		LastResult: s.lastResult,
		LastError:  s.lastError,
	}
}

// TriggerNow starts an analysis run in the background. Returns an error
// if a run is already in progress.
func (s *Service) TriggerNow() error {
	s.mu.Lock()
	busy := s.isProcessing
	s.mu.Unlock()

	if busy {
		return fmt.Errorf("analysis run already in progress")
	}

	common.SafeGo(s.logger, "manual-analysis-trigger", func() {
		if _, err := s.RunAnalysis(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("Manual analysis trigger failed")
		}
	})

	return nil
}

// RunAnalysis executes one analysis pass over the union of all watched
// tickers and, when at least one analysis succeeded, sends the weekly
// report emails. Rejects overlapping invocations.
func (s *Service) RunAnalysis(ctx context.Context) (*models.RunResult, error) {
	tickers, err := s.storage.WatchlistStorage().AllTickers()
	if err != nil {
		s.recordOutcome(nil, err)
		return nil, fmt.Errorf("failed to load watched tickers: %w", err)
	}

	if len(tickers) == 0 {
		s.logger.Info().Msg("No watched tickers, skipping analysis run")
		result := &models.RunResult{}
		s.recordOutcome(result, nil)
		return result, nil
	}

	return s.RunAnalysisTickers(ctx, tickers)
}

// RunAnalysisTickers runs the analysis for an explicit ticker list,
// used by the manual trigger endpoint. Rejects overlapping invocations.
func (s *Service) RunAnalysisTickers(ctx context.Context, tickers []string) (*models.RunResult, error) {
	s.mu.Lock()
	if s.isProcessing {
		s.mu.Unlock()
		return nil, ErrRunInProgress
	}
	s.isProcessing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isProcessing = false
		s.mu.Unlock()
	}()

	s.logger.Info().
		Int("tickers", len(tickers)).
		Msg("Starting analysis run")

	result, err := s.runner.Run(ctx, tickers)
	s.recordOutcome(result, err)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Int("skipped", result.Skipped).
		Int64("duration_ms", result.DurationMs).
		Msg("Analysis run complete")

	if result.Successful > 0 && s.cfg.Mailer.Enabled {
		// Reports go out in the background so a slow SMTP server
		// cannot block the trigger response.
		common.SafeGo(s.logger, "weekly-report-dispatch", func() {
			if _, err := s.reports.SendWeeklyReports(context.Background(), s.storage); err != nil {
				s.logger.Error().Err(err).Msg("Weekly report dispatch failed")
			}
		})
	}

	return result, nil
}

// runScheduledTask is the cron entry point
func (s *Service) runScheduledTask() {
	// Panic recovery to prevent service crash
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("PANIC RECOVERED in scheduled analysis")
		}
	}()

	if _, err := s.RunAnalysis(context.Background()); err != nil {
		s.logger.Error().Err(err).Msg("Scheduled analysis run failed")
	}
}

func (s *Service) recordOutcome(result *models.RunResult, err error) {
	now := time.Now().UTC()

	s.statusMu.Lock()
	defer s.statusMu.Unlock()

	s.lastRun = &now
	s.lastResult = result
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
}
