package agent

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/semana/internal/common"
	"github.com/ternarybob/semana/internal/interfaces"
	"github.com/ternarybob/semana/internal/models"
)

// apiCallsPerTicker is the upstream call budget per ticker: price,
// company news, financials, earnings.
const apiCallsPerTicker = 4

// TickerAnalyzer produces a validated analysis for one ticker context.
type TickerAnalyzer interface {
	Analyze(ctx context.Context, tickerCtx *models.TickerContext) (*AnalyzerResult, error)
}

// TickerContextBuilder assembles the per-ticker context.
type TickerContextBuilder interface {
	Build(ctx context.Context, ticker, weekStart string, marketNews []models.NewsArticle) (*models.TickerContext, error)
}

// MarketNewsSource supplies the run-wide shared macro news.
type MarketNewsSource interface {
	GetMarketNews(ctx context.Context) ([]models.NewsArticle, error)
}

// Orchestrator drives the weekly analysis pipeline: one audit record
// per run, shared market news fetched once, then a strictly sequential
// ticker loop with freshness skips, per-ticker failure isolation, and
// pacing against the upstream rate budget.
type Orchestrator struct {
	storage  interfaces.StorageManager
	builder  TickerContextBuilder
	analyzer TickerAnalyzer
	news     MarketNewsSource
	cfg      *common.AgentConfig
	logger   arbor.ILogger
	limiter  *rate.Limiter
	now      func() time.Time
}

// NewOrchestrator wires the pipeline components together. Pacing uses
// a one-token limiter refilled at the configured interval, which keeps
// the per-minute upstream call volume identical to a fixed sleep.
func NewOrchestrator(
	storage interfaces.StorageManager,
	builder TickerContextBuilder,
	analyzer TickerAnalyzer,
	news MarketNewsSource,
	cfg *common.AgentConfig,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		storage:  storage,
		builder:  builder,
		analyzer: analyzer,
		news:     news,
		cfg:      cfg,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Every(cfg.PaceIntervalDuration()), 1),
		now:      time.Now,
	}
}

// WithClock overrides the orchestrator clock, for tests.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Run executes the pipeline for the given tickers, in caller order.
// The only run-fatal condition is failing to create the audit record;
// every per-ticker failure is converted into an error result and the
// loop continues.
func (o *Orchestrator) Run(ctx context.Context, tickers []string) (*models.RunResult, error) {
	startTime := o.now()
	weekStart := common.WeekStart(startTime).Format(common.DateFormat)

	run := &models.AnalysisRun{
		ID:           common.NewRunID(),
		WeekStart:    weekStart,
		TotalTickers: len(tickers),
		StartedAt:    startTime.UTC(),
	}
	if err := o.storage.RunStorage().Insert(run); err != nil {
		return nil, fmt.Errorf("failed to create run audit record: %w", err)
	}

	o.logger.Info().
		Str("run_id", run.ID).
		Str("week_start", weekStart).
		Int("tickers", len(tickers)).
		Msg("Starting analysis run")

	// Shared macro context, fetched once for the whole run. Failure
	// degrades every ticker's context but never aborts the run.
	var marketNews []models.NewsArticle
	if news, err := o.news.GetMarketNews(ctx); err != nil {
		o.logger.Warn().
			Err(err).
			Msg("Market news unavailable, continuing without macro context")
	} else {
		marketNews = news
	}

	results := make([]models.TickerResult, 0, len(tickers))
	var totalInputTokens, totalOutputTokens int64

	for _, ticker := range tickers {
		if err := o.limiter.Wait(ctx); err != nil {
			o.logger.Warn().
				Str("ticker", ticker).
				Msg("Run cancelled, stopping ticker loop")
			break
		}
		results = append(results, o.processTicker(ctx, ticker, weekStart, marketNews, &totalInputTokens, &totalOutputTokens))
	}

	durationMs := o.now().Sub(startTime).Milliseconds()
	var successful, failed, skipped int
	for _, r := range results {
		switch r.Status {
		case models.RunStatusSuccess:
			successful++
		case models.RunStatusError:
			failed++
		case models.RunStatusSkipped:
			skipped++
		}
	}

	estimatedCost := float64(totalInputTokens)*o.cfg.CostPerMInputTokens/1_000_000 +
		float64(totalOutputTokens)*o.cfg.CostPerMOutputTokens/1_000_000

	completedAt := o.now().UTC()
	run.SuccessfulAnalyses = successful
	run.FailedAnalyses = failed
	run.SkippedAnalyses = skipped
	run.CompletedAt = &completedAt
	run.DurationSeconds = int(math.Round(float64(durationMs) / 1000))
	run.APICalls = len(tickers) * apiCallsPerTicker
	run.InputTokens = totalInputTokens
	run.OutputTokens = totalOutputTokens
	run.EstimatedCostUSD = math.Round(estimatedCost*1_000_000) / 1_000_000
	if err := o.storage.RunStorage().Update(run); err != nil {
		o.logger.Error().
			Str("run_id", run.ID).
			Err(err).
			Msg("Failed to finalize run audit record")
	}

	o.logger.Info().
		Str("run_id", run.ID).
		Int("successful", successful).
		Int("failed", failed).
		Int("skipped", skipped).
		Int64("input_tokens", totalInputTokens).
		Int64("output_tokens", totalOutputTokens).
		Float64("estimated_cost_usd", run.EstimatedCostUSD).
		Msg("Analysis run completed")

	return &models.RunResult{
		WeekStart:  weekStart,
		Results:    results,
		Successful: successful,
		Failed:     failed,
		Skipped:    skipped,
		DurationMs: durationMs,
	}, nil
}

// processTicker runs the per-ticker state machine: freshness check,
// context build, prediction, persist. Any failure is converted into an
// error result here; nothing propagates to the run loop.
func (o *Orchestrator) processTicker(
	ctx context.Context,
	ticker, weekStart string,
	marketNews []models.NewsArticle,
	totalInputTokens, totalOutputTokens *int64,
) models.TickerResult {
	fresh, err := o.hasRecentAnalysis(ticker, weekStart)
	if err != nil {
		o.logger.Warn().
			Str("ticker", ticker).
			Err(err).
			Msg("Freshness check failed, regenerating")
	}
	if fresh {
		o.logger.Info().
			Str("ticker", ticker).
			Msg("Recent analysis exists, skipping")
		return models.TickerResult{Ticker: ticker, Status: models.RunStatusSkipped, Reason: "recent analysis exists"}
	}

	tickerCtx, err := o.builder.Build(ctx, ticker, weekStart, marketNews)
	if err != nil {
		o.logger.Error().
			Str("ticker", ticker).
			Err(err).
			Msg("Context build failed")
		return models.TickerResult{Ticker: ticker, Status: models.RunStatusError, Reason: err.Error()}
	}

	result, err := o.analyzer.Analyze(ctx, tickerCtx)
	if err != nil {
		o.logger.Error().
			Str("ticker", ticker).
			Err(err).
			Msg("Analysis failed")
		return models.TickerResult{Ticker: ticker, Status: models.RunStatusError, Reason: err.Error()}
	}
	*totalInputTokens += result.InputTokens
	*totalOutputTokens += result.OutputTokens

	analysis := result.Analysis
	record := &models.WeeklyAnalysis{
		ID:                 common.NewAnalysisID(),
		Ticker:             ticker,
		WeekStart:          weekStart,
		PriceCurrent:       tickerCtx.CurrentPrice,
		PriceWeekAgo:       tickerCtx.PriceWeekAgo,
		PriceChangePct:     tickerCtx.PriceChangePct,
		PredictedDirection: analysis.Prediction,
		ConfidenceScore:    analysis.Confidence,
		ConfidenceLevel:    models.ConfidenceLevel(analysis.Confidence),
		SummaryES:          analysis.SummaryES,
		SummaryEN:          analysis.SummaryEN,
		Highlights:         analysis.Highlights,
		ReasoningES:        analysis.ReasoningES,
		ReasoningEN:        analysis.ReasoningEN,
		NewsSources:        analysis.NewsSources,
		GeneratedAt:        o.now().UTC(),
	}
	if err := o.storage.AnalysisStorage().Upsert(record); err != nil {
		o.logger.Error().
			Str("ticker", ticker).
			Err(err).
			Msg("Persist failed")
		return models.TickerResult{Ticker: ticker, Status: models.RunStatusError, Reason: fmt.Sprintf("persist failed: %v", err)}
	}

	o.logger.Info().
		Str("ticker", ticker).
		Str("prediction", analysis.Prediction).
		Int("confidence", analysis.Confidence).
		Msg("Ticker analyzed")
	return models.TickerResult{Ticker: ticker, Status: models.RunStatusSuccess}
}

// hasRecentAnalysis reports whether a stored analysis for the pair is
// younger than the freshness threshold. A skip issues zero external
// calls for the ticker.
func (o *Orchestrator) hasRecentAnalysis(ticker, weekStart string) (bool, error) {
	record, err := o.storage.AnalysisStorage().GetByTickerWeek(ticker, weekStart)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	cutoff := o.now().UTC().AddDate(0, 0, -o.cfg.FreshnessDays)
	return !record.GeneratedAt.Before(cutoff), nil
}
