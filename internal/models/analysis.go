package models

import (
	"fmt"
	"time"
)

// Prediction direction values the model is allowed to return.
const (
	PredictionUp       = "up"
	PredictionDown     = "down"
	PredictionSideways = "sideways"
)

// Confidence bands derived from the numeric confidence score.
const (
	ConfidenceHigh   = "high"   // score >= 70
	ConfidenceMedium = "medium" // 40 <= score < 70
	ConfidenceLow    = "low"    // score < 40
)

// ConfidenceLevel maps a numeric confidence score to its qualitative band.
func ConfidenceLevel(score int) string {
	switch {
	case score >= 70:
		return ConfidenceHigh
	case score >= 40:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// NewsSource is a news citation the model claims to have used.
type NewsSource struct {
	Title  string `json:"title"`
	URL    string `json:"url"`
	Source string `json:"source"`
	Date   string `json:"date"`
}

// AgentAnalysis is the validated model output for one ticker.
// Prediction and Confidence are enforced by the analyzer; out-of-range
// values are rejected, never coerced.
type AgentAnalysis struct {
	Prediction  string       `json:"prediction" validate:"required,oneof=up down sideways"`
	Confidence  int          `json:"confidence" validate:"gte=0,lte=100"`
	SummaryES   string       `json:"summary_es"`
	SummaryEN   string       `json:"summary_en"`
	Highlights  []string     `json:"highlights" validate:"max=7"`
	ReasoningES string       `json:"reasoning_es"`
	ReasoningEN string       `json:"reasoning_en"`
	NewsSources []NewsSource `json:"news_sources"`
}

// WeeklyAnalysis is the persisted analysis record. At most one exists
// per (ticker, week start) pair; runs overwrite it via upsert and it is
// shared across every user watching the ticker.
type WeeklyAnalysis struct {
	ID        string `json:"id"`
	Ticker    string `json:"ticker" badgerhold:"index"`
	WeekStart string `json:"week_start" badgerhold:"index"` // YYYY-MM-DD (Monday)

	PriceCurrent   float64 `json:"price_current"`
	PriceWeekAgo   float64 `json:"price_week_ago"`
	PriceChangePct float64 `json:"price_change_pct"`

	PredictedDirection string `json:"predicted_direction"`
	ConfidenceScore    int    `json:"confidence_score"`
	ConfidenceLevel    string `json:"confidence_level"`

	SummaryES   string       `json:"summary_es"`
	SummaryEN   string       `json:"summary_en"`
	Highlights  []string     `json:"highlights"`
	ReasoningES string       `json:"reasoning_es"`
	ReasoningEN string       `json:"reasoning_en"`
	NewsSources []NewsSource `json:"news_sources"`

	GeneratedAt time.Time `json:"generated_at"`
}

// Key returns the upsert key guaranteeing at most one record per
// (ticker, week start) pair.
func (a *WeeklyAnalysis) Key() string {
	return AnalysisKey(a.Ticker, a.WeekStart)
}

// AnalysisKey builds the composite storage key for a ticker and week.
func AnalysisKey(ticker, weekStart string) string {
	return fmt.Sprintf("%s|%s", ticker, weekStart)
}

// AnalysisRun is the persisted audit record for one orchestrator
// invocation. Created with zero counters before the ticker loop and
// finalized once after it. Never deleted.
type AnalysisRun struct {
	ID                 string `json:"id"`
	WeekStart          string `json:"week_start" badgerhold:"index"`
	TotalTickers       int    `json:"total_tickers"`
	SuccessfulAnalyses int    `json:"successful_analyses"`
	FailedAnalyses     int    `json:"failed_analyses"`
	SkippedAnalyses    int    `json:"skipped_analyses"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`

	DurationSeconds  int     `json:"duration_seconds"`
	APICalls         int     `json:"api_calls"`
	InputTokens      int64   `json:"input_tokens"`
	OutputTokens     int64   `json:"output_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// Ticker run outcome tags.
const (
	RunStatusSuccess = "success"
	RunStatusSkipped = "skipped"
	RunStatusError   = "error"
)

// TickerResult is the in-memory outcome for one ticker within a run.
// Only aggregate counts survive into the persisted AnalysisRun.
type TickerResult struct {
	Ticker string `json:"ticker"`
	Status string `json:"status"` // success, skipped, error
	Reason string `json:"reason,omitempty"`
}

// RunResult is the structural summary an orchestrator invocation
// returns to its caller.
type RunResult struct {
	WeekStart  string         `json:"week_start"`
	Results    []TickerResult `json:"results"`
	Successful int            `json:"successful"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	DurationMs int64          `json:"duration_ms"`
}

// WatchlistEntry is one tracked ticker for one user.
type WatchlistEntry struct {
	ID      string    `json:"id"`
	UserID  string    `json:"user_id" badgerhold:"index"`
	Ticker  string    `json:"ticker" badgerhold:"index"`
	AddedAt time.Time `json:"added_at"`
}
