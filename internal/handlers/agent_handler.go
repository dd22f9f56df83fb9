package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/semana/internal/models"
	"github.com/ternarybob/semana/internal/services/scheduler"
)

// AnalysisTrigger starts analysis runs, either over the stored
// watchlist union or an explicit ticker list.
type AnalysisTrigger interface {
	RunAnalysis(ctx context.Context) (*models.RunResult, error)
	RunAnalysisTickers(ctx context.Context, tickers []string) (*models.RunResult, error)
}

// AgentHandler handles analysis run trigger HTTP requests
type AgentHandler struct {
	trigger    AnalysisTrigger
	cronSecret string
	logger     arbor.ILogger
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(trigger AnalysisTrigger, cronSecret string, logger arbor.ILogger) *AgentHandler {
	return &AgentHandler{
		trigger:    trigger,
		cronSecret: cronSecret,
		logger:     logger,
	}
}

// RunHandler routes /api/agent/run.
// POST triggers a run for the caller's tickers (or the full watchlist
// when the body names none). GET is the external cron entry point and
// requires the bearer secret.
func (h *AgentHandler) RunHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.manualRun(w, r)
	case http.MethodGet:
		h.cronRun(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type runRequest struct {
	Tickers []string `json:"tickers"`
}

func (h *AgentHandler) manualRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	tickers := make([]string, 0, len(req.Tickers))
	for _, t := range req.Tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t != "" {
			tickers = append(tickers, t)
		}
	}

	var result *models.RunResult
	var err error
	if len(tickers) > 0 {
		result, err = h.trigger.RunAnalysisTickers(r.Context(), tickers)
	} else {
		result, err = h.trigger.RunAnalysis(r.Context())
	}
	h.writeRunResponse(w, result, err)
}

func (h *AgentHandler) cronRun(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		h.logger.Warn().Msg("Cron trigger rejected, no cron secret configured")
		WriteError(w, http.StatusUnauthorized, "Cron trigger disabled")
		return
	}

	if r.Header.Get("Authorization") != "Bearer "+h.cronSecret {
		h.logger.Warn().Str("remote", r.RemoteAddr).Msg("Cron trigger rejected, invalid bearer token")
		WriteError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	result, err := h.trigger.RunAnalysis(r.Context())
	h.writeRunResponse(w, result, err)
}

func (h *AgentHandler) writeRunResponse(w http.ResponseWriter, result *models.RunResult, err error) {
	if err != nil {
		if errors.Is(err, scheduler.ErrRunInProgress) {
			WriteError(w, http.StatusConflict, "Analysis run already in progress")
			return
		}
		h.logger.Error().Err(err).Msg("Analysis run failed")
		WriteError(w, http.StatusInternalServerError, "Analysis run failed")
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "completed",
		"week_start":  result.WeekStart,
		"successful":  result.Successful,
		"failed":      result.Failed,
		"skipped":     result.Skipped,
		"duration_ms": result.DurationMs,
		"results":     result.Results,
	})
}
