package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/semana/internal/common"
	"github.com/ternarybob/semana/internal/interfaces"
	"github.com/ternarybob/semana/internal/models"
)

const defaultRunListLimit = 20

// AnalysisHandler serves stored analyses and run audit records
type AnalysisHandler struct {
	analyses interfaces.AnalysisStorage
	runs     interfaces.RunStorage
	logger   arbor.ILogger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(analyses interfaces.AnalysisStorage, runs interfaces.RunStorage, logger arbor.ILogger) *AnalysisHandler {
	return &AnalysisHandler{
		analyses: analyses,
		runs:     runs,
		logger:   logger,
	}
}

// ListAnalysesHandler handles GET /api/analyses?week=YYYY-MM-DD&ticker=SYM.
// Week defaults to the current analysis week. With a ticker the single
// matching record is returned.
func (h *AnalysisHandler) ListAnalysesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	weekStart := strings.TrimSpace(r.URL.Query().Get("week"))
	if weekStart == "" {
		weekStart = common.WeekStart(time.Now().UTC()).Format(common.DateFormat)
	} else if _, err := time.Parse(common.DateFormat, weekStart); err != nil {
		WriteError(w, http.StatusBadRequest, "week must be YYYY-MM-DD")
		return
	}

	if ticker := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("ticker"))); ticker != "" {
		analysis, err := h.analyses.GetByTickerWeek(ticker, weekStart)
		if err != nil {
			if errors.Is(err, interfaces.ErrNotFound) {
				WriteError(w, http.StatusNotFound, "No analysis for ticker and week")
				return
			}
			h.logger.Error().Err(err).Str("ticker", ticker).Msg("Failed to get analysis")
			WriteError(w, http.StatusInternalServerError, "Failed to get analysis")
			return
		}
		WriteJSON(w, http.StatusOK, analysis)
		return
	}

	analyses, err := h.analyses.ListByWeek(weekStart)
	if err != nil {
		h.logger.Error().Err(err).Str("week_start", weekStart).Msg("Failed to list analyses")
		WriteError(w, http.StatusInternalServerError, "Failed to list analyses")
		return
	}

	if analyses == nil {
		analyses = []*models.WeeklyAnalysis{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"week_start": weekStart,
		"count":      len(analyses),
		"analyses":   analyses,
	})
}

// ListRunsHandler handles GET /api/runs?limit=N, newest first
func (h *AnalysisHandler) ListRunsHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	limit := defaultRunListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}

	runs, err := h.runs.List(limit)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list runs")
		WriteError(w, http.StatusInternalServerError, "Failed to list runs")
		return
	}

	if runs == nil {
		runs = []*models.AnalysisRun{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(runs),
		"runs":  runs,
	})
}
