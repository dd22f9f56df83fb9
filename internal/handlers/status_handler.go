package handlers

import (
	"net/http"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/semana/internal/common"
	"github.com/ternarybob/semana/internal/interfaces"
	"github.com/ternarybob/semana/internal/services/scheduler"
)

// SchedulerStatusProvider exposes the scheduler state for the status endpoint.
type SchedulerStatusProvider interface {
	Status() scheduler.Status
}

// StatusHandler serves application status and health endpoints
type StatusHandler struct {
	storage   interfaces.StorageManager
	scheduler SchedulerStatusProvider
	startedAt time.Time
	logger    arbor.ILogger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(storage interfaces.StorageManager, sched SchedulerStatusProvider, logger arbor.ILogger) *StatusHandler {
	return &StatusHandler{
		storage:   storage,
		scheduler: sched,
		startedAt: time.Now().UTC(),
		logger:    logger,
	}
}

// HealthHandler handles GET /api/health
func (h *StatusHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// VersionHandler handles GET /api/version
func (h *StatusHandler) VersionHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
	})
}

// GetStatusHandler handles GET /api/status
func (h *StatusHandler) GetStatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}

	status := map[string]interface{}{
		"version":        common.GetVersion(),
		"uptime_seconds": int(time.Since(h.startedAt).Seconds()),
		"current_week":   common.WeekStart(time.Now().UTC()).Format(common.DateFormat),
		"scheduler":      h.scheduler.Status(),
	}

	if count, err := h.storage.AnalysisStorage().Count(); err == nil {
		status["analyses_stored"] = count
	} else {
		h.logger.Warn().Err(err).Msg("Failed to count analyses for status")
	}

	if tickers, err := h.storage.WatchlistStorage().AllTickers(); err == nil {
		status["watched_tickers"] = len(tickers)
	}

	WriteJSON(w, http.StatusOK, status)
}
