package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// API routes - Analysis runs
	mux.HandleFunc("/api/agent/run", s.app.AgentHandler.RunHandler) // POST manual, GET cron trigger

	// API routes - Watchlist
	mux.HandleFunc("/api/watchlist", s.app.WatchlistHandler.WatchlistRoute) // GET (list), POST (add), DELETE (remove)

	// API routes - Stored analyses and run audit records
	mux.HandleFunc("/api/analyses", s.app.AnalysisHandler.ListAnalysesHandler)
	mux.HandleFunc("/api/runs", s.app.AnalysisHandler.ListRunsHandler)

	// API routes - Mailer configuration
	mux.HandleFunc("/api/mailer/config", s.app.MailerHandler.ConfigHandler) // GET, POST
	mux.HandleFunc("/api/mailer/test", s.app.MailerHandler.TestEmailHandler)

	// API routes - System
	mux.HandleFunc("/api/status", s.app.StatusHandler.GetStatusHandler)
	mux.HandleFunc("/api/health", s.app.StatusHandler.HealthHandler)
	mux.HandleFunc("/api/version", s.app.StatusHandler.VersionHandler)

	return mux
}
