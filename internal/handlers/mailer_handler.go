package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/semana/internal/services/mailer"
)

// MailerHandler manages SMTP configuration and test sends
type MailerHandler struct {
	mailer *mailer.Service
	logger arbor.ILogger
}

// NewMailerHandler creates a new mailer handler
func NewMailerHandler(mailerService *mailer.Service, logger arbor.ILogger) *MailerHandler {
	return &MailerHandler{
		mailer: mailerService,
		logger: logger,
	}
}

// ConfigHandler routes /api/mailer/config.
// GET returns the current config with the password masked, POST saves it.
func (h *MailerHandler) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.getConfig(w, r)
	case http.MethodPost:
		h.setConfig(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *MailerHandler) getConfig(w http.ResponseWriter, r *http.Request) {
	config, err := h.mailer.GetConfig(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to get mail config")
		WriteError(w, http.StatusInternalServerError, "Failed to get mail config")
		return
	}

	// Never echo the stored password.
	masked := ""
	if config.Password != "" {
		masked = "********"
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"smtp_host":      config.Host,
		"smtp_port":      config.Port,
		"smtp_username":  config.Username,
		"smtp_password":  masked,
		"smtp_from":      config.From,
		"smtp_from_name": config.FromName,
		"smtp_use_tls":   config.UseTLS,
		"configured":     h.mailer.IsConfigured(r.Context()),
	})
}

func (h *MailerHandler) setConfig(w http.ResponseWriter, r *http.Request) {
	var config mailer.Config
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if strings.TrimSpace(config.Host) == "" {
		WriteError(w, http.StatusBadRequest, "smtp_host is required")
		return
	}

	if err := h.mailer.SetConfig(r.Context(), &config); err != nil {
		h.logger.Error().Err(err).Msg("Failed to save mail config")
		WriteError(w, http.StatusInternalServerError, "Failed to save mail config")
		return
	}

	WriteSuccess(w, "Mail configuration saved")
}

type testEmailRequest struct {
	To string `json:"to"`
}

// TestEmailHandler handles POST /api/mailer/test
func (h *MailerHandler) TestEmailHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req testEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.To = strings.TrimSpace(req.To)
	if req.To == "" || !strings.Contains(req.To, "@") {
		WriteError(w, http.StatusBadRequest, "A valid recipient address is required")
		return
	}

	if !h.mailer.IsConfigured(r.Context()) {
		WriteError(w, http.StatusConflict, "SMTP is not configured")
		return
	}

	if err := h.mailer.SendTestEmail(r.Context(), req.To); err != nil {
		WriteError(w, http.StatusBadGateway, "Failed to send test email")
		return
	}

	WriteSuccess(w, "Test email sent")
}
