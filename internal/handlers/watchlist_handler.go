package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/semana/internal/interfaces"
	"github.com/ternarybob/semana/internal/models"
)

// WatchlistHandler handles watchlist HTTP requests
type WatchlistHandler struct {
	storage interfaces.WatchlistStorage
	logger  arbor.ILogger
}

// NewWatchlistHandler creates a new watchlist handler
func NewWatchlistHandler(storage interfaces.WatchlistStorage, logger arbor.ILogger) *WatchlistHandler {
	return &WatchlistHandler{
		storage: storage,
		logger:  logger,
	}
}

// WatchlistRoute routes /api/watchlist.
// GET ?user= lists a user's entries, POST adds one, DELETE ?user=&ticker= removes one.
func (h *WatchlistHandler) WatchlistRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.add(w, r)
	case http.MethodDelete:
		h.remove(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *WatchlistHandler) list(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	if userID == "" {
		// Without a user the union of all watched tickers is returned.
		tickers, err := h.storage.AllTickers()
		if err != nil {
			h.logger.Error().Err(err).Msg("Failed to list watched tickers")
			WriteError(w, http.StatusInternalServerError, "Failed to list watched tickers")
			return
		}
		WriteJSON(w, http.StatusOK, map[string]interface{}{"tickers": tickers})
		return
	}

	entries, err := h.storage.ListByUser(userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user", userID).Msg("Failed to list watchlist")
		WriteError(w, http.StatusInternalServerError, "Failed to list watchlist")
		return
	}

	if entries == nil {
		entries = []*models.WatchlistEntry{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

type watchlistAddRequest struct {
	UserID string `json:"user_id"`
	Ticker string `json:"ticker"`
}

func (h *WatchlistHandler) add(w http.ResponseWriter, r *http.Request) {
	var req watchlistAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	req.Ticker = strings.ToUpper(strings.TrimSpace(req.Ticker))
	if req.UserID == "" || req.Ticker == "" {
		WriteError(w, http.StatusBadRequest, "user_id and ticker are required")
		return
	}

	entry := &models.WatchlistEntry{
		UserID: req.UserID,
		Ticker: req.Ticker,
	}
	if err := h.storage.Add(entry); err != nil {
		h.logger.Error().Err(err).Str("user", req.UserID).Str("ticker", req.Ticker).Msg("Failed to add watchlist entry")
		WriteError(w, http.StatusInternalServerError, "Failed to add watchlist entry")
		return
	}

	h.logger.Info().Str("user", req.UserID).Str("ticker", req.Ticker).Msg("Watchlist entry added")
	WriteJSON(w, http.StatusCreated, entry)
}

func (h *WatchlistHandler) remove(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user"))
	ticker := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("ticker")))
	if userID == "" || ticker == "" {
		WriteError(w, http.StatusBadRequest, "user and ticker query parameters are required")
		return
	}

	if err := h.storage.Remove(userID, ticker); err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			WriteError(w, http.StatusNotFound, "Watchlist entry not found")
			return
		}
		h.logger.Error().Err(err).Str("user", userID).Str("ticker", ticker).Msg("Failed to remove watchlist entry")
		WriteError(w, http.StatusInternalServerError, "Failed to remove watchlist entry")
		return
	}

	WriteSuccess(w, "Watchlist entry removed")
}
