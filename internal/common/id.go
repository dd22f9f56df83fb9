package common

import (
	"github.com/google/uuid"
)

// NewAnalysisID generates a unique weekly-analysis record ID
// Format: wa_<uuid>
func NewAnalysisID() string {
	return "wa_" + uuid.New().String()
}

// NewRunID generates a unique analysis-run record ID
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewWatchlistID generates a unique watchlist entry ID
// Format: wl_<uuid>
func NewWatchlistID() string {
	return "wl_" + uuid.New().String()
}
