package interfaces

import (
	"context"
	"errors"
	"time"

	"github.com/ternarybob/semana/internal/models"
)

// ErrNotFound is returned by storage read operations when no record
// matches. Callers use it to distinguish "absent" from a real failure.
var ErrNotFound = errors.New("record not found")

// AnalysisStorage persists weekly analysis records. The upsert key is
// (ticker, week start): repeated writes for the same pair overwrite a
// single record, never create duplicates.
type AnalysisStorage interface {
	// Upsert creates or overwrites the record for (Ticker, WeekStart).
	Upsert(analysis *models.WeeklyAnalysis) error

	// GetByTickerWeek returns the record for a (ticker, week start)
	// pair, or ErrNotFound.
	GetByTickerWeek(ticker, weekStart string) (*models.WeeklyAnalysis, error)

	// ListByWeek returns all analyses for a given week start.
	ListByWeek(weekStart string) ([]*models.WeeklyAnalysis, error)

	// ListByTickersWeek returns analyses for the given tickers in one week.
	ListByTickersWeek(tickers []string, weekStart string) ([]*models.WeeklyAnalysis, error)

	// Count returns the total number of stored analyses.
	Count() (int, error)
}

// RunStorage persists analysis-run audit records. Records are inserted
// at run start with zero counters and updated once at completion; they
// are never deleted.
type RunStorage interface {
	Insert(run *models.AnalysisRun) error
	Update(run *models.AnalysisRun) error
	Get(id string) (*models.AnalysisRun, error)

	// List returns the most recent runs, newest first.
	List(limit int) ([]*models.AnalysisRun, error)
}

// WatchlistStorage tracks which tickers each user follows. The union
// of all entries feeds the scheduled analysis trigger.
type WatchlistStorage interface {
	Add(entry *models.WatchlistEntry) error
	Remove(userID, ticker string) error
	ListByUser(userID string) ([]*models.WatchlistEntry, error)

	// AllTickers returns the deduplicated union of tickers across all
	// users, in first-seen order.
	AllTickers() ([]string, error)

	// AllUsers returns the distinct user IDs holding at least one entry.
	AllUsers() ([]string, error)
}

// KeyValueStorage provides persistent key/value pairs for secrets and
// operational settings (SMTP credentials, report recipients).
type KeyValueStorage interface {
	// Get retrieves a value by key, returns ErrNotFound if absent
	Get(ctx context.Context, key string) (string, error)

	// Set inserts or updates a key/value pair with optional description
	Set(ctx context.Context, key string, value string, description string) error

	// Delete removes a key/value pair, returns ErrNotFound if absent
	Delete(ctx context.Context, key string) error

	// List returns all keys with their descriptions
	List(ctx context.Context) ([]KeyValuePair, error)
}

// KeyValuePair is a stored key/value entry.
type KeyValuePair struct {
	Key         string    `json:"key"`
	Value       string    `json:"value"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// StorageManager bundles the storage interfaces behind one handle.
type StorageManager interface {
	AnalysisStorage() AnalysisStorage
	RunStorage() RunStorage
	WatchlistStorage() WatchlistStorage
	KeyValueStorage() KeyValueStorage
	Close() error
}
