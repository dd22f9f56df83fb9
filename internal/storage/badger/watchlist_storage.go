package badger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/semana/internal/common"
	"github.com/ternarybob/semana/internal/interfaces"
	"github.com/ternarybob/semana/internal/models"
)

// WatchlistStorage implements the WatchlistStorage interface for
// Badger. Entries are keyed by (user, ticker) so repeated adds are
// idempotent.
type WatchlistStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewWatchlistStorage creates a new WatchlistStorage instance
func NewWatchlistStorage(db *BadgerDB, logger arbor.ILogger) interfaces.WatchlistStorage {
	return &WatchlistStorage{
		db:     db,
		logger: logger,
	}
}

func entryKey(userID, ticker string) string {
	return userID + "|" + ticker
}

// Add stores a watchlist entry. Ticker symbols are normalized to upper
// case. Re-adding an existing (user, ticker) pair is a no-op upsert.
func (s *WatchlistStorage) Add(entry *models.WatchlistEntry) error {
	if entry.UserID == "" || entry.Ticker == "" {
		return fmt.Errorf("watchlist entry requires user and ticker")
	}

	entry.Ticker = strings.ToUpper(strings.TrimSpace(entry.Ticker))
	if entry.ID == "" {
		entry.ID = common.NewWatchlistID()
	}
	if entry.AddedAt.IsZero() {
		entry.AddedAt = time.Now().UTC()
	}

	if err := s.db.Store().Upsert(entryKey(entry.UserID, entry.Ticker), entry); err != nil {
		return fmt.Errorf("failed to add watchlist entry: %w", err)
	}
	return nil
}

// Remove deletes one user's entry for a ticker
func (s *WatchlistStorage) Remove(userID, ticker string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	err := s.db.Store().Delete(entryKey(userID, ticker), &models.WatchlistEntry{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return interfaces.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to remove watchlist entry: %w", err)
	}
	return nil
}

// ListByUser returns one user's entries, oldest first
func (s *WatchlistStorage) ListByUser(userID string) ([]*models.WatchlistEntry, error) {
	var entries []*models.WatchlistEntry
	err := s.db.Store().Find(&entries, badgerhold.Where("UserID").Eq(userID).Index("UserID").SortBy("AddedAt"))
	if err != nil {
		return nil, fmt.Errorf("failed to list watchlist for user: %w", err)
	}
	return entries, nil
}

// AllTickers returns the deduplicated union of tickers across all
// users. This union feeds the scheduled analysis run.
func (s *WatchlistStorage) AllTickers() ([]string, error) {
	var entries []*models.WatchlistEntry
	if err := s.db.Store().Find(&entries, badgerhold.Where("Ticker").Ne("").SortBy("AddedAt")); err != nil {
		return nil, fmt.Errorf("failed to list watchlist entries: %w", err)
	}

	seen := make(map[string]struct{}, len(entries))
	tickers := make([]string, 0, len(entries))
	for _, entry := range entries {
		if _, ok := seen[entry.Ticker]; ok {
			continue
		}
		seen[entry.Ticker] = struct{}{}
		tickers = append(tickers, entry.Ticker)
	}
	return tickers, nil
}

// AllUsers returns the distinct user IDs holding at least one entry
func (s *WatchlistStorage) AllUsers() ([]string, error) {
	var entries []*models.WatchlistEntry
	if err := s.db.Store().Find(&entries, badgerhold.Where("UserID").Ne("")); err != nil {
		return nil, fmt.Errorf("failed to list watchlist entries: %w", err)
	}

	seen := make(map[string]struct{}, len(entries))
	users := make([]string, 0, len(entries))
	for _, entry := range entries {
		if _, ok := seen[entry.UserID]; ok {
			continue
		}
		seen[entry.UserID] = struct{}{}
		users = append(users, entry.UserID)
	}
	return users, nil
}
