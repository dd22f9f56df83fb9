package badger

import (
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/semana/internal/interfaces"
	"github.com/ternarybob/semana/internal/models"
)

// AnalysisStorage implements the AnalysisStorage interface for Badger.
// Records are keyed by the composite (ticker, week start) key, so an
// upsert can never produce duplicates for the same pair.
type AnalysisStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewAnalysisStorage creates a new AnalysisStorage instance
func NewAnalysisStorage(db *BadgerDB, logger arbor.ILogger) interfaces.AnalysisStorage {
	return &AnalysisStorage{
		db:     db,
		logger: logger,
	}
}

// Upsert creates or overwrites the record for (Ticker, WeekStart)
func (s *AnalysisStorage) Upsert(analysis *models.WeeklyAnalysis) error {
	if analysis.Ticker == "" || analysis.WeekStart == "" {
		return fmt.Errorf("analysis requires ticker and week start")
	}

	if err := s.db.Store().Upsert(analysis.Key(), analysis); err != nil {
		return fmt.Errorf("failed to upsert analysis: %w", err)
	}

	s.logger.Debug().
		Str("ticker", analysis.Ticker).
		Str("week_start", analysis.WeekStart).
		Msg("Analysis upserted")
	return nil
}

// GetByTickerWeek returns the record for a (ticker, week start) pair
func (s *AnalysisStorage) GetByTickerWeek(ticker, weekStart string) (*models.WeeklyAnalysis, error) {
	var analysis models.WeeklyAnalysis
	err := s.db.Store().Get(models.AnalysisKey(ticker, weekStart), &analysis)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return &analysis, nil
}

// ListByWeek returns all analyses for a given week start
func (s *AnalysisStorage) ListByWeek(weekStart string) ([]*models.WeeklyAnalysis, error) {
	var analyses []*models.WeeklyAnalysis
	err := s.db.Store().Find(&analyses, badgerhold.Where("WeekStart").Eq(weekStart).Index("WeekStart"))
	if err != nil {
		return nil, fmt.Errorf("failed to list analyses for week %s: %w", weekStart, err)
	}
	return analyses, nil
}

// ListByTickersWeek returns analyses for the given tickers in one week.
// Absent pairs are silently omitted.
func (s *AnalysisStorage) ListByTickersWeek(tickers []string, weekStart string) ([]*models.WeeklyAnalysis, error) {
	analyses := make([]*models.WeeklyAnalysis, 0, len(tickers))
	for _, ticker := range tickers {
		analysis, err := s.GetByTickerWeek(ticker, weekStart)
		if errors.Is(err, interfaces.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, analysis)
	}
	return analyses, nil
}

// Count returns the total number of stored analyses
func (s *AnalysisStorage) Count() (int, error) {
	count, err := s.db.Store().Count(&models.WeeklyAnalysis{}, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to count analyses: %w", err)
	}
	return int(count), nil
}
