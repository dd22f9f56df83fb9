package badger

import (
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/semana/internal/interfaces"
	"github.com/ternarybob/semana/internal/models"
)

// RunStorage implements the RunStorage interface for Badger
type RunStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRunStorage creates a new RunStorage instance
func NewRunStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RunStorage {
	return &RunStorage{
		db:     db,
		logger: logger,
	}
}

// Insert stores a new run audit record
func (s *RunStorage) Insert(run *models.AnalysisRun) error {
	if run.ID == "" {
		return fmt.Errorf("run requires an ID")
	}
	if err := s.db.Store().Insert(run.ID, run); err != nil {
		return fmt.Errorf("failed to insert run record: %w", err)
	}
	return nil
}

// Update overwrites an existing run audit record
func (s *RunStorage) Update(run *models.AnalysisRun) error {
	err := s.db.Store().Update(run.ID, run)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return interfaces.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update run record: %w", err)
	}
	return nil
}

// Get returns a run audit record by ID
func (s *RunStorage) Get(id string) (*models.AnalysisRun, error) {
	var run models.AnalysisRun
	err := s.db.Store().Get(id, &run)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil, interfaces.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run record: %w", err)
	}
	return &run, nil
}

// List returns the most recent runs, newest first
func (s *RunStorage) List(limit int) ([]*models.AnalysisRun, error) {
	var runs []*models.AnalysisRun
	query := badgerhold.Where("ID").Ne("").SortBy("StartedAt").Reverse()
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := s.db.Store().Find(&runs, query); err != nil {
		return nil, fmt.Errorf("failed to list run records: %w", err)
	}
	return runs, nil
}
