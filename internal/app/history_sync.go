package app

import (
	"fmt"
	"time"

	"github.com/yourusername/nowatermark-go/internal/domain"
	"go.uber.org/zap"
)

// HistorySync turns pipeline outcomes into history store writes: insert on
// the first Ready, patch on a later materialization.
type HistorySync struct {
	repo   domain.HistoryRepository
	logger *zap.Logger
	now    func() time.Time
}

// NewHistorySync creates a new history sync
func NewHistorySync(repo domain.HistoryRepository, logger *zap.Logger) *HistorySync {
	return &HistorySync{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// RecordReady inserts a record for a freshly resolved video and returns its id.
// On failure the id is empty and the error is meant to be surfaced as a warning.
func (s *HistorySync) RecordReady(req domain.ExtractionRequest, descriptor domain.VideoDescriptor, metadata domain.MediaMetadata) (string, error) {
	record := domain.NewHistoryRecord(req.Link, descriptor, metadata, s.now())
	if err := s.repo.Create(record); err != nil {
		s.logger.Warn("Failed to create history record",
			zap.String("url", descriptor.VideoURL),
			zap.Error(err))
		return "", fmt.Errorf("failed to save history record: %w", err)
	}

	s.logger.Info("History record created",
		zap.String("id", record.ID),
		zap.String("title", record.Title))
	return record.ID, nil
}

// RecordMaterialized patches the local path and size of a record. An empty
// id or a record that no longer exists is a no-op.
func (s *HistorySync) RecordMaterialized(id string, file domain.LocalFile) error {
	if id == "" {
		return nil
	}

	found, err := s.repo.PatchLocalFile(id, file)
	if err != nil {
		s.logger.Warn("Failed to update history record", zap.String("id", id), zap.Error(err))
		return fmt.Errorf("failed to update history record: %w", err)
	}
	if !found {
		s.logger.Debug("History record gone, skipping patch", zap.String("id", id))
	}
	return nil
}
