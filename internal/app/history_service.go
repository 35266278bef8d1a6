package app

import (
	"context"
	"fmt"
	"os"

	"github.com/yourusername/nowatermark-go/internal/domain"
	"go.uber.org/zap"
)

// HistoryService serves the history list and the actions available on a
// stored record.
type HistoryService struct {
	repo         domain.HistoryRepository
	materializer domain.Materializer
	library      domain.MediaLibrary
	config       *domain.DownloadConfig
	logger       *zap.Logger
	backoff      backoffFunc
}

// NewHistoryService creates a new history service
func NewHistoryService(
	repo domain.HistoryRepository,
	materializer domain.Materializer,
	library domain.MediaLibrary,
	config *domain.DownloadConfig,
	logger *zap.Logger,
) *HistoryService {
	return &HistoryService{
		repo:         repo,
		materializer: materializer,
		library:      library,
		config:       config,
		logger:       logger,
		backoff:      domain.Backoff,
	}
}

// List returns records newest first
func (s *HistoryService) List(limit int) ([]*domain.HistoryRecord, error) {
	records, err := s.repo.FindAll(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return records, nil
}

// Get returns a record or ErrHistoryNotFound
func (s *HistoryService) Get(id string) (*domain.HistoryRecord, error) {
	record, err := s.repo.FindByID(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load history record: %w", err)
	}
	if record == nil {
		return nil, domain.ErrHistoryNotFound
	}
	return record, nil
}

// Delete removes a record. The materialized file, if any, is left in place.
func (s *HistoryService) Delete(id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	if err := s.repo.Delete(id); err != nil {
		return fmt.Errorf("failed to delete history record: %w", err)
	}
	s.logger.Info("History record deleted", zap.String("id", id))
	return nil
}

// EnsureLocalFile returns the record's local file, downloading it again when
// the stored path is missing or no longer exists.
func (s *HistoryService) EnsureLocalFile(ctx context.Context, id string) (*domain.LocalFile, error) {
	record, err := s.Get(id)
	if err != nil {
		return nil, err
	}

	file, err := withRetry(ctx, s.logger, s.backoff, "history_materialize", s.config.MaxAttempts,
		func(ctx context.Context) (*domain.LocalFile, error) {
			return s.materializer.Materialize(ctx, record.RemoteVideoURL, record.LocalPath())
		})
	if err != nil {
		return nil, err
	}

	if !file.Reused || file.Path != record.LocalPath() {
		found, err := s.repo.PatchLocalFile(id, *file)
		switch {
		case err != nil:
			s.logger.Warn("Failed to update history record",
				zap.String("id", id),
				zap.Error(err))
		case !found:
			s.logger.Debug("History record deleted during download, skipping patch",
				zap.String("id", id))
		}
	}
	return file, nil
}

// SaveToLibrary makes sure the record has a local file and copies it into the media library
func (s *HistoryService) SaveToLibrary(ctx context.Context, id string) (string, error) {
	file, err := s.EnsureLocalFile(ctx, id)
	if err != nil {
		return "", err
	}
	return saveToLibrary(ctx, s.library, file.Path)
}

func existingFile(path string) (*domain.LocalFile, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}
	return &domain.LocalFile{Path: path, SizeBytes: info.Size(), Reused: true}, true
}
