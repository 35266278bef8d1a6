package infrastructure

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yourusername/nowatermark-go/internal/domain"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLiteHistoryRepository implements HistoryRepository using SQLite
type SQLiteHistoryRepository struct {
	db *gorm.DB
}

// NewSQLiteHistoryRepository creates a new SQLite repository
func NewSQLiteHistoryRepository(dbPath string) (*SQLiteHistoryRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&domain.HistoryRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteHistoryRepository{db: db}, nil
}

// Create inserts a new history record
func (r *SQLiteHistoryRepository) Create(record *domain.HistoryRecord) error {
	return r.db.Create(record).Error
}

// PatchLocalFile updates only the local file columns of the record with id.
// A size of zero keeps the stored size.
func (r *SQLiteHistoryRepository) PatchLocalFile(id string, file domain.LocalFile) (bool, error) {
	updates := map[string]any{"local_video_path": file.Path}
	if file.SizeBytes > 0 {
		updates["file_size_bytes"] = file.SizeBytes
	}

	result := r.db.Model(&domain.HistoryRecord{}).Where("id = ?", id).Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Delete deletes a record by ID
func (r *SQLiteHistoryRepository) Delete(id string) error {
	return r.db.Delete(&domain.HistoryRecord{}, "id = ?", id).Error
}

// FindByID finds a record by ID. Returns nil if not found.
func (r *SQLiteHistoryRepository) FindByID(id string) (*domain.HistoryRecord, error) {
	var record domain.HistoryRecord
	err := r.db.First(&record, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

// FindAll returns records newest first. A non-positive limit returns all.
func (r *SQLiteHistoryRepository) FindAll(limit int) ([]*domain.HistoryRecord, error) {
	var records []*domain.HistoryRecord
	query := r.db.Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&records).Error
	return records, err
}

// Count returns the total number of records
func (r *SQLiteHistoryRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&domain.HistoryRecord{}).Count(&count).Error
	return count, err
}

// Close closes the database connection
func (r *SQLiteHistoryRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
