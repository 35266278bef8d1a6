package domain

import (
	"fmt"
	"math"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// HistoryRecord is the durable log entry for one extraction
type HistoryRecord struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	Title           string    `json:"title" gorm:"not null"`
	SourceLink      string    `json:"source_link" gorm:"not null"`
	RemoteVideoURL  string    `json:"remote_video_url" gorm:"not null"`
	PosterURL       *string   `json:"poster_url,omitempty"`
	LocalVideoPath  *string   `json:"local_video_path"`
	CreatedAt       time.Time `json:"created_at" gorm:"index"`
	FileSizeBytes   *int64    `json:"file_size_bytes,omitempty"`
	DurationSeconds *float64  `json:"duration_seconds,omitempty"`
}

// TableName specifies the table name for GORM
func (HistoryRecord) TableName() string {
	return "history_records"
}

// NewHistoryRecord creates a record for a freshly parsed video. The local
// path starts empty and is only filled in after materialization.
func NewHistoryRecord(sourceLink string, descriptor VideoDescriptor, metadata MediaMetadata, createdAt time.Time) *HistoryRecord {
	record := &HistoryRecord{
		ID:              uuid.New().String(),
		Title:           BuildTitle(descriptor.VideoURL, createdAt),
		SourceLink:      sourceLink,
		RemoteVideoURL:  descriptor.VideoURL,
		CreatedAt:       createdAt,
		FileSizeBytes:   metadata.FileSizeBytes,
		DurationSeconds: metadata.DurationSeconds,
	}
	if descriptor.PosterURL != "" {
		poster := descriptor.PosterURL
		record.PosterURL = &poster
	}
	return record
}

// AttachLocalFile records a materialized copy; the local size supersedes
// the remote estimate.
func (r *HistoryRecord) AttachLocalFile(file LocalFile) {
	path := file.Path
	r.LocalVideoPath = &path
	if file.SizeBytes > 0 {
		size := file.SizeBytes
		r.FileSizeBytes = &size
	}
}

// LocalPath returns the stored local path or ""
func (r *HistoryRecord) LocalPath() string {
	if r.LocalVideoPath == nil {
		return ""
	}
	return *r.LocalVideoPath
}

// DurationText formats the duration as mm:ss or hh:mm:ss
func (r *HistoryRecord) DurationText() string {
	if r.DurationSeconds == nil || *r.DurationSeconds <= 0 {
		return "--:--"
	}
	total := int(math.Round(*r.DurationSeconds))
	hours := total / 3600
	minutes := (total % 3600) / 60
	seconds := total % 60
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// SizeText formats the file size for display
func (r *HistoryRecord) SizeText() string {
	if r.FileSizeBytes == nil || *r.FileSizeBytes <= 0 {
		return "unknown size"
	}
	return humanize.Bytes(uint64(*r.FileSizeBytes))
}
