package domain

import (
	"context"
	"strings"
)

// ExtractionRequest is one user-initiated extraction
type ExtractionRequest struct {
	Link    string `json:"url"`
	Consent bool   `json:"consent"`
}

// NewExtractionRequest trims the link and captures the consent flag
func NewExtractionRequest(link string, consent bool) ExtractionRequest {
	return ExtractionRequest{
		Link:    strings.TrimSpace(link),
		Consent: consent,
	}
}

// Validate rejects empty links and missing authorization consent
func (r ExtractionRequest) Validate() error {
	if strings.TrimSpace(r.Link) == "" {
		return NewValidationError("Please enter a valid link")
	}
	if !r.Consent {
		return NewValidationError("Please confirm you are authorized to use this video")
	}
	return nil
}

// VideoDescriptor is the parse service's answer for a link
type VideoDescriptor struct {
	VideoURL   string `json:"video_url"`
	PosterURL  string `json:"poster_url,omitempty"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	Definition string `json:"definition,omitempty"`
}

// MediaMetadata holds best-effort probe results; nil fields are unknown
type MediaMetadata struct {
	FileSizeBytes   *int64   `json:"file_size_bytes,omitempty"`
	DurationSeconds *float64 `json:"duration_seconds,omitempty"`
}

// LocalFile is a materialized copy of a remote video
type LocalFile struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
	Reused    bool   `json:"reused"`
}

// ShareTarget is handed to the share/export collaborator
type ShareTarget struct {
	Location string `json:"location"`
	Local    bool   `json:"local"`
}

// VideoParser resolves a user link into a remote video descriptor
type VideoParser interface {
	Parse(ctx context.Context, link string) (*VideoDescriptor, error)
}

// MetadataProber loads best-effort metadata for a remote video. It never fails.
type MetadataProber interface {
	Probe(ctx context.Context, videoURL string) MediaMetadata
}

// Materializer downloads a remote video into local storage
type Materializer interface {
	Materialize(ctx context.Context, remoteURL, existingLocalPath string) (*LocalFile, error)
}

// MediaLibrary is the system media library collaborator
type MediaLibrary interface {
	// RequestPermission returns a permission_denied error when access is refused
	RequestPermission(ctx context.Context) error

	// SaveVideo writes a local video into the library and returns its new location
	SaveVideo(ctx context.Context, localPath string) (string, error)
}
