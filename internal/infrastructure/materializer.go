package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"github.com/yourusername/nowatermark-go/internal/domain"
	"go.uber.org/zap"
)

var errEmptyDownload = errors.New("downloaded file is empty")

// LocalMaterializer downloads remote videos into the private media directory
type LocalMaterializer struct {
	mediaDir string
	client   *http.Client
	logger   *zap.Logger
	now      func() time.Time
}

// NewLocalMaterializer creates a new materializer writing into mediaDir
func NewLocalMaterializer(mediaDir string, config *domain.DownloadConfig, logger *zap.Logger) *LocalMaterializer {
	return &LocalMaterializer{
		mediaDir: mediaDir,
		client:   &http.Client{Timeout: config.Timeout},
		logger:   logger,
		now:      time.Now,
	}
}

// WithHTTPClient replaces the underlying HTTP client
func (m *LocalMaterializer) WithHTTPClient(client *http.Client) *LocalMaterializer {
	m.client = client
	return m
}

// Materialize returns existingLocalPath unchanged when it still refers to a
// regular file. Otherwise it downloads remoteURL and atomically moves it into
// a fresh, collision-safe path.
func (m *LocalMaterializer) Materialize(ctx context.Context, remoteURL, existingLocalPath string) (*domain.LocalFile, error) {
	if existing, ok := reuseLocalFile(existingLocalPath); ok {
		m.logger.Debug("Reusing materialized file", zap.String("path", existing.Path))
		return existing, nil
	}

	if remoteURL == "" {
		return nil, domain.NewKindError(domain.KindNoVideoAvailable, nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return nil, domain.NewKindError(domain.KindNoVideoAvailable, err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, domain.NewTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, domain.NewServerStatusError(resp.StatusCode)
	}

	ext := domain.ExtensionFor(remoteURL, suggestedFilename(resp), resp.Header.Get("Content-Type"))
	dest, err := m.destinationPath(ext)
	if err != nil {
		return nil, domain.NewKindError(domain.KindFileSaveFailed, err)
	}

	m.logger.Info("Materializing video",
		zap.String("url", remoteURL),
		zap.String("path", dest))

	size, err := writeAtomically(dest, resp.Body)
	if err != nil {
		m.logger.Warn("Materialization failed", zap.String("path", dest), zap.Error(err))
		var extractErr *domain.ExtractError
		if errors.As(err, &extractErr) {
			return nil, extractErr
		}
		return nil, domain.NewKindError(domain.KindFileSaveFailed, err)
	}

	m.logger.Info("Video materialized",
		zap.String("path", dest),
		zap.Int64("size", size))

	return &domain.LocalFile{Path: dest, SizeBytes: size}, nil
}

func (m *LocalMaterializer) destinationPath(ext string) (string, error) {
	if err := os.MkdirAll(m.mediaDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	name := domain.LocalFileName(ext, m.now(), uuid.New().String()[:8])
	dest := filepath.Join(m.mediaDir, name)

	if _, err := os.Lstat(dest); err == nil {
		if err := os.Remove(dest); err != nil {
			return "", fmt.Errorf("failed to remove existing file: %w", err)
		}
	}
	return dest, nil
}

// writeAtomically streams body into a pending file next to dest and renames
// it into place only when at least one byte was written.
func writeAtomically(dest string, body io.Reader) (int64, error) {
	pending, err := renameio.NewPendingFile(dest, renameio.WithPermissions(0644))
	if err != nil {
		return 0, fmt.Errorf("create pending file: %w", err)
	}
	defer pending.Cleanup()

	written, err := io.Copy(pending, body)
	if err != nil {
		if isLocalWriteError(err) {
			return 0, fmt.Errorf("write pending file: %w", err)
		}
		return 0, domain.NewTransportError(err)
	}
	if written == 0 {
		return 0, errEmptyDownload
	}

	if err := pending.CloseAtomicallyReplace(); err != nil {
		return 0, fmt.Errorf("atomically replace: %w", err)
	}

	info, err := os.Stat(dest)
	if err != nil {
		return 0, err
	}
	if info.Size() <= 0 {
		os.Remove(dest)
		return 0, errEmptyDownload
	}
	return info.Size(), nil
}

func isLocalWriteError(err error) bool {
	var pathErr *os.PathError
	return errors.As(err, &pathErr)
}

// suggestedFilename returns the Content-Disposition filename, or the last
// path segment of the final (post-redirect) URL.
func suggestedFilename(resp *http.Response) string {
	if disposition := resp.Header.Get("Content-Disposition"); disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil {
			if name := params["filename"]; name != "" {
				return filepath.Base(name)
			}
		}
	}
	if resp.Request != nil && resp.Request.URL != nil {
		name := path.Base(resp.Request.URL.Path)
		if name != "/" && name != "." {
			return name
		}
	}
	return ""
}

func reuseLocalFile(localPath string) (*domain.LocalFile, bool) {
	if localPath == "" {
		return nil, false
	}
	info, err := os.Stat(localPath)
	if err != nil || !info.Mode().IsRegular() {
		return nil, false
	}
	return &domain.LocalFile{Path: localPath, SizeBytes: info.Size(), Reused: true}, true
}
