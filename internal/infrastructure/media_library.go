package infrastructure

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
	"github.com/yourusername/nowatermark-go/internal/domain"
	"go.uber.org/zap"
)

// DirectoryMediaLibrary is a media library backed by a user-visible directory
type DirectoryMediaLibrary struct {
	dir    string
	logger *zap.Logger
}

// NewDirectoryMediaLibrary creates a library rooted at dir
func NewDirectoryMediaLibrary(dir string, logger *zap.Logger) *DirectoryMediaLibrary {
	return &DirectoryMediaLibrary{
		dir:    dir,
		logger: logger,
	}
}

// RequestPermission ensures the library directory exists and is writable
func (l *DirectoryMediaLibrary) RequestPermission(ctx context.Context) error {
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return domain.NewKindError(domain.KindPermissionDenied, err)
	}

	probe, err := os.CreateTemp(l.dir, ".permission-*")
	if err != nil {
		return domain.NewKindError(domain.KindPermissionDenied, err)
	}
	name := probe.Name()
	probe.Close()
	os.Remove(name)
	return nil
}

// SaveVideo copies a local video into the library and returns its new path.
// An existing file with the same name is replaced atomically.
func (l *DirectoryMediaLibrary) SaveVideo(ctx context.Context, localPath string) (string, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return "", domain.NewKindError(domain.KindLibrarySaveFailed, err)
	}
	defer src.Close()

	dest := filepath.Join(l.dir, filepath.Base(localPath))
	if err := copyAtomically(ctx, dest, src); err != nil {
		l.logger.Warn("Library save failed", zap.String("path", dest), zap.Error(err))
		return "", domain.NewKindError(domain.KindLibrarySaveFailed, err)
	}

	l.logger.Info("Video saved to library", zap.String("path", dest))
	return dest, nil
}

func copyAtomically(ctx context.Context, dest string, src io.Reader) error {
	pending, err := renameio.NewPendingFile(dest, renameio.WithPermissions(0644))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer pending.Cleanup()

	if _, err := io.Copy(pending, src); err != nil {
		return fmt.Errorf("copy video: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return pending.CloseAtomicallyReplace()
}
