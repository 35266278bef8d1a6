package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/nowatermark-go/internal/domain"
	"github.com/yourusername/nowatermark-go/internal/infrastructure"
	"go.uber.org/zap"
)

func newTestHistoryService(t *testing.T) (*HistoryService, *memHistoryRepository, *fakeMaterializer, *fakeLibrary) {
	repo := newMemHistoryRepository()
	materializer := newFakeMaterializer(t)
	library := &fakeLibrary{}
	config := &domain.DownloadConfig{MaxAttempts: 3}

	service := NewHistoryService(repo, materializer, library, config, zap.NewNop())
	service.backoff = fastBackoff
	return service, repo, materializer, library
}

func storedRecord(repo *memHistoryRepository, createdAt time.Time) *domain.HistoryRecord {
	record := domain.NewHistoryRecord(testLink, domain.VideoDescriptor{VideoURL: "https://cdn.test/v/clip.mp4"}, domain.MediaMetadata{}, createdAt)
	repo.put(record)
	return record
}

func TestHistoryService_ListNewestFirst(t *testing.T) {
	service, repo, _, _ := newTestHistoryService(t)
	now := time.Now()
	older := storedRecord(repo, now.Add(-time.Hour))
	newer := storedRecord(repo, now)

	records, err := service.List(0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, newer.ID, records[0].ID)
	assert.Equal(t, older.ID, records[1].ID)

	limited, err := service.List(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestHistoryService_GetAndDelete(t *testing.T) {
	service, repo, _, _ := newTestHistoryService(t)
	record := storedRecord(repo, time.Now())

	_, err := service.Get("missing")
	assert.ErrorIs(t, err, domain.ErrHistoryNotFound)
	assert.ErrorIs(t, service.Delete("missing"), domain.ErrHistoryNotFound)

	got, err := service.Get(record.ID)
	require.NoError(t, err)
	assert.Equal(t, record.Title, got.Title)

	require.NoError(t, service.Delete(record.ID))
	assert.Zero(t, repo.Count())
}

func TestHistoryService_DeleteKeepsLocalFile(t *testing.T) {
	service, repo, _, _ := newTestHistoryService(t)
	record := storedRecord(repo, time.Now())

	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))
	record.AttachLocalFile(domain.LocalFile{Path: path, SizeBytes: 4})

	require.NoError(t, service.Delete(record.ID))
	assert.FileExists(t, path)
}

func TestHistoryService_EnsureLocalFile(t *testing.T) {
	service, repo, materializer, _ := newTestHistoryService(t)
	record := storedRecord(repo, time.Now())

	file, err := service.EnsureLocalFile(context.Background(), record.ID)
	require.NoError(t, err)
	assert.False(t, file.Reused)
	assert.Equal(t, 1, repo.Updates())

	stored, err := repo.FindByID(record.ID)
	require.NoError(t, err)
	assert.Equal(t, file.Path, stored.LocalPath())

	reused, err := service.EnsureLocalFile(context.Background(), record.ID)
	require.NoError(t, err)
	assert.True(t, reused.Reused)
	assert.Equal(t, file.Path, reused.Path)
	assert.Equal(t, 1, repo.Updates(), "reused file needs no update")

	require.NoError(t, os.Remove(file.Path))
	replaced, err := service.EnsureLocalFile(context.Background(), record.ID)
	require.NoError(t, err)
	assert.NotEqual(t, file.Path, replaced.Path)
	assert.Equal(t, 2, repo.Updates())
	assert.Equal(t, 3, materializer.Calls())
}

func TestHistoryService_DeleteDuringDownloadStaysDeleted(t *testing.T) {
	repo, err := infrastructure.NewSQLiteHistoryRepository(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer repo.Close()

	materializer := newFakeMaterializer(t)
	materializer.gate = make(chan struct{})
	service := NewHistoryService(repo, materializer, &fakeLibrary{}, &domain.DownloadConfig{MaxAttempts: 1}, zap.NewNop())

	record := domain.NewHistoryRecord(testLink, domain.VideoDescriptor{VideoURL: "https://cdn.test/v/clip.mp4"}, domain.MediaMetadata{}, time.Now())
	require.NoError(t, repo.Create(record))

	result := make(chan error, 1)
	go func() {
		_, err := service.EnsureLocalFile(context.Background(), record.ID)
		result <- err
	}()
	waitStarted(t, materializer.started)

	require.NoError(t, service.Delete(record.ID))
	close(materializer.gate)

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("download did not finish")
	}

	found, err := repo.FindByID(record.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
	count, err := repo.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestHistoryService_EnsureLocalFileErrors(t *testing.T) {
	service, repo, materializer, _ := newTestHistoryService(t)
	record := storedRecord(repo, time.Now())

	_, err := service.EnsureLocalFile(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrHistoryNotFound)

	materializer.errs = []error{domain.NewServerStatusError(404)}
	_, err = service.EnsureLocalFile(context.Background(), record.ID)
	assert.True(t, domain.IsKind(err, domain.KindServerStatus))
	assert.Equal(t, 1, materializer.Calls())
}

func TestHistoryService_EnsureLocalFileUpdateFailureIsIgnored(t *testing.T) {
	service, repo, _, _ := newTestHistoryService(t)
	record := storedRecord(repo, time.Now())
	repo.updateErr = errors.New("readonly database")

	file, err := service.EnsureLocalFile(context.Background(), record.ID)
	require.NoError(t, err)
	assert.FileExists(t, file.Path)
}

func TestHistoryService_SaveToLibrary(t *testing.T) {
	service, repo, _, library := newTestHistoryService(t)
	record := storedRecord(repo, time.Now())

	location, err := service.SaveToLibrary(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, "/library/nowatermark_1.mp4", location)

	library.permissionErr = domain.NewKindError(domain.KindPermissionDenied, nil)
	_, err = service.SaveToLibrary(context.Background(), record.ID)
	assert.True(t, domain.IsKind(err, domain.KindPermissionDenied))
}
