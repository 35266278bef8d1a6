package infrastructure

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/nowatermark-go/internal/domain"
	"go.uber.org/zap"
)

func newTestMaterializer(t *testing.T) (*LocalMaterializer, string) {
	t.Helper()
	mediaDir := filepath.Join(t.TempDir(), "media")
	m := NewLocalMaterializer(mediaDir, &domain.DownloadConfig{Timeout: 5 * time.Second}, zap.NewNop())
	return m, mediaDir
}

func videoServer(t *testing.T, contentType, disposition string, body []byte, hits *int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits != nil {
			atomic.AddInt32(hits, 1)
		}
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		if disposition != "" {
			w.Header().Set("Content-Disposition", disposition)
		}
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestMaterialize_WritesFile(t *testing.T) {
	m, mediaDir := newTestMaterializer(t)
	server := videoServer(t, "video/mp4", "", []byte("video-bytes"), nil)

	file, err := m.Materialize(context.Background(), server.URL+"/v.mp4", "")
	require.NoError(t, err)

	assert.Equal(t, mediaDir, filepath.Dir(file.Path))
	assert.True(t, strings.HasPrefix(filepath.Base(file.Path), "nowatermark_"))
	assert.Equal(t, ".mp4", filepath.Ext(file.Path))
	assert.Equal(t, int64(len("video-bytes")), file.SizeBytes)
	assert.False(t, file.Reused)

	data, err := os.ReadFile(file.Path)
	require.NoError(t, err)
	assert.Equal(t, "video-bytes", string(data))
}

func TestMaterialize_QuickTimeExtension(t *testing.T) {
	m, _ := newTestMaterializer(t)
	server := videoServer(t, "video/quicktime", "", []byte("mov-bytes"), nil)

	file, err := m.Materialize(context.Background(), server.URL+"/video", "")
	require.NoError(t, err)
	assert.Equal(t, ".mov", filepath.Ext(file.Path))
}

func TestMaterialize_SuggestedFilenameExtension(t *testing.T) {
	m, _ := newTestMaterializer(t)
	server := videoServer(t, "video/quicktime", `attachment; filename="clip.WEBM"`, []byte("webm-bytes"), nil)

	file, err := m.Materialize(context.Background(), server.URL+"/video", "")
	require.NoError(t, err)
	assert.Equal(t, ".webm", filepath.Ext(file.Path))
}

func TestMaterialize_ReusesExistingFile(t *testing.T) {
	m, _ := newTestMaterializer(t)
	var hits int32
	server := videoServer(t, "video/mp4", "", []byte("video-bytes"), &hits)

	first, err := m.Materialize(context.Background(), server.URL+"/v.mp4", "")
	require.NoError(t, err)
	require.Equal(t, int32(1), atomic.LoadInt32(&hits))

	second, err := m.Materialize(context.Background(), server.URL+"/v.mp4", first.Path)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, first.Path, second.Path)
	assert.True(t, second.Reused)
}

func TestMaterialize_MissingExistingFileDownloadsAgain(t *testing.T) {
	m, _ := newTestMaterializer(t)
	var hits int32
	server := videoServer(t, "video/mp4", "", []byte("video-bytes"), &hits)

	file, err := m.Materialize(context.Background(), server.URL+"/v.mp4", filepath.Join(t.TempDir(), "gone.mp4"))
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.False(t, file.Reused)
}

func TestMaterialize_DistinctPathsPerRun(t *testing.T) {
	m, _ := newTestMaterializer(t)
	fixed := time.Unix(1700000000, 0)
	m.now = func() time.Time { return fixed }
	server := videoServer(t, "video/mp4", "", []byte("video-bytes"), nil)

	first, err := m.Materialize(context.Background(), server.URL+"/v.mp4", "")
	require.NoError(t, err)
	second, err := m.Materialize(context.Background(), server.URL+"/v.mp4", "")
	require.NoError(t, err)

	assert.NotEqual(t, first.Path, second.Path)
	assert.FileExists(t, first.Path)
	assert.FileExists(t, second.Path)
}

func TestMaterialize_Non2xx(t *testing.T) {
	m, mediaDir := newTestMaterializer(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, err := m.Materialize(context.Background(), server.URL+"/v.mp4", "")
	require.Error(t, err)

	extractErr, ok := domain.AsExtractError(err)
	require.True(t, ok)
	assert.Equal(t, domain.KindServerStatus, extractErr.Kind)
	assert.Equal(t, http.StatusForbidden, extractErr.StatusCode)

	entries, _ := os.ReadDir(mediaDir)
	assert.Empty(t, entries)
}

func TestMaterialize_EmptyBodyLeavesNothingBehind(t *testing.T) {
	m, mediaDir := newTestMaterializer(t)
	server := videoServer(t, "video/mp4", "", nil, nil)

	_, err := m.Materialize(context.Background(), server.URL+"/v.mp4", "")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindFileSaveFailed))

	entries, err := os.ReadDir(mediaDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestMaterialize_NoRemoteURL(t *testing.T) {
	m, _ := newTestMaterializer(t)

	_, err := m.Materialize(context.Background(), "", "")
	assert.True(t, domain.IsKind(err, domain.KindNoVideoAvailable))
}

func TestSuggestedFilename(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "https://cdn.test/path/final.mov?sig=1", nil)

	resp := &http.Response{Header: http.Header{}, Request: req}
	assert.Equal(t, "final.mov", suggestedFilename(resp))

	resp.Header.Set("Content-Disposition", `attachment; filename="../../evil.mkv"`)
	assert.Equal(t, "evil.mkv", suggestedFilename(resp))

	root := &http.Response{Header: http.Header{}, Request: httptest.NewRequest(http.MethodGet, "https://cdn.test/", nil)}
	assert.Equal(t, "", suggestedFilename(root))
}
