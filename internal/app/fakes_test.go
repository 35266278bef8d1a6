package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/yourusername/nowatermark-go/internal/domain"
	"go.uber.org/zap"
)

type fakeParser struct {
	mu      sync.Mutex
	calls   int
	started chan string
	parse   func(ctx context.Context, link string) (*domain.VideoDescriptor, error)
}

func newFakeParser(parse func(ctx context.Context, link string) (*domain.VideoDescriptor, error)) *fakeParser {
	return &fakeParser{parse: parse, started: make(chan string, 8)}
}

func (f *fakeParser) Parse(ctx context.Context, link string) (*domain.VideoDescriptor, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	select {
	case f.started <- link:
	default:
	}
	return f.parse(ctx, link)
}

func (f *fakeParser) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func parsesTo(videoURL string) *fakeParser {
	return newFakeParser(func(ctx context.Context, link string) (*domain.VideoDescriptor, error) {
		return &domain.VideoDescriptor{VideoURL: videoURL, PosterURL: "https://cdn.test/poster.jpg"}, nil
	})
}

func blockingParser() *fakeParser {
	return newFakeParser(func(ctx context.Context, link string) (*domain.VideoDescriptor, error) {
		<-ctx.Done()
		return nil, domain.NewTransportError(ctx.Err())
	})
}

type fakeProber struct {
	metadata domain.MediaMetadata
}

func (f *fakeProber) Probe(ctx context.Context, videoURL string) domain.MediaMetadata {
	return f.metadata
}

type fakeMaterializer struct {
	dir     string
	mu      sync.Mutex
	calls   int
	errs    []error
	started chan struct{}
	block   bool
	// when set, a download waits for it to be closed
	gate chan struct{}
}

func newFakeMaterializer(t *testing.T) *fakeMaterializer {
	return &fakeMaterializer{dir: t.TempDir(), started: make(chan struct{}, 8)}
}

func (f *fakeMaterializer) Materialize(ctx context.Context, remoteURL, existingLocalPath string) (*domain.LocalFile, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	var err error
	if len(f.errs) > 0 {
		err, f.errs = f.errs[0], f.errs[1:]
	}
	f.mu.Unlock()

	select {
	case f.started <- struct{}{}:
	default:
	}

	if f.block {
		<-ctx.Done()
		return nil, domain.NewTransportError(ctx.Err())
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, domain.NewTransportError(ctx.Err())
		}
	}
	if err != nil {
		return nil, err
	}
	if existingLocalPath != "" {
		if info, statErr := os.Stat(existingLocalPath); statErr == nil {
			return &domain.LocalFile{Path: existingLocalPath, SizeBytes: info.Size(), Reused: true}, nil
		}
	}

	path := filepath.Join(f.dir, fmt.Sprintf("nowatermark_%d.mp4", call))
	data := []byte("video-bytes")
	if writeErr := os.WriteFile(path, data, 0644); writeErr != nil {
		return nil, writeErr
	}
	return &domain.LocalFile{Path: path, SizeBytes: int64(len(data))}, nil
}

func (f *fakeMaterializer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLibrary struct {
	permissionErr error
	saved         []string
}

func (f *fakeLibrary) RequestPermission(ctx context.Context) error {
	return f.permissionErr
}

func (f *fakeLibrary) SaveVideo(ctx context.Context, localPath string) (string, error) {
	f.saved = append(f.saved, localPath)
	return filepath.Join("/library", filepath.Base(localPath)), nil
}

type memHistoryRepository struct {
	mu        sync.Mutex
	records   map[string]*domain.HistoryRecord
	createErr error
	updateErr error
	updates   int
}

func newMemHistoryRepository() *memHistoryRepository {
	return &memHistoryRepository{records: make(map[string]*domain.HistoryRecord)}
}

func (r *memHistoryRepository) Create(record *domain.HistoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	copied := *record
	r.records[record.ID] = &copied
	return nil
}

func (r *memHistoryRepository) PatchLocalFile(id string, file domain.LocalFile) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return false, r.updateErr
	}
	record, ok := r.records[id]
	if !ok {
		return false, nil
	}
	r.updates++
	record.AttachLocalFile(file)
	return true, nil
}

func (r *memHistoryRepository) FindByID(id string) (*domain.HistoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	record, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	copied := *record
	return &copied, nil
}

func (r *memHistoryRepository) FindAll(limit int) ([]*domain.HistoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	records := make([]*domain.HistoryRecord, 0, len(r.records))
	for _, record := range r.records {
		copied := *record
		records = append(records, &copied)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (r *memHistoryRepository) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return errors.New("record not found")
	}
	delete(r.records, id)
	return nil
}

func (r *memHistoryRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

func (r *memHistoryRepository) Updates() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}

func (r *memHistoryRepository) put(record *domain.HistoryRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[record.ID] = record
}

type pipelineFixture struct {
	pipeline     *ExtractionPipeline
	parser       domain.VideoParser
	prober       *fakeProber
	materializer domain.Materializer
	library      *fakeLibrary
	repo         *memHistoryRepository
	config       *domain.Config
}

type fixtureOption func(*pipelineFixture)

func withMaterializer(m domain.Materializer) fixtureOption {
	return func(f *pipelineFixture) { f.materializer = m }
}

func withMetadata(metadata domain.MediaMetadata) fixtureOption {
	return func(f *pipelineFixture) { f.prober.metadata = metadata }
}

func withRemoteFallback() fixtureOption {
	return func(f *pipelineFixture) { f.config.Share.AllowRemoteFallback = true }
}

func newPipelineFixture(t *testing.T, parser domain.VideoParser, opts ...fixtureOption) *pipelineFixture {
	t.Helper()

	f := &pipelineFixture{
		parser:  parser,
		prober:  &fakeProber{},
		library: &fakeLibrary{},
		repo:    newMemHistoryRepository(),
		config:  domain.DefaultConfig(),
	}
	f.materializer = newFakeMaterializer(t)
	for _, opt := range opts {
		opt(f)
	}

	logger := zap.NewNop()
	f.pipeline = NewExtractionPipeline(
		f.parser,
		f.prober,
		f.materializer,
		f.library,
		NewHistorySync(f.repo, logger),
		f.config,
		logger,
	)
	f.pipeline.backoff = func(int) time.Duration { return time.Millisecond }
	t.Cleanup(f.pipeline.Close)
	return f
}

func (f *pipelineFixture) submit(t *testing.T, link string) domain.Progress {
	t.Helper()
	progress, err := f.pipeline.Submit(domain.ExtractionRequest{Link: link, Consent: true})
	require.NoError(t, err)
	return progress
}

func (f *pipelineFixture) await(t *testing.T) domain.Progress {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	progress, err := f.pipeline.Await(ctx)
	require.NoError(t, err)
	return progress
}

func waitStarted[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for call")
		var zero T
		return zero
	}
}
