package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yourusername/nowatermark-go/internal/domain"
	"github.com/yourusername/nowatermark-go/pkg/logger"
	"go.uber.org/zap"
)

// ErrPipelineClosed is returned by Submit after Close
var ErrPipelineClosed = errors.New("extraction pipeline closed")

const (
	subscriberBuffer = 16
	historyWarning   = "History could not be saved"
)

// ExtractionPipeline runs one extraction at a time: parse, probe metadata,
// and on request materialize a local copy. A new submission supersedes and
// cancels the current run.
type ExtractionPipeline struct {
	parser       domain.VideoParser
	prober       domain.MetadataProber
	materializer domain.Materializer
	library      domain.MediaLibrary
	history      *HistorySync
	config       *domain.Config
	logger       *zap.Logger
	events       *logger.MultiLogger
	backoff      backoffFunc

	mu          sync.Mutex
	run         *pipelineRun
	nextRunID   uint64
	subscribers map[uint64]chan domain.Progress
	nextSubID   uint64
	closed      bool
	wg          sync.WaitGroup
}

// pipelineRun is the state of one submission. Fields below materializeMu
// are guarded by the pipeline mutex.
type pipelineRun struct {
	id      uint64
	request domain.ExtractionRequest
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}

	// serializes record creation and materialization
	materializeMu sync.Mutex

	state      domain.PipelineState
	descriptor *domain.VideoDescriptor
	metadata   domain.MediaMetadata
	recordID   string
	local      *domain.LocalFile
	warning    string
	updatedAt  time.Time
}

// NewExtractionPipeline creates a new pipeline
func NewExtractionPipeline(
	parser domain.VideoParser,
	prober domain.MetadataProber,
	materializer domain.Materializer,
	library domain.MediaLibrary,
	history *HistorySync,
	config *domain.Config,
	logger *zap.Logger,
) *ExtractionPipeline {
	return &ExtractionPipeline{
		parser:       parser,
		prober:       prober,
		materializer: materializer,
		library:      library,
		history:      history,
		config:       config,
		logger:       logger,
		backoff:      domain.Backoff,
		subscribers:  make(map[uint64]chan domain.Progress),
	}
}

// SetEventLogger routes run transitions and history errors to categorized log files
func (p *ExtractionPipeline) SetEventLogger(events *logger.MultiLogger) {
	p.events = events
}

// Submit validates the request and starts a new run in the background.
// Validation failures are returned synchronously and start nothing.
func (p *ExtractionPipeline) Submit(req domain.ExtractionRequest) (domain.Progress, error) {
	req = domain.NewExtractionRequest(req.Link, req.Consent)
	if err := req.Validate(); err != nil {
		return p.Snapshot(), err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return domain.Progress{}, ErrPipelineClosed
	}

	if prev := p.run; prev != nil {
		prev.cancel()
		p.applyLocked(prev, domain.Event{Kind: domain.EventCancel})
	}

	p.nextRunID++
	ctx, cancel := context.WithCancel(context.Background())
	run := &pipelineRun{
		id:        p.nextRunID,
		request:   req,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		state:     domain.PipelineState{Phase: domain.PhaseIdle},
		updatedAt: time.Now(),
	}
	p.run = run
	p.applyLocked(run, domain.Event{Kind: domain.EventSubmit})
	snapshot := p.snapshotLocked()
	p.wg.Add(1)
	p.mu.Unlock()

	p.logger.Info("Extraction submitted",
		zap.Uint64("run_id", run.id),
		zap.String("link", req.Link))

	go p.execute(run)
	return snapshot, nil
}

func (p *ExtractionPipeline) execute(run *pipelineRun) {
	defer p.wg.Done()
	defer close(run.done)

	log := p.logger.With(zap.Uint64("run_id", run.id))

	descriptor, err := withRetry(run.ctx, log, p.backoff, "parse", p.config.Parser.MaxAttempts,
		func(ctx context.Context) (*domain.VideoDescriptor, error) {
			return p.parser.Parse(ctx, run.request.Link)
		})
	if run.ctx.Err() != nil {
		log.Info("Extraction cancelled during parse")
		return
	}
	if err != nil {
		p.fail(run, err)
		return
	}

	p.mu.Lock()
	run.descriptor = descriptor
	ok := p.applyLocked(run, domain.Event{Kind: domain.EventParsed}) &&
		p.applyLocked(run, domain.Event{Kind: domain.EventProbeStarted})
	p.mu.Unlock()
	if !ok {
		return
	}

	metadata := p.prober.Probe(run.ctx, descriptor.VideoURL)
	if run.ctx.Err() != nil {
		log.Info("Extraction cancelled during metadata probe")
		return
	}

	run.materializeMu.Lock()
	defer run.materializeMu.Unlock()

	p.mu.Lock()
	run.metadata = metadata
	ok = p.applyLocked(run, domain.Event{Kind: domain.EventProbesSettled})
	p.mu.Unlock()
	if !ok {
		return
	}

	log.Info("Extraction ready", zap.String("url", descriptor.VideoURL))

	if p.history == nil {
		return
	}
	recordID, err := p.history.RecordReady(run.request, *descriptor, metadata)

	p.mu.Lock()
	run.recordID = recordID
	if err != nil {
		run.warning = historyWarning
	}
	p.touchLocked(run)
	p.mu.Unlock()

	if err != nil && p.events != nil {
		p.events.LogAppError("history create failed",
			zap.Uint64("run_id", run.id),
			zap.Error(err))
	}
}

func (p *ExtractionPipeline) fail(run *pipelineRun, err error) {
	p.mu.Lock()
	applied := p.applyLocked(run, domain.Event{Kind: domain.EventFailed, Err: err})
	p.mu.Unlock()

	if applied {
		p.logger.Warn("Extraction failed",
			zap.Uint64("run_id", run.id),
			zap.String("reason", domain.UserMessage(err)),
			zap.Error(err))
	}
}

// Cancel cancels the current run. It reports whether a run was cancelled.
func (p *ExtractionPipeline) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	run := p.run
	if run == nil {
		return false
	}
	run.cancel()
	return p.applyLocked(run, domain.Event{Kind: domain.EventCancel})
}

// Materialize downloads the current run's video into local storage. Once
// materialized, later calls return the same file without network access
// as long as it still exists.
func (p *ExtractionPipeline) Materialize(ctx context.Context) (*domain.LocalFile, error) {
	p.mu.Lock()
	run := p.run
	p.mu.Unlock()

	if run == nil {
		return nil, domain.NewKindError(domain.KindNoVideoAvailable, nil)
	}
	return p.materializeRun(ctx, run)
}

func (p *ExtractionPipeline) materializeRun(ctx context.Context, run *pipelineRun) (*domain.LocalFile, error) {
	run.materializeMu.Lock()
	defer run.materializeMu.Unlock()

	p.mu.Lock()
	if run.state.Phase == domain.PhaseMaterializedLocal && run.local != nil {
		if reused, ok := existingFile(run.local.Path); ok {
			p.mu.Unlock()
			return reused, nil
		}
	}
	if run.descriptor == nil || !p.applyLocked(run, domain.Event{Kind: domain.EventMaterializeRequested}) {
		p.mu.Unlock()
		return nil, domain.NewKindError(domain.KindNoVideoAvailable, nil)
	}
	remoteURL := run.descriptor.VideoURL
	recordID := run.recordID
	existing := ""
	if run.local != nil {
		existing = run.local.Path
	}
	p.mu.Unlock()

	log := p.logger.With(zap.Uint64("run_id", run.id))

	opCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(run.ctx, cancel)
	defer stop()

	file, err := withRetry(opCtx, log, p.backoff, "materialize", p.config.Download.MaxAttempts,
		func(ctx context.Context) (*domain.LocalFile, error) {
			return p.materializer.Materialize(ctx, remoteURL, existing)
		})
	if run.ctx.Err() != nil {
		log.Info("Materialization abandoned, run cancelled")
		return nil, context.Canceled
	}
	if ctxErr := ctx.Err(); err != nil && ctxErr != nil {
		p.mu.Lock()
		run.local = nil
		p.applyLocked(run, domain.Event{Kind: domain.EventMaterializeAbandoned})
		p.mu.Unlock()
		log.Info("Materialization abandoned by caller", zap.Error(ctxErr))
		return nil, ctxErr
	}
	if err != nil {
		if _, ok := domain.AsExtractError(err); !ok {
			err = domain.NewKindError(domain.KindFileSaveFailed, err)
		}
		p.fail(run, err)
		return nil, err
	}

	p.mu.Lock()
	run.local = file
	p.applyLocked(run, domain.Event{Kind: domain.EventMaterialized})
	p.mu.Unlock()

	if p.history != nil {
		if err := p.history.RecordMaterialized(recordID, *file); err != nil {
			p.mu.Lock()
			run.warning = historyWarning
			p.touchLocked(run)
			p.mu.Unlock()
			if p.events != nil {
				p.events.LogAppError("history update failed",
					zap.Uint64("run_id", run.id),
					zap.String("record_id", recordID),
					zap.Error(err))
			}
		}
	}

	local := *file
	return &local, nil
}

// ShareTarget returns a location to hand to a share/export target. It is a
// local file unless materialization failed and remote fallback is enabled.
func (p *ExtractionPipeline) ShareTarget(ctx context.Context) (*domain.ShareTarget, error) {
	file, err := p.Materialize(ctx)
	if err == nil {
		return &domain.ShareTarget{Location: file.Path, Local: true}, nil
	}
	if errors.Is(err, context.Canceled) || !p.config.Share.AllowRemoteFallback {
		return nil, err
	}

	p.mu.Lock()
	var remoteURL string
	if run := p.run; run != nil && run.descriptor != nil && run.state.Phase != domain.PhaseCancelled {
		remoteURL = run.descriptor.VideoURL
	}
	p.mu.Unlock()

	if remoteURL == "" {
		return nil, err
	}
	p.logger.Warn("Sharing remote URL, local copy unavailable",
		zap.String("url", remoteURL),
		zap.Error(err))
	return &domain.ShareTarget{Location: remoteURL, Local: false}, nil
}

// SaveToLibrary materializes the current video and copies it into the media library
func (p *ExtractionPipeline) SaveToLibrary(ctx context.Context) (string, error) {
	file, err := p.Materialize(ctx)
	if err != nil {
		return "", err
	}
	return saveToLibrary(ctx, p.library, file.Path)
}

func saveToLibrary(ctx context.Context, library domain.MediaLibrary, localPath string) (string, error) {
	if library == nil {
		return "", domain.NewKindError(domain.KindLibrarySaveFailed, errors.New("no media library configured"))
	}
	if err := library.RequestPermission(ctx); err != nil {
		if _, ok := domain.AsExtractError(err); !ok {
			err = domain.NewKindError(domain.KindPermissionDenied, err)
		}
		return "", err
	}
	return library.SaveVideo(ctx, localPath)
}

// Snapshot returns the current progress
func (p *ExtractionPipeline) Snapshot() domain.Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

// Await blocks until the current run's background work finishes (Ready,
// Failed or Cancelled) and returns the resulting snapshot.
func (p *ExtractionPipeline) Await(ctx context.Context) (domain.Progress, error) {
	p.mu.Lock()
	run := p.run
	p.mu.Unlock()

	if run == nil {
		return p.Snapshot(), nil
	}

	select {
	case <-run.done:
		return p.Snapshot(), nil
	case <-ctx.Done():
		return p.Snapshot(), ctx.Err()
	}
}

// Subscribe returns a channel receiving a snapshot on every change, starting
// with the current one. Slow subscribers skip intermediate snapshots.
func (p *ExtractionPipeline) Subscribe() (<-chan domain.Progress, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan domain.Progress, subscriberBuffer)
	if p.closed {
		close(ch)
		return ch, func() {}
	}

	p.nextSubID++
	id := p.nextSubID
	p.subscribers[id] = ch
	ch <- p.snapshotLocked()

	return ch, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if sub, ok := p.subscribers[id]; ok {
			delete(p.subscribers, id)
			close(sub)
		}
	}
}

// IsRunning reports whether the pipeline still accepts submissions
func (p *ExtractionPipeline) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed
}

// Close cancels the current run, waits for background work and closes all subscriptions
func (p *ExtractionPipeline) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if run := p.run; run != nil {
		run.cancel()
		p.applyLocked(run, domain.Event{Kind: domain.EventCancel})
	}
	subscribers := p.subscribers
	p.subscribers = make(map[uint64]chan domain.Progress)
	p.mu.Unlock()

	p.wg.Wait()

	for _, ch := range subscribers {
		close(ch)
	}
}

// applyLocked applies an event to run if it is still the current run.
// Rejected events are ignored.
func (p *ExtractionPipeline) applyLocked(run *pipelineRun, event domain.Event) bool {
	if p.run != run {
		return false
	}

	next, err := domain.Transition(run.state, event)
	if err != nil {
		p.logger.Debug("Ignoring pipeline event",
			zap.Uint64("run_id", run.id),
			zap.String("event", string(event.Kind)),
			zap.String("phase", string(run.state.Phase)))
		return false
	}

	from := run.state.Phase
	run.state = next
	if p.events != nil {
		fields := []zap.Field{
			zap.Uint64("run_id", run.id),
			zap.String("event", string(event.Kind)),
			zap.String("from", string(from)),
			zap.String("to", string(next.Phase)),
		}
		if extractErr, ok := domain.AsExtractError(next.Failure); ok {
			fields = append(fields, zap.String("error_kind", string(extractErr.Kind)))
		}
		p.events.LogPipelineEvent("transition", fields...)
	}
	p.touchLocked(run)
	return true
}

// touchLocked publishes a fresh snapshot of run
func (p *ExtractionPipeline) touchLocked(run *pipelineRun) {
	run.updatedAt = time.Now()
	if p.run != run {
		return
	}

	snapshot := p.snapshotLocked()
	for _, ch := range p.subscribers {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

func (p *ExtractionPipeline) snapshotLocked() domain.Progress {
	run := p.run
	if run == nil {
		return domain.IdleProgress()
	}

	progress := domain.Progress{
		RunID:          run.id,
		Phase:          run.state.Phase,
		CompletedSteps: domain.CompletedSteps(run.state.Phase),
		TotalSteps:     domain.TotalSteps,
		StatusText:     domain.StatusText(run.state),
		Extracting:     run.state.IsActive(),
		Link:           run.request.Link,
		Metadata:       run.metadata,
		RecordID:       run.recordID,
		Warning:        run.warning,
		UpdatedAt:      run.updatedAt,
	}
	if run.descriptor != nil {
		video := *run.descriptor
		progress.Video = &video
	}
	if run.local != nil {
		local := *run.local
		progress.LocalFile = &local
	}
	if run.state.Failure != nil {
		progress.Error = domain.UserMessage(run.state.Failure)
		if extractErr, ok := domain.AsExtractError(run.state.Failure); ok {
			progress.ErrorKind = extractErr.Kind
		}
		progress.Recoverable = run.state.Recoverable
	}
	return progress
}
