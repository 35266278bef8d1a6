package app

import (
	"context"

	"github.com/yourusername/nowatermark-go/internal/domain"
	"go.uber.org/zap"
)

// Notifier delivers user-facing notifications
type Notifier interface {
	NotifyExtractionReady(link string)
	NotifyExtractionFailed(link, reason string)
	NotifyVideoSaved(path string)
}

// ProgressNotifier turns pipeline snapshots into notifications. It notifies
// once per phase change on ready, failed and materialized; cancellation is silent.
type ProgressNotifier struct {
	notifier Notifier
	logger   *zap.Logger
}

// NewProgressNotifier creates a new progress notifier
func NewProgressNotifier(notifier Notifier, logger *zap.Logger) *ProgressNotifier {
	return &ProgressNotifier{
		notifier: notifier,
		logger:   logger,
	}
}

// Run consumes updates until the channel closes or ctx is done
func (n *ProgressNotifier) Run(ctx context.Context, updates <-chan domain.Progress) {
	var lastRun uint64
	var lastPhase domain.Phase

	for {
		select {
		case <-ctx.Done():
			return
		case progress, ok := <-updates:
			if !ok {
				return
			}
			if progress.RunID == lastRun && progress.Phase == lastPhase {
				continue
			}
			lastRun, lastPhase = progress.RunID, progress.Phase
			n.handle(progress)
		}
	}
}

func (n *ProgressNotifier) handle(progress domain.Progress) {
	switch progress.Phase {
	case domain.PhaseReady:
		n.notifier.NotifyExtractionReady(progress.Link)
	case domain.PhaseFailed:
		n.notifier.NotifyExtractionFailed(progress.Link, progress.Error)
	case domain.PhaseMaterializedLocal:
		if progress.LocalFile != nil {
			n.notifier.NotifyVideoSaved(progress.LocalFile.Path)
		}
	default:
		return
	}
	n.logger.Debug("Notification dispatched",
		zap.Uint64("run_id", progress.RunID),
		zap.String("phase", string(progress.Phase)))
}
