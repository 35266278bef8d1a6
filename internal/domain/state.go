package domain

import (
	"errors"
	"fmt"
)

// Phase is a step of the extraction state machine
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseParsing           Phase = "parsing"
	PhaseParsed            Phase = "parsed"
	PhaseProbingMetadata   Phase = "probing_metadata"
	PhaseReady             Phase = "ready"
	PhaseMaterializing     Phase = "materializing"
	PhaseMaterializedLocal Phase = "materialized_local"
	PhaseFailed            Phase = "failed"
	PhaseCancelled         Phase = "cancelled"
)

// EventKind is an input to the state machine
type EventKind string

const (
	EventSubmit               EventKind = "submit"
	EventParsed               EventKind = "parsed"
	EventProbeStarted         EventKind = "probe_started"
	EventProbesSettled        EventKind = "probes_settled"
	EventMaterializeRequested EventKind = "materialize_requested"
	EventMaterialized         EventKind = "materialized"
	EventMaterializeAbandoned EventKind = "materialize_abandoned"
	EventFailed               EventKind = "failed"
	EventCancel               EventKind = "cancel"
)

// Event drives a transition; Err is required for EventFailed
type Event struct {
	Kind EventKind
	Err  error
}

// PipelineState is the state of one extraction run
type PipelineState struct {
	Phase   Phase
	Failure error
	// Recoverable is set when materialization failed: the remote URL is
	// still valid and materialization may be requested again.
	Recoverable bool
}

// ErrInvalidTransition is returned for events not accepted in the current phase
var ErrInvalidTransition = errors.New("invalid pipeline transition")

// TotalSteps is the number of progress steps: parse, metadata, local copy
const TotalSteps = 3

// Transition applies an event to a state. It performs no I/O.
func Transition(state PipelineState, event Event) (PipelineState, error) {
	invalid := func() (PipelineState, error) {
		return state, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, event.Kind, state.Phase)
	}

	switch event.Kind {
	case EventSubmit:
		if state.Phase != PhaseIdle {
			return invalid()
		}
		return PipelineState{Phase: PhaseParsing}, nil

	case EventParsed:
		if state.Phase != PhaseParsing {
			return invalid()
		}
		return PipelineState{Phase: PhaseParsed}, nil

	case EventProbeStarted:
		if state.Phase != PhaseParsed {
			return invalid()
		}
		return PipelineState{Phase: PhaseProbingMetadata}, nil

	case EventProbesSettled:
		if state.Phase != PhaseProbingMetadata {
			return invalid()
		}
		return PipelineState{Phase: PhaseReady}, nil

	case EventMaterializeRequested:
		switch {
		case state.Phase == PhaseReady, state.Phase == PhaseMaterializedLocal:
		case state.Phase == PhaseFailed && state.Recoverable:
		default:
			return invalid()
		}
		return PipelineState{Phase: PhaseMaterializing}, nil

	case EventMaterialized:
		if state.Phase != PhaseMaterializing {
			return invalid()
		}
		return PipelineState{Phase: PhaseMaterializedLocal}, nil

	case EventMaterializeAbandoned:
		// the caller went away; the remote URL is still usable
		if state.Phase != PhaseMaterializing {
			return invalid()
		}
		return PipelineState{Phase: PhaseReady}, nil

	case EventFailed:
		if event.Err == nil {
			return invalid()
		}
		switch state.Phase {
		case PhaseParsing, PhaseParsed, PhaseProbingMetadata:
			return PipelineState{Phase: PhaseFailed, Failure: event.Err}, nil
		case PhaseMaterializing:
			return PipelineState{Phase: PhaseFailed, Failure: event.Err, Recoverable: true}, nil
		default:
			return invalid()
		}

	case EventCancel:
		if state.IsTerminal() {
			return invalid()
		}
		return PipelineState{Phase: PhaseCancelled}, nil
	}

	return invalid()
}

// IsTerminal reports whether the run has failed or been cancelled
func (s PipelineState) IsTerminal() bool {
	return s.Phase == PhaseFailed || s.Phase == PhaseCancelled
}

// IsSuccess reports whether the remote URL (and maybe a local file) is usable
func (s PipelineState) IsSuccess() bool {
	return s.Phase == PhaseReady || s.Phase == PhaseMaterializedLocal
}

// IsActive reports whether work is in flight
func (s PipelineState) IsActive() bool {
	switch s.Phase {
	case PhaseParsing, PhaseParsed, PhaseProbingMetadata, PhaseMaterializing:
		return true
	default:
		return false
	}
}

// CompletedSteps returns the advisory progress counter for a phase
func CompletedSteps(phase Phase) int {
	switch phase {
	case PhaseParsed, PhaseProbingMetadata:
		return 1
	case PhaseReady, PhaseMaterializing:
		return 2
	case PhaseMaterializedLocal:
		return 3
	default:
		return 0
	}
}

// StatusText returns the advisory status line for a state
func StatusText(state PipelineState) string {
	switch state.Phase {
	case PhaseParsing:
		return "Preparing request..."
	case PhaseParsed:
		return "Link parsed, processing video..."
	case PhaseProbingMetadata:
		return "Loading video details..."
	case PhaseReady:
		return "Extraction complete"
	case PhaseMaterializing:
		return "Downloading video..."
	case PhaseMaterializedLocal:
		return "Video saved locally"
	case PhaseFailed:
		return UserMessage(state.Failure)
	default:
		return "Waiting to start"
	}
}
