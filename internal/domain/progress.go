package domain

import "time"

// Progress is an immutable snapshot of the current extraction, emitted on
// every transition. Observers read it; they never feed it back.
type Progress struct {
	RunID          uint64           `json:"run_id"`
	Phase          Phase            `json:"phase"`
	CompletedSteps int              `json:"completed_steps"`
	TotalSteps     int              `json:"total_steps"`
	StatusText     string           `json:"status_text"`
	Extracting     bool             `json:"extracting"`
	Link           string           `json:"link,omitempty"`
	Video          *VideoDescriptor `json:"video,omitempty"`
	Metadata       MediaMetadata    `json:"metadata"`
	RecordID       string           `json:"record_id,omitempty"`
	LocalFile      *LocalFile       `json:"local_file,omitempty"`
	Error          string           `json:"error,omitempty"`
	ErrorKind      ErrorKind        `json:"error_kind,omitempty"`
	Recoverable    bool             `json:"recoverable,omitempty"`
	Warning        string           `json:"warning,omitempty"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// IdleProgress is the snapshot reported before any run was submitted
func IdleProgress() Progress {
	state := PipelineState{Phase: PhaseIdle}
	return Progress{
		Phase:      PhaseIdle,
		TotalSteps: TotalSteps,
		StatusText: StatusText(state),
		UpdatedAt:  time.Now(),
	}
}

// IsSettled reports whether no work is in flight for the snapshot
func (p Progress) IsSettled() bool {
	return !p.Extracting
}
