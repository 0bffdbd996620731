package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/seedpost/seedpost/internal/discovery"
)

//go:generate mockgen -destination=mocks/mock_engine.go -package=mocks -source=types.go Engine

var (
	// ErrTimedOut is returned when a job does not complete before its deadline
	ErrTimedOut = errors.New("transfer timed out")
	// ErrAbandoned is returned when the caller's context ends mid-transfer
	ErrAbandoned = errors.New("transfer abandoned")
	// ErrFailed wraps unrecoverable engine errors
	ErrFailed = errors.New("transfer failed")
)

// State is the lifecycle state of a transfer job
type State int

const (
	// StatePending is the state of a job constructed but not yet accepted by the engine
	StatePending State = iota
	// StateActive is the state of a job the engine reports on
	StateActive
	// StateComplete is the terminal state of a finished job
	StateComplete
	// StateTimedOut is the terminal state of a job cancelled at its deadline
	StateTimedOut
	// StateFailed is the terminal state of a job the engine could not run
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateComplete:
		return "complete"
	case StateTimedOut:
		return "timed_out"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible
func (s State) Terminal() bool {
	return s == StateComplete || s == StateTimedOut || s == StateFailed
}

// Descriptor identifies what to download: a local metainfo file or a magnet URI
type Descriptor struct {
	Path   string
	Magnet string
}

func (d Descriptor) String() string {
	if d.Magnet != "" {
		return d.Magnet
	}
	return d.Path
}

// Handle is the engine's reference to a started job
type Handle string

// Status is one engine report for a job
type Status struct {
	// Progress is the completed fraction in [0, 1]
	Progress float64
	// DownloadRate and UploadRate are in bytes per second
	DownloadRate float64
	UploadRate   float64
	Peers        int
	Complete     bool

	// Name, InfoHash and ArtifactPath are known once the engine has the
	// job's metadata and may be empty before that
	Name         string
	InfoHash     string
	ArtifactPath string
}

// Engine is the swarm transfer collaborator
type Engine interface {
	// Start hands a descriptor to the engine, saving content under saveRoot
	Start(ctx context.Context, d Descriptor, saveRoot string) (Handle, error)
	// Status reports the current state of a job. An error means the job
	// cannot make further progress.
	Status(ctx context.Context, h Handle) (Status, error)
	// Cancel abandons a job and releases its resources
	Cancel(ctx context.Context, h Handle) error
}

// Job is the tracker's view of one transfer
type Job struct {
	ID           string
	Item         discovery.CandidateItem
	Descriptor   Descriptor
	State        State
	Progress     float64
	DownloadRate float64
	UploadRate   float64
	Peers        int
	StartedAt    time.Time
	Deadline     time.Time
	FinishedAt   time.Time
}

// advance moves the job forward. Terminal states are never left and a job
// never returns to Pending.
func (j *Job) advance(to State) bool {
	if j.State.Terminal() || to <= j.State && !to.Terminal() {
		return false
	}
	j.State = to
	return true
}

func (j *Job) observe(st Status) {
	j.Progress = min(max(st.Progress, 0), 1)
	j.DownloadRate = st.DownloadRate
	j.UploadRate = st.UploadRate
	j.Peers = st.Peers
}

// Result is what a finished job yields
type Result struct {
	Job Job
	// ArtifactPath is set only when Job.State is StateComplete
	ArtifactPath string
	InfoHash     string
	Name         string
}
