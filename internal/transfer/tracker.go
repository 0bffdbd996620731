package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/seedpost/seedpost/internal/discovery"
)

const (
	// DefaultPollInterval is the engine status poll period
	DefaultPollInterval = 5 * time.Second
	// DefaultTimeout is the per-job deadline measured from engine acceptance
	DefaultTimeout = 2 * time.Hour
)

// Option configures a Tracker
type Option func(*Tracker)

// WithPollInterval sets the status poll period
func WithPollInterval(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.pollInterval = d
		}
	}
}

// WithTimeout sets the per-job deadline
func WithTimeout(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.timeout = d
		}
	}
}

// WithClock overrides the wall clock used for deadlines
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// Tracker runs transfer jobs one at a time against an Engine
type Tracker struct {
	engine       Engine
	pollInterval time.Duration
	timeout      time.Duration
	now          func() time.Time
}

// NewTracker creates a tracker for engine
func NewTracker(engine Engine, opts ...Option) *Tracker {
	t := &Tracker{
		engine:       engine,
		pollInterval: DefaultPollInterval,
		timeout:      DefaultTimeout,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Run starts a job for d and blocks until it reaches a terminal state.
// A timed out job returns ErrTimedOut after exactly one Cancel call. A job
// whose context ends is cancelled and returns ErrAbandoned.
func (t *Tracker) Run(ctx context.Context, item discovery.CandidateItem, d Descriptor, saveRoot string) (Result, error) {
	job := Job{
		ID:         uuid.NewString(),
		Item:       item,
		Descriptor: d,
		State:      StatePending,
	}
	logger := slog.With("job", job.ID, "title", item.Title)

	handle, err := t.engine.Start(ctx, d, saveRoot)
	if err != nil {
		t.finish(&job, StateFailed)
		return Result{Job: job}, fmt.Errorf("%w: start: %w", ErrFailed, err)
	}

	job.StartedAt = t.now()
	job.Deadline = job.StartedAt.Add(t.timeout)
	logger.Info("Transfer started", "descriptor", d.String(), "deadline", job.Deadline.Format(time.RFC3339))

	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	var last Status
	for {
		if ctx.Err() != nil {
			return t.abandon(&job, handle, last, logger)
		}

		st, err := t.engine.Status(ctx, handle)
		if err != nil {
			if ctx.Err() != nil {
				return t.abandon(&job, handle, last, logger)
			}
			t.finish(&job, StateFailed)
			t.cancel(handle, logger)
			logger.Warn("Transfer failed", "error", err)
			return t.result(job, last, ""), fmt.Errorf("%w: %w", ErrFailed, err)
		}
		last = st
		job.advance(StateActive)
		job.observe(st)

		if st.Complete {
			t.finish(&job, StateComplete)
			logger.Info("Transfer complete",
				"name", st.Name,
				"path", st.ArtifactPath,
				"elapsed", job.FinishedAt.Sub(job.StartedAt).Round(time.Second).String())
			return t.result(job, st, st.ArtifactPath), nil
		}

		logger.Info("Transfer progress",
			"progress", percent(st.Progress),
			"download_rate", humanize.Bytes(uint64(st.DownloadRate))+"/s",
			"upload_rate", humanize.Bytes(uint64(st.UploadRate))+"/s",
			"peers", st.Peers)

		if !t.now().Before(job.Deadline) {
			t.finish(&job, StateTimedOut)
			t.cancel(handle, logger)
			logger.Warn("Transfer timed out", "timeout", t.timeout.String(), "progress", percent(st.Progress))
			return t.result(job, st, ""), ErrTimedOut
		}

		select {
		case <-ctx.Done():
			return t.abandon(&job, handle, last, logger)
		case <-ticker.C:
		}
	}
}

func (t *Tracker) abandon(job *Job, handle Handle, last Status, logger *slog.Logger) (Result, error) {
	t.finish(job, StateFailed)
	t.cancel(handle, logger)
	logger.Info("Transfer abandoned", "progress", percent(job.Progress))
	return t.result(*job, last, ""), ErrAbandoned
}

func (t *Tracker) finish(job *Job, to State) {
	if job.advance(to) {
		job.FinishedAt = t.now()
	}
}

// cancel uses a fresh context so a job can be released after the caller's
// context has ended
func (t *Tracker) cancel(handle Handle, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := t.engine.Cancel(ctx, handle); err != nil {
		logger.Warn("Failed to cancel transfer", "error", err)
	}
}

func (*Tracker) result(job Job, st Status, artifact string) Result {
	return Result{
		Job:          job,
		ArtifactPath: artifact,
		InfoHash:     st.InfoHash,
		Name:         st.Name,
	}
}

// percent renders a progress fraction for logs
func percent(fraction float64) string {
	return fmt.Sprintf("%.1f%%", fraction*100)
}
