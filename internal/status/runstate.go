package status

import (
	"sync"
	"time"
)

// RunState is the mutable pipeline state. All methods are safe for
// concurrent use; callers never lock externally.
type RunState struct {
	mu sync.RWMutex

	enabled           bool
	itemsDiscovered   int64
	itemsPublished    int64
	errors            int64
	transfersTimedOut int64
	lastScanAt        *time.Time
}

// NewRunState returns an enabled run state with zeroed counters
func NewRunState() *RunState {
	return &RunState{enabled: true}
}

// IsEnabled reports whether the pipeline should process candidates
func (s *RunState) IsEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.enabled
}

// SetEnabled pauses (false) or resumes (true) the pipeline.
// It returns the previous value.
func (s *RunState) SetEnabled(enabled bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.enabled
	s.enabled = enabled
	return prev
}

// RecordScan adds discovered to the discovery counter and stamps the scan time
func (s *RunState) RecordScan(discovered int, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.itemsDiscovered += int64(discovered)
	scanned := at
	s.lastScanAt = &scanned
}

// RecordPublish counts one published artifact
func (s *RunState) RecordPublish() {
	s.mu.Lock()
	s.itemsPublished++
	s.mu.Unlock()
}

// RecordError counts one failed candidate
func (s *RunState) RecordError() {
	s.mu.Lock()
	s.errors++
	s.mu.Unlock()
}

// RecordTimeout counts one transfer that hit its deadline
func (s *RunState) RecordTimeout() {
	s.mu.Lock()
	s.transfersTimedOut++
	s.mu.Unlock()
}

// Snapshot returns a copy of the state taken under a single lock
func (s *RunState) Snapshot() View {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view := View{
		Enabled:           s.enabled,
		ItemsDiscovered:   s.itemsDiscovered,
		ItemsPublished:    s.itemsPublished,
		Errors:            s.errors,
		TransfersTimedOut: s.transfersTimedOut,
	}
	if s.lastScanAt != nil {
		lastScan := *s.lastScanAt
		view.LastScanAt = &lastScan
	}
	return view
}
