package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Option configures a FileLedger
type Option func(*FileLedger)

// WithClock overrides the clock used to stamp records
func WithClock(now func() time.Time) Option {
	return func(l *FileLedger) {
		l.now = now
	}
}

// WithKeepCorrupt leaves a corrupted file in place instead of moving it
// aside, for callers that refuse to start on corruption
func WithKeepCorrupt() Option {
	return func(l *FileLedger) {
		l.keepCorrupt = true
	}
}

// FileLedger is a Ledger backed by a single JSON file
type FileLedger struct {
	path        string
	lock        *flock.Flock
	now         func() time.Time
	keepCorrupt bool

	// mu serialises file rewrites and guards records
	mu      sync.RWMutex
	records map[string]Record
}

// Load opens the ledger at path, creating its directory if needed.
// It returns an error only when the directory cannot be created or the
// file lock cannot be taken; decoding problems are reported in LoadOutcome.
func Load(path string, opts ...Option) (*LoadOutcome, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock ledger %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	l := &FileLedger{
		path:    path,
		lock:    lock,
		now:     time.Now,
		records: make(map[string]Record),
	}
	for _, opt := range opts {
		opt(l)
	}

	outcome := &LoadOutcome{Ledger: l}

	// #nosec G304 -- path comes from operator configuration
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("No ledger file found, starting empty", "path", path)
			return outcome, nil
		}
		outcome.Corrupted = true
		outcome.Reason = fmt.Sprintf("failed to read ledger file: %v", err)
		slog.Warn("Ledger unreadable, starting empty", "path", path, "error", err)
		return outcome, nil
	}

	var stored map[string]Record
	if err := json.Unmarshal(data, &stored); err != nil {
		outcome.Corrupted = true
		outcome.Reason = fmt.Sprintf("failed to decode ledger file: %v", err)
		if !l.keepCorrupt {
			outcome.BackupPath = l.moveAside()
		}
		slog.Warn("Ledger corrupted, starting empty",
			"path", path,
			"backup", outcome.BackupPath,
			"error", err)
		return outcome, nil
	}

	for key, rec := range stored {
		rec.Key = key
		l.records[key] = rec
	}
	slog.Info("Loaded ledger", "path", path, "records", len(l.records))
	return outcome, nil
}

// moveAside renames a corrupted ledger so the next write does not destroy it
func (l *FileLedger) moveAside() string {
	backup := fmt.Sprintf("%s.corrupt-%d", l.path, l.now().Unix())
	if err := os.Rename(l.path, backup); err != nil {
		slog.Warn("Failed to move corrupted ledger aside", "path", l.path, "error", err)
		return ""
	}
	return backup
}

// Path returns the backing file path
func (l *FileLedger) Path() string {
	return l.path
}

// Has reports whether key is recorded
func (l *FileLedger) Has(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.records[key]
	return ok
}

// Record adds a record and rewrites the ledger file. The in-memory record is
// rolled back if the file cannot be written.
func (l *FileLedger) Record(_ context.Context, key, displayName string, sizeBytes int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev, existed := l.records[key]
	l.records[key] = Record{
		Key:         key,
		DisplayName: displayName,
		PublishedAt: l.now().UTC(),
		SizeBytes:   sizeBytes,
	}

	if err := l.persist(); err != nil {
		if existed {
			l.records[key] = prev
		} else {
			delete(l.records, key)
		}
		return err
	}
	return nil
}

// Records returns a copy of all records ordered by publish time
func (l *FileLedger) Records() []Record {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Record, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PublishedAt.Equal(out[j].PublishedAt) {
			return out[i].Key < out[j].Key
		}
		return out[i].PublishedAt.Before(out[j].PublishedAt)
	})
	return out
}

// Close releases the file lock
func (l *FileLedger) Close() error {
	if l.lock == nil {
		return nil
	}
	return l.lock.Unlock()
}

// persist writes the full ledger; the caller holds mu
func (l *FileLedger) persist() error {
	data, err := json.MarshalIndent(l.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	// Write to temporary file in the same directory so the rename is atomic
	tmp, err := os.CreateTemp(filepath.Dir(l.path), filepath.Base(l.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary ledger file: %w", err)
	}
	tempPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to write temporary ledger file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to sync temporary ledger file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to close temporary ledger file: %w", err)
	}

	if err := os.Rename(tempPath, l.path); err != nil {
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}
