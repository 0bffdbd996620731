package helpers

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/seedpost/seedpost/internal/transfer"
)

// Artifact is the content a FakeEngine produces for one infohash
type Artifact struct {
	Name string
	Size int64
}

// FakeEngine completes known infohashes immediately by writing a sparse file
// of the artifact's size. Unknown infohashes fail on the first status call.
type FakeEngine struct {
	mu        sync.Mutex
	artifacts map[string]Artifact
	jobs      map[transfer.Handle]transfer.Status
	started   []string
	closed    int
}

// NewFakeEngine creates an engine serving artifacts keyed by lowercase infohash
func NewFakeEngine(artifacts map[string]Artifact) *FakeEngine {
	return &FakeEngine{
		artifacts: artifacts,
		jobs:      make(map[transfer.Handle]transfer.Status),
	}
}

// Start writes the artifact under saveRoot
func (e *FakeEngine) Start(_ context.Context, d transfer.Descriptor, saveRoot string) (transfer.Handle, error) {
	hash, err := e.Identify(d)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.started = append(e.started, hash)
	handle := transfer.Handle(hash)
	artifact, ok := e.artifacts[hash]
	if !ok {
		return handle, nil
	}

	path := filepath.Join(saveRoot, artifact.Name)
	if err := writeSparse(path, artifact.Size); err != nil {
		return "", err
	}
	e.jobs[handle] = transfer.Status{
		Progress:     1,
		Complete:     true,
		Name:         artifact.Name,
		InfoHash:     hash,
		ArtifactPath: path,
	}
	return handle, nil
}

// Status reports the job as complete
func (e *FakeEngine) Status(_ context.Context, h transfer.Handle) (transfer.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.jobs[h]
	if !ok {
		return transfer.Status{}, fmt.Errorf("no peers for %s", h)
	}
	return st, nil
}

// Cancel forgets the job
func (e *FakeEngine) Cancel(_ context.Context, h transfer.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.jobs, h)
	return nil
}

// Identify reads the infohash from a magnet URI or from a metainfo file whose
// whole content is the infohash
func (*FakeEngine) Identify(d transfer.Descriptor) (string, error) {
	switch {
	case d.Magnet != "":
		u, err := url.Parse(d.Magnet)
		if err != nil {
			return "", err
		}
		hash, ok := strings.CutPrefix(u.Query().Get("xt"), "urn:btih:")
		if !ok {
			return "", fmt.Errorf("magnet without infohash: %s", d.Magnet)
		}
		return strings.ToLower(hash), nil
	case d.Path != "":
		data, err := os.ReadFile(d.Path)
		if err != nil {
			return "", err
		}
		return strings.ToLower(strings.TrimSpace(string(data))), nil
	default:
		return "", errors.New("empty descriptor")
	}
}

// Close counts shutdowns. The engine stays usable so it can serve a restarted app.
func (e *FakeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed++
	return nil
}

// Started returns the infohashes handed to Start in order
func (e *FakeEngine) Started() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.started...)
}

func writeSparse(path string, size int64) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
