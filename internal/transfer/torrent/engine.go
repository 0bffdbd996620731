// Package torrent implements transfer.Engine on top of anacrolix/torrent.
package torrent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/metainfo"

	"github.com/seedpost/seedpost/internal/transfer"
)

// ErrUnknownHandle is returned for handles the engine never started or already dropped
var ErrUnknownHandle = errors.New("unknown transfer handle")

// Option configures an Engine
type Option func(*torrent.ClientConfig)

// WithListenPort sets the peer listen port; zero picks a free port
func WithListenPort(port int) Option {
	return func(c *torrent.ClientConfig) {
		c.ListenPort = port
	}
}

// WithSeeding keeps uploading after a job completes
func WithSeeding(seed bool) Option {
	return func(c *torrent.ClientConfig) {
		c.Seed = seed
	}
}

type job struct {
	t        *torrent.Torrent
	root     string
	lastRead int64
	lastSent int64
	lastAt   time.Time
	started  bool
}

// Engine runs swarm transfers in a single torrent client whose data
// directory is the download root
type Engine struct {
	client  *torrent.Client
	dataDir string

	mu   sync.Mutex
	jobs map[transfer.Handle]*job
}

// New creates an engine storing content under dataDir
func New(dataDir string, opts ...Option) (*Engine, error) {
	cfg := torrent.NewDefaultClientConfig()
	cfg.DataDir = dataDir
	cfg.Seed = false
	for _, opt := range opts {
		opt(cfg)
	}

	client, err := torrent.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create torrent client: %w", err)
	}

	return &Engine{
		client:  client,
		dataDir: dataDir,
		jobs:    make(map[transfer.Handle]*job),
	}, nil
}

// Start adds the descriptor to the client. saveRoot must be the engine's
// data directory.
func (e *Engine) Start(_ context.Context, d transfer.Descriptor, saveRoot string) (transfer.Handle, error) {
	if filepath.Clean(saveRoot) != filepath.Clean(e.dataDir) {
		return "", fmt.Errorf("save root %s differs from engine data directory %s", saveRoot, e.dataDir)
	}

	var (
		t   *torrent.Torrent
		err error
	)
	switch {
	case d.Magnet != "":
		t, err = e.client.AddMagnet(d.Magnet)
	case d.Path != "":
		t, err = e.client.AddTorrentFromFile(d.Path)
	default:
		return "", errors.New("empty transfer descriptor")
	}
	if err != nil {
		return "", fmt.Errorf("failed to add torrent: %w", err)
	}

	h := transfer.Handle(t.InfoHash().HexString())

	e.mu.Lock()
	e.jobs[h] = &job{t: t, root: saveRoot, lastAt: time.Now()}
	e.mu.Unlock()

	slog.Debug("Torrent added", "infohash", string(h), "name", t.Name())
	return h, nil
}

// Status reports progress and rates since the previous call
func (e *Engine) Status(_ context.Context, h transfer.Handle) (transfer.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	j, ok := e.jobs[h]
	if !ok {
		return transfer.Status{}, ErrUnknownHandle
	}

	select {
	case <-j.t.Closed():
		return transfer.Status{}, errors.New("torrent closed")
	default:
	}

	st := transfer.Status{
		Name:     j.t.Name(),
		InfoHash: string(h),
	}

	// Metadata for magnets arrives from peers
	if j.t.Info() == nil {
		st.Peers = j.t.Stats().ActivePeers
		return st, nil
	}
	if !j.started {
		j.t.DownloadAll()
		j.started = true
	}

	now := time.Now()
	stats := j.t.Stats()
	read := stats.BytesReadData.Int64()
	sent := stats.BytesWrittenData.Int64()
	if elapsed := now.Sub(j.lastAt).Seconds(); elapsed > 0 {
		st.DownloadRate = float64(read-j.lastRead) / elapsed
		st.UploadRate = float64(sent-j.lastSent) / elapsed
	}
	j.lastRead, j.lastSent, j.lastAt = read, sent, now

	total := j.t.Length()
	done := j.t.BytesCompleted()
	if total > 0 {
		st.Progress = float64(done) / float64(total)
	}
	st.Peers = stats.ActivePeers
	st.Complete = total > 0 && done >= total
	st.ArtifactPath = filepath.Join(j.root, j.t.Name())

	// Completed content stays on disk; the torrent itself is no longer needed
	if st.Complete {
		j.t.Drop()
		delete(e.jobs, h)
	}
	return st, nil
}

// Cancel drops the torrent and forgets the handle
func (e *Engine) Cancel(_ context.Context, h transfer.Handle) error {
	e.mu.Lock()
	j, ok := e.jobs[h]
	delete(e.jobs, h)
	e.mu.Unlock()

	if !ok {
		return ErrUnknownHandle
	}
	j.t.Drop()
	return nil
}

// Identify returns the infohash of a descriptor without starting a transfer
func (*Engine) Identify(d transfer.Descriptor) (string, error) {
	switch {
	case d.Magnet != "":
		m, err := metainfo.ParseMagnetUri(d.Magnet)
		if err != nil {
			return "", fmt.Errorf("invalid magnet uri: %w", err)
		}
		return m.InfoHash.HexString(), nil
	case d.Path != "":
		mi, err := metainfo.LoadFromFile(d.Path)
		if err != nil {
			return "", fmt.Errorf("invalid metainfo file: %w", err)
		}
		return mi.HashInfoBytes().HexString(), nil
	default:
		return "", errors.New("empty transfer descriptor")
	}
}

// Close shuts the client down
func (e *Engine) Close() error {
	e.client.Close()
	return nil
}
