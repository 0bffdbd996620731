package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/seedpost/seedpost/internal/ledger"
)

// Gate publishes each artifact at most once
type Gate struct {
	ledger  ledger.Ledger
	sender  Sender
	maxSize int64
}

// NewGate creates a gate rejecting artifacts larger than maxSize bytes
func NewGate(l ledger.Ledger, sender Sender, maxSize int64) *Gate {
	return &Gate{
		ledger:  l,
		sender:  sender,
		maxSize: maxSize,
	}
}

// Publish checks the ledger and size limit, sends the artifact and records
// it. A failed send records nothing for the failed file so a later cycle can
// try again. Files of a directory artifact are recorded one by one under
// "<key>#<relative path>" and are not sent twice.
func (g *Gate) Publish(ctx context.Context, a Artifact, target int64, caption string) Outcome {
	key := a.Key
	if key == "" {
		key = CanonicalKey("", a.Path)
	}
	logger := slog.With("key", key, "name", a.DisplayName)

	if g.ledger.Has(key) {
		logger.Info("Artifact already published, skipping")
		return Outcome{Kind: KindSkippedAlreadyPublished, Key: key}
	}

	files, size, err := collect(a.Path)
	if err != nil {
		logger.Warn("Failed to inspect artifact", "path", a.Path, "error", err)
		return Outcome{Kind: KindFailed, Key: key, Reason: err}
	}

	if size > g.maxSize {
		logger.Info("Artifact too large, skipping",
			"size", humanize.IBytes(uint64(size)),
			"max_size", humanize.IBytes(uint64(g.maxSize)))
		return Outcome{Kind: KindSkippedTooLarge, Key: key, SizeBytes: size}
	}

	for i, file := range files {
		part := partKey(key, a.Path, file)
		if part != "" && g.ledger.Has(part) {
			logger.Info("Artifact file already sent, skipping", "file", file)
			continue
		}
		c := ""
		if i == 0 {
			c = caption
		}
		if err := g.sender.SendFile(ctx, target, file, c); err != nil {
			logger.Warn("Failed to send artifact", "file", file, "error", err)
			return Outcome{Kind: KindFailed, Key: key, SizeBytes: size, Reason: err}
		}
		if part == "" {
			continue
		}
		if err := g.ledger.Record(ctx, part, filepath.Base(file), fileSize(file)); err != nil {
			logger.Error("Artifact file sent but ledger write failed", "file", file, "error", err)
			return Outcome{Kind: KindFailed, Key: key, SizeBytes: size, Reason: fmt.Errorf("%w: %w", ErrNotRecorded, err)}
		}
	}

	if err := g.ledger.Record(ctx, key, a.DisplayName, size); err != nil {
		logger.Error("Artifact sent but ledger write failed", "error", err)
		return Outcome{Kind: KindFailed, Key: key, SizeBytes: size, Reason: fmt.Errorf("%w: %w", ErrNotRecorded, err)}
	}

	logger.Info("Artifact published", "size", humanize.IBytes(uint64(size)), "files", len(files))
	return Outcome{Kind: KindPublished, Key: key, SizeBytes: size}
}

// partKey is the ledger key of one file of a directory artifact, empty for a
// single-file artifact
func partKey(key, root, file string) string {
	if file == root {
		return ""
	}
	rel, err := filepath.Rel(root, file)
	if err != nil {
		rel = filepath.Base(file)
	}
	return key + "#" + filepath.ToSlash(rel)
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// collect returns the files to send for path in lexical order and their
// total size. A directory contributes every regular file below it.
func collect(path string) ([]string, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to stat artifact: %w", err)
	}
	if info.Mode().IsRegular() {
		return []string{path}, info.Size(), nil
	}
	if !info.IsDir() {
		return nil, 0, fmt.Errorf("artifact %s is not a regular file or directory", path)
	}

	var (
		files []string
		total int64
	)
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, p)
		total += fi.Size()
		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to walk artifact: %w", err)
	}
	if len(files) == 0 {
		return nil, 0, errors.New("artifact directory contains no files")
	}
	sort.Strings(files)
	return files, total, nil
}
