// Package publish gates artifacts through the idempotency ledger and size
// limit before sending them to the channel.
package publish

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// ErrNotRecorded is the reason of a send that succeeded but could not be
// written to the ledger
var ErrNotRecorded = errors.New("artifact sent but not recorded")

// Kind classifies a publish outcome
type Kind int

const (
	// KindPublished means the artifact was sent and recorded
	KindPublished Kind = iota
	// KindSkippedAlreadyPublished means the ledger already holds the key
	KindSkippedAlreadyPublished
	// KindSkippedTooLarge means the artifact exceeds the size limit
	KindSkippedTooLarge
	// KindFailed means the artifact could not be sent; nothing was recorded
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindPublished:
		return "published"
	case KindSkippedAlreadyPublished:
		return "skipped_already_published"
	case KindSkippedTooLarge:
		return "skipped_too_large"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Artifact is a local file or directory ready to publish
type Artifact struct {
	Key         string
	Path        string
	DisplayName string
}

// Outcome is the result of one Publish call
type Outcome struct {
	Kind      Kind
	Key       string
	SizeBytes int64
	// Reason is set for KindFailed
	Reason error
}

// Sender is the channel operation the gate needs
type Sender interface {
	SendFile(ctx context.Context, target int64, path, caption string) error
}

// CanonicalKey derives the ledger key of an artifact. The swarm infohash is
// preferred; the source locator is the fallback. Neither depends on where
// the artifact was downloaded.
func CanonicalKey(infoHash, sourceLocator string) string {
	if h := strings.TrimSpace(infoHash); h != "" {
		return "btih:" + strings.ToLower(h)
	}
	sum := sha256.Sum256([]byte(strings.TrimSpace(sourceLocator)))
	return "src:" + hex.EncodeToString(sum[:])
}

// Caption renders the channel caption for an item
func Caption(title, declaredSize string) string {
	return fmt.Sprintf("📁 %s\n💾 Size: %s", title, declaredSize)
}
