package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

//go:generate mockgen -destination=mocks/mock_ledger.go -package=mocks -source=types.go Ledger

// ErrLocked is returned by Load when another process owns the ledger file
var ErrLocked = errors.New("ledger is locked by another process")

// Record is one published artifact
type Record struct {
	// Key is the canonical identity of the artifact
	Key string `json:"-"`

	// DisplayName is the human-readable artifact name
	DisplayName string `json:"name"`

	// PublishedAt is when the channel accepted the artifact
	PublishedAt time.Time `json:"upload_time"`

	// SizeBytes is the artifact size at publish time
	SizeBytes int64 `json:"size"`
}

// uploadTimeLayouts are tried in order when decoding upload_time. The
// offset-less layouts cover history files written by the earlier uploader,
// whose timestamps are in local time.
var uploadTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// UnmarshalJSON accepts upload_time with or without a zone offset
func (r *Record) UnmarshalJSON(data []byte) error {
	type plain Record
	var raw struct {
		plain
		PublishedAt string `json:"upload_time"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = Record(raw.plain)
	if raw.PublishedAt == "" {
		return nil
	}
	for _, layout := range uploadTimeLayouts {
		if t, err := time.ParseInLocation(layout, raw.PublishedAt, time.Local); err == nil {
			r.PublishedAt = t
			return nil
		}
	}
	return fmt.Errorf("invalid upload_time %q", raw.PublishedAt)
}

// Ledger is the idempotency ledger consulted by the publish gate
type Ledger interface {
	// Has reports whether a record with the given key exists
	Has(key string) bool

	// Record appends a record and persists the full ledger before returning.
	// Callers check Has first; Record does not detect duplicates.
	Record(ctx context.Context, key, displayName string, sizeBytes int64) error

	// Records returns all records ordered by publish time
	Records() []Record
}

// LoadOutcome reports how the backing file was loaded
type LoadOutcome struct {
	// Ledger is always usable, empty when the file was missing or corrupted
	Ledger *FileLedger

	// Corrupted is true when the file existed but could not be decoded
	Corrupted bool

	// Reason describes the corruption
	Reason string

	// BackupPath is where the corrupted file was moved, empty if it was left in place
	BackupPath string
}
