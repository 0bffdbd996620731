package v1

import (
	"time"

	"github.com/seedpost/seedpost/internal/config"
	"github.com/seedpost/seedpost/internal/ledger"
	"github.com/seedpost/seedpost/internal/status"
)

//go:generate mockgen -destination=mocks/mock_readers.go -package=mocks -source=types.go StateReader,LedgerReader

// StateReader exposes the run state snapshot
type StateReader interface {
	Snapshot() status.View
}

// LedgerReader exposes the published records
type LedgerReader interface {
	Has(key string) bool
	Records() []ledger.Record
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string `json:"status" example:"healthy"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Status string `json:"status" example:"ready"`
}

// StatusResponse is the run state plus the reportable configuration
type StatusResponse struct {
	State  status.View      `json:"state"`
	Config []config.Setting `json:"config"`
}

// LedgerRecord is a ledger entry with its key
type LedgerRecord struct {
	Key         string    `json:"key"`
	DisplayName string    `json:"name"`
	PublishedAt time.Time `json:"publishedAt"`
	SizeBytes   int64     `json:"sizeBytes"`
}

// LedgerResponse lists ledger records, newest last
type LedgerResponse struct {
	Records []LedgerRecord `json:"records"`
	Total   int            `json:"total"`
}

func toLedgerRecord(r ledger.Record) LedgerRecord {
	return LedgerRecord{
		Key:         r.Key,
		DisplayName: r.DisplayName,
		PublishedAt: r.PublishedAt,
		SizeBytes:   r.SizeBytes,
	}
}
