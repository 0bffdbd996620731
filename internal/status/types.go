// Package status holds the process-wide run state shared by the orchestrator
// and the command plane.
package status

import "time"

// View is a consistent point-in-time copy of the run state
type View struct {
	// Enabled is false while the pipeline is paused
	Enabled bool `json:"enabled" yaml:"enabled"`

	// ItemsDiscovered is the cumulative number of candidates returned by discovery
	ItemsDiscovered int64 `json:"itemsDiscovered" yaml:"itemsDiscovered"`

	// ItemsPublished is the cumulative number of artifacts sent to the channel
	ItemsPublished int64 `json:"itemsPublished" yaml:"itemsPublished"`

	// Errors is the cumulative number of failed candidates
	Errors int64 `json:"errors" yaml:"errors"`

	// TransfersTimedOut counts transfers abandoned at their deadline.
	// Timeouts are an expected terminal state and are not counted in Errors.
	TransfersTimedOut int64 `json:"transfersTimedOut" yaml:"transfersTimedOut"`

	// LastScanAt is the time of the last completed discovery scan, nil before the first one
	LastScanAt *time.Time `json:"lastScanAt,omitempty" yaml:"lastScanAt,omitempty"`
}

// LastScanString renders LastScanAt for operator replies
func (v View) LastScanString() string {
	if v.LastScanAt == nil {
		return "Never"
	}
	return v.LastScanAt.Format("2006-01-02 15:04:05")
}
