// Package discovery turns a remote listing into candidate items.
package discovery

import (
	"context"
	"regexp"
	"time"
)

//go:generate mockgen -destination=mocks/mock_discoverer.go -package=mocks -source=types.go Discoverer

// UnknownSize is the declared size of a candidate whose listing shows none
const UnknownSize = "Unknown"

// CandidateItem is one downloadable item found during a scan
type CandidateItem struct {
	Title         string    `json:"title"`
	SourceLocator string    `json:"sourceLocator"`
	DeclaredSize  string    `json:"declaredSize"`
	DiscoveredAt  time.Time `json:"discoveredAt"`
}

// Discoverer lists the newest candidates of a listing source
type Discoverer interface {
	// ListLatest returns up to limit candidates in listing order. A transient
	// failure returns an error and no candidates; callers treat it as an
	// empty scan.
	ListLatest(ctx context.Context, limit int) ([]CandidateItem, error)
}

// sizePattern matches sizes such as "350.2 MB" or "1.4GB"
var sizePattern = regexp.MustCompile(`(?i)(\d+\.?\d*\s*(?:KB|MB|GB|KiB|MiB|GiB))`)

// extractSize returns the first size mentioned in text
func extractSize(text string) string {
	if m := sizePattern.FindString(text); m != "" {
		return m
	}
	return UnknownSize
}
