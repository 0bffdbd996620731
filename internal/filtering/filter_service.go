package filtering

import (
	"context"
	"log/slog"

	"github.com/seedpost/seedpost/internal/config"
	"github.com/seedpost/seedpost/internal/discovery"
)

// FilterService applies the configured title filter to a scan
type FilterService interface {
	// ApplyFilters returns the candidates that pass filter, in their original order
	ApplyFilters(ctx context.Context, items []discovery.CandidateItem, filter *config.FilterConfig) []discovery.CandidateItem
}

// defaultFilterService implements FilterService with a TitleFilter
type defaultFilterService struct {
	titleFilter TitleFilter
}

// NewDefaultFilterService creates a new defaultFilterService with the glob title filter
func NewDefaultFilterService() FilterService {
	return &defaultFilterService{titleFilter: NewDefaultTitleFilter()}
}

// NewFilterService creates a new defaultFilterService with a custom title filter
func NewFilterService(titleFilter TitleFilter) FilterService {
	return &defaultFilterService{titleFilter: titleFilter}
}

// ApplyFilters drops candidates whose titles the filter rejects. A nil or
// empty filter returns items unchanged.
func (s *defaultFilterService) ApplyFilters(
	_ context.Context,
	items []discovery.CandidateItem,
	filter *config.FilterConfig,
) []discovery.CandidateItem {
	if filter.IsEmpty() {
		return items
	}

	kept := make([]discovery.CandidateItem, 0, len(items))
	for _, item := range items {
		include, reason := s.titleFilter.ShouldInclude(item.Title, filter.Include, filter.Exclude)
		if !include {
			slog.Debug("Candidate filtered out", "title", item.Title, "reason", reason)
			continue
		}
		kept = append(kept, item)
	}

	if dropped := len(items) - len(kept); dropped > 0 {
		slog.Info("Applied title filter", "kept", len(kept), "dropped", dropped)
	}
	return kept
}

// filteredDiscoverer applies a FilterService to every scan of an inner discoverer
type filteredDiscoverer struct {
	inner   discovery.Discoverer
	service FilterService
	filter  *config.FilterConfig
}

// NewFilteredDiscoverer wraps inner so that ListLatest only returns candidates
// passing filter. The limit applies to the listing before filtering. A nil or
// empty filter returns inner itself.
func NewFilteredDiscoverer(inner discovery.Discoverer, service FilterService, filter *config.FilterConfig) discovery.Discoverer {
	if filter.IsEmpty() {
		return inner
	}
	return &filteredDiscoverer{inner: inner, service: service, filter: filter}
}

func (d *filteredDiscoverer) ListLatest(ctx context.Context, limit int) ([]discovery.CandidateItem, error) {
	items, err := d.inner.ListLatest(ctx, limit)
	if err != nil {
		return nil, err
	}
	return d.service.ApplyFilters(ctx, items, d.filter), nil
}
