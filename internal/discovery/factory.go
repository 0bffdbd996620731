package discovery

import (
	"fmt"

	"github.com/seedpost/seedpost/internal/config"
	"github.com/seedpost/seedpost/internal/httpclient"
)

// NewFromConfig returns the lister matching listing.format
func NewFromConfig(cfg config.ListingConfig, client httpclient.Client) (Discoverer, error) {
	switch cfg.Format {
	case "", config.ListingFormatHTML:
		return NewHTMLLister(client, cfg.URL), nil
	case config.ListingFormatRSS:
		return NewFeedLister(client, cfg.URL), nil
	default:
		return nil, fmt.Errorf("unsupported listing format: %s", cfg.Format)
	}
}
