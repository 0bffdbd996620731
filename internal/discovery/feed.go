package discovery

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mmcdole/gofeed"

	"github.com/seedpost/seedpost/internal/httpclient"
)

const bittorrentMimeType = "application/x-bittorrent"

// FeedLister reads candidates from an RSS or Atom feed whose items carry
// torrent enclosures or magnet links
type FeedLister struct {
	client  httpclient.Client
	feedURL string
	parser  *gofeed.Parser
	now     func() time.Time
}

// NewFeedLister creates a lister for the feed at feedURL
func NewFeedLister(client httpclient.Client, feedURL string) *FeedLister {
	return &FeedLister{
		client:  client,
		feedURL: feedURL,
		parser:  gofeed.NewParser(),
		now:     time.Now,
	}
}

// ListLatest fetches the feed and returns the first limit items that carry a descriptor
func (f *FeedLister) ListLatest(ctx context.Context, limit int) ([]CandidateItem, error) {
	body, err := f.client.Get(ctx, f.feedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	feed, err := f.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	discoveredAt := f.now()
	items := make([]CandidateItem, 0, limit)
	for _, it := range feed.Items {
		if len(items) >= limit {
			break
		}
		locator, size := feedDescriptor(it)
		if locator == "" {
			continue
		}
		if size == UnknownSize {
			size = extractSize(it.Title + " " + it.Description)
		}

		title := strings.TrimSpace(it.Title)
		if title == "" {
			title = "Unknown"
		}

		items = append(items, CandidateItem{
			Title:         title,
			SourceLocator: locator,
			DeclaredSize:  size,
			DiscoveredAt:  discoveredAt,
		})
	}

	slog.Info("Scanned listing feed", "url", f.feedURL, "feed", feed.Title, "candidates", len(items))
	return items, nil
}

// feedDescriptor picks the descriptor locator of a feed item, preferring a
// torrent enclosure, and its size when the enclosure declares one
func feedDescriptor(it *gofeed.Item) (string, string) {
	for _, enc := range it.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if enc.Type == bittorrentMimeType || isDescriptorLink(enc.URL) {
			return strings.TrimSpace(enc.URL), enclosureSize(enc.Length)
		}
	}
	link := strings.TrimSpace(it.Link)
	if isDescriptorLink(link) {
		return link, UnknownSize
	}
	return "", UnknownSize
}

func enclosureSize(length string) string {
	n, err := humanize.ParseBytes(strings.TrimSpace(length))
	if err != nil || n == 0 {
		return UnknownSize
	}
	return humanize.Bytes(n)
}
