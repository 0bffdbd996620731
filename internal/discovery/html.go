package discovery

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/seedpost/seedpost/internal/httpclient"
)

// HTMLLister scrapes descriptor links (.torrent files and magnet URIs) from
// an HTML listing page
type HTMLLister struct {
	client  httpclient.Client
	pageURL string
	now     func() time.Time
}

// NewHTMLLister creates a lister for the page at pageURL
func NewHTMLLister(client httpclient.Client, pageURL string) *HTMLLister {
	return &HTMLLister{
		client:  client,
		pageURL: pageURL,
		now:     time.Now,
	}
}

// ListLatest fetches the page and returns the first limit descriptor links
func (h *HTMLLister) ListLatest(ctx context.Context, limit int) ([]CandidateItem, error) {
	body, err := h.client.Get(ctx, h.pageURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch listing: %w", err)
	}

	items, err := h.parse(body, limit)
	if err != nil {
		return nil, err
	}
	slog.Info("Scanned listing page", "url", h.pageURL, "candidates", len(items))
	return items, nil
}

func (h *HTMLLister) parse(body []byte, limit int) ([]CandidateItem, error) {
	base, err := url.Parse(h.pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid listing url: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse listing page: %w", err)
	}

	discoveredAt := h.now()
	seen := make(map[string]bool)
	items := make([]CandidateItem, 0, limit)

	doc.Find("a[href]").EachWithBreak(func(_ int, link *goquery.Selection) bool {
		if len(items) >= limit {
			return false
		}

		href, _ := link.Attr("href")
		href = strings.TrimSpace(href)
		if !isDescriptorLink(href) {
			return true
		}

		locator := resolveLocator(base, href)
		if locator == "" || seen[locator] {
			return true
		}
		seen[locator] = true

		title := strings.TrimSpace(link.Text())
		if title == "" {
			title = strings.TrimSpace(link.AttrOr("title", ""))
		}
		if title == "" {
			title = "Unknown"
		}

		size := UnknownSize
		if row := link.Closest("tr, div, li"); row.Length() > 0 {
			size = extractSize(row.Text())
		}

		items = append(items, CandidateItem{
			Title:         title,
			SourceLocator: locator,
			DeclaredSize:  size,
			DiscoveredAt:  discoveredAt,
		})
		return true
	})

	return items, nil
}

func isDescriptorLink(href string) bool {
	return strings.HasPrefix(href, "magnet:") || strings.Contains(strings.ToLower(href), ".torrent")
}

// resolveLocator makes relative links absolute against the listing URL
func resolveLocator(base *url.URL, href string) string {
	if strings.HasPrefix(href, "magnet:") {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
