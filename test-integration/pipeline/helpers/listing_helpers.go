package helpers

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
)

// ListingItem is one row of the fake listing page
type ListingItem struct {
	Title string
	// Href is a magnet URI or a path on the listing server. Paths under
	// /download/ serve a metainfo file whose content is InfoHash.
	Href         string
	InfoHash     string
	DeclaredSize string
}

// ListingServer serves an HTML listing page and the metainfo files it links to
type ListingServer struct {
	server    *httptest.Server
	downloads atomic.Int32

	mu    sync.Mutex
	items []ListingItem
}

// NewListingServer starts a listing server showing items, newest first
func NewListingServer(items ...ListingItem) *ListingServer {
	l := &ListingServer{items: items}
	l.server = httptest.NewServer(http.HandlerFunc(l.serve))
	return l
}

// URL returns the listing page URL
func (l *ListingServer) URL() string {
	return l.server.URL + "/latest/"
}

// SetItems replaces the listed items
func (l *ListingServer) SetItems(items ...ListingItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = items
}

// Downloads reports how many metainfo files were served
func (l *ListingServer) Downloads() int {
	return int(l.downloads.Load())
}

// Close stops the server
func (l *ListingServer) Close() {
	l.server.Close()
}

func (l *ListingServer) serve(w http.ResponseWriter, r *http.Request) {
	l.mu.Lock()
	items := append([]ListingItem(nil), l.items...)
	l.mu.Unlock()

	if strings.HasPrefix(r.URL.Path, "/download/") {
		for _, item := range items {
			if item.Href == r.URL.Path {
				l.downloads.Add(1)
				w.Header().Set("Content-Type", "application/x-bittorrent")
				_, _ = fmt.Fprint(w, item.InfoHash)
				return
			}
		}
		http.NotFound(w, r)
		return
	}

	var b strings.Builder
	b.WriteString("<html><body><table>\n")
	for _, item := range items {
		fmt.Fprintf(&b, "<tr><td><a href=\"%s\">%s</a></td><td>%s</td></tr>\n",
			html.EscapeString(item.Href), html.EscapeString(item.Title), html.EscapeString(item.DeclaredSize))
	}
	b.WriteString("</table></body></html>\n")

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprint(w, b.String())
}

// MagnetFor returns a magnet URI for infoHash
func MagnetFor(infoHash, name string) string {
	return fmt.Sprintf("magnet:?xt=urn:btih:%s&dn=%s", infoHash, strings.ReplaceAll(name, " ", "+"))
}
