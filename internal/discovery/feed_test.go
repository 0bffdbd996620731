package discovery

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/seedpost/seedpost/internal/config"
	"github.com/seedpost/seedpost/internal/httpclient/mocks"
)

const listingFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Latest releases</title>
  <link>https://listing.example.org/</link>
  <item>
    <title>Show A - 01</title>
    <link>https://listing.example.org/item/101</link>
    <enclosure url="https://listing.example.org/download/101.torrent" length="367001600" type="application/x-bittorrent"/>
  </item>
  <item>
    <title>Show B - 01 [1.4 GB]</title>
    <link>magnet:?xt=urn:btih:c12fe1c06bba254a9dc9f519b335aa7c1367a88a</link>
  </item>
  <item>
    <title>Site news</title>
    <link>https://listing.example.org/news/1</link>
  </item>
  <item>
    <title>Show C - 03</title>
    <link>https://listing.example.org/download/103.torrent</link>
  </item>
</channel>
</rss>`

func TestFeedLister_ListLatest(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Get(gomock.Any(), "https://listing.example.org/rss").Return([]byte(listingFeed), nil)

	lister := NewFeedLister(client, "https://listing.example.org/rss")
	lister.now = fixedClock

	items, err := lister.ListLatest(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, items, 3)

	assert.Equal(t, CandidateItem{
		Title:         "Show A - 01",
		SourceLocator: "https://listing.example.org/download/101.torrent",
		DeclaredSize:  "367 MB",
		DiscoveredAt:  fixedClock(),
	}, items[0])

	assert.Equal(t, "magnet:?xt=urn:btih:c12fe1c06bba254a9dc9f519b335aa7c1367a88a", items[1].SourceLocator)
	assert.Equal(t, "1.4 GB", items[1].DeclaredSize)

	assert.Equal(t, "Show C - 03", items[2].Title)
	assert.Equal(t, UnknownSize, items[2].DeclaredSize)
}

func TestFeedLister_InvalidFeed(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Get(gomock.Any(), gomock.Any()).Return([]byte("not a feed"), nil)

	items, err := NewFeedLister(client, "https://listing.example.org/rss").ListLatest(context.Background(), 5)
	require.Error(t, err)
	assert.Empty(t, items)
}

func TestNewFromConfig(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	client := mocks.NewMockClient(ctrl)

	d, err := NewFromConfig(config.ListingConfig{URL: "https://x", Format: config.ListingFormatHTML}, client)
	require.NoError(t, err)
	assert.IsType(t, &HTMLLister{}, d)

	d, err = NewFromConfig(config.ListingConfig{URL: "https://x", Format: config.ListingFormatRSS}, client)
	require.NoError(t, err)
	assert.IsType(t, &FeedLister{}, d)

	_, err = NewFromConfig(config.ListingConfig{URL: "https://x", Format: "json"}, client)
	require.Error(t, err)
}
