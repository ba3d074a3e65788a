package rssfeeds

import (
	"testing"

	"catalystbot/ratelimit"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalURL(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want string
	}{
		{"simple", "https://example.com/path", "https://example.com/path"},
		{"utm and fragment", "https://example.com/path?utm_source=feed#section", "https://example.com/path"},
		{"uppercase host", "HTTP://Example.COM/", "http://example.com"},
		{"tracking params", "https://example.com/?fbclid=XYZ&gclid=ABC&utm_medium=1", "https://example.com"},
		{"keeps real params", "https://example.com/q?id=7&utm_campaign=x", "https://example.com/q?id=7"},
		{"empty", "  ", ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, CanonicalURL(c.url))
		})
	}
}

func TestDetectTicker(t *testing.T) {
	cases := []struct {
		name       string
		title      string
		summary    string
		categories []string
		want       string
	}{
		{"cashtag in title", "Why $NVDA is rallying", "", nil, "NVDA"},
		{"exchange notation", "Apple Inc. (Nasdaq: aapl) sets record", "", nil, "AAPL"},
		{"summary fallback", "Shares rally", "Ford (NYSE: F) posted gains", nil, "F"},
		{"category", "Earnings season", "", []string{"Markets", "MSFT"}, "MSFT"},
		{"class shares", "$BRK.B hits high", "", nil, "BRK.B"},
		{"none", "Fed holds rates", "Policy unchanged", []string{"Economy"}, ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, DetectTicker(c.title, c.summary, c.categories))
		})
	}
}

func TestResolveSource(t *testing.T) {
	src, err := ResolveSource("yahoo", 5)
	require.NoError(t, err)
	assert.Equal(t, FeedPresets["yahoo"].URL, src.URL)
	assert.Equal(t, KindRSS, src.Kind)
	assert.Equal(t, 5, src.MaxItems)

	src, err = ResolveSource("yahoo:aapl", 5)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", src.Ticker)
	assert.Contains(t, src.URL, "s=AAPL")

	src, err = ResolveSource("page:https://example.com/story", 5)
	require.NoError(t, err)
	assert.Equal(t, KindPage, src.Kind)

	src, err = ResolveSource("https://example.com/feed.xml", 3)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/feed.xml", src.URL)

	for _, bad := range []string{"", "nonsense", "yahoo:not a ticker", "page:ftp://x"} {
		_, err := ResolveSource(bad, 1)
		assert.Error(t, err, bad)
	}
}

func TestResolveSources_CollectsErrors(t *testing.T) {
	sources, errs := ResolveSources([]string{"cnbc", "bogus", "nasdaq"}, 10)
	assert.Len(t, sources, 2)
	assert.Len(t, errs, 1)
}

func TestParseFeed(t *testing.T) {
	body := rssFeed(
		[2]string{"One", "https://example.com/1"},
		[2]string{"Two", "https://example.com/2"},
		[2]string{"Three", "https://example.com/3"},
	)
	articles, err := ParseFeed(body, Source{Name: "src", Ticker: "AMD"}, 2)
	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, "AMD", articles[0].Ticker)
	assert.Equal(t, "One summary", articles[0].Summary)
	assert.False(t, articles[0].PublishedAt.IsZero())

	_, err = ParseFeed([]byte("not xml at all"), Source{}, 0)
	assert.Error(t, err)
}

func TestFeedPresets_HaveKnownRateRules(t *testing.T) {
	l := ratelimit.New(ratelimit.DefaultConfig(nil), zerolog.Nop())
	def := ratelimit.DefaultConfig(nil).Default

	for name, src := range FeedPresets {
		t.Run(name, func(t *testing.T) {
			rule := l.RuleFor(ratelimit.ExtractDomain(src.URL))
			assert.NotEqual(t, def, rule, "%s resolves to the default rule", src.URL)
		})
	}
	assert.Equal(t, ratelimit.KnownDomains["dowjones.io"],
		l.RuleFor(ratelimit.ExtractDomain(FeedPresets["marketwatch"].URL)))
}
