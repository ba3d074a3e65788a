package rssfeeds

import (
	"fmt"
	"net/url"
	"strings"
)

// SourceKind says how a source is turned into articles.
type SourceKind string

const (
	// KindRSS is an RSS or Atom feed.
	KindRSS SourceKind = "rss"
	// KindPage is a single article page read with readability.
	KindPage SourceKind = "page"
)

// Source is one configured place to pull news from.
type Source struct {
	Name     string     `json:"name"`
	URL      string     `json:"url"`
	Kind     SourceKind `json:"kind"`
	Ticker   string     `json:"ticker,omitempty"`
	MaxItems int        `json:"max_items,omitempty"`
}

// FeedPresets maps friendly keys to financial news feeds
var FeedPresets = map[string]Source{
	"yahoo": {
		Name: "Yahoo Finance",
		URL:  "https://finance.yahoo.com/news/rssindex",
	},
	"marketwatch": {
		Name: "MarketWatch Top Stories",
		URL:  "https://feeds.content.dowjones.io/public/rss/mw_topstories",
	},
	"cnbc": {
		Name: "CNBC Top News",
		URL:  "https://search.cnbc.com/rs/search/combinedcms/view.xml?partnerId=wrss01&id=100003114",
	},
	"seekingalpha": {
		Name: "Seeking Alpha Market Currents",
		URL:  "https://seekingalpha.com/market_currents.xml",
	},
	"nasdaq": {
		Name: "Nasdaq Markets",
		URL:  "https://www.nasdaq.com/feed/rssoutbound?category=Markets",
	},
}

// yahooTickerFeed is the per-symbol headline feed.
const yahooTickerFeed = "https://feeds.finance.yahoo.com/rss/2.0/headline?s=%s&region=US&lang=en-US"

// ResolveSource turns a source spec into a Source. Accepted forms:
//
//	yahoo                   preset name
//	yahoo:AAPL              Yahoo headline feed for one ticker
//	page:https://...        single article page
//	https://...             literal feed URL
func ResolveSource(spec string, maxItems int) (Source, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return Source{}, fmt.Errorf("empty source")
	}

	if name, ticker, ok := strings.Cut(spec, ":"); ok && strings.EqualFold(name, "yahoo") {
		ticker = strings.ToUpper(strings.TrimSpace(ticker))
		if !tickerPattern.MatchString(ticker) {
			return Source{}, fmt.Errorf("source %q: invalid ticker", spec)
		}
		return Source{
			Name:     "Yahoo Finance " + ticker,
			URL:      fmt.Sprintf(yahooTickerFeed, url.QueryEscape(ticker)),
			Kind:     KindRSS,
			Ticker:   ticker,
			MaxItems: maxItems,
		}, nil
	}

	if rest, ok := strings.CutPrefix(spec, "page:"); ok {
		if !isHTTPURL(rest) {
			return Source{}, fmt.Errorf("source %q: page needs an http(s) URL", spec)
		}
		return Source{Name: rest, URL: rest, Kind: KindPage, MaxItems: 1}, nil
	}

	if preset, ok := FeedPresets[strings.ToLower(spec)]; ok {
		preset.Kind = KindRSS
		preset.MaxItems = maxItems
		return preset, nil
	}

	if !isHTTPURL(spec) {
		return Source{}, fmt.Errorf("source %q: not a preset or http(s) URL", spec)
	}
	return Source{Name: spec, URL: spec, Kind: KindRSS, MaxItems: maxItems}, nil
}

// ResolveSources resolves every spec, collecting the ones that fail.
func ResolveSources(specs []string, maxItems int) ([]Source, []error) {
	var sources []Source
	var errs []error
	for _, spec := range specs {
		src, err := ResolveSource(spec, maxItems)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		sources = append(sources, src)
	}
	return sources, errs
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
