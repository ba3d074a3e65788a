package rssfeeds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"catalystbot/config"
	"catalystbot/types"

	"github.com/mmcdole/gofeed"
)

// Response is the raw result of a fetch.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Fetcher retrieves a URL. Header and user-agent policy belong to the
// implementation.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// ErrBlocked matches StatusErrors for 401, 403 and 429.
var ErrBlocked = errors.New("blocked by remote")

// StatusError is a non-2xx response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.Status)
}

// Blocked reports whether the status signals rate limiting or bot blocking.
func (e *StatusError) Blocked() bool {
	return e.Status == http.StatusUnauthorized ||
		e.Status == http.StatusForbidden ||
		e.Status == http.StatusTooManyRequests
}

// Is lets errors.Is(err, ErrBlocked) match blocking statuses.
func (e *StatusError) Is(target error) bool {
	return target == ErrBlocked && e.Blocked()
}

// HTTPFetcher is the default Fetcher over net/http.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
	MaxBytes  int64
}

// NewHTTPFetcher creates a fetcher with the default timeout and body cap.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client:    &http.Client{Timeout: config.FetchTimeout},
		UserAgent: "Mozilla/5.0 (compatible; catalystbot/1.0; +https://github.com/catalystbot)",
		MaxBytes:  config.MaxBodyBytes,
	}
}

// Fetch performs a GET. Bodies over MaxBytes are truncated.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/html;q=0.9, */*;q=0.8")

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	limit := f.MaxBytes
	if limit <= 0 {
		limit = config.MaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// checkStatus turns a non-2xx response into a StatusError.
func checkStatus(url string, resp *Response) error {
	if resp.Status < 200 || resp.Status > 299 {
		return &StatusError{URL: url, Status: resp.Status}
	}
	return nil
}

// ParseFeed parses an RSS/Atom body into articles attributed to src,
// returning at most maxCount items (0 means all).
func ParseFeed(body []byte, src Source, maxCount int) ([]*types.Article, error) {
	parser := gofeed.NewParser()
	feed, err := parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	count := len(feed.Items)
	if maxCount > 0 && maxCount < count {
		count = maxCount
	}
	articles := make([]*types.Article, 0, count)
	now := time.Now().UTC()

	for i := 0; i < count; i++ {
		item := feed.Items[i]
		if item.Link == "" {
			continue
		}

		var publishedAt time.Time
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			publishedAt = *item.UpdatedParsed
		}

		author := ""
		if item.Author != nil {
			author = item.Author.Name
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}

		categories := make([]string, len(item.Categories))
		copy(categories, item.Categories)

		ticker := src.Ticker
		if ticker == "" {
			ticker = DetectTicker(item.Title, summary, categories)
		}

		articles = append(articles, &types.Article{
			ID:          types.GenerateID(CanonicalURL(item.Link)),
			Title:       item.Title,
			URL:         item.Link,
			Source:      src.Name,
			Ticker:      ticker,
			PublishedAt: publishedAt,
			FetchedAt:   now,
			Summary:     summary,
			Author:      author,
			Categories:  categories,
		})
	}

	return articles, nil
}
