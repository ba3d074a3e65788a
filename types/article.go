package types

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Article is a single news item pulled from a source. The URL is its identity.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Ticker      string    `json:"ticker,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	FetchedAt   time.Time `json:"fetched_at"`
	Summary     string    `json:"summary,omitempty"`
	Body        string    `json:"body,omitempty"`
	Author      string    `json:"author,omitempty"`
	Categories  []string  `json:"categories,omitempty"`
	Processed   bool      `json:"processed"`

	// ExtractionError is set when full-body extraction failed and only the
	// feed summary is available.
	ExtractionError string `json:"extraction_error,omitempty"`
}

// Content returns the body when present, otherwise the summary.
func (a *Article) Content() string {
	if a.Body != "" {
		return a.Body
	}
	return a.Summary
}

// GenerateID creates a short, stable ID from a URL
func GenerateID(url string) string {
	hash := sha256.Sum256([]byte(url))
	return hex.EncodeToString(hash[:])[:16]
}
