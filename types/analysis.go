package types

import (
	"strings"
	"time"
)

// Impact is the direction a catalyst pushes the stock.
type Impact string

const (
	ImpactPositive Impact = "positive"
	ImpactNegative Impact = "negative"
)

// ParseImpact normalises a free-form impact label. ok is false when the label
// cannot be mapped.
func ParseImpact(s string) (Impact, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "bullish", "up", "+":
		return ImpactPositive, true
	case "negative", "bearish", "down", "-":
		return ImpactNegative, true
	}
	return "", false
}

// Significance grades how market-moving a catalyst is.
type Significance string

const (
	SignificanceHigh   Significance = "high"
	SignificanceMedium Significance = "medium"
	SignificanceLow    Significance = "low"
)

// ParseSignificance normalises a free-form significance label.
func ParseSignificance(s string) (Significance, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "major", "critical":
		return SignificanceHigh, true
	case "medium", "moderate", "med":
		return SignificanceMedium, true
	case "low", "minor":
		return SignificanceLow, true
	}
	return "", false
}

// Catalyst is a discrete market-moving event extracted from an article.
type Catalyst struct {
	Type         string       `json:"type"`
	Description  string       `json:"description"`
	Impact       Impact       `json:"impact"`
	Significance Significance `json:"significance"`
}

// Analysis is the model's read of a single article.
type Analysis struct {
	ID             string     `json:"id"`
	ArticleID      string     `json:"article_id"`
	ArticleURL     string     `json:"article_url"`
	Ticker         string     `json:"ticker"`
	SentimentScore float64    `json:"sentiment_score"`
	Confidence     float64    `json:"confidence"`
	Catalysts      []Catalyst `json:"catalysts"`
	Reasoning      string     `json:"reasoning"`
	Model          string     `json:"model"`
	Fingerprint    string     `json:"fingerprint"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Clone returns a copy that shares no slices with a.
func (a Analysis) Clone() Analysis {
	if a.Catalysts != nil {
		a.Catalysts = append([]Catalyst(nil), a.Catalysts...)
	}
	return a
}

// Clamp bounds v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if v != v || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
