package types

// Tier is the recommendation bucket a sentiment score falls into.
type Tier string

const (
	TierStrongBuy   Tier = "STRONG_BUY"
	TierBuy         Tier = "BUY"
	TierHold        Tier = "HOLD"
	TierShort       Tier = "SHORT"
	TierStrongShort Tier = "STRONG_SHORT"
)

// Position is a ranked recommendation for one ticker.
type Position struct {
	Ticker         string     `json:"ticker"`
	Tier           Tier       `json:"tier"`
	Confidence     float64    `json:"confidence"`
	SentimentScore float64    `json:"sentiment_score"`
	Reasoning      string     `json:"reasoning"`
	AnalysisIDs    []string   `json:"analysis_ids"`
	ArticleURLs    []string   `json:"article_urls"`
	Catalysts      []Catalyst `json:"catalysts"`
}

// Clone returns a deep copy of p.
func (p Position) Clone() Position {
	p.AnalysisIDs = append([]string(nil), p.AnalysisIDs...)
	p.ArticleURLs = append([]string(nil), p.ArticleURLs...)
	p.Catalysts = append([]Catalyst(nil), p.Catalysts...)
	return p
}
