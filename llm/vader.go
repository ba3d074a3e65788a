package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/jonreiter/govader"
	"github.com/russross/blackfriday/v2"
)

// Vader is an offline lexicon model. It scores the prompt's Text with VADER
// and tags catalysts by keyword, answering in the same JSON shape a hosted
// model would.
type Vader struct {
	analyzer *govader.SentimentIntensityAnalyzer
}

// NewVader creates the local model.
func NewVader() *Vader {
	return &Vader{analyzer: govader.NewSentimentIntensityAnalyzer()}
}

type vaderCatalyst struct {
	Type         string `json:"type"`
	Description  string `json:"description"`
	Impact       string `json:"impact"`
	Significance string `json:"significance"`
}

type vaderResponse struct {
	SentimentScore float64         `json:"sentiment_score"`
	Confidence     float64         `json:"confidence"`
	Catalysts      []vaderCatalyst `json:"catalysts"`
	Reasoning      string          `json:"reasoning"`
}

// catalystKeywords maps a catalyst type to trigger words and a default
// significance.
var catalystKeywords = []struct {
	Type         string
	Words        []string
	Significance string
}{
	{"earnings", []string{"earnings", "eps", "quarterly results", "revenue", "beat estimates", "missed estimates"}, "high"},
	{"guidance", []string{"guidance", "outlook", "forecast"}, "medium"},
	{"fda", []string{"fda", "approval", "clinical trial", "phase 3"}, "high"},
	{"m&a", []string{"merger", "acquisition", "acquire", "buyout", "takeover"}, "high"},
	{"analyst_rating", []string{"upgrade", "downgrade", "price target"}, "medium"},
	{"legal", []string{"lawsuit", "subpoena", "investigation", "settlement", "sec charges"}, "medium"},
	{"product", []string{"launch", "unveil", "recall"}, "low"},
	{"management", []string{"ceo", "resigns", "appointed", "steps down"}, "low"},
}

func (v *Vader) Complete(_ context.Context, p Prompt, _ string) (string, error) {
	text := p.Text
	if text == "" {
		text = p.User
	}
	plain := markdownToText(text)
	if strings.TrimSpace(plain) == "" {
		return "", fmt.Errorf("vader: empty text")
	}

	scores := v.analyzer.PolarityScores(plain)
	compound := scores.Compound

	// Strong lexical polarity with little neutral filler reads as more certain.
	confidence := 0.2 + 0.5*math.Abs(compound) + 0.2*(1-scores.Neutral)
	confidence = math.Min(confidence, 0.85)

	impact := "positive"
	if compound < 0 {
		impact = "negative"
	}

	lower := strings.ToLower(plain)
	var catalysts []vaderCatalyst
	for _, ck := range catalystKeywords {
		for _, w := range ck.Words {
			if strings.Contains(lower, w) {
				catalysts = append(catalysts, vaderCatalyst{
					Type:         ck.Type,
					Description:  fmt.Sprintf("mentions %q", w),
					Impact:       impact,
					Significance: ck.Significance,
				})
				break
			}
		}
	}
	if catalysts == nil {
		catalysts = []vaderCatalyst{}
	}

	out, err := json.Marshal(vaderResponse{
		SentimentScore: compound,
		Confidence:     confidence,
		Catalysts:      catalysts,
		Reasoning: fmt.Sprintf("Lexicon sentiment: compound %.3f (pos %.2f, neg %.2f, neu %.2f)",
			compound, scores.Positive, scores.Negative, scores.Neutral),
	})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

var (
	markdownLink = regexp.MustCompile(`\[(.*?)\]\((https?:\/\/[^\s\)]+)\)`)
	bareURL      = regexp.MustCompile(`https?://\S+|www\.\S+`)
	htmlTag      = regexp.MustCompile(`<[^>]+>`)
)

// markdownToText renders markdown and strips tags and links so the lexicon
// only sees prose.
func markdownToText(input string) string {
	input = markdownLink.ReplaceAllString(input, "$1")
	rendered := blackfriday.Run([]byte(input), blackfriday.WithNoExtensions())
	plain := htmlTag.ReplaceAllString(string(rendered), " ")
	plain = bareURL.ReplaceAllString(plain, "")
	return strings.Join(strings.Fields(plain), " ")
}
