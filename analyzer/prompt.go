package analyzer

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"catalystbot/llm"
	"catalystbot/types"
)

const systemPrompt = `You are an equity research assistant. Read the news item and judge its likely short-term effect on the named stock.

Respond with a single JSON object and nothing else:
{
  "sentiment_score": number from -1.0 (very bearish) to 1.0 (very bullish),
  "confidence": number from 0.0 to 1.0,
  "catalysts": [
    {"type": "earnings|guidance|fda|m&a|analyst_rating|legal|product|management|macro|other",
     "description": "what happened",
     "impact": "positive|negative",
     "significance": "high|medium|low"}
  ],
  "reasoning": "one or two sentences"
}

If the article is not about a specific company, use a score near 0 and low confidence.`

var responseSchema = llm.GenerateSchema[Response]()

// articleText is the text the model sees for article in mode.
func articleText(article *types.Article, mode types.AnalysisMode) string {
	if mode == types.ModeFull && article.Body != "" {
		return article.Body
	}
	return article.Summary
}

// buildPrompt assembles a bounded prompt. Only the article text is truncated;
// title and ticker always fit.
func buildPrompt(article *types.Article, mode types.AnalysisMode, maxChars int) llm.Prompt {
	text := truncate(strings.TrimSpace(articleText(article, mode)), maxChars)

	var b strings.Builder
	if article.Ticker != "" {
		fmt.Fprintf(&b, "Ticker: %s\n", strings.ToUpper(article.Ticker))
	}
	if article.Source != "" {
		fmt.Fprintf(&b, "Source: %s\n", article.Source)
	}
	fmt.Fprintf(&b, "Title: %s\n", strings.TrimSpace(article.Title))
	if text != "" {
		label := "Summary"
		if mode == types.ModeFull && article.Body != "" {
			label = "Article"
		}
		fmt.Fprintf(&b, "\n%s:\n%s\n", label, text)
	}

	return llm.Prompt{
		System:     systemPrompt,
		User:       b.String(),
		Text:       strings.TrimSpace(article.Title + "\n\n" + text),
		SchemaName: "news_analysis",
		Schema:     responseSchema,
		MaxTokens:  800,
	}
}

// truncate cuts s to at most max bytes on a rune boundary.
func truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
