package analyzer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"catalystbot/types"
)

// Response is the structured output requested from the model.
type Response struct {
	SentimentScore *float64           `json:"sentiment_score" jsonschema:"description=Sentiment from -1 (very bearish) to 1 (very bullish)"`
	Confidence     *float64           `json:"confidence" jsonschema:"description=Confidence in the assessment from 0 to 1"`
	Catalysts      []ResponseCatalyst `json:"catalysts"`
	Reasoning      string             `json:"reasoning" jsonschema:"description=One or two sentences explaining the score"`
}

// ResponseCatalyst is one catalyst as the model reports it.
type ResponseCatalyst struct {
	Type         string `json:"type" jsonschema:"description=Short label such as earnings or fda"`
	Description  string `json:"description"`
	Impact       string `json:"impact" jsonschema:"enum=positive,enum=negative"`
	Significance string `json:"significance" jsonschema:"enum=high,enum=medium,enum=low"`
}

// ErrMalformed marks a model response that could not be turned into an
// analysis.
var ErrMalformed = errors.New("malformed model response")

// Parsed is a validated model response.
type Parsed struct {
	SentimentScore float64
	Confidence     float64
	Catalysts      []types.Catalyst
	Reasoning      string

	// Dropped counts catalysts rejected during validation.
	Dropped int
}

// Parse extracts and validates the first JSON object in raw. Scores are
// clamped into range; catalysts with unknown impact or significance are
// dropped.
func Parse(raw string) (Parsed, error) {
	obj, err := extractJSON(raw)
	if err != nil {
		return Parsed{}, err
	}

	var resp Response
	if err := json.Unmarshal([]byte(obj), &resp); err != nil {
		return Parsed{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if resp.SentimentScore == nil {
		return Parsed{}, fmt.Errorf("%w: missing sentiment_score", ErrMalformed)
	}
	if resp.Confidence == nil {
		return Parsed{}, fmt.Errorf("%w: missing confidence", ErrMalformed)
	}

	p := Parsed{
		SentimentScore: types.Clamp(*resp.SentimentScore, -1, 1),
		Confidence:     types.Clamp(*resp.Confidence, 0, 1),
		Catalysts:      make([]types.Catalyst, 0, len(resp.Catalysts)),
		Reasoning:      strings.TrimSpace(resp.Reasoning),
	}
	for _, rc := range resp.Catalysts {
		c, ok := validateCatalyst(rc)
		if !ok {
			p.Dropped++
			continue
		}
		p.Catalysts = append(p.Catalysts, c)
	}
	return p, nil
}

func validateCatalyst(rc ResponseCatalyst) (types.Catalyst, bool) {
	kind := strings.ToLower(strings.TrimSpace(rc.Type))
	if kind == "" {
		return types.Catalyst{}, false
	}
	impact, ok := types.ParseImpact(rc.Impact)
	if !ok {
		return types.Catalyst{}, false
	}
	sig, ok := types.ParseSignificance(rc.Significance)
	if !ok {
		return types.Catalyst{}, false
	}
	return types.Catalyst{
		Type:         kind,
		Description:  strings.TrimSpace(rc.Description),
		Impact:       impact,
		Significance: sig,
	}, true
}

// extractJSON strips markdown fences and returns the first balanced JSON
// object in s.
func extractJSON(s string) (string, error) {
	cleaned := strings.TrimSpace(s)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}

	start := strings.IndexByte(cleaned, '{')
	if start < 0 {
		return "", fmt.Errorf("%w: no JSON object found", ErrMalformed)
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(cleaned); i++ {
		ch := cleaned[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return cleaned[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("%w: unterminated JSON object", ErrMalformed)
}
