// Package aggregator ranks per-article analyses into one position per ticker.
package aggregator

import (
	"math"
	"slices"
	"sort"
	"strings"

	"catalystbot/types"
)

// Thresholds are the tier boundaries. A score strictly above StrongBuy is
// STRONG_BUY, strictly above Buy is BUY; the short side mirrors it.
type Thresholds struct {
	StrongBuy   float64
	Buy         float64
	Short       float64
	StrongShort float64
}

// DefaultThresholds are ±0.4 and ±0.7.
var DefaultThresholds = Thresholds{
	StrongBuy:   0.7,
	Buy:         0.4,
	Short:       -0.4,
	StrongShort: -0.7,
}

// Config controls filtering and ranking. MaxPositions of zero means no cap.
type Config struct {
	MinConfidence float64
	MaxPositions  int
	Thresholds    Thresholds
}

// TierFor maps a sentiment score to its tier.
func (t Thresholds) TierFor(score float64) types.Tier {
	switch {
	case score > t.StrongBuy:
		return types.TierStrongBuy
	case score > t.Buy:
		return types.TierBuy
	case score < t.StrongShort:
		return types.TierStrongShort
	case score < t.Short:
		return types.TierShort
	default:
		return types.TierHold
	}
}

type group struct {
	ticker  string
	rep     int // index into analyses
	members []int
}

// Aggregate groups analyses by ticker, picks a representative per ticker,
// drops HOLD and low-confidence positions, and ranks the rest. The output
// depends only on the input; analyses are not modified.
func Aggregate(analyses []types.Analysis, cfg Config) []types.Position {
	thresholds := cfg.Thresholds
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds
	}

	groups := make(map[string]*group)
	var order []string
	for i, a := range analyses {
		ticker := strings.ToUpper(strings.TrimSpace(a.Ticker))
		if ticker == "" {
			continue
		}
		g, ok := groups[ticker]
		if !ok {
			g = &group{ticker: ticker, rep: i}
			groups[ticker] = g
			order = append(order, ticker)
		} else if better(analyses[i], analyses[g.rep]) {
			g.rep = i
		}
		g.members = append(g.members, i)
	}

	positions := make([]types.Position, 0, len(order))
	for _, ticker := range order {
		g := groups[ticker]
		rep := analyses[g.rep]
		tier := thresholds.TierFor(rep.SentimentScore)
		if tier == types.TierHold || rep.Confidence < cfg.MinConfidence {
			continue
		}
		positions = append(positions, buildPosition(analyses, g, tier))
	}

	sort.SliceStable(positions, func(i, j int) bool {
		a, b := positions[i], positions[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if sa, sb := math.Abs(a.SentimentScore), math.Abs(b.SentimentScore); sa != sb {
			return sa > sb
		}
		return a.Ticker < b.Ticker
	})

	if cfg.MaxPositions > 0 && len(positions) > cfg.MaxPositions {
		positions = positions[:cfg.MaxPositions]
	}
	return positions
}

// better reports whether a should replace the current representative b.
// Equal confidence and timestamp keep the earlier analysis.
func better(a, b types.Analysis) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func buildPosition(analyses []types.Analysis, g *group, tier types.Tier) types.Position {
	rep := analyses[g.rep]
	p := types.Position{
		Ticker:         g.ticker,
		Tier:           tier,
		Confidence:     rep.Confidence,
		SentimentScore: rep.SentimentScore,
		Reasoning:      rep.Reasoning,
		AnalysisIDs:    make([]string, 0, len(g.members)),
		ArticleURLs:    make([]string, 0, len(g.members)),
		Catalysts:      []types.Catalyst{},
	}

	type catalystKey struct{ kind, desc string }
	seen := make(map[catalystKey]struct{})
	addCatalysts := func(cs []types.Catalyst) {
		for _, c := range cs {
			k := catalystKey{c.Type, strings.ToLower(c.Description)}
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			p.Catalysts = append(p.Catalysts, c)
		}
	}

	// Representative first, then the rest in input order.
	p.AnalysisIDs = append(p.AnalysisIDs, rep.ID)
	p.ArticleURLs = append(p.ArticleURLs, rep.ArticleURL)
	addCatalysts(rep.Catalysts)
	for _, idx := range g.members {
		if idx == g.rep {
			continue
		}
		a := analyses[idx]
		p.AnalysisIDs = append(p.AnalysisIDs, a.ID)
		if a.ArticleURL != "" && !slices.Contains(p.ArticleURLs, a.ArticleURL) {
			p.ArticleURLs = append(p.ArticleURLs, a.ArticleURL)
		}
		addCatalysts(a.Catalysts)
	}
	return p
}

