package llm

import (
	"catalystbot/config"

	"github.com/rs/zerolog"
)

// NewFromEnv builds a router from the configured API keys. The lexicon model
// is always registered so sessions can run offline.
func NewFromEnv(s config.Settings, logger zerolog.Logger) *Router {
	r := NewRouter()
	if s.CohereAPIKey != "" {
		r.Register(FamilyCohere, NewCohere(s.CohereAPIKey, s.CohereBaseURL))
	}
	if s.OpenAIAPIKey != "" {
		r.Register(FamilyOpenAI, NewOpenAI(s.OpenAIAPIKey, s.OpenAIBaseURL, logger))
	}
	r.Register(FamilyVader, NewVader())

	logger.Info().
		Bool("cohere", r.Has(FamilyCohere)).
		Bool("openai", r.Has(FamilyOpenAI)).
		Str("fallback", string(r.fallback)).
		Msg("model clients configured")
	return r
}
