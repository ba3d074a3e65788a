// Package llm holds the thin model transports the analyzer talks to. Clients
// return raw text; parsing and validation happen in the caller.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
)

// Prompt is one completion request.
type Prompt struct {
	System string
	User   string

	// Text is the raw article text. Lexicon models score it directly instead
	// of following instructions.
	Text string

	// SchemaName and Schema request structured JSON output from clients that
	// support it.
	SchemaName string
	Schema     any

	MaxTokens int
}

// Client completes a prompt with the named model.
type Client interface {
	Complete(ctx context.Context, p Prompt, model string) (string, error)
}

// ErrNoClient is returned when no configured client serves a model.
var ErrNoClient = errors.New("no model client configured")

// GenerateSchema reflects a JSON schema from T for structured output.
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

// Family groups model ids by provider.
type Family string

const (
	FamilyCohere Family = "cohere"
	FamilyOpenAI Family = "openai"
	FamilyVader  Family = "vader"
)

// FamilyOf guesses the provider from a model id. An explicit "provider/"
// prefix wins.
func FamilyOf(model string) Family {
	m := strings.ToLower(strings.TrimSpace(model))
	if provider, _, ok := strings.Cut(m, "/"); ok {
		switch Family(provider) {
		case FamilyCohere, FamilyOpenAI, FamilyVader:
			return Family(provider)
		}
	}
	switch {
	case strings.HasPrefix(m, "command"), strings.HasPrefix(m, "c4ai"), strings.HasPrefix(m, "aya"):
		return FamilyCohere
	case strings.HasPrefix(m, "gpt"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return FamilyOpenAI
	case m == "" || strings.HasPrefix(m, "vader"):
		return FamilyVader
	}
	return ""
}

// stripProvider removes an explicit "provider/" prefix.
func stripProvider(model string) string {
	if _, rest, ok := strings.Cut(model, "/"); ok {
		switch FamilyOf(model) {
		case FamilyCohere, FamilyOpenAI, FamilyVader:
			return rest
		}
	}
	return model
}

// Router dispatches to a client by model family.
type Router struct {
	clients  map[Family]Client
	fallback Family
}

// NewRouter creates an empty router. Register clients with Register.
func NewRouter() *Router {
	return &Router{clients: make(map[Family]Client)}
}

// Register adds a client for a family. The first registered family is the
// fallback for unrecognised model ids.
func (r *Router) Register(f Family, c Client) *Router {
	if r.fallback == "" {
		r.fallback = f
	}
	r.clients[f] = c
	return r
}

// Has reports whether a family has a client.
func (r *Router) Has(f Family) bool {
	_, ok := r.clients[f]
	return ok
}

func (r *Router) Complete(ctx context.Context, p Prompt, model string) (string, error) {
	family := FamilyOf(model)
	c, ok := r.clients[family]
	if !ok && family == "" {
		c, ok = r.clients[r.fallback]
	}
	if !ok {
		return "", fmt.Errorf("%w for model %q", ErrNoClient, model)
	}
	return c.Complete(ctx, p, stripProvider(model))
}
