package llm

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
	"github.com/cohere-ai/cohere-go/v2/option"
)

// Cohere completes prompts with the Cohere v2 chat API.
type Cohere struct {
	client *cohereclient.Client
}

// NewCohere creates a Cohere client. baseURL may be empty. The HTTP client
// forces HTTP/1.1 to avoid HTTP/2 stream resets seen on long completions.
func NewCohere(apiKey, baseURL string) *Cohere {
	httpClient := &http.Client{
		Timeout: 60 * time.Second,
		Transport: &http.Transport{
			TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
			ForceAttemptHTTP2: false,
		},
	}
	opts := []option.RequestOption{
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(httpClient),
	}
	if baseURL != "" {
		opts = append(opts, cohereclient.WithBaseURL(strings.TrimRight(baseURL, "/")))
	}
	return &Cohere{client: cohereclient.NewClient(opts...)}
}

func (c *Cohere) Complete(ctx context.Context, p Prompt, model string) (string, error) {
	var messages cohere.ChatMessages
	if p.System != "" {
		messages = append(messages, &cohere.ChatMessageV2{
			Role:   "system",
			System: &cohere.SystemMessageV2{Content: &cohere.SystemMessageV2Content{String: p.System}},
		})
	}
	messages = append(messages, &cohere.ChatMessageV2{
		Role: "user",
		User: &cohere.UserMessageV2{Content: &cohere.UserMessageV2Content{String: p.User}},
	})

	req := &cohere.V2ChatRequest{
		Model:    model,
		Messages: messages,
	}
	if p.MaxTokens > 0 {
		maxTokens := p.MaxTokens
		req.MaxTokens = &maxTokens
	}
	if p.Schema != nil {
		schema, err := schemaMap(p.Schema)
		if err != nil {
			return "", fmt.Errorf("cohere schema: %w", err)
		}
		req.ResponseFormat = &cohere.ResponseFormatV2{
			Type:       "json_object",
			JsonObject: &cohere.JsonResponseFormatV2{JsonSchema: schema},
		}
	}

	resp, err := c.client.V2.Chat(ctx, req)
	if err != nil {
		return "", fmt.Errorf("cohere chat: %w", err)
	}
	return cohereText(resp)
}

// schemaMap converts a reflected schema into the plain map Cohere expects,
// dropping the meta keys it rejects.
func schemaMap(schema any) (map[string]any, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	delete(m, "$schema")
	delete(m, "$id")
	return m, nil
}

// cohereText joins the text parts of a chat response.
func cohereText(resp *cohere.V2ChatResponse) (string, error) {
	if resp == nil || resp.Message == nil {
		return "", errors.New("cohere chat returned empty response")
	}
	var b strings.Builder
	for _, item := range resp.Message.Content {
		if item != nil && item.Text != nil {
			b.WriteString(item.Text.Text)
		}
	}
	if b.Len() == 0 {
		return "", errors.New("cohere chat returned no text")
	}
	return b.String(), nil
}
