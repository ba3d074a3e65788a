package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
)

// OpenAI completes prompts with the chat completions API. BaseURL lets it
// target any compatible endpoint.
type OpenAI struct {
	client openai.Client
	log    zerolog.Logger
}

// NewOpenAI creates a client. baseURL may be empty.
func NewOpenAI(apiKey, baseURL string, logger zerolog.Logger) *OpenAI {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(60 * time.Second),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		log:    logger.With().Str("component", "openai").Logger(),
	}
}

func (o *OpenAI) Complete(ctx context.Context, p Prompt, model string) (string, error) {
	maxTokens := p.MaxTokens
	if maxTokens == 0 {
		maxTokens = 1000
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if p.System != "" {
		messages = append(messages, openai.SystemMessage(p.System))
	}
	messages = append(messages, openai.UserMessage(p.User))

	params := openai.ChatCompletionNewParams{
		Model:     model,
		Messages:  messages,
		MaxTokens: openai.Int(int64(maxTokens)),
	}
	if p.Schema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:        p.SchemaName,
					Description: openai.String("Structured response schema"),
					Schema:      p.Schema,
					Strict:      openai.Bool(true),
				},
			},
		}
	}

	start := time.Now()
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai chat: %w", err)
	}

	o.log.Debug().
		Str("model", model).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Int64("prompt_tokens", resp.Usage.PromptTokens).
		Int64("completion_tokens", resp.Usage.CompletionTokens).
		Msg("chat completed")

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
