package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultModel       = "gpt-4o-mini"
	defaultTemperature = 0.1
	maxRetries         = 3
	initialBackoff     = 500 * time.Millisecond
)

// OpenAI is a Provider backed by the OpenAI chat completions API.
type OpenAI struct {
	client *openai.Client
	model  string
	log    *slog.Logger
}

// NewOpenAI builds an OpenAI provider. An empty model selects the
// default; an empty baseURL uses the public API endpoint.
func NewOpenAI(apiKey, model, baseURL string, log *slog.Logger) *OpenAI {
	if model == "" {
		model = defaultModel
	}
	if log == nil {
		log = slog.Default()
	}
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		log:    log,
	}
}

func (o *OpenAI) Name() string { return "openai/" + o.model }

// Complete returns a free-form completion.
func (o *OpenAI) Complete(ctx context.Context, messages []Message) (string, error) {
	return o.complete(ctx, messages, nil)
}

// CompleteStructured constrains the completion to the given schema
// using the structured-output response format.
func (o *OpenAI) CompleteStructured(ctx context.Context, messages []Message, schema *Schema) (string, error) {
	return o.complete(ctx, messages, schema)
}

func (o *OpenAI) complete(ctx context.Context, messages []Message, schema *Schema) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    toOpenAI(messages),
		Temperature: defaultTemperature,
	}
	if schema != nil {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "query_descriptor",
				Schema: schema,
				Strict: true,
			},
		}
	}

	var lastErr error
	for attempt := range maxRetries {
		resp, err := o.client.CreateChatCompletion(ctx, req)
		if err == nil {
			if len(resp.Choices) == 0 {
				return "", errors.New("openai returned no choices")
			}
			return resp.Choices[0].Message.Content, nil
		}

		if !isRateLimit(err) {
			return "", fmt.Errorf("openai completion: %w", err)
		}

		lastErr = err
		if attempt < maxRetries-1 {
			backoff := initialBackoff << attempt
			o.log.Warn("openai rate limited, backing off", "attempt", attempt, "backoff", backoff)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return "", fmt.Errorf("rate limited after %d retries: %w", maxRetries, lastErr)
}

// Ready probes the API with a model list request.
func (o *OpenAI) Ready(ctx context.Context) error {
	if _, err := o.client.ListModels(ctx); err != nil {
		return fmt.Errorf("openai not reachable: %w", err)
	}
	return nil
}

func isRateLimit(err error) bool {
	var apiErr *openai.APIError
	return errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests
}

func toOpenAI(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}
