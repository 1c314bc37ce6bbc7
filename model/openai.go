package model

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
)

// Base URLs for the OpenAI-compatible providers. Google and DeepSeek both
// expose chat completions behind the OpenAI wire format, so one client
// serves three of the four providers.
const (
	DeepSeekBaseURL = "https://api.deepseek.com"
	GoogleBaseURL   = "https://generativelanguage.googleapis.com/v1beta/openai/"
)

// OpenAICompatClient talks to any OpenAI-compatible chat completions API.
type OpenAICompatClient struct {
	client openai.Client
	model  string
}

// NewOpenAICompatClient builds a client for the given model. baseURL may be
// empty for the OpenAI platform itself.
func NewOpenAICompatClient(apiKey, baseURL, model string) (*OpenAICompatClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai-compatible client: API key is required")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAICompatClient{
		client: openai.NewClient(opts...),
		model:  model,
	}, nil
}

func (c *OpenAICompatClient) ModelName() string {
	return c.model
}

func (c *OpenAICompatClient) params(messages []ChatMessage) openai.ChatCompletionNewParams {
	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			converted = append(converted, openai.SystemMessage(m.Content))
		case "assistant":
			converted = append(converted, openai.AssistantMessage(m.Content))
		default:
			converted = append(converted, openai.UserMessage(m.Content))
		}
	}
	return openai.ChatCompletionNewParams{
		Model:       c.model,
		Messages:    converted,
		Temperature: openai.Float(0),
	}
}

func (c *OpenAICompatClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.params(messages))
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *OpenAICompatClient) Stream(ctx context.Context, messages []ChatMessage) (TokenStream, error) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(messages))
	return &openaiTokenStream{inner: stream}, nil
}

type openaiTokenStream struct {
	inner   *ssestream.Stream[openai.ChatCompletionChunk]
	current string
}

func (s *openaiTokenStream) Next() bool {
	for s.inner.Next() {
		chunk := s.inner.Current()
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			s.current = chunk.Choices[0].Delta.Content
			return true
		}
	}
	return false
}

func (s *openaiTokenStream) Current() string {
	return s.current
}

func (s *openaiTokenStream) Err() error {
	return s.inner.Err()
}

func (s *openaiTokenStream) Close() error {
	return s.inner.Close()
}
