package model

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	anthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion = "2023-06-01"

	anthropicTimeout   = 120 * time.Second
	anthropicMaxTokens = 4096
)

// AnthropicClient talks to the Anthropic messages API directly. Anthropic does
// not expose an OpenAI-compatible endpoint, so it gets its own adapter.
type AnthropicClient struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

func NewAnthropicClient(apiKey, model string) (*AnthropicClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	return &AnthropicClient{
		client:  &http.Client{Timeout: anthropicTimeout},
		baseURL: anthropicBaseURL,
		apiKey:  apiKey,
		model:   model,
	}, nil
}

func (c *AnthropicClient) ModelName() string {
	return c.model
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	Messages  []anthropicMessage `json:"messages"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Stream    bool               `json:"stream,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// split separates the system prompt from the conversation turns. The messages
// API takes the system prompt as a top-level field.
func (c *AnthropicClient) split(messages []ChatMessage) (string, []anthropicMessage) {
	var system string
	turns := make([]anthropicMessage, 0, len(messages))
	for _, m := range messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		turns = append(turns, anthropicMessage{Role: m.Role, Content: m.Content})
	}
	return system, turns
}

func (c *AnthropicClient) newRequest(ctx context.Context, body anthropicRequest) (*http.Request, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)
	return req, nil
}

func (c *AnthropicClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	system, turns := c.split(messages)
	req, err := c.newRequest(ctx, anthropicRequest{
		Model:     c.model,
		Messages:  turns,
		MaxTokens: anthropicMaxTokens,
		System:    system,
	})
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var msgResp anthropicResponse
	if err := json.Unmarshal(body, &msgResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if msgResp.Error != nil {
		return "", fmt.Errorf("anthropic error: %s", msgResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, string(body))
	}
	if len(msgResp.Content) == 0 {
		return "", fmt.Errorf("anthropic: no response content returned")
	}

	var result strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}
	return result.String(), nil
}

func (c *AnthropicClient) Stream(ctx context.Context, messages []ChatMessage) (TokenStream, error) {
	system, turns := c.split(messages)
	req, err := c.newRequest(ctx, anthropicRequest{
		Model:     c.model,
		Messages:  turns,
		MaxTokens: anthropicMaxTokens,
		System:    system,
		Stream:    true,
	})
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, string(body))
	}

	return &anthropicTokenStream{
		body:    resp.Body,
		scanner: bufio.NewScanner(resp.Body),
	}, nil
}

// anthropicEvent covers the server-sent event payloads we care about:
// content_block_delta carries text, error aborts the stream.
type anthropicEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"delta"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type anthropicTokenStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	current string
	err     error
	done    bool
}

func (s *anthropicTokenStream) Next() bool {
	if s.done || s.err != nil {
		return false
	}
	for s.scanner.Scan() {
		line := s.scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var event anthropicEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &event); err != nil {
			continue
		}
		switch event.Type {
		case "content_block_delta":
			if event.Delta.Type == "text_delta" && event.Delta.Text != "" {
				s.current = event.Delta.Text
				return true
			}
		case "message_stop":
			s.done = true
			return false
		case "error":
			if event.Error != nil {
				s.err = fmt.Errorf("anthropic stream error: %s", event.Error.Message)
			} else {
				s.err = fmt.Errorf("anthropic stream error")
			}
			return false
		}
	}
	if err := s.scanner.Err(); err != nil {
		s.err = fmt.Errorf("read stream: %w", err)
	}
	s.done = true
	return false
}

func (s *anthropicTokenStream) Current() string {
	return s.current
}

func (s *anthropicTokenStream) Err() error {
	return s.err
}

func (s *anthropicTokenStream) Close() error {
	return s.body.Close()
}
