// Package ai adapts a text-completion provider for goal decomposition and
// project Q&A.
package ai

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/taskboard-dev/taskboard/internal/apperr"
)

const DefaultModel = "gpt-4o-mini"

// Completer sends one system/user prompt pair and returns the raw reply.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

type OpenAICompleter struct {
	client *openai.Client
	model  string
}

// NewOpenAICompleter targets any OpenAI compatible endpoint. An empty
// baseURL uses the public OpenAI API.
func NewOpenAICompleter(apiKey, baseURL, model string) *OpenAICompleter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if model == "" {
		model = DefaultModel
	}

	return &OpenAICompleter{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (c *OpenAICompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.4,
	})
	if err != nil {
		return "", apperr.Upstream("completion request failed", err)
	}

	if len(resp.Choices) == 0 {
		return "", apperr.Upstream("completion returned no choices", errors.New("empty choices"))
	}

	return resp.Choices[0].Message.Content, nil
}

// DisabledCompleter is used when no API key is configured.
type DisabledCompleter struct{}

func (DisabledCompleter) Complete(context.Context, string, string) (string, error) {
	return "", apperr.Upstream("ai assistant is not configured", errors.New("missing AI_API_KEY"))
}
