// Package llm asks an OpenAI-compatible model for suggested marks on free-text
// answers.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/pavelanni/examportal/internal/llm/prompts"
	"github.com/pavelanni/examportal/internal/model"

	openai "github.com/sashabaranov/go-openai"
)

// Suggestion is the model's assessment of one answer.
type Suggestion struct {
	Marks    float64 `json:"marks"`
	Feedback string  `json:"feedback"`
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api     *openai.Client
	model   string
	variant prompts.PromptVariant
}

// New creates a new LLM client using the given prompt variant.
func New(baseURL, apiKey, modelName string, variant prompts.PromptVariant) (*Client, error) {
	if err := prompts.Load(nil); err != nil {
		return nil, fmt.Errorf("load prompts: %w", err)
	}
	if !prompts.IsValidVariant(string(variant)) {
		return nil, fmt.Errorf("invalid prompt variant %q", variant)
	}
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:     openai.NewClientWithConfig(config),
		model:   modelName,
		variant: variant,
	}, nil
}

// Advise returns suggested marks, clamped to the question's marks, and
// feedback for a free-text answer.
func (c *Client) Advise(ctx context.Context, q model.Question, answer string) (float64, string, error) {
	systemPrompt, err := prompts.BuildAdvisoryPrompt(c.variant, q, answer)
	if err != nil {
		return 0, "", fmt.Errorf("build prompt: %w", err)
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.1,
	})
	if err != nil {
		return 0, "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return 0, "", fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)

	var s Suggestion
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return 0, "", fmt.Errorf("parse LLM response: %w (raw: %s)", err, raw)
	}
	return clampMarks(s.Marks, q.Marks), s.Feedback, nil
}

func clampMarks(marks, max float64) float64 {
	if math.IsNaN(marks) || marks < 0 {
		return 0
	}
	if marks > max {
		return max
	}
	return marks
}
