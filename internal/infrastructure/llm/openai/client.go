package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mkrivosheev/photosearch/internal/infrastructure/resilience"
)

// Client wraps the OpenAI SDK with the shared retry/breaker executor.
// One instance is shared by the enhancer, the vision arbiter and the
// caption-space embedder.
type Client struct {
	api         *openai.Client
	chatModel   string
	visionModel string
	embedModel  string
	executor    *resilience.Executor
}

func New(apiKey, baseURL, chatModel, visionModel, embedModel string, executor *resilience.Executor) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:         openai.NewClientWithConfig(config),
		chatModel:   chatModel,
		visionModel: visionModel,
		embedModel:  embedModel,
		executor:    executor,
	}
}

// chatJSON runs a single-turn chat completion in JSON mode and returns
// the raw message content.
func (c *Client) chatJSON(ctx context.Context, operation, model, system, user string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var content string
	err := c.execute(ctx, operation, func(callCtx context.Context) error {
		resp, err := c.api.CreateChatCompletion(callCtx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("%s: no response choices", operation)
		}
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", err
	}
	return content, nil
}

func (c *Client) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	if c.executor == nil {
		return call(ctx)
	}
	return c.executor.Execute(ctx, operation, call, classifyOpenAIError)
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
