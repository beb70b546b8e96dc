package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/mkrivosheev/photosearch/internal/core/domain"
)

// VisionArbiter asks a vision-capable model whether a candidate photo
// truly matches the search description. The photo is passed by URL at
// low detail to keep per-item latency bounded.
type VisionArbiter struct {
	client *Client
}

func NewVisionArbiter(client *Client) *VisionArbiter {
	return &VisionArbiter{client: client}
}

func (v *VisionArbiter) ValidateMatch(
	ctx context.Context,
	candidate domain.Candidate,
	description string,
) (domain.VisionVerdict, error) {
	req := openai.ChatCompletionRequest{
		Model: v.client.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: visionSystemPrompt},
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{
						Type: openai.ChatMessagePartTypeText,
						Text: buildVisionUserPrompt(description, candidate.Caption),
					},
					{
						Type: openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{
							URL:    candidate.URL,
							Detail: openai.ImageURLDetailLow,
						},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	var content string
	err := v.client.execute(ctx, "llm.vision_validate", func(callCtx context.Context) error {
		resp, err := v.client.api.CreateChatCompletion(callCtx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("llm.vision_validate: no response choices")
		}
		content = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return domain.VisionVerdict{}, err
	}
	return parseVerdict(content)
}

func parseVerdict(respText string) (domain.VisionVerdict, error) {
	var verdict domain.VisionVerdict
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &verdict); err != nil {
		return domain.VisionVerdict{}, fmt.Errorf("parse vision verdict json: %w", err)
	}
	if verdict.Confidence < 0 {
		verdict.Confidence = 0
	}
	if verdict.Confidence > 100 {
		verdict.Confidence = 100
	}
	return verdict, nil
}
