package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mkrivosheev/photosearch/internal/core/domain"
)

// Enhancer expands a raw text query into structured search intent.
type Enhancer struct {
	client *Client
}

func NewEnhancer(client *Client) *Enhancer {
	return &Enhancer{client: client}
}

func (e *Enhancer) Enhance(ctx context.Context, query string) (domain.EnhancedQuery, error) {
	respText, err := e.client.chatJSON(
		ctx, "llm.enhance", e.client.chatModel,
		enhanceSystemPrompt, buildEnhanceUserPrompt(query),
	)
	if err != nil {
		return domain.EnhancedQuery{}, err
	}
	return parseEnhancement(query, respText)
}

func parseEnhancement(query, respText string) (domain.EnhancedQuery, error) {
	var parsed struct {
		Enhanced   string                 `json:"enhanced"`
		Keywords   []string               `json:"keywords"`
		Temporal   domain.TemporalHints   `json:"temporalHints"`
		Contextual domain.ContextualHints `json:"contextualHints"`
		Intent     string                 `json:"intent"`
	}
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &parsed); err != nil {
		return domain.EnhancedQuery{}, fmt.Errorf("parse enhancement json: %w", err)
	}

	result := domain.EnhancedQuery{
		Original:   query,
		Enhanced:   parsed.Enhanced,
		Keywords:   parsed.Keywords,
		Temporal:   parsed.Temporal,
		Contextual: parsed.Contextual,
		Intent:     domain.NormalizeIntent(parsed.Intent),
	}
	if result.Enhanced == "" {
		result.Enhanced = query
	}
	if result.Keywords == nil {
		result.Keywords = []string{}
	}
	return result, nil
}
