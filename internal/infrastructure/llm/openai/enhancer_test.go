package openai

import (
	"testing"

	"github.com/mkrivosheev/photosearch/internal/core/domain"
)

func TestParseEnhancementFullObject(t *testing.T) {
	raw := `{
		"enhanced": "beach vacation photos with family",
		"keywords": ["beach", "vacation", "family"],
		"temporalHints": {"season": "summer", "timeRange": "last year"},
		"contextualHints": {"people": ["family"], "locations": ["beach"]},
		"intent": "temporal"
	}`

	result, err := parseEnhancement("beach last summer", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Original != "beach last summer" {
		t.Fatalf("original query must be preserved, got %q", result.Original)
	}
	if result.Enhanced != "beach vacation photos with family" {
		t.Fatalf("unexpected enhanced text %q", result.Enhanced)
	}
	if len(result.Keywords) != 3 {
		t.Fatalf("expected 3 keywords, got %d", len(result.Keywords))
	}
	if result.Temporal.Season != "summer" || result.Temporal.TimeRange != "last year" {
		t.Fatalf("temporal hints not parsed: %+v", result.Temporal)
	}
	if result.Intent != domain.IntentTemporal {
		t.Fatalf("expected temporal intent, got %s", result.Intent)
	}
}

func TestParseEnhancementNormalizesUnknownIntent(t *testing.T) {
	result, err := parseEnhancement("dogs", `{"enhanced": "dog photos", "intent": "nostalgic"}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Intent != domain.IntentBroad {
		t.Fatalf("unknown intent must normalize to broad, got %s", result.Intent)
	}
	if result.Keywords == nil {
		t.Fatalf("keywords must never be nil")
	}
}

func TestParseEnhancementStripsMarkdownFence(t *testing.T) {
	raw := "```json\n{\"enhanced\": \"sunset photos\", \"intent\": \"broad\"}\n```"
	result, err := parseEnhancement("sunsets", raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Enhanced != "sunset photos" {
		t.Fatalf("fenced json must still parse, got %q", result.Enhanced)
	}
}

func TestParseEnhancementEmptyEnhancedFallsBack(t *testing.T) {
	result, err := parseEnhancement("cats", `{"keywords": ["cats"]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Enhanced != "cats" {
		t.Fatalf("empty enhanced must fall back to original, got %q", result.Enhanced)
	}
}

func TestParseEnhancementRejectsGarbage(t *testing.T) {
	if _, err := parseEnhancement("cats", "the model rambled instead"); err == nil {
		t.Fatalf("expected error for non-json response")
	}
}
