package openai

import "fmt"

const enhanceSystemPrompt = `You are a photo search query analyst.
Return strict JSON object with keys:
enhanced (string), keywords (array of strings),
temporalHints (object with optional season, timeOfDay, timeRange strings),
contextualHints (object with optional people, locations, activities, objects, emotions string arrays),
intent (one of: broad, specific, temporal, categorical).
No markdown, no extra keys.`

func buildEnhanceUserPrompt(query string) string {
	const maxSnippet = 2000
	snippet := query
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}
	return "Query:\n" + snippet
}

const visionSystemPrompt = `You judge whether a photo matches a search description.
Return strict JSON object with keys:
matches (boolean), confidence (integer 0-100), reasoning (string), concerns (array of strings).
Be skeptical: only confirm a match when the image clearly shows what the description asks for.
No markdown, no extra keys.`

func buildVisionUserPrompt(description, caption string) string {
	if caption == "" {
		return fmt.Sprintf("Search description: %s\nDoes the attached photo match?", description)
	}
	return fmt.Sprintf(
		"Search description: %s\nStored caption: %s\nDoes the attached photo match?",
		description, caption,
	)
}
