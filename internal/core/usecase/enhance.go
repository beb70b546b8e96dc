package usecase

import (
	"strings"
	"unicode"

	"github.com/mkrivosheev/photosearch/internal/core/domain"
)

const minKeywordLength = 3

// heuristicEnhancement is the deterministic local fallback used whenever
// the enhancement provider fails or emits unparseable output. The enhancer
// is an optimization, never a correctness dependency, so this path must
// always succeed.
func heuristicEnhancement(query string) domain.EnhancedQuery {
	tokens := tokenizeLower(query)
	keywords := make([]string, 0, len(tokens))
	for _, token := range tokens {
		if len(token) < minKeywordLength {
			continue
		}
		keywords = append(keywords, token)
	}

	return domain.EnhancedQuery{
		Original: query,
		Enhanced: query,
		Keywords: keywords,
		Intent:   domain.IntentBroad,
	}
}

func tokenizeLower(s string) []string {
	tokens := make([]string, 0, 8)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
