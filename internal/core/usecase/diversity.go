package usecase

import (
	"strings"
	"unicode"

	"github.com/mkrivosheev/photosearch/internal/core/domain"
)

// applyDiversityPenalty suppresses near-duplicate results (burst shots,
// numbered exports) by penalizing candidates whose normalized name was
// already seen inside a FIFO sliding window, then re-sorting.
func applyDiversityPenalty(ranked []domain.RankedCandidate, windowSize int, penalty float64) []domain.RankedCandidate {
	if windowSize <= 0 || penalty <= 0 || len(ranked) < 2 {
		return ranked
	}

	window := make([]string, 0, windowSize)
	for i := range ranked {
		name := normalizePhotoName(ranked[i].Name)
		if windowContains(window, name) {
			ranked[i].Breakdown.DiversityPenalty = penalty
			ranked[i].FinalScore = clamp01(ranked[i].FinalScore - penalty)
		}
		if len(window) == windowSize {
			window = window[1:]
		}
		window = append(window, name)
	}

	sortRanked(ranked)
	return ranked
}

func windowContains(window []string, name string) bool {
	for _, seen := range window {
		if seen == name {
			return true
		}
	}
	return false
}

// normalizePhotoName lower-cases the name, strips digits and collapses
// separators to single spaces, so IMG_2041 and img-2042 compare equal.
func normalizePhotoName(name string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsDigit(r):
			continue
		case r == '_' || r == '-' || r == '.' || unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteRune(' ')
				lastSpace = true
			}
		default:
			b.WriteRune(r)
			lastSpace = false
		}
	}
	return strings.TrimSpace(b.String())
}
