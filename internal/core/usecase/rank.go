package usecase

import (
	"sort"
	"strings"
	"time"

	"github.com/mkrivosheev/photosearch/internal/core/domain"
)

const (
	recencyBoostWeight   = 0.10
	favoriteBoostValue   = 0.15
	seasonMatchBoost     = 0.20
	timeRangeMatchBoost  = 0.20
	recencyHorizonInDays = 365
)

// rankCandidates applies the multi-signal score to every candidate and
// returns them sorted by final score. The raw retrieval similarity is the
// base signal; recency, favorite status and temporal-hint matches add
// bounded boosts, and the sum is clamped to [0,1].
func rankCandidates(candidates []domain.Candidate, enhanced domain.EnhancedQuery, now time.Time) []domain.RankedCandidate {
	ranked := make([]domain.RankedCandidate, 0, len(candidates))
	for _, candidate := range candidates {
		breakdown := domain.ScoreBreakdown{
			EmbeddingSimilarity: candidate.RawSimilarity,
		}

		// Temporal searches should not drown older matches in recency boosts.
		if enhanced.Intent != domain.IntentTemporal {
			breakdown.RecencyBoost = recencyBoost(candidate.CreatedAt, now)
		}
		if candidate.IsFavorite {
			breakdown.FavoriteBoost = favoriteBoostValue
		}
		if !enhanced.Temporal.Empty() {
			breakdown.TemporalRelevance = temporalRelevance(candidate.CreatedAt, now, enhanced.Temporal)
		}

		ranked = append(ranked, domain.RankedCandidate{
			Candidate: candidate,
			FinalScore: clamp01(breakdown.EmbeddingSimilarity +
				breakdown.RecencyBoost +
				breakdown.FavoriteBoost +
				breakdown.TemporalRelevance),
			Breakdown: breakdown,
		})
	}

	sortRanked(ranked)
	return ranked
}

func sortRanked(ranked []domain.RankedCandidate) {
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].FinalScore != ranked[j].FinalScore {
			return ranked[i].FinalScore > ranked[j].FinalScore
		}
		if !ranked[i].CreatedAt.Equal(ranked[j].CreatedAt) {
			return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
		}
		return ranked[i].PhotoID < ranked[j].PhotoID
	})
}

func recencyBoost(createdAt, now time.Time) float64 {
	if createdAt.IsZero() || createdAt.After(now) {
		return 0
	}
	days := now.Sub(createdAt).Hours() / 24
	fraction := 1 - days/recencyHorizonInDays
	if fraction < 0 {
		return 0
	}
	return fraction * recencyBoostWeight
}

func temporalRelevance(createdAt, now time.Time, hints domain.TemporalHints) float64 {
	relevance := 0.0
	if seasonMatches(createdAt.Month(), hints.Season) {
		relevance += seasonMatchBoost
	}
	if timeRangeMatches(createdAt.Year(), now.Year(), hints.TimeRange) {
		relevance += timeRangeMatchBoost
	}
	return relevance
}

// seasonMatches uses fixed three-month buckets: spring Mar-May, summer
// Jun-Aug, fall Sep-Nov, winter Dec-Feb.
func seasonMatches(month time.Month, season string) bool {
	switch strings.ToLower(strings.TrimSpace(season)) {
	case "spring":
		return month >= time.March && month <= time.May
	case "summer":
		return month >= time.June && month <= time.August
	case "fall", "autumn":
		return month >= time.September && month <= time.November
	case "winter":
		return month == time.December || month <= time.February
	default:
		return false
	}
}

// timeRangeMatches recognizes coarse year buckets; unrecognized phrases
// contribute nothing.
func timeRangeMatches(photoYear, currentYear int, timeRange string) bool {
	switch strings.ToLower(strings.TrimSpace(timeRange)) {
	case "this year":
		return currentYear-photoYear == 0
	case "last year":
		return currentYear-photoYear == 1
	default:
		return false
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
