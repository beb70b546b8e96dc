package usecase

import (
	"testing"
	"time"

	"github.com/mkrivosheev/photosearch/internal/core/domain"
)

func almostEqual(a, b float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < 1e-9
}

func TestFilterCandidatesAppliesSimilarityFloor(t *testing.T) {
	similarities := []float64{0.85, 0.72, 0.55, 0.38, 0.31, 0.22, 0.18, 0.12, 0.09, 0.05}
	candidates := make([]domain.Candidate, 0, len(similarities))
	for i, sim := range similarities {
		candidates = append(candidates, domain.Candidate{
			PhotoID:       string(rune('a' + i)),
			RawSimilarity: sim,
		})
	}

	kept := filterCandidates(candidates, 0.40)
	if len(kept) != 3 {
		t.Fatalf("expected exactly 3 candidates above floor, got %d", len(kept))
	}
	for _, c := range kept {
		if c.RawSimilarity < 0.40 {
			t.Fatalf("candidate %s below floor: %f", c.PhotoID, c.RawSimilarity)
		}
	}
}

func TestFilterCandidatesDeduplicatesByPhotoID(t *testing.T) {
	kept := filterCandidates([]domain.Candidate{
		{PhotoID: "p1", RawSimilarity: 0.9},
		{PhotoID: "p1", RawSimilarity: 0.8},
		{PhotoID: "p2", RawSimilarity: 0.7},
	}, 0.40)
	if len(kept) != 2 {
		t.Fatalf("expected duplicates removed, got %d candidates", len(kept))
	}
}

func TestFilterCandidatesEmptyInputIsValid(t *testing.T) {
	kept := filterCandidates(nil, 0.40)
	if len(kept) != 0 {
		t.Fatalf("expected empty output, got %d", len(kept))
	}
}

func TestRankCandidatesAppliesBoosts(t *testing.T) {
	now := time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC)
	candidates := []domain.Candidate{
		{PhotoID: "old-plain", RawSimilarity: 0.50, CreatedAt: now.AddDate(-3, 0, 0)},
		{PhotoID: "favorite", RawSimilarity: 0.50, CreatedAt: now.AddDate(-3, 0, 0), IsFavorite: true},
	}

	ranked := rankCandidates(candidates, domain.EnhancedQuery{Intent: domain.IntentBroad}, now)
	if ranked[0].PhotoID != "favorite" {
		t.Fatalf("expected favorite ranked first, got %s", ranked[0].PhotoID)
	}
	if ranked[0].Breakdown.FavoriteBoost != 0.15 {
		t.Fatalf("expected favorite boost 0.15, got %f", ranked[0].Breakdown.FavoriteBoost)
	}
	if !almostEqual(ranked[0].FinalScore, 0.65) {
		t.Fatalf("expected final score 0.65, got %f", ranked[0].FinalScore)
	}
	if ranked[1].Breakdown.RecencyBoost != 0 {
		t.Fatalf("photo older than a year should get no recency boost, got %f", ranked[1].Breakdown.RecencyBoost)
	}
}

func TestRankCandidatesRecencyBoostDecays(t *testing.T) {
	now := time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC)
	ranked := rankCandidates([]domain.Candidate{
		{PhotoID: "fresh", RawSimilarity: 0.50, CreatedAt: now},
	}, domain.EnhancedQuery{Intent: domain.IntentBroad}, now)

	if ranked[0].Breakdown.RecencyBoost != 0.10 {
		t.Fatalf("expected full recency boost 0.10 for a fresh photo, got %f", ranked[0].Breakdown.RecencyBoost)
	}
}

func TestRankCandidatesTemporalIntentSuppressesRecency(t *testing.T) {
	now := time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC)
	ranked := rankCandidates([]domain.Candidate{
		{PhotoID: "fresh", RawSimilarity: 0.50, CreatedAt: now},
	}, domain.EnhancedQuery{Intent: domain.IntentTemporal}, now)

	if ranked[0].Breakdown.RecencyBoost != 0 {
		t.Fatalf("temporal intent must suppress recency boost, got %f", ranked[0].Breakdown.RecencyBoost)
	}
}

func TestRankCandidatesSeasonAndTimeRangeMatch(t *testing.T) {
	now := time.Date(2025, time.July, 15, 12, 0, 0, 0, time.UTC)
	enhanced := domain.EnhancedQuery{
		Intent: domain.IntentTemporal,
		Temporal: domain.TemporalHints{
			Season:    "summer",
			TimeRange: "last year",
		},
	}

	ranked := rankCandidates([]domain.Candidate{
		{PhotoID: "match", RawSimilarity: 0.50, CreatedAt: time.Date(2024, time.July, 1, 0, 0, 0, 0, time.UTC)},
		{PhotoID: "wrong-season", RawSimilarity: 0.50, CreatedAt: time.Date(2024, time.December, 1, 0, 0, 0, 0, time.UTC)},
	}, enhanced, now)

	if ranked[0].PhotoID != "match" {
		t.Fatalf("expected season+range match ranked first, got %s", ranked[0].PhotoID)
	}
	if !almostEqual(ranked[0].Breakdown.TemporalRelevance, 0.40) {
		t.Fatalf("expected temporal relevance 0.40, got %f", ranked[0].Breakdown.TemporalRelevance)
	}
	if ranked[1].Breakdown.TemporalRelevance != 0 {
		t.Fatalf("december photo should not match summer, got %f", ranked[1].Breakdown.TemporalRelevance)
	}
}

func TestSeasonMatchesWinterWrapsYearBoundary(t *testing.T) {
	for _, month := range []time.Month{time.December, time.January, time.February} {
		if !seasonMatches(month, "winter") {
			t.Fatalf("expected %s to match winter", month)
		}
	}
	if seasonMatches(time.March, "winter") {
		t.Fatalf("march must not match winter")
	}
	if !seasonMatches(time.October, "autumn") {
		t.Fatalf("autumn must alias fall")
	}
}

func TestTimeRangeMatchesIgnoresUnknownPhrases(t *testing.T) {
	if timeRangeMatches(2020, 2025, "a while ago") {
		t.Fatalf("unrecognized phrase must contribute zero")
	}
	if !timeRangeMatches(2025, 2025, "this year") {
		t.Fatalf("expected this year to match zero-year difference")
	}
	if !timeRangeMatches(2024, 2025, "last year") {
		t.Fatalf("expected last year to match one-year difference")
	}
}

func TestRankCandidatesClampsFinalScore(t *testing.T) {
	now := time.Now()
	enhanced := domain.EnhancedQuery{
		Intent:   domain.IntentBroad,
		Temporal: domain.TemporalHints{Season: "summer", TimeRange: "this year"},
	}
	ranked := rankCandidates([]domain.Candidate{
		{PhotoID: "max", RawSimilarity: 0.99, IsFavorite: true, CreatedAt: time.Date(now.Year(), time.July, 1, 0, 0, 0, 0, time.UTC)},
	}, enhanced, now)

	if ranked[0].FinalScore > 1 {
		t.Fatalf("final score must be clamped to 1, got %f", ranked[0].FinalScore)
	}
}
