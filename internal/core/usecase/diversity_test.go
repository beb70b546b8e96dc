package usecase

import (
	"testing"

	"github.com/mkrivosheev/photosearch/internal/core/domain"
)

func TestNormalizePhotoName(t *testing.T) {
	cases := map[string]string{
		"IMG_2041":            "img",
		"img-2042":            "img",
		"Beach Day 01":        "beach day",
		"beach__day":          "beach day",
		"DSC00017.JPG":        "dsc jpg",
		"Sunset at the beach": "sunset at the beach",
	}
	for input, want := range cases {
		if got := normalizePhotoName(input); got != want {
			t.Fatalf("normalizePhotoName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestDiversityPenaltyAppliedWithinWindow(t *testing.T) {
	ranked := []domain.RankedCandidate{
		{Candidate: domain.Candidate{PhotoID: "p1", Name: "IMG_1001"}, FinalScore: 0.90},
		{Candidate: domain.Candidate{PhotoID: "p2", Name: "IMG_1002"}, FinalScore: 0.80},
		{Candidate: domain.Candidate{PhotoID: "p3", Name: "sunset"}, FinalScore: 0.70},
	}

	out := applyDiversityPenalty(ranked, 3, 0.05)

	var second domain.RankedCandidate
	for _, item := range out {
		if item.PhotoID == "p2" {
			second = item
		}
	}
	if !almostEqual(second.Breakdown.DiversityPenalty, 0.05) {
		t.Fatalf("expected diversity penalty 0.05 on second burst shot, got %f", second.Breakdown.DiversityPenalty)
	}
	if !almostEqual(second.FinalScore, 0.75) {
		t.Fatalf("expected penalized score 0.75, got %f", second.FinalScore)
	}
	for _, item := range out {
		if item.PhotoID == "p1" && item.Breakdown.DiversityPenalty != 0 {
			t.Fatalf("first occurrence must not be penalized")
		}
	}
}

func TestDiversityPenaltySecondAdjacentDuplicatePenalized(t *testing.T) {
	ranked := []domain.RankedCandidate{
		{Candidate: domain.Candidate{PhotoID: "a", Name: "IMG"}, FinalScore: 0.60},
		{Candidate: domain.Candidate{PhotoID: "b", Name: "IMG"}, FinalScore: 0.60},
	}

	out := applyDiversityPenalty(ranked, 3, 0.05)
	if out[0].PhotoID != "a" {
		t.Fatalf("expected unpenalized duplicate first, got %s", out[0].PhotoID)
	}
	if !almostEqual(out[1].FinalScore, 0.55) {
		t.Fatalf("expected second duplicate reduced by exactly 0.05, got %f", out[1].FinalScore)
	}
}

func TestDiversityWindowEvictsFIFO(t *testing.T) {
	// With a window of 2, the first name has been evicted by the time the
	// fourth candidate repeats it.
	ranked := []domain.RankedCandidate{
		{Candidate: domain.Candidate{PhotoID: "a", Name: "beach"}, FinalScore: 0.90},
		{Candidate: domain.Candidate{PhotoID: "b", Name: "dog"}, FinalScore: 0.80},
		{Candidate: domain.Candidate{PhotoID: "c", Name: "cat"}, FinalScore: 0.70},
		{Candidate: domain.Candidate{PhotoID: "d", Name: "beach"}, FinalScore: 0.60},
	}

	out := applyDiversityPenalty(ranked, 2, 0.05)
	for _, item := range out {
		if item.PhotoID == "d" && item.Breakdown.DiversityPenalty != 0 {
			t.Fatalf("name outside the window must not be penalized")
		}
	}
}

func TestDiversityPenaltyNoopOnShortInput(t *testing.T) {
	ranked := []domain.RankedCandidate{
		{Candidate: domain.Candidate{PhotoID: "only", Name: "IMG_1"}, FinalScore: 0.5},
	}
	out := applyDiversityPenalty(ranked, 3, 0.05)
	if len(out) != 1 || out[0].Breakdown.DiversityPenalty != 0 {
		t.Fatalf("single candidate must pass through untouched")
	}
}
