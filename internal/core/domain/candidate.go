package domain

import "time"

// Candidate is one retrieval hit, unique by PhotoID within a pipeline run.
type Candidate struct {
	PhotoID       string    `json:"photo_id"`
	Name          string    `json:"name"`
	URL           string    `json:"url"`
	Caption       string    `json:"caption,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	IsFavorite    bool      `json:"is_favorite"`
	RawSimilarity float64   `json:"raw_similarity"`

	// Per-space scores kept for diagnostics when dual-space retrieval ran.
	CaptionSimilarity float64 `json:"caption_similarity,omitempty"`
	ClipSimilarity    float64 `json:"clip_similarity,omitempty"`
}

type ScoreBreakdown struct {
	EmbeddingSimilarity float64 `json:"embedding_similarity"`
	RecencyBoost        float64 `json:"recency_boost"`
	FavoriteBoost       float64 `json:"favorite_boost"`
	DiversityPenalty    float64 `json:"diversity_penalty"`
	TemporalRelevance   float64 `json:"temporal_relevance,omitempty"`
}

type RankedCandidate struct {
	Candidate
	FinalScore float64        `json:"final_score"`
	Breakdown  ScoreBreakdown `json:"breakdown"`

	// Verdict is attached only to candidates the vision stage examined.
	Verdict *VisionVerdict `json:"verdict,omitempty"`
}

// VisionVerdict is per-request evidence from the vision arbiter; it is never
// persisted beyond the current run.
type VisionVerdict struct {
	Matches    bool     `json:"matches"`
	Confidence int      `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
	Concerns   []string `json:"concerns,omitempty"`
}
