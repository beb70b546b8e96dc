package ports

import (
	"context"

	"github.com/mkrivosheev/photosearch/internal/core/domain"
)

// Embedder turns a text query or raw image bytes into one vector per
// configured embedding space.
type Embedder interface {
	EmbedText(ctx context.Context, text string) (domain.QueryVectors, error)
	EmbedImage(ctx context.Context, data []byte, mime string) (domain.QueryVectors, error)
}

// CandidateIndex performs vector-similarity search over the requesting
// user's photo partition.
type CandidateIndex interface {
	Search(ctx context.Context, vectors domain.QueryVectors, userID string, topN int) ([]domain.Candidate, error)
}

// QueryEnhancer expands a raw text query into structured intent.
type QueryEnhancer interface {
	Enhance(ctx context.Context, query string) (domain.EnhancedQuery, error)
}

// VisionValidator asks a vision-capable model whether a candidate truly
// matches the description.
type VisionValidator interface {
	ValidateMatch(ctx context.Context, candidate domain.Candidate, description string) (domain.VisionVerdict, error)
}

// PhotoLibrary is the ownership source of truth for the photo table.
type PhotoLibrary interface {
	VerifyOwnership(ctx context.Context, photoIDs []string, userID string) (map[string]struct{}, error)
}

// ResultPublisher hands the final result set to downstream consumers,
// e.g. the album-creation service.
type ResultPublisher interface {
	PublishSearchCompleted(ctx context.Context, result domain.SearchResult) error
}
