package ports

import (
	"context"

	"github.com/mkrivosheev/photosearch/internal/core/domain"
)

// SearchService is the inbound contract for one streaming search run.
// A validation error is returned synchronously before any event is
// produced; afterwards all outcomes, including failures, arrive as
// events and the channel is closed when the run terminates.
type SearchService interface {
	Search(ctx context.Context, query domain.Query) (<-chan domain.StreamEvent, error)
}
