package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/mkrivosheev/photosearch/internal/core/domain"
	"github.com/mkrivosheev/photosearch/internal/core/ports"
)

// OverflowPolicy decides what happens to candidates ranked past the
// vision cap: appended unvalidated, or dropped.
type OverflowPolicy string

const (
	OverflowAppend OverflowPolicy = "append"
	OverflowDrop   OverflowPolicy = "drop"
)

type VisionOptions struct {
	MaxPhotos   int
	Concurrency int
	ItemTimeout time.Duration
	Overflow    OverflowPolicy
}

const neutralConfidence = 50

// runVisionValidation validates candidates in rank order up to the cap and
// streams per-item progress. Validation calls run concurrently up to
// Concurrency, but progress is emitted strictly in rank order, not
// completion order. After ctx is cancelled no new validation starts;
// in-flight calls are allowed to finish on a detached context.
//
// The progress channel is closed when the stage is done; the single result
// slice then arrives on the results channel.
func runVisionValidation(
	ctx context.Context,
	validator ports.VisionValidator,
	ranked []domain.RankedCandidate,
	description string,
	opts VisionOptions,
) (<-chan domain.VisionProgressPayload, <-chan []domain.RankedCandidate) {
	progress := make(chan domain.VisionProgressPayload)
	results := make(chan []domain.RankedCandidate, 1)

	go func() {
		defer close(progress)

		total := len(ranked)
		if opts.MaxPhotos > 0 && total > opts.MaxPhotos {
			total = opts.MaxPhotos
		}
		concurrency := opts.Concurrency
		if concurrency <= 0 {
			concurrency = 1
		}

		verdicts := make([]*domain.VisionVerdict, total)
		done := make([]chan struct{}, total)
		for i := range done {
			done[i] = make(chan struct{})
		}

		sem := make(chan struct{}, concurrency)
		go func() {
			for i := 0; i < total; i++ {
				select {
				case <-ctx.Done():
					// Client went away: leave the remaining slots unstarted.
					close(done[i])
					continue
				case sem <- struct{}{}:
					if ctx.Err() != nil {
						<-sem
						close(done[i])
						continue
					}
				}
				go func(idx int) {
					defer func() {
						<-sem
						close(done[idx])
					}()
					verdict := validateOne(ctx, validator, ranked[idx].Candidate, description, opts.ItemTimeout)
					verdicts[idx] = &verdict
				}(i)
			}
		}()

		kept := make([]domain.RankedCandidate, 0, len(ranked))
		for i := 0; i < total; i++ {
			<-done[i]
			if verdicts[i] == nil {
				continue
			}
			if verdicts[i].Matches {
				item := ranked[i]
				item.Verdict = verdicts[i]
				kept = append(kept, item)
			}
			if ctx.Err() != nil {
				continue
			}
			select {
			case progress <- domain.VisionProgressPayload{
				Current:     i + 1,
				Total:       total,
				Message:     fmt.Sprintf("Verifying photo %d of %d", i+1, total),
				Educational: "A vision model double-checks each photo against your description so retrieval near-misses do not reach the final album.",
			}:
			case <-ctx.Done():
			}
		}

		if opts.Overflow == OverflowAppend && ctx.Err() == nil {
			kept = append(kept, ranked[total:]...)
		}
		results <- kept
	}()

	return progress, results
}

// validateOne never lets a provider error look like "this photo does not
// match": on failure the candidate is kept with neutral confidence and a
// concern recording the failure.
func validateOne(
	ctx context.Context,
	validator ports.VisionValidator,
	candidate domain.Candidate,
	description string,
	itemTimeout time.Duration,
) domain.VisionVerdict {
	callCtx := context.WithoutCancel(ctx)
	if itemTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, itemTimeout)
		defer cancel()
	}

	verdict, err := validator.ValidateMatch(callCtx, candidate, description)
	if err != nil {
		return domain.VisionVerdict{
			Matches:    true,
			Confidence: neutralConfidence,
			Reasoning:  "vision validation unavailable, kept on retrieval score",
			Concerns:   []string{fmt.Sprintf("vision provider error: %v", err)},
		}
	}
	return verdict
}
