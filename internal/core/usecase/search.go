package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mkrivosheev/photosearch/internal/core/domain"
	"github.com/mkrivosheev/photosearch/internal/core/ports"
)

// PipelineOptions carries every externally injected tunable; nothing in
// the pipeline reads configuration ad hoc mid-run.
type PipelineOptions struct {
	MinSimilarity     float64
	RetrievalTopN     int
	VisionEnabled     bool
	Vision            VisionOptions
	DiversityWindow   int
	DiversityPenalty  float64
	HeartbeatInterval time.Duration
	EmbedTimeout      time.Duration
	RetrieveTimeout   time.Duration
	EnhanceTimeout    time.Duration
	PublishTimeout    time.Duration
}

// PipelineMetrics is implemented by the observability layer; a nil value
// disables recording.
type PipelineMetrics interface {
	RecordSearch(searchType domain.SearchType, status string)
	RecordStage(stage domain.Stage, duration time.Duration, kept int)
	RecordVisionVerdict(outcome string)
}

// SearchPipeline sequences the retrieval, ranking and validation stages
// for one request and reports progress as a stream of typed events.
type SearchPipeline struct {
	embedder  ports.Embedder
	index     ports.CandidateIndex
	enhancer  ports.QueryEnhancer
	validator ports.VisionValidator
	library   ports.PhotoLibrary
	publisher ports.ResultPublisher
	metrics   PipelineMetrics
	opts      PipelineOptions
}

func NewSearchPipeline(
	embedder ports.Embedder,
	index ports.CandidateIndex,
	enhancer ports.QueryEnhancer,
	validator ports.VisionValidator,
	library ports.PhotoLibrary,
	publisher ports.ResultPublisher,
	metrics PipelineMetrics,
	opts PipelineOptions,
) *SearchPipeline {
	if opts.RetrievalTopN <= 0 {
		opts.RetrievalTopN = 50
	}
	return &SearchPipeline{
		embedder:  embedder,
		index:     index,
		enhancer:  enhancer,
		validator: validator,
		library:   library,
		publisher: publisher,
		metrics:   metrics,
		opts:      opts,
	}
}

// Search validates the query synchronously, then runs the pipeline in the
// background. The returned channel is closed after the terminal event.
func (p *SearchPipeline) Search(ctx context.Context, query domain.Query) (<-chan domain.StreamEvent, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}

	events := make(chan domain.StreamEvent, 16)
	go p.run(ctx, query, events)
	return events, nil
}

func (p *SearchPipeline) run(ctx context.Context, query domain.Query, events chan<- domain.StreamEvent) {
	heartbeatStop := make(chan struct{})
	var heartbeatDone sync.WaitGroup
	if p.opts.HeartbeatInterval > 0 {
		heartbeatDone.Add(1)
		go func() {
			defer heartbeatDone.Done()
			p.heartbeat(ctx, heartbeatStop, events)
		}()
	}
	defer func() {
		// The heartbeat is owned by the run: stop it deterministically
		// before the channel closes so pings never race the close.
		close(heartbeatStop)
		heartbeatDone.Wait()
		close(events)
	}()

	searchType := query.Type()
	p.emit(ctx, events, domain.StreamEvent{
		Type:    domain.EventStart,
		Payload: domain.StartPayload{SearchType: searchType},
	})

	result, err := p.execute(ctx, query, events)
	if err != nil {
		p.recordSearch(searchType, "error")
		slog.Error("search pipeline failed",
			"user_id", query.UserID,
			"search_type", searchType,
			"error", err,
		)
		p.emit(ctx, events, domain.StreamEvent{
			Type: domain.EventError,
			Payload: domain.ErrorPayload{
				Error:   "search failed",
				Details: publicErrorDetails(err),
			},
		})
		return
	}

	p.recordSearch(searchType, "ok")
	p.emit(ctx, events, domain.StreamEvent{
		Type: domain.EventComplete,
		Payload: domain.CompletePayload{
			Success:    true,
			SearchType: searchType,
			Photos:     result.Photos,
			Count:      result.Count,
		},
	})
	p.publishResult(ctx, result)
}

func (p *SearchPipeline) execute(ctx context.Context, query domain.Query, events chan<- domain.StreamEvent) (domain.SearchResult, error) {
	searchType := query.Type()
	result := domain.SearchResult{
		UserID:     query.UserID,
		Query:      query.Text,
		SearchType: searchType,
		Photos:     []domain.RankedCandidate{},
	}

	// Embedding.
	p.progress(ctx, events, domain.StageEmbedding,
		"Understanding your request",
		"The query is converted into vectors whose distances encode semantic similarity.")
	start := time.Now()
	vectors, err := p.embed(ctx, query)
	if err != nil {
		return result, domain.WrapError(domain.ErrUpstream, "embed query", err)
	}
	p.recordStage(domain.StageEmbedding, time.Since(start), 0)

	// Retrieval.
	p.progress(ctx, events, domain.StageRetrieving,
		"Scanning your photo library",
		"Vector search finds the photos whose embeddings sit closest to the query.")
	start = time.Now()
	retrieveCtx, cancel := p.stageContext(ctx, p.opts.RetrieveTimeout)
	candidates, err := p.index.Search(retrieveCtx, vectors, query.UserID, p.opts.RetrievalTopN)
	cancel()
	if err != nil {
		return result, domain.WrapError(domain.ErrUpstream, "retrieve candidates", err)
	}
	p.recordStage(domain.StageRetrieving, time.Since(start), len(candidates))

	// Similarity floor.
	p.progress(ctx, events, domain.StageFiltering,
		"Dropping weak matches", "")
	candidates = filterCandidates(candidates, p.opts.MinSimilarity)
	p.recordStage(domain.StageFiltering, 0, len(candidates))
	if len(candidates) == 0 {
		// Empty is a valid terminal state, not an error.
		return result, nil
	}

	// Enhancement, text queries only. Never fatal.
	enhanced := domain.EnhancedQuery{Intent: domain.IntentBroad}
	if searchType == domain.SearchTypeText {
		p.progress(ctx, events, domain.StageEnhancing,
			"Interpreting query intent",
			"A language model expands the query into keywords, temporal and contextual hints.")
		start = time.Now()
		outcome := p.enhance(ctx, query.Text)
		enhanced = outcome.Value
		if outcome.Degraded {
			slog.Warn("query enhancement degraded to heuristic",
				"user_id", query.UserID,
				"reason", outcome.Reason,
			)
		}
		p.recordStage(domain.StageEnhancing, time.Since(start), 0)
	}

	// Ranking plus diversity suppression.
	p.progress(ctx, events, domain.StageRanking,
		"Ranking the best matches",
		"Similarity, recency, favorites and temporal hints combine into one score; near-duplicates are suppressed.")
	start = time.Now()
	ranked := rankCandidates(candidates, enhanced, time.Now())
	ranked = applyDiversityPenalty(ranked, p.opts.DiversityWindow, p.opts.DiversityPenalty)
	p.recordStage(domain.StageRanking, time.Since(start), len(ranked))

	// Vision validation, bounded by the latency cap.
	if p.visionApplies(query) {
		p.progress(ctx, events, domain.StageVisionValidating,
			"Verifying matches with a vision model", "")
		start = time.Now()
		ranked = p.validateWithVision(ctx, ranked, query.Description(), events)
		p.recordStage(domain.StageVisionValidating, time.Since(start), len(ranked))
	}

	// Ownership re-check before delivery.
	p.progress(ctx, events, domain.StageVerifyingOwnership,
		"Finalizing results", "")
	start = time.Now()
	ranked, err = p.verifyOwnership(ctx, ranked, query.UserID)
	if err != nil {
		return result, domain.WrapError(domain.ErrUpstream, "verify ownership", err)
	}
	p.recordStage(domain.StageVerifyingOwnership, time.Since(start), len(ranked))

	result.Photos = ranked
	result.Count = len(ranked)
	return result, nil
}

func (p *SearchPipeline) embed(ctx context.Context, query domain.Query) (domain.QueryVectors, error) {
	embedCtx, cancel := p.stageContext(ctx, p.opts.EmbedTimeout)
	defer cancel()

	if query.Type() == domain.SearchTypeImage {
		return p.embedder.EmbedImage(embedCtx, query.ImageData, query.ImageMime)
	}
	return p.embedder.EmbedText(embedCtx, query.Text)
}

func (p *SearchPipeline) enhance(ctx context.Context, text string) domain.Outcome[domain.EnhancedQuery] {
	if p.enhancer == nil {
		return domain.Degraded(heuristicEnhancement(text), "no enhancer configured")
	}

	enhanceCtx, cancel := p.stageContext(ctx, p.opts.EnhanceTimeout)
	defer cancel()

	enhanced, err := p.enhancer.Enhance(enhanceCtx, text)
	if err != nil {
		return domain.Degraded(heuristicEnhancement(text), err.Error())
	}
	if enhanced.Original == "" {
		enhanced.Original = text
	}
	return domain.OK(enhanced)
}

func (p *SearchPipeline) visionApplies(query domain.Query) bool {
	return p.opts.VisionEnabled && p.validator != nil && query.Description() != ""
}

func (p *SearchPipeline) validateWithVision(
	ctx context.Context,
	ranked []domain.RankedCandidate,
	description string,
	events chan<- domain.StreamEvent,
) []domain.RankedCandidate {
	progress, results := runVisionValidation(ctx, p.validator, ranked, description, p.opts.Vision)
	for payload := range progress {
		p.emit(ctx, events, domain.StreamEvent{
			Type:    domain.EventVisionProgress,
			Payload: payload,
		})
	}
	kept := <-results
	p.recordVisionOutcomes(ranked, kept)
	return kept
}

func (p *SearchPipeline) verifyOwnership(ctx context.Context, ranked []domain.RankedCandidate, userID string) ([]domain.RankedCandidate, error) {
	if len(ranked) == 0 || p.library == nil {
		return ranked, nil
	}

	ids := make([]string, 0, len(ranked))
	for _, item := range ranked {
		ids = append(ids, item.PhotoID)
	}
	owned, err := p.library.VerifyOwnership(ctx, ids, userID)
	if err != nil {
		return nil, err
	}

	verified := make([]domain.RankedCandidate, 0, len(ranked))
	for _, item := range ranked {
		if _, ok := owned[item.PhotoID]; !ok {
			// Defense-in-depth catch: excluded silently, logged server-side,
			// never surfaced to the client.
			slog.Warn("ownership re-check excluded candidate",
				"photo_id", item.PhotoID,
				"user_id", userID,
			)
			continue
		}
		verified = append(verified, item)
	}
	return verified, nil
}

func (p *SearchPipeline) publishResult(ctx context.Context, result domain.SearchResult) {
	if p.publisher == nil {
		return
	}

	// Best effort: delivery to the album-creation consumer must never fail
	// the interactive request, and must survive client disconnect.
	publishCtx := context.WithoutCancel(ctx)
	if p.opts.PublishTimeout > 0 {
		var cancel context.CancelFunc
		publishCtx, cancel = context.WithTimeout(publishCtx, p.opts.PublishTimeout)
		defer cancel()
	}
	if err := p.publisher.PublishSearchCompleted(publishCtx, result); err != nil {
		slog.Warn("publish search result failed", "user_id", result.UserID, "error", err)
	}
}

func (p *SearchPipeline) heartbeat(ctx context.Context, stop <-chan struct{}, events chan<- domain.StreamEvent) {
	ticker := time.NewTicker(p.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			select {
			case events <- domain.StreamEvent{
				Type:    domain.EventPing,
				Payload: domain.PingPayload{Timestamp: now.UnixMilli()},
			}:
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

func (p *SearchPipeline) progress(ctx context.Context, events chan<- domain.StreamEvent, stage domain.Stage, message, educational string) {
	p.emit(ctx, events, domain.StreamEvent{
		Type: domain.EventProgress,
		Payload: domain.ProgressPayload{
			Stage:       stage,
			Message:     message,
			Educational: educational,
		},
	})
}

func (p *SearchPipeline) emit(ctx context.Context, events chan<- domain.StreamEvent, event domain.StreamEvent) {
	select {
	case events <- event:
	case <-ctx.Done():
	}
}

func (p *SearchPipeline) stageContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func (p *SearchPipeline) recordSearch(searchType domain.SearchType, status string) {
	if p.metrics != nil {
		p.metrics.RecordSearch(searchType, status)
	}
}

func (p *SearchPipeline) recordStage(stage domain.Stage, duration time.Duration, kept int) {
	if p.metrics != nil {
		p.metrics.RecordStage(stage, duration, kept)
	}
}

func (p *SearchPipeline) recordVisionOutcomes(before, after []domain.RankedCandidate) {
	if p.metrics == nil {
		return
	}
	kept := make(map[string]*domain.VisionVerdict, len(after))
	for i := range after {
		kept[after[i].PhotoID] = after[i].Verdict
	}
	for i := range before {
		verdict, ok := kept[before[i].PhotoID]
		switch {
		case !ok:
			p.metrics.RecordVisionVerdict("rejected")
		case verdict == nil:
			p.metrics.RecordVisionVerdict("unvalidated")
		case len(verdict.Concerns) > 0 && verdict.Confidence == neutralConfidence:
			p.metrics.RecordVisionVerdict("degraded")
		default:
			p.metrics.RecordVisionVerdict("approved")
		}
	}
}

// filterCandidates drops everything under the similarity floor and
// enforces photoId uniqueness within the run.
func filterCandidates(candidates []domain.Candidate, minSimilarity float64) []domain.Candidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]domain.Candidate, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.RawSimilarity < minSimilarity {
			continue
		}
		if _, dup := seen[candidate.PhotoID]; dup {
			continue
		}
		seen[candidate.PhotoID] = struct{}{}
		out = append(out, candidate)
	}
	return out
}

func publicErrorDetails(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrUpstream), domain.IsKind(err, domain.ErrTemporary):
		return "an upstream provider did not respond in time"
	default:
		return fmt.Sprintf("%v", err)
	}
}
