package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/mkrivosheev/photosearch/internal/config"
	"github.com/mkrivosheev/photosearch/internal/core/ports"
	"github.com/mkrivosheev/photosearch/internal/core/usecase"
	"github.com/mkrivosheev/photosearch/internal/infrastructure/embedding"
	"github.com/mkrivosheev/photosearch/internal/infrastructure/embedding/clip"
	"github.com/mkrivosheev/photosearch/internal/infrastructure/llm/openai"
	"github.com/mkrivosheev/photosearch/internal/infrastructure/queue/nats"
	"github.com/mkrivosheev/photosearch/internal/infrastructure/repository/postgres"
	"github.com/mkrivosheev/photosearch/internal/infrastructure/resilience"
	"github.com/mkrivosheev/photosearch/internal/infrastructure/vector/qdrant"
	"github.com/mkrivosheev/photosearch/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Search  ports.SearchService
	Clip    *clip.Client
	Metrics *metrics.HTTPServerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	library := postgres.NewPhotoRepository(db)

	executor := resilience.NewExecutor(resilience.InteractiveConfig())

	clipClient := clip.New(cfg.ClipServiceURL, cfg.ClipTimeout, executor)
	llmClient := openai.New(
		cfg.OpenAIAPIKey,
		cfg.OpenAIBaseURL,
		cfg.OpenAIChatModel,
		cfg.OpenAIVisionModel,
		cfg.OpenAIEmbedModel,
		executor,
	)

	// Without an API key there is no caption-space encoder; retrieval
	// degrades to the clip space alone and enhancement falls back to
	// the heuristic path inside the pipeline.
	var captionEncoder embedding.CaptionEncoder
	var enhancer ports.QueryEnhancer
	var validator ports.VisionValidator
	if cfg.OpenAIAPIKey != "" {
		captionEncoder = openai.NewCaptionEmbedder(llmClient)
		enhancer = openai.NewEnhancer(llmClient)
		validator = openai.NewVisionArbiter(llmClient)
	}

	embedder := embedding.NewDualSpaceEmbedder(
		captionEncoder,
		clipClient,
		cfg.CaptionVectorDims,
		cfg.ClipVectorDims,
	)

	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.CaptionWeight, cfg.ClipWeight)

	var publisher ports.ResultPublisher
	var closeQueue func()
	if cfg.NATSURL != "" {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: executor,
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		publisher = queue
		closeQueue = queue.Close
	}

	serverMetrics := metrics.NewHTTPServerMetrics("api")
	recorder := metrics.NewPipelineRecorder(serverMetrics, "api")

	overflow := usecase.OverflowAppend
	if strings.EqualFold(cfg.VisionOverflow, "drop") {
		overflow = usecase.OverflowDrop
	}

	pipeline := usecase.NewSearchPipeline(
		embedder,
		index,
		enhancer,
		validator,
		library,
		publisher,
		recorder,
		usecase.PipelineOptions{
			MinSimilarity: cfg.MinSimilarity,
			RetrievalTopN: cfg.RetrievalTopN,
			VisionEnabled: cfg.VisionEnabled && validator != nil,
			Vision: usecase.VisionOptions{
				MaxPhotos:   cfg.VisionMaxPhotos,
				Concurrency: cfg.VisionConcurrency,
				ItemTimeout: cfg.VisionItemTimeout,
				Overflow:    overflow,
			},
			DiversityWindow:   cfg.DiversityWindow,
			DiversityPenalty:  cfg.DiversityPenalty,
			HeartbeatInterval: cfg.HeartbeatInterval,
			EmbedTimeout:      cfg.EmbedTimeout,
			RetrieveTimeout:   cfg.RetrieveTimeout,
			EnhanceTimeout:    cfg.EnhanceTimeout,
			PublishTimeout:    cfg.PublishTimeout,
		},
	)

	return &App{
		Config:  cfg,
		Search:  pipeline,
		Clip:    clipClient,
		Metrics: serverMetrics,

		closeFn: func() {
			if closeQueue != nil {
				closeQueue()
			}
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
