package httpadapter

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/mkrivosheev/photosearch/internal/core/domain"
	"github.com/mkrivosheev/photosearch/internal/core/ports"
	"github.com/mkrivosheev/photosearch/internal/observability/logging"
	"github.com/mkrivosheev/photosearch/internal/observability/metrics"
)

// HealthChecker reports readiness of a critical upstream dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type Options struct {
	BearerToken      string
	CORSOrigins      []string
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxInFlight      int
	BackpressureWait time.Duration
	StreamCloseGrace time.Duration
}

type Router struct {
	search  ports.SearchService
	clip    HealthChecker
	metrics *metrics.HTTPServerMetrics
	opts    Options
}

func NewRouter(
	search ports.SearchService,
	clip HealthChecker,
	serverMetrics *metrics.HTTPServerMetrics,
	opts Options,
) *Router {
	if opts.BackpressureWait <= 0 {
		opts.BackpressureWait = 2 * time.Second
	}
	return &Router{
		search:  search,
		clip:    clip,
		metrics: serverMetrics,
		opts:    opts,
	}
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	origins := rt.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", userIDHeader, requestIDHeader},
	}))
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	if rt.metrics != nil {
		r.Use(func(next http.Handler) http.Handler {
			return rt.metrics.Middleware("api", next)
		})
	}

	r.Get("/healthz", rt.healthz)
	if rt.metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return rateLimitMiddleware(next, rt.opts.RateLimitRPS, rt.opts.RateLimitBurst)
		})
		r.Use(func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, rt.opts.MaxInFlight, rt.opts.BackpressureWait)
		})
		r.Use(func(next http.Handler) http.Handler {
			return authMiddleware(next, rt.opts.BearerToken)
		})
		r.Post("/v1/photos/search", rt.searchPhotos)
	})

	return r
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	response := map[string]string{"status": "ok"}
	if rt.clip != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rt.clip.Health(ctx); err != nil {
			response["status"] = "degraded"
			response["clip"] = err.Error()
			writeJSON(w, http.StatusOK, response)
			return
		}
		response["clip"] = "ok"
	}
	writeJSON(w, http.StatusOK, response)
}

type searchRequest struct {
	Query   string `json:"query"`
	Image   string `json:"image"`
	Context string `json:"context"`
}

func (rt *Router) searchPhotos(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	query := domain.Query{
		Text:    strings.TrimSpace(req.Query),
		Context: strings.TrimSpace(req.Context),
		UserID:  userIDFromContext(r.Context()),
	}
	if req.Image != "" {
		data, mime, err := decodeImagePayload(req.Image)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "image must be valid base64"})
			return
		}
		query.ImageData = data
		query.ImageMime = mime
	}

	events, err := rt.search.Search(r.Context(), query)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		logging.FromContext(r.Context()).Warn("search rejected",
			"status", status,
			"error", err,
		)
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	if rt.metrics != nil {
		rt.metrics.StreamOpened()
		defer rt.metrics.StreamClosed()
	}
	streamEvents(w, r, events, rt.opts.StreamCloseGrace)
}

// decodeImagePayload accepts either a bare base64 string or a data URI
// like "data:image/png;base64,...." and returns the raw bytes plus the
// declared mime type when present.
func decodeImagePayload(payload string) ([]byte, string, error) {
	mime := ""
	encoded := payload
	if strings.HasPrefix(payload, "data:") {
		rest := strings.TrimPrefix(payload, "data:")
		meta, b64, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", base64.CorruptInputError(0)
		}
		mime = strings.TrimSuffix(meta, ";base64")
		encoded = b64
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, "", err
	}
	return data, mime, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
