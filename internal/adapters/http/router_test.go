package httpadapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mkrivosheev/photosearch/internal/core/domain"
)

type fakeSearchService struct {
	events []domain.StreamEvent
	err    error
	gotQ   domain.Query
}

func (f *fakeSearchService) Search(ctx context.Context, query domain.Query) (<-chan domain.StreamEvent, error) {
	f.gotQ = query
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan domain.StreamEvent, len(f.events))
	for _, event := range f.events {
		out <- event
	}
	close(out)
	return out, nil
}

func newTestRouter(service *fakeSearchService, opts Options) http.Handler {
	return NewRouter(service, nil, nil, opts).Handler()
}

func TestSearchRequiresUserIdentity(t *testing.T) {
	handler := newTestRouter(&fakeSearchService{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/photos/search", strings.NewReader(`{"query":"dogs"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user header, got %d", res.Code)
	}
}

func TestSearchRejectsBadBearerToken(t *testing.T) {
	handler := newTestRouter(&fakeSearchService{}, Options{BearerToken: "secret"})

	req := httptest.NewRequest(http.MethodPost, "/v1/photos/search", strings.NewReader(`{"query":"dogs"}`))
	req.Header.Set("X-User-Id", "u-1")
	req.Header.Set("Authorization", "Bearer wrong")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token, got %d", res.Code)
	}
}

func TestSearchRejectsInvalidJSON(t *testing.T) {
	handler := newTestRouter(&fakeSearchService{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/photos/search", strings.NewReader(`{"query":`))
	req.Header.Set("X-User-Id", "u-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid json, got %d", res.Code)
	}
}

func TestSearchMapsValidationErrorTo400(t *testing.T) {
	service := &fakeSearchService{
		err: domain.WrapError(domain.ErrInvalidInput, "validate query", domain.ErrInvalidInput),
	}
	handler := newTestRouter(service, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/photos/search", strings.NewReader(`{}`))
	req.Header.Set("X-User-Id", "u-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid query, got %d", res.Code)
	}
}

func TestSearchStreamsEventsAsSSE(t *testing.T) {
	service := &fakeSearchService{
		events: []domain.StreamEvent{
			{Type: domain.EventStart, Payload: domain.StartPayload{SearchType: domain.SearchTypeText}},
			{Type: domain.EventProgress, Payload: domain.ProgressPayload{Stage: domain.StageEmbedding, Message: "embedding query"}},
			{Type: domain.EventComplete, Payload: domain.CompletePayload{Success: true, Count: 0, Photos: []domain.RankedCandidate{}}},
		},
	}
	handler := newTestRouter(service, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/photos/search", strings.NewReader(`{"query":"dogs at the beach"}`))
	req.Header.Set("X-User-Id", "u-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}
	if res.Header().Get("X-Accel-Buffering") != "no" {
		t.Fatalf("expected proxy buffering disabled")
	}

	body := res.Body.String()
	startIdx := strings.Index(body, "event: start\n")
	progressIdx := strings.Index(body, "event: progress\n")
	completeIdx := strings.Index(body, "event: complete\n")
	if startIdx < 0 || progressIdx < 0 || completeIdx < 0 {
		t.Fatalf("missing framed events in body:\n%s", body)
	}
	if !(startIdx < progressIdx && progressIdx < completeIdx) {
		t.Fatalf("events out of order:\n%s", body)
	}
	if !strings.Contains(body, `data: {"searchType":"text"}`) {
		t.Fatalf("start payload not serialized:\n%s", body)
	}
	if service.gotQ.UserID != "u-1" {
		t.Fatalf("user id not propagated, got %q", service.gotQ.UserID)
	}
}

func TestSearchDecodesDataURIImage(t *testing.T) {
	service := &fakeSearchService{
		events: []domain.StreamEvent{
			{Type: domain.EventStart, Payload: domain.StartPayload{SearchType: domain.SearchTypeImage}},
		},
	}
	handler := newTestRouter(service, Options{})

	// "hi" base64-encoded inside a data URI.
	body := `{"image":"data:image/png;base64,aGk=","context":"friends"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/photos/search", strings.NewReader(body))
	req.Header.Set("X-User-Id", "u-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if string(service.gotQ.ImageData) != "hi" {
		t.Fatalf("image bytes not decoded, got %q", service.gotQ.ImageData)
	}
	if service.gotQ.ImageMime != "image/png" {
		t.Fatalf("mime not parsed from data uri, got %q", service.gotQ.ImageMime)
	}
	if service.gotQ.Context != "friends" {
		t.Fatalf("context not propagated, got %q", service.gotQ.Context)
	}
}

func TestSearchRejectsMalformedImage(t *testing.T) {
	handler := newTestRouter(&fakeSearchService{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/photos/search", strings.NewReader(`{"image":"%%%not-base64%%%"}`))
	req.Header.Set("X-User-Id", "u-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed image, got %d", res.Code)
	}
}

func TestHealthzReportsClipState(t *testing.T) {
	handler := NewRouter(&fakeSearchService{}, failingHealth{}, nil, Options{}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("healthz must stay 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "degraded") {
		t.Fatalf("expected degraded status in body: %s", res.Body.String())
	}
}

type failingHealth struct{}

func (failingHealth) Health(context.Context) error {
	return context.DeadlineExceeded
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	handler := newTestRouter(&fakeSearchService{
		events: []domain.StreamEvent{{Type: domain.EventStart, Payload: domain.StartPayload{}}},
	}, Options{RateLimitRPS: 1, RateLimitBurst: 1})

	req1 := httptest.NewRequest(http.MethodPost, "/v1/photos/search", strings.NewReader(`{"query":"dogs"}`))
	req1.Header.Set("X-User-Id", "u-1")
	res1 := httptest.NewRecorder()
	handler.ServeHTTP(res1, req1)
	if res1.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", res1.Code)
	}

	req2 := httptest.NewRequest(http.MethodPost, "/v1/photos/search", strings.NewReader(`{"query":"dogs"}`))
	req2.Header.Set("X-User-Id", "u-1")
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", res2.Code)
	}
	if res2.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header for 429 response")
	}
}

func TestBackpressureMiddlewareReturns503WhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, 20*time.Millisecond)

	go func() {
		req := httptest.NewRequest(http.MethodPost, "/v1/photos/search", nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		done <- res.Code
	}()

	<-started

	req2 := httptest.NewRequest(http.MethodPost, "/v1/photos/search", nil)
	res2 := httptest.NewRecorder()
	handler.ServeHTTP(res2, req2)
	if res2.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for saturated backpressure gate, got %d", res2.Code)
	}

	close(release)

	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("first request expected 204, got %d", code)
		}
	case <-time.After(1 * time.Second):
		t.Fatalf("timed out waiting for first request completion")
	}
}
