package httpadapter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mkrivosheev/photosearch/internal/core/domain"
	"github.com/mkrivosheev/photosearch/internal/observability/logging"
)

// streamEvents writes the pipeline's event channel as server-sent
// events. The stream stays open until the channel closes or the client
// disconnects; a short grace period after the final frame lets proxies
// drain buffered bytes before the connection drops.
func streamEvents(w http.ResponseWriter, r *http.Request, events <-chan domain.StreamEvent, closeGrace time.Duration) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming is not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := logging.FromContext(r.Context())

	for {
		select {
		case event, open := <-events:
			if !open {
				if closeGrace > 0 {
					time.Sleep(closeGrace)
				}
				return
			}
			if err := writeEvent(w, flusher, event); err != nil {
				logger.Warn("stream write failed", "error", err)
				return
			}
		case <-r.Context().Done():
			// The pipeline watches the same context; it will stop
			// producing and close the channel on its own.
			return
		}
	}
}

func writeEvent(w http.ResponseWriter, flusher http.Flusher, event domain.StreamEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event.Type, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
