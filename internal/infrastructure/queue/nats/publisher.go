package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/mkrivosheev/photosearch/internal/core/domain"
	"github.com/mkrivosheev/photosearch/internal/infrastructure/resilience"
)

// Publisher announces completed searches so downstream consumers, e.g.
// the album suggestion service, can react without being in the request
// path.
type Publisher struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
}

func New(url, subject string) (*Publisher, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Publisher, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}

	conn, err := nats.Connect(
		url,
		nats.Name("photo-search"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats disconnected", slog.Any("error", err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", slog.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
	}, nil
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

type searchCompletedEvent struct {
	UserID     string           `json:"user_id"`
	Query      string           `json:"query"`
	SearchType string           `json:"search_type"`
	Count      int              `json:"count"`
	PhotoIDs   []string         `json:"photo_ids"`
	OccurredAt time.Time        `json:"occurred_at"`
	TopPhotos  []completedPhoto `json:"top_photos,omitempty"`
}

type completedPhoto struct {
	PhotoID string  `json:"photo_id"`
	Score   float64 `json:"score"`
}

func (p *Publisher) PublishSearchCompleted(ctx context.Context, result domain.SearchResult) error {
	event := searchCompletedEvent{
		UserID:     result.UserID,
		Query:      result.Query,
		SearchType: string(result.SearchType),
		Count:      result.Count,
		PhotoIDs:   make([]string, 0, len(result.Photos)),
		OccurredAt: time.Now().UTC(),
	}
	for i, photo := range result.Photos {
		event.PhotoIDs = append(event.PhotoIDs, photo.PhotoID)
		if i < 5 {
			event.TopPhotos = append(event.TopPhotos, completedPhoto{
				PhotoID: photo.PhotoID,
				Score:   photo.FinalScore,
			})
		}
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal search completed event: %w", err)
	}

	call := func(_ context.Context) error {
		if err := p.conn.Publish(p.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if p.executor != nil {
		err = p.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}
