package clip

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mkrivosheev/photosearch/internal/infrastructure/resilience"
)

// Client talks to the CLIP inference sidecar. Both endpoints return
// L2-normalized vectors, so cosine similarity reduces to a dot product
// downstream.
type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, timeout time.Duration, executor *resilience.Executor) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type embeddingResponse struct {
	Embedding  []float32 `json:"embedding"`
	Dimensions int       `json:"dimensions"`
}

func (c *Client) EmbedText(ctx context.Context, text string) ([]float32, error) {
	request := map[string]any{"text": text}

	var response embeddingResponse
	if err := c.post(ctx, "/embed/text", "clip.embed_text", request, &response); err != nil {
		return nil, err
	}
	if len(response.Embedding) == 0 {
		return nil, fmt.Errorf("clip embed_text: empty embedding")
	}
	return response.Embedding, nil
}

func (c *Client) EmbedImage(ctx context.Context, data []byte, mime string) ([]float32, error) {
	if mime == "" {
		mime = "image/jpeg"
	}
	request := map[string]any{
		"image":     base64.StdEncoding.EncodeToString(data),
		"mime_type": mime,
	}

	var response embeddingResponse
	if err := c.post(ctx, "/embed/image", "clip.embed_image", request, &response); err != nil {
		return nil, err
	}
	if len(response.Embedding) == 0 {
		return nil, fmt.Errorf("clip embed_image: empty embedding")
	}
	return response.Embedding, nil
}

// Health reports whether the sidecar has its model loaded.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("clip health request: %w", err)
	}
	defer resp.Body.Close()

	var health struct {
		Status      string `json:"status"`
		ModelLoaded bool   `json:"model_loaded"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	if resp.StatusCode >= 300 || !health.ModelLoaded {
		return fmt.Errorf("clip sidecar unhealthy: status=%s model_loaded=%t", health.Status, health.ModelLoaded)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path, operation string, payload any, out any) error {
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, path, operation, payload, out)
	}
	if c.executor == nil {
		return call(ctx)
	}
	return c.executor.Execute(ctx, operation, call, classifyClipError)
}

func (c *Client) postJSON(ctx context.Context, path, operation string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &HTTPStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
