package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mkrivosheev/photosearch/internal/core/domain"
)

// Client searches a photo collection that stores two named vectors per
// point: "caption" (caption-text space) and "clip" (multimodal space).
// Points carry the photo metadata in their payload so retrieval never
// needs a relational round trip.
type Client struct {
	baseURL       string
	collection    string
	httpClient    *http.Client
	captionWeight float64
	clipWeight    float64
}

func New(baseURL, collection string, captionWeight, clipWeight float64) *Client {
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		collection:    collection,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		captionWeight: captionWeight,
		clipWeight:    clipWeight,
	}
}

const (
	captionVectorName = "caption"
	clipVectorName    = "clip"
)

func (c *Client) Search(
	ctx context.Context,
	vectors domain.QueryVectors,
	userID string,
	topN int,
) ([]domain.Candidate, error) {
	if len(vectors.Caption) == 0 && len(vectors.Clip) == 0 {
		return nil, fmt.Errorf("qdrant search: no query vectors")
	}
	if topN <= 0 {
		topN = 50
	}

	merged := map[string]*domain.Candidate{}

	if len(vectors.Caption) > 0 {
		hits, err := c.searchSpace(ctx, captionVectorName, vectors.Caption, userID, topN)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			cand := payloadToCandidate(h.Payload)
			cand.CaptionSimilarity = h.Score
			merged[cand.PhotoID] = &cand
		}
	}

	if len(vectors.Clip) > 0 {
		hits, err := c.searchSpace(ctx, clipVectorName, vectors.Clip, userID, topN)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			if existing, ok := merged[getStringPayload(h.Payload, "photo_id")]; ok {
				existing.ClipSimilarity = h.Score
				continue
			}
			cand := payloadToCandidate(h.Payload)
			cand.ClipSimilarity = h.Score
			merged[cand.PhotoID] = &cand
		}
	}

	dual := len(vectors.Caption) > 0 && len(vectors.Clip) > 0
	out := make([]domain.Candidate, 0, len(merged))
	for _, cand := range merged {
		cand.RawSimilarity = c.combinedSimilarity(*cand, dual)
		out = append(out, *cand)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RawSimilarity != out[j].RawSimilarity {
			return out[i].RawSimilarity > out[j].RawSimilarity
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].PhotoID < out[j].PhotoID
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out, nil
}

// combinedSimilarity blends the per-space scores when both spaces were
// queried. A photo missing from one space's result list contributes zero
// for that space, which naturally demotes single-space hits.
func (c *Client) combinedSimilarity(cand domain.Candidate, dual bool) float64 {
	if !dual {
		if cand.ClipSimilarity != 0 {
			return cand.ClipSimilarity
		}
		return cand.CaptionSimilarity
	}
	return c.captionWeight*cand.CaptionSimilarity + c.clipWeight*cand.ClipSimilarity
}

type searchHit struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (c *Client) searchSpace(
	ctx context.Context,
	vectorName string,
	vector []float32,
	userID string,
	limit int,
) ([]searchHit, error) {
	reqBody := map[string]any{
		"vector": map[string]any{
			"name":   vectorName,
			"vector": vector,
		},
		"limit":        limit,
		"with_payload": true,
		"filter": map[string]any{
			"must": []map[string]any{
				{
					"key": "user_id",
					"match": map[string]any{
						"value": userID,
					},
				},
			},
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal search body: %w", err)
	}

	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("qdrant %s search request: %w", vectorName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return nil, fmt.Errorf("qdrant %s search status: %s: %s", vectorName, resp.Status, msg)
		}
		return nil, fmt.Errorf("qdrant %s search status: %s", vectorName, resp.Status)
	}

	var searchResp struct {
		Result []searchHit `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return searchResp.Result, nil
}

func payloadToCandidate(payload map[string]any) domain.Candidate {
	return domain.Candidate{
		PhotoID:    getStringPayload(payload, "photo_id"),
		Name:       getStringPayload(payload, "name"),
		URL:        getStringPayload(payload, "url"),
		Caption:    getStringPayload(payload, "caption"),
		CreatedAt:  getTimePayload(payload, "created_at"),
		IsFavorite: getBoolPayload(payload, "is_favorite"),
	}
}

func getStringPayload(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func getBoolPayload(payload map[string]any, key string) bool {
	b, _ := payload[key].(bool)
	return b
}

func getTimePayload(payload map[string]any, key string) time.Time {
	s, ok := payload[key].(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
