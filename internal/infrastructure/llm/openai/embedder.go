package openai

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// CaptionEmbedder produces caption-space vectors with the same model
// the ingestion side used for photo captions. Query and caption vectors
// must live in one space or similarity scores are meaningless.
type CaptionEmbedder struct {
	client *Client
}

func NewCaptionEmbedder(client *Client) *CaptionEmbedder {
	return &CaptionEmbedder{client: client}
}

func (e *CaptionEmbedder) EmbedCaptionText(ctx context.Context, text string) ([]float32, error) {
	req := openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.client.embedModel),
	}

	var vector []float32
	err := e.client.execute(ctx, "llm.embed_caption", func(callCtx context.Context) error {
		resp, err := e.client.api.CreateEmbeddings(callCtx, req)
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return fmt.Errorf("llm.embed_caption: empty embedding response")
		}
		vector = resp.Data[0].Embedding
		return nil
	})
	if err != nil {
		return nil, err
	}
	return vector, nil
}
