package embedding

import (
	"context"
	"fmt"

	"github.com/mkrivosheev/photosearch/internal/core/domain"
)

// CaptionEncoder produces vectors in the caption-text embedding space.
type CaptionEncoder interface {
	EmbedCaptionText(ctx context.Context, text string) ([]float32, error)
}

// ClipEncoder produces vectors in the CLIP multimodal space.
type ClipEncoder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedImage(ctx context.Context, data []byte, mime string) ([]float32, error)
}

// DualSpaceEmbedder builds one query vector per configured space. With a
// caption encoder attached, text queries are embedded in both spaces;
// image queries always live in the clip space only. Dimensionality is
// validated on every call: a mismatched vector would silently corrupt
// cosine similarity downstream, so it is a hard failure instead.
type DualSpaceEmbedder struct {
	caption     CaptionEncoder
	clip        ClipEncoder
	captionDims int
	clipDims    int
}

func NewDualSpaceEmbedder(caption CaptionEncoder, clip ClipEncoder, captionDims, clipDims int) *DualSpaceEmbedder {
	return &DualSpaceEmbedder{
		caption:     caption,
		clip:        clip,
		captionDims: captionDims,
		clipDims:    clipDims,
	}
}

func (e *DualSpaceEmbedder) EmbedText(ctx context.Context, text string) (domain.QueryVectors, error) {
	var vectors domain.QueryVectors

	if e.caption != nil {
		captionVec, err := e.caption.EmbedCaptionText(ctx, text)
		if err != nil {
			return domain.QueryVectors{}, fmt.Errorf("caption-space embedding: %w", err)
		}
		if err := validateDims("caption", captionVec, e.captionDims); err != nil {
			return domain.QueryVectors{}, err
		}
		vectors.Caption = captionVec
	}

	clipVec, err := e.clip.EmbedText(ctx, text)
	if err != nil {
		return domain.QueryVectors{}, fmt.Errorf("clip-space embedding: %w", err)
	}
	if err := validateDims("clip", clipVec, e.clipDims); err != nil {
		return domain.QueryVectors{}, err
	}
	vectors.Clip = clipVec
	return vectors, nil
}

func (e *DualSpaceEmbedder) EmbedImage(ctx context.Context, data []byte, mime string) (domain.QueryVectors, error) {
	clipVec, err := e.clip.EmbedImage(ctx, data, mime)
	if err != nil {
		return domain.QueryVectors{}, fmt.Errorf("clip-space image embedding: %w", err)
	}
	if err := validateDims("clip", clipVec, e.clipDims); err != nil {
		return domain.QueryVectors{}, err
	}
	return domain.QueryVectors{Clip: clipVec}, nil
}

func validateDims(space string, vector []float32, want int) error {
	if want > 0 && len(vector) != want {
		return fmt.Errorf("%s embedding dimensionality mismatch: got %d, want %d", space, len(vector), want)
	}
	return nil
}
