package generation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/promptforge-ai/promptforge/internal/vendors/huggingface"
)

// ImageGenerator produces images via HuggingFace diffusion inference.
type ImageGenerator struct {
	client   *huggingface.Client
	validate *validator.Validate
}

func NewImageGenerator(client *huggingface.Client, validate *validator.Validate) *ImageGenerator {
	return &ImageGenerator{client: client, validate: validate}
}

func (g *ImageGenerator) Modality() string { return "image" }
func (g *ImageGenerator) Vendor() string   { return "huggingface" }

func (g *ImageGenerator) Decode(body []byte) (Call, error) {
	var req ImageRequest
	if err := decodeInto(g.validate, body, &req); err != nil {
		return nil, err
	}
	if req.Amount == 0 {
		req.Amount = defaultImageAmount
	}
	if req.Resolution == "" {
		req.Resolution = defaultImageResolution
	}

	return func(ctx context.Context) (*Result, error) {
		// One vendor call per unit, sequentially. The first failure aborts
		// the batch; no partial results are returned.
		images := make([]ImageResult, 0, req.Amount)
		for i := 0; i < req.Amount; i++ {
			data, err := g.client.GenerateImage(ctx, req.Prompt)
			if err != nil {
				if errors.Is(err, huggingface.ErrMissingAPIKey) {
					return nil, fmt.Errorf("%w: %v", ErrMisconfigured, err)
				}
				return nil, err
			}
			images = append(images, ImageResult{
				Image: "data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
			})
		}
		return &Result{
			ContentType: "application/json",
			JSON:        images,
		}, nil
	}, nil
}
