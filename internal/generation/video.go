package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/promptforge-ai/promptforge/internal/vendors/segmind"
)

// VideoGenerator produces short videos via Segmind text-to-video.
type VideoGenerator struct {
	client   *segmind.Client
	validate *validator.Validate
}

func NewVideoGenerator(client *segmind.Client, validate *validator.Validate) *VideoGenerator {
	return &VideoGenerator{client: client, validate: validate}
}

func (g *VideoGenerator) Modality() string { return "video" }
func (g *VideoGenerator) Vendor() string   { return "segmind" }

func (g *VideoGenerator) Decode(body []byte) (Call, error) {
	var req VideoRequest
	if err := decodeInto(g.validate, body, &req); err != nil {
		return nil, err
	}

	return func(ctx context.Context) (*Result, error) {
		stream, err := g.client.GenerateVideo(ctx, req.Prompt, req.Dimension)
		if err != nil {
			if errors.Is(err, segmind.ErrMissingAPIKey) {
				return nil, fmt.Errorf("%w: %v", ErrMisconfigured, err)
			}
			return nil, err
		}
		return &Result{
			ContentType: "video/mp4",
			Stream:      stream,
		}, nil
	}, nil
}
