package generation

import (
	"errors"
	"io"
)

// ErrMisconfigured marks a vendor call that failed because server-side
// credentials are absent. It maps to the same external status as a vendor
// failure; only logs distinguish the two.
var ErrMisconfigured = errors.New("vendor credentials missing")

// Message is one turn of a code-generation conversation.
type Message struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// CodeRequest is the body of POST /generate/code. Clients send the full
// conversation history; the last user message is the prompt.
type CodeRequest struct {
	Messages []Message `json:"messages" validate:"required,min=1,dive"`
}

// ImageRequest is the body of POST /generate/image.
type ImageRequest struct {
	Prompt     string `json:"prompt" validate:"required"`
	Amount     int    `json:"amount" validate:"omitempty,min=1,max=8"`
	Resolution string `json:"resolution" validate:"omitempty"`
}

// VideoRequest is the body of POST /generate/video.
type VideoRequest struct {
	Prompt    string `json:"prompt" validate:"required"`
	Dimension string `json:"dimension" validate:"omitempty"`
}

// ImageResult is one generated image, inlined as a data URI for direct
// rendering.
type ImageResult struct {
	Image string `json:"image"`
}

// Result is a completed generation. Exactly one of JSON or Stream is set:
// code and image respond as JSON, video relays the vendor's mp4 body.
type Result struct {
	ContentType string
	JSON        any
	Stream      io.ReadCloser
}

const (
	defaultImageAmount     = 1
	defaultImageResolution = "512x512"
)
