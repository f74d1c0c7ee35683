package generation

import (
	"context"
	"encoding/json"

	"github.com/go-playground/validator/v10"

	"github.com/promptforge-ai/promptforge/internal/api"
)

// Call is a vendor invocation bound to an already-validated request.
type Call func(ctx context.Context) (*Result, error)

// Generator binds one modality to its vendor. Decode validates the raw
// request body and returns the bound vendor call; the handler runs the access
// gate between the two, so a denied request never reaches a vendor.
type Generator interface {
	Modality() string
	Vendor() string
	Decode(body []byte) (Call, error)
}

func decodeInto(v *validator.Validate, body []byte, dst any) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return api.ErrBadRequest
	}
	if err := v.Struct(dst); err != nil {
		return api.NewValidationError(err.Error())
	}
	return nil
}
