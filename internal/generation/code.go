package generation

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/promptforge-ai/promptforge/internal/vendors/groq"
)

// codeInstruction pins the assistant to markdown code snippets; it is
// prepended to every conversation so clients cannot override it.
const codeInstruction = "You are a code generator. You must answer only in markdown code snippets. Use code comments for explanations."

// CodeGenerator produces code snippets via Groq chat completions.
type CodeGenerator struct {
	client   *groq.Client
	validate *validator.Validate
}

func NewCodeGenerator(client *groq.Client, validate *validator.Validate) *CodeGenerator {
	return &CodeGenerator{client: client, validate: validate}
}

func (g *CodeGenerator) Modality() string { return "code" }
func (g *CodeGenerator) Vendor() string   { return "groq" }

func (g *CodeGenerator) Decode(body []byte) (Call, error) {
	var req CodeRequest
	if err := decodeInto(g.validate, body, &req); err != nil {
		return nil, err
	}

	messages := make([]groq.Message, 0, len(req.Messages)+1)
	messages = append(messages, groq.Message{Role: "system", Content: codeInstruction})
	for _, m := range req.Messages {
		messages = append(messages, groq.Message{Role: m.Role, Content: m.Content})
	}

	return func(ctx context.Context) (*Result, error) {
		reply, err := g.client.Complete(ctx, messages)
		if err != nil {
			if errors.Is(err, groq.ErrMissingAPIKey) {
				return nil, fmt.Errorf("%w: %v", ErrMisconfigured, err)
			}
			return nil, err
		}
		return &Result{
			ContentType: "application/json",
			JSON:        Message{Role: reply.Role, Content: reply.Content},
		}, nil
	}, nil
}
