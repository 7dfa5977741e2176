package llm

import (
	"context"
)

// LLMClient is a single-turn text completion backend.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
