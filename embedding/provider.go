// Package embedding turns memory text into vectors. It ships an
// OpenAI-compatible HTTP provider, a Redis read-through cache wrapper, and
// a deterministic in-process provider for tests and offline use.
package embedding

import (
	"context"

	"github.com/shreyasgurav/UniMemory/types"
)

// Provider generates one embedding per text.
type Provider interface {
	// Embed returns the embedding of text. Failures carry the
	// EMBEDDING_UNAVAILABLE code.
	Embed(ctx context.Context, text string) ([]float64, error)

	// Dimensions returns the vector width this provider produces.
	Dimensions() int
}

func unavailable(msg string, cause error) error {
	return types.NewError(types.ErrEmbeddingUnavailable, msg).WithCause(cause).WithRetryable(true)
}
