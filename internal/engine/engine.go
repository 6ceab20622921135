package engine

import (
	"context"
	"errors"
)

// ErrUnavailable is returned by Open when the binary was built without the
// 'llama' build tag and no real inference backend is linked in.
var ErrUnavailable = errors.New("llama support not built (missing 'llama' build tag)")

// Engine is a loaded model that can run synchronous text generation.
type Engine interface {
	// Generate produces a completion for prompt. Implementations must return
	// early when the context is canceled.
	Generate(ctx context.Context, prompt string, opts Options) (Result, error)
	// Close releases the model and any native resources.
	Close() error
}

// ModelConfig captures load-time knobs for the underlying runtime.
type ModelConfig struct {
	CtxSize int
	Threads int
}

// Options captures per-request generation parameters.
type Options struct {
	MaxTokens   int
	Temperature float64
	TopP        float64
	TopK        int
	Stop        []string
	Seed        int
}

// Result summarizes a completed generation.
type Result struct {
	Text         string
	FinishReason string
}
