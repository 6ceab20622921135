//go:build !llama

package engine

// This file provides a no-CGO stub compiled when the 'llama' build tag is
// NOT set, keeping default builds and CI CGO-free. The real backend lives in
// llama.go (tagged 'llama'). The stub fails fast rather than mocking
// inference in production binaries.

// Open fails fast: the llama runtime is not available in this build.
func Open(path string, cfg ModelConfig) (Engine, error) {
	return nil, ErrUnavailable
}
