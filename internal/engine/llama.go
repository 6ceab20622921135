//go:build llama

package engine

import (
	"context"
	"errors"
	"strings"

	llama "github.com/go-skynet/go-llama.cpp"
)

// llamaEngine owns one loaded llama.cpp model.
type llamaEngine struct {
	model   *llama.LLama
	threads int
}

// Open loads the GGUF file at path into an in-process llama.cpp instance.
func Open(path string, cfg ModelConfig) (Engine, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("model path is empty")
	}
	mo := []llama.ModelOption{
		llama.SetContext(zn(cfg.CtxSize, 2048)),
	}
	m, err := llama.New(path, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaEngine{model: m, threads: zn(cfg.Threads, 4)}, nil
}

func (e *llamaEngine) Generate(ctx context.Context, prompt string, opts Options) (Result, error) {
	if e.model == nil {
		return Result{}, errors.New("llama model not initialized")
	}
	// Token callback only used to observe cancellation mid-generation.
	e.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
			return true
		}
	})
	po := predictOptions(opts, e.threads)
	text, err := e.model.Predict(prompt, po...)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, err
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}
	return Result{Text: text, FinishReason: "stop"}, nil
}

func (e *llamaEngine) Close() error {
	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts generation options into go-llama.cpp options.
// A zero temperature is passed through as-is so deterministic sampling works.
func predictOptions(opts Options, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(zn(opts.MaxTokens, 1)),
		llama.SetThreads(zn(threads, 1)),
		llama.SetTemperature(float32(opts.Temperature)),
	}
	if opts.TopP > 0 {
		po = append(po, llama.SetTopP(float32(opts.TopP)))
	}
	if opts.TopK > 0 {
		po = append(po, llama.SetTopK(opts.TopK))
	}
	if opts.Seed != 0 {
		po = append(po, llama.SetSeed(opts.Seed))
	}
	if len(opts.Stop) > 0 {
		po = append(po, llama.SetStopWords(opts.Stop...))
	}
	return po
}
