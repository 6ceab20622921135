package runtime

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inferd/internal/config"
	"inferd/internal/engine"
	"inferd/pkg/types"
)

// fakeEngine records the options of every Generate call.
type fakeEngine struct {
	mu    sync.Mutex
	calls []engine.Options
	text  string
	err   error
}

func (f *fakeEngine) Generate(ctx context.Context, prompt string, opts engine.Options) (engine.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	f.mu.Unlock()
	if f.err != nil {
		return engine.Result{}, f.err
	}
	text := f.text
	if text == "" {
		// Deterministic function of the inputs so repeated calls with the
		// same prompt and options yield identical output.
		text = "  echo:" + prompt + "  "
	}
	return engine.Result{Text: text, FinishReason: "stop"}, nil
}

func (f *fakeEngine) Close() error { return nil }

func (f *fakeEngine) lastOpts(t *testing.T) engine.Options {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls)
	return f.calls[len(f.calls)-1]
}

func testConfig(t *testing.T) (config.Config, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ModelURL = "https://example.com/m.gguf"
	cfg.ModelDir = dir
	return cfg, filepath.Join(dir, cfg.ModelFile)
}

func writeModelFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("gguf"), 0o644))
}

func newTestRuntime(t *testing.T, cfg config.Config, open OpenFunc) *Runtime {
	t.Helper()
	rt, err := NewWithOpen(cfg, zerolog.Nop(), open)
	require.NoError(t, err)
	return rt
}

func TestGenerateMissingFileReturns503(t *testing.T) {
	cfg, _ := testConfig(t)
	rt := newTestRuntime(t, cfg, func(string, engine.ModelConfig) (engine.Engine, error) {
		t.Fatal("open must not be called when the file is missing")
		return nil, nil
	})
	_, err := rt.Generate(context.Background(), types.GenerateRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, IsModelNotAvailable(err))
	he, ok := err.(interface{ StatusCode() int })
	require.True(t, ok)
	assert.Equal(t, 503, he.StatusCode())
}

func TestGenerateLoadsOnce(t *testing.T) {
	cfg, path := testConfig(t)
	writeModelFile(t, path)
	fake := &fakeEngine{}
	var opens atomic.Int32
	rt := newTestRuntime(t, cfg, func(p string, _ engine.ModelConfig) (engine.Engine, error) {
		opens.Add(1)
		assert.Equal(t, path, p)
		return fake, nil
	})

	for i := 0; i < 3; i++ {
		resp, err := rt.Generate(context.Background(), types.GenerateRequest{Prompt: "hello", MaxTokens: 10})
		require.NoError(t, err)
		assert.Equal(t, "echo:hello", resp.Text)
	}
	assert.Equal(t, int32(1), opens.Load())
	assert.True(t, rt.Ready())
}

func TestConcurrentFirstRequestsConstructOnce(t *testing.T) {
	cfg, path := testConfig(t)
	writeModelFile(t, path)
	fake := &fakeEngine{}
	var opens atomic.Int32
	rt := newTestRuntime(t, cfg, func(string, engine.ModelConfig) (engine.Engine, error) {
		opens.Add(1)
		return fake, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := rt.Generate(context.Background(), types.GenerateRequest{Prompt: "hello", MaxTokens: 10})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), opens.Load())
}

func TestFailedLoadIsRetriedOnNextRequest(t *testing.T) {
	cfg, path := testConfig(t)
	writeModelFile(t, path)
	fake := &fakeEngine{}
	var opens atomic.Int32
	rt := newTestRuntime(t, cfg, func(string, engine.ModelConfig) (engine.Engine, error) {
		if opens.Add(1) == 1 {
			return nil, errors.New("out of memory")
		}
		return fake, nil
	})

	_, err := rt.Generate(context.Background(), types.GenerateRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.True(t, IsLoadError(err))
	assert.False(t, rt.Ready())
	assert.Contains(t, rt.Status().LastError, "out of memory")

	resp, err := rt.Generate(context.Background(), types.GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "echo:hi", resp.Text)
	assert.Equal(t, int32(2), opens.Load())
	assert.Empty(t, rt.Status().LastError)
}

func TestOptionsDefaultsAndClamp(t *testing.T) {
	cfg, path := testConfig(t)
	cfg.MaxTokens = 99
	cfg.Temperature = 0.4
	writeModelFile(t, path)
	fake := &fakeEngine{}
	rt := newTestRuntime(t, cfg, func(string, engine.ModelConfig) (engine.Engine, error) {
		return fake, nil
	})

	// Omitted parameters fall back to configured defaults.
	_, err := rt.Generate(context.Background(), types.GenerateRequest{Prompt: "p"})
	require.NoError(t, err)
	got := fake.lastOpts(t)
	assert.Equal(t, 99, got.MaxTokens)
	assert.Equal(t, 0.4, got.Temperature)
	assert.Equal(t, []string{"</s>"}, got.Stop)

	// Explicit zero temperature is honored, not treated as unset.
	zero := 0.0
	_, err = rt.Generate(context.Background(), types.GenerateRequest{Prompt: "p", Temperature: &zero})
	require.NoError(t, err)
	assert.Equal(t, 0.0, fake.lastOpts(t).Temperature)

	// Oversized max_tokens is clamped.
	_, err = rt.Generate(context.Background(), types.GenerateRequest{Prompt: "p", MaxTokens: 1 << 20})
	require.NoError(t, err)
	assert.Equal(t, maxTokensCap, fake.lastOpts(t).MaxTokens)

	// Caller-provided stop sequences win over the default.
	_, err = rt.Generate(context.Background(), types.GenerateRequest{Prompt: "p", Stop: []string{"END"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"END"}, fake.lastOpts(t).Stop)
}

func TestDeterministicOutputAtTemperatureZero(t *testing.T) {
	cfg, path := testConfig(t)
	writeModelFile(t, path)
	fake := &fakeEngine{}
	rt := newTestRuntime(t, cfg, func(string, engine.ModelConfig) (engine.Engine, error) {
		return fake, nil
	})
	zero := 0.0
	req := types.GenerateRequest{Prompt: "fixed prompt", Temperature: &zero, Seed: 42}
	first, err := rt.Generate(context.Background(), req)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := rt.Generate(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, first.Text, again.Text)
	}
}

func TestGenerateEngineFailureMaps500(t *testing.T) {
	cfg, path := testConfig(t)
	writeModelFile(t, path)
	fake := &fakeEngine{err: errors.New("kv cache full")}
	rt := newTestRuntime(t, cfg, func(string, engine.ModelConfig) (engine.Engine, error) {
		return fake, nil
	})
	_, err := rt.Generate(context.Background(), types.GenerateRequest{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, IsGenerateError(err))
	he, ok := err.(interface{ StatusCode() int })
	require.True(t, ok)
	assert.Equal(t, 500, he.StatusCode())
}

func TestMissingBackendMaps503(t *testing.T) {
	cfg, path := testConfig(t)
	writeModelFile(t, path)
	rt := newTestRuntime(t, cfg, func(string, engine.ModelConfig) (engine.Engine, error) {
		return nil, engine.ErrUnavailable
	})
	_, err := rt.Generate(context.Background(), types.GenerateRequest{Prompt: "p"})
	require.Error(t, err)
	assert.True(t, IsDependencyUnavailable(err))
	he, ok := err.(interface{ StatusCode() int })
	require.True(t, ok)
	assert.Equal(t, 503, he.StatusCode())
}

func TestPreloadLoadsWhenFilePresent(t *testing.T) {
	cfg, path := testConfig(t)
	writeModelFile(t, path)
	fake := &fakeEngine{}
	loaded := make(chan struct{})
	rt := newTestRuntime(t, cfg, func(string, engine.ModelConfig) (engine.Engine, error) {
		close(loaded)
		return fake, nil
	})
	rt.Preload(context.Background())
	<-loaded
}

func TestHealthAndStatus(t *testing.T) {
	cfg, path := testConfig(t)
	fake := &fakeEngine{}
	rt := newTestRuntime(t, cfg, func(string, engine.ModelConfig) (engine.Engine, error) {
		return fake, nil
	})

	h := rt.Health()
	assert.Equal(t, "ok", h.Status)
	assert.False(t, h.ModelExists)
	assert.False(t, h.ModelLoaded)

	writeModelFile(t, path)
	_, err := rt.Generate(context.Background(), types.GenerateRequest{Prompt: "p"})
	require.NoError(t, err)

	s := rt.Status()
	assert.Equal(t, path, s.ModelPath)
	assert.True(t, s.ModelExists)
	assert.True(t, s.ModelLoaded)
	assert.Equal(t, uint64(1), s.LoadsTotal)
	assert.Equal(t, cfg.MaxTokens, s.Defaults.MaxTokens)

	require.NoError(t, rt.Close())
	assert.False(t, rt.Ready())
}
