// Package runtime owns the single lazily initialized model handle and the
// generation path behind the HTTP API.
package runtime

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/common/fsutil"
	"inferd/internal/config"
	"inferd/internal/engine"
	"inferd/pkg/types"
)

// maxTokensCap bounds max_tokens regardless of what the request asks for,
// to keep generation memory bounded on constrained deployment targets.
const maxTokensCap = 2048

// defaultStop is applied when a request carries no stop sequences.
var defaultStop = []string{"</s>"}

// OpenFunc constructs an Engine from a model file. Swapped out in tests.
type OpenFunc func(path string, cfg engine.ModelConfig) (engine.Engine, error)

// Runtime serves generation requests from a single model file, constructing
// the engine on first use. Construct-exactly-once across concurrent callers;
// a failed load is returned to the triggering request and retried on the
// next one, so the server recovers once the file becomes loadable.
type Runtime struct {
	cfg       config.Config
	modelPath string
	open      OpenFunc
	log       zerolog.Logger
	started   time.Time

	mu      sync.Mutex
	eng     engine.Engine
	loads   uint64
	lastErr string
}

// New builds a Runtime bound to the model path resolved from cfg.
func New(cfg config.Config, log zerolog.Logger) (*Runtime, error) {
	return NewWithOpen(cfg, log, engine.Open)
}

// NewWithOpen is New with an injectable engine factory.
func NewWithOpen(cfg config.Config, log zerolog.Logger, open OpenFunc) (*Runtime, error) {
	path, err := cfg.ModelPath()
	if err != nil {
		return nil, err
	}
	return &Runtime{
		cfg:       cfg,
		modelPath: path,
		open:      open,
		log:       log,
		started:   time.Now(),
	}, nil
}

// ModelPath returns the resolved model file path.
func (rt *Runtime) ModelPath() string { return rt.modelPath }

// engineHandle returns the shared engine, constructing it on first use.
// The mutex makes the construction single-flight: concurrent first requests
// block until the one load finishes and then share the handle.
func (rt *Runtime) engineHandle() (engine.Engine, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.eng != nil {
		return rt.eng, nil
	}
	if !fsutil.PathExists(rt.modelPath) {
		return nil, modelNotAvailableError{path: rt.modelPath}
	}
	rt.log.Info().Str("path", rt.modelPath).Msg("loading model")
	start := time.Now()
	eng, err := rt.open(rt.modelPath, engine.ModelConfig{
		CtxSize: rt.cfg.CtxSize,
		Threads: rt.cfg.Threads,
	})
	if err != nil {
		rt.lastErr = err.Error()
		rt.log.Error().Err(err).Str("path", rt.modelPath).Msg("model load failed")
		if errors.Is(err, engine.ErrUnavailable) {
			return nil, dependencyUnavailableError{err: err}
		}
		return nil, loadError{err: err}
	}
	rt.eng = eng
	rt.loads++
	rt.lastErr = ""
	loadsTotal.Inc()
	loadDuration.Observe(time.Since(start).Seconds())
	rt.log.Info().Dur("dur", time.Since(start)).Msg("model loaded")
	return eng, nil
}

// Preload eagerly constructs the engine in the background when the model
// file is already present. Load failures are logged, not fatal; the next
// request retries.
func (rt *Runtime) Preload(ctx context.Context) {
	if !fsutil.PathExists(rt.modelPath) {
		rt.log.Warn().Str("path", rt.modelPath).Msg("model file not found, waiting until available")
		return
	}
	go func() {
		if _, err := rt.engineHandle(); err != nil {
			rt.log.Error().Err(err).Msg("model preload failed")
		}
	}()
}

// Generate runs one synchronous generation request against the shared engine.
func (rt *Runtime) Generate(ctx context.Context, req types.GenerateRequest) (types.GenerateResponse, error) {
	if !fsutil.PathExists(rt.modelPath) {
		return types.GenerateResponse{}, modelNotAvailableError{path: rt.modelPath}
	}
	eng, err := rt.engineHandle()
	if err != nil {
		return types.GenerateResponse{}, err
	}

	opts := rt.options(req)
	start := time.Now()
	res, err := eng.Generate(ctx, req.Prompt, opts)
	generateDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() != nil {
			return types.GenerateResponse{}, ctx.Err()
		}
		generateFailures.Inc()
		return types.GenerateResponse{}, generateError{err: err}
	}
	return types.GenerateResponse{
		Text:         strings.TrimSpace(res.Text),
		FinishReason: res.FinishReason,
	}, nil
}

// options resolves per-request parameters against the configured defaults.
func (rt *Runtime) options(req types.GenerateRequest) engine.Options {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = rt.cfg.MaxTokens
	}
	if maxTokens > maxTokensCap {
		maxTokens = maxTokensCap
	}
	temperature := rt.cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	stop := req.Stop
	if len(stop) == 0 {
		stop = defaultStop
	}
	return engine.Options{
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        req.TopP,
		TopK:        req.TopK,
		Stop:        stop,
		Seed:        req.Seed,
	}
}

// Ready reports whether the engine has been constructed.
func (rt *Runtime) Ready() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.eng != nil
}

// Health reports liveness plus model file/handle state.
func (rt *Runtime) Health() types.HealthResponse {
	h := types.HealthResponse{
		Status:      "ok",
		ModelExists: fsutil.PathExists(rt.modelPath),
		ModelLoaded: rt.Ready(),
	}
	if mb, ok := fsutil.FileSizeMB(rt.modelPath); ok {
		h.ModelSizeMB = mb
	}
	return h
}

// Status reports detailed state for operators.
func (rt *Runtime) Status() types.StatusResponse {
	rt.mu.Lock()
	loads := rt.loads
	lastErr := rt.lastErr
	loaded := rt.eng != nil
	rt.mu.Unlock()

	s := types.StatusResponse{
		ModelPath:      rt.modelPath,
		ModelExists:    fsutil.PathExists(rt.modelPath),
		ModelLoaded:    loaded,
		LoadsTotal:     loads,
		LastError:      lastErr,
		UptimeSeconds:  int64(time.Since(rt.started).Seconds()),
		ServerTimeUnix: time.Now().Unix(),
		Defaults: types.GenerationDefaults{
			MaxTokens:   rt.cfg.MaxTokens,
			Temperature: rt.cfg.Temperature,
		},
	}
	if mb, ok := fsutil.FileSizeMB(rt.modelPath); ok {
		s.ModelSizeMB = mb
	}
	return s
}

// Close releases the engine if it was constructed.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.eng == nil {
		return nil
	}
	err := rt.eng.Close()
	rt.eng = nil
	return err
}
