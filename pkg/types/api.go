package types

// GenerateRequest represents a generation request payload.
type GenerateRequest struct {
	// Required prompt text to generate a completion for.
	// example: Write a haiku about the ocean.
	Prompt string `json:"prompt" example:"Write a haiku about the ocean."`
	// Maximum number of new tokens to generate. Falls back to the server default.
	// example: 128
	MaxTokens int `json:"max_tokens,omitempty" example:"128"`
	// Sampling temperature (higher = more random). Falls back to the server default.
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP float64 `json:"top_p,omitempty" example:"0.9"`
	// Top-K sampling: limit candidates to top K tokens.
	// example: 40
	TopK int `json:"top_k,omitempty" example:"40"`
	// Optional stop sequences. Generation stops when any sequence is matched.
	// example: ["</s>"]
	Stop []string `json:"stop,omitempty" example:"[\"</s>\"]"`
	// Random seed for reproducibility; 0 or omitted lets the engine choose.
	// example: 42
	Seed int `json:"seed,omitempty" example:"42"`
}

// GenerateResponse is returned by POST /generate.
type GenerateResponse struct {
	// Generated completion text, whitespace-trimmed.
	// example: Salt wind over waves.
	Text string `json:"text" example:"Salt wind over waves."`
	// Why generation stopped (stop, length).
	// example: stop
	FinishReason string `json:"finish_reason,omitempty" example:"stop"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	// Always "ok" while the process is serving.
	// example: ok
	Status string `json:"status" example:"ok"`
	// Whether the model file exists on disk.
	// example: true
	ModelExists bool `json:"model_exists" example:"true"`
	// Whether the engine has been constructed.
	// example: false
	ModelLoaded bool `json:"model_loaded" example:"false"`
	// Size of the model file in MB, omitted when the file is absent.
	// example: 4368.5
	ModelSizeMB float64 `json:"model_size_mb,omitempty" example:"4368.5"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Absolute path of the model file.
	// example: /app/model/model.gguf
	ModelPath string `json:"model_path" example:"/app/model/model.gguf"`
	// Whether the model file exists on disk.
	// example: true
	ModelExists bool `json:"model_exists" example:"true"`
	// Whether the engine has been constructed.
	// example: true
	ModelLoaded bool `json:"model_loaded" example:"true"`
	// Size of the model file in MB, omitted when the file is absent.
	// example: 4368.5
	ModelSizeMB float64 `json:"model_size_mb,omitempty" example:"4368.5"`
	// Total number of engine constructions since start.
	// example: 1
	LoadsTotal uint64 `json:"loads_total" example:"1"`
	// Last load error observed (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
	// Generation defaults resolved from the environment.
	Defaults GenerationDefaults `json:"defaults"`
}

// GenerationDefaults echoes the configured generation defaults.
type GenerationDefaults struct {
	// Default max tokens applied when a request omits max_tokens.
	// example: 256
	MaxTokens int `json:"max_tokens" example:"256"`
	// Default sampling temperature applied when a request omits temperature.
	// example: 0.7
	Temperature float64 `json:"temperature" example:"0.7"`
}
