package runtime

import "net/http"

// modelNotAvailableError signals the model file is not on disk yet, so the
// HTTP layer can return 503 Service Unavailable instead of 500.
type modelNotAvailableError struct{ path string }

func (e modelNotAvailableError) Error() string {
	return "model file not available yet: " + e.path
}

func (e modelNotAvailableError) StatusCode() int { return http.StatusServiceUnavailable }

// IsModelNotAvailable reports whether err indicates a missing model file.
func IsModelNotAvailable(err error) bool {
	_, ok := err.(modelNotAvailableError)
	return ok
}

// dependencyUnavailableError signals a missing runtime dependency (e.g. a
// binary built without llama support), mapped to 503 instead of 500.
type dependencyUnavailableError struct{ err error }

func (e dependencyUnavailableError) Error() string   { return e.err.Error() }
func (e dependencyUnavailableError) Unwrap() error   { return e.err }
func (e dependencyUnavailableError) StatusCode() int { return http.StatusServiceUnavailable }

// IsDependencyUnavailable reports whether err indicates a missing runtime dependency.
func IsDependencyUnavailable(err error) bool {
	_, ok := err.(dependencyUnavailableError)
	return ok
}

// loadError signals the engine could not be constructed from the model file
// (corrupt file, missing native runtime, insufficient memory).
type loadError struct{ err error }

func (e loadError) Error() string   { return "model load failed: " + e.err.Error() }
func (e loadError) Unwrap() error   { return e.err }
func (e loadError) StatusCode() int { return http.StatusInternalServerError }

// IsLoadError reports whether err came from engine construction.
func IsLoadError(err error) bool {
	_, ok := err.(loadError)
	return ok
}

// generateError signals the engine failed while producing a completion.
type generateError struct{ err error }

func (e generateError) Error() string   { return "generation failed: " + e.err.Error() }
func (e generateError) Unwrap() error   { return e.err }
func (e generateError) StatusCode() int { return http.StatusInternalServerError }

// IsGenerateError reports whether err came from a failed generation call.
func IsGenerateError(err error) bool {
	_, ok := err.(generateError)
	return ok
}
