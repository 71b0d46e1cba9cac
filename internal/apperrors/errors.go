package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// UnknownModelTypeError is returned when a model type has no configured
// profile in the registry.
type UnknownModelTypeError struct {
	ModelType string
}

func (e *UnknownModelTypeError) Error() string {
	return fmt.Sprintf("unknown model type %q", e.ModelType)
}

// TokenLimitError is returned when a request's estimated token count exceeds
// the target profile's context window. Raised before any provider dispatch.
type TokenLimitError struct {
	Model   string
	Counted int
	Limit   int
}

func (e *TokenLimitError) Error() string {
	return fmt.Sprintf("token limit exceeded for model %q: %d > %d", e.Model, e.Counted, e.Limit)
}

// RateLimitError is returned when the provider rejects a call due to rate
// limiting, after any internal retries are exhausted.
type RateLimitError struct {
	Backend string
	Err     error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rate limit exceeded for backend %q: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("rate limit exceeded for backend %q", e.Backend)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// InferenceError carries a provider failure together with a redacted copy of
// the offending input for diagnostics. The redacted context must never
// contain full message bodies.
type InferenceError struct {
	Model           string
	Detail          string
	RedactedContext map[string]any
	Err             error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("model %q inference failed: %s", e.Model, e.Detail)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// CacheError is returned when a cache write (or ping) fails. Cache read
// failures degrade to absence and are not surfaced through this type.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s failed: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// HTTPStatus maps taxonomy errors to HTTP status codes for the outermost
// handler layer.
func HTTPStatus(err error) int {
	var (
		unknownModel *UnknownModelTypeError
		tokenLimit   *TokenLimitError
		rateLimit    *RateLimitError
		inference    *InferenceError
		cache        *CacheError
	)
	switch {
	case errors.As(err, &unknownModel):
		return http.StatusBadRequest
	case errors.As(err, &tokenLimit):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &rateLimit):
		return http.StatusTooManyRequests
	case errors.As(err, &cache):
		return http.StatusServiceUnavailable
	case errors.As(err, &inference):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
