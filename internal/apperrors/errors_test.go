package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"unknown model type", &UnknownModelTypeError{ModelType: "telepathy"}, http.StatusBadRequest},
		{"token limit", &TokenLimitError{Model: "gpt-4o-mini", Counted: 200000, Limit: 128000}, http.StatusRequestEntityTooLarge},
		{"rate limit", &RateLimitError{Backend: "gpt-4o-mini"}, http.StatusTooManyRequests},
		{"inference failure", &InferenceError{Model: "o1", Detail: "boom"}, http.StatusBadGateway},
		{"cache failure", &CacheError{Op: "set", Err: errors.New("connection reset")}, http.StatusServiceUnavailable},
		{"unclassified", errors.New("something else"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestHTTPStatusSeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", &RateLimitError{Backend: "o3-mini"})
	assert.Equal(t, http.StatusTooManyRequests, HTTPStatus(err))
}

func TestUnwrapChains(t *testing.T) {
	cause := errors.New("upstream 429")
	err := &RateLimitError{Backend: "gpt-4o-mini", Err: cause}
	assert.ErrorIs(t, err, cause)

	inf := &InferenceError{Model: "o1", Detail: "bad request", Err: cause}
	assert.ErrorIs(t, inf, cause)
}
