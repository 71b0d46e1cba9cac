package router

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// errorKind buckets provider failures for the retry loop and the final
// taxonomy mapping.
type errorKind int

const (
	kindRetryable errorKind = iota // transient: network, timeout, 5xx
	kindRateLimit                  // retried, surfaced as RateLimitError when exhausted
	kindFatal                      // bad request, auth, content policy: never retried
)

// classify buckets a provider failure. Structured ProviderError payloads are
// classified by status code; the string heuristic below is the fallback for
// transport errors that carry no structure.
func classify(err error) errorKind {
	// A deadline hit inside one attempt is a transient provider timeout;
	// caller cancellation is handled by the retry loop itself.
	if errors.Is(err, context.DeadlineExceeded) {
		return kindRetryable
	}
	if errors.Is(err, context.Canceled) {
		return kindFatal
	}

	var pe *ProviderError
	if errors.As(err, &pe) && pe.StatusCode > 0 {
		switch {
		case pe.StatusCode == http.StatusTooManyRequests:
			return kindRateLimit
		case pe.StatusCode == http.StatusRequestTimeout:
			return kindRetryable
		case pe.StatusCode >= http.StatusInternalServerError:
			return kindRetryable
		default:
			return kindFatal
		}
	}
	return classifyByMessage(err)
}

// classifyByMessage is the outermost-boundary fallback for errors without a
// structured payload.
func classifyByMessage(err error) errorKind {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return kindRateLimit
	case strings.Contains(msg, "timeout"),
		strings.Contains(msg, "timed out"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "temporary"),
		strings.Contains(msg, "unexpected eof"):
		return kindRetryable
	default:
		return kindFatal
	}
}
