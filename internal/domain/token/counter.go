package token

import (
	"strings"
	"unicode/utf8"

	"agent-server/internal/apperrors"
	"agent-server/internal/domain/model"
)

// wordScale approximates tokens per whitespace-separated word. The exact
// tokenizer vocabulary is irrelevant here; the estimate only needs to be
// deterministic and monotonic in input length.
const (
	wordScaleNum   = 13
	wordScaleDen   = 10
	runesPerTokenF = 4
)

// Counter estimates token counts for text and validates message sequences
// against a profile's context window. Stateless and safe for concurrent use.
type Counter struct{}

func NewCounter() *Counter {
	return &Counter{}
}

// Count returns a best-effort token estimate for text: word count scaled by
// 1.3, with a rune-count/4 floor so whitespace-free input still counts.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}

	words := len(strings.Fields(text))
	estimate := (words*wordScaleNum + wordScaleDen - 1) / wordScaleDen

	floor := utf8.RuneCountInString(text) / runesPerTokenF
	if floor > estimate {
		estimate = floor
	}
	return estimate
}

// CountMessages sums the estimated tokens across all textual content in the
// message sequence. Non-text parts of multimodal messages are not counted.
func (c *Counter) CountMessages(messages []model.Message) int {
	total := 0
	for _, msg := range messages {
		if len(msg.Parts) == 0 {
			total += c.Count(msg.Content)
			continue
		}
		for _, part := range msg.Parts {
			if part.Type == "text" {
				total += c.Count(part.Text)
			}
		}
	}
	return total
}

// ValidateBudget checks the message sequence against the profile's context
// window. A count exactly at the limit is accepted. Must run before any
// network dispatch.
func (c *Counter) ValidateBudget(messages []model.Message, profile model.Profile) error {
	counted := c.CountMessages(messages)
	if counted > profile.MaxContextTokens {
		return &apperrors.TokenLimitError{
			Model:   profile.Name,
			Counted: counted,
			Limit:   profile.MaxContextTokens,
		}
	}
	return nil
}
