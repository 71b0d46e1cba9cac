package session

import (
	"time"
)

// DefaultState is the conversation state a fresh session starts in.
const DefaultState = "greeting"

// Message is one stored conversation turn. The timestamp is filled in at
// append time; messages are immutable once appended.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Record is the canonical server-held representation of one conversation.
// The store owns it; callers receive copies and write back explicit updates.
type Record struct {
	ID           string         `json:"session_id"`
	CreatedAt    time.Time      `json:"created_at"`
	LastActivity time.Time      `json:"last_activity"`
	Messages     []Message      `json:"messages"`
	Context      map[string]any `json:"context"`
	State        string         `json:"conversation_state"`
}

// Expired reports whether the record has been inactive longer than timeout.
func (r *Record) Expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(r.LastActivity) > timeout
}

// Patch carries an explicit partial update to a session record. Nil fields
// are left untouched; messages are appended, context keys merged.
type Patch struct {
	Messages []Message
	Context  map[string]any
	State    *string
}
