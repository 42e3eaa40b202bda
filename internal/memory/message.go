// Package memory keeps long conversations inside a bounded context window.
//
// HistoryOptimizer windows a conversation before every completion call and,
// when no durable summary exists yet, inserts a cheap placeholder for the
// dropped prefix. Summarizer produces the durable summary out of band and
// persists it so later optimization passes can reuse it.
package memory

import "time"

// Role is the author of a message. The set is closed.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Conversational reports whether r is a user or assistant turn.
func (r Role) Conversational() bool {
	return r == RoleUser || r == RoleAssistant
}

// SummaryMarker identifies a system message that already carries a durable summary.
const SummaryMarker = "Previous conversation summary:"

// Message is one entry of a conversation history.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	// Importance is stored for future prioritized retention; nothing reads it yet.
	Importance *float64 `json:"importance,omitempty"`
}

// Config bounds the history by message count.
type Config struct {
	Enabled            bool
	MaxMessages        int
	SummarizeThreshold int
}

// DefaultConfig mirrors the MEMORY_* defaults.
func DefaultConfig() Config {
	return Config{Enabled: true, MaxMessages: 15, SummarizeThreshold: 5}
}

// SummaryMessage wraps a persisted summary as the system message that the
// optimizer recognizes as a durable compaction.
func SummaryMessage(summary string) Message {
	return Message{Role: RoleSystem, Content: SummaryMarker + " " + summary}
}
