package memory

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

const (
	snippetLimit = 100
	snippetKeep  = 97
)

// HistoryOptimizer bounds a conversation history before it is sent to the
// completion model. It holds no state between calls and is safe for
// concurrent use.
type HistoryOptimizer struct {
	cfg    Config
	logger logrus.FieldLogger
}

// NewHistoryOptimizer creates an optimizer for cfg.
func NewHistoryOptimizer(cfg Config, logger logrus.FieldLogger) *HistoryOptimizer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HistoryOptimizer{cfg: cfg, logger: logger}
}

// Config returns the bounds the optimizer applies.
func (o *HistoryOptimizer) Config() Config {
	return o.cfg
}

// Optimize returns system messages first, then at most one summary placeholder,
// then the retained tail of the conversation. Entries with unknown roles are
// logged and dropped. The input slice is never modified.
func (o *HistoryOptimizer) Optimize(messages []Message) []Message {
	if len(messages) == 0 {
		return []Message{}
	}

	var system, conversation []Message
	for _, msg := range messages {
		switch {
		case msg.Role == RoleSystem:
			system = append(system, msg)
		case msg.Role.Conversational():
			conversation = append(conversation, msg)
		default:
			o.logger.WithField("role", string(msg.Role)).Warn("Unknown message role, skipping")
		}
	}

	maxMessages := o.cfg.MaxMessages
	if len(conversation) <= maxMessages {
		return join(system, nil, conversation)
	}

	if hasSummary(system) {
		return join(system, nil, tail(conversation, maxMessages))
	}

	splitPoint := len(conversation) - maxMessages + 2
	if splitPoint < 0 {
		splitPoint = 0
	}
	if splitPoint > len(conversation) {
		splitPoint = len(conversation)
	}
	older := conversation[:splitPoint]
	recent := conversation[splitPoint:]

	if len(older) > 0 && len(older) >= o.cfg.SummarizeThreshold {
		fallback := FallbackSummary(older)
		o.logger.WithFields(logrus.Fields{
			"older":  len(older),
			"recent": len(recent),
		}).Debug("Inserted fallback summary for dropped history")
		return join(system, &fallback, recent)
	}

	o.logger.WithFields(logrus.Fields{
		"dropped": len(older),
		"recent":  len(recent),
	}).Debug("Dropped history below summarize threshold")
	return join(system, nil, recent)
}

// FallbackSummary builds the placeholder that stands in for older messages
// until a real summary has been persisted.
func FallbackSummary(older []Message) Message {
	last := ""
	if len(older) > 0 {
		last = Snippet(older[len(older)-1].Content)
	}
	return Message{
		Role:    RoleSystem,
		Content: fmt.Sprintf("Previous conversation with %d messages. Most recent topic: %s", len(older), last),
	}
}

// Snippet shortens text longer than 100 characters to 97 characters plus "...".
func Snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetLimit {
		return text
	}
	return string(runes[:snippetKeep]) + "..."
}

func hasSummary(system []Message) bool {
	for _, msg := range system {
		if msg.Content != "" && strings.Contains(msg.Content, SummaryMarker) {
			return true
		}
	}
	return false
}

func tail(messages []Message, n int) []Message {
	if n <= 0 {
		return nil
	}
	if n >= len(messages) {
		return messages
	}
	return messages[len(messages)-n:]
}

func join(system []Message, marker *Message, conversation []Message) []Message {
	size := len(system) + len(conversation)
	if marker != nil {
		size++
	}
	out := make([]Message, 0, size)
	out = append(out, system...)
	if marker != nil {
		out = append(out, *marker)
	}
	return append(out, conversation...)
}
