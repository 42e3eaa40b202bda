package memory

import (
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

// DecodeHistory turns an untyped JSON history into messages without ever
// failing the caller. A payload that is not a JSON array yields an empty
// history; array entries that are not objects, or whose role is missing or
// unknown, are logged and skipped.
func DecodeHistory(raw json.RawMessage, logger logrus.FieldLogger) []Message {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if len(raw) == 0 || string(raw) == "null" {
		return []Message{}
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		logger.WithError(err).Warn("Expected a list of messages, ignoring history")
		return []Message{}
	}

	messages := make([]Message, 0, len(entries))
	for i, entry := range entries {
		var doc struct {
			Role       *string    `json:"role"`
			Content    string     `json:"content"`
			Timestamp  *time.Time `json:"timestamp"`
			Importance *float64   `json:"importance"`
		}
		if err := json.Unmarshal(entry, &doc); err != nil {
			logger.WithField("index", i).Warn("Unexpected message format, skipping")
			continue
		}
		if doc.Role == nil || !Role(*doc.Role).Valid() {
			role := "<missing>"
			if doc.Role != nil {
				role = *doc.Role
			}
			logger.WithFields(logrus.Fields{"index": i, "role": role}).Warn("Unknown message role, skipping")
			continue
		}
		msg := Message{
			Role:       Role(*doc.Role),
			Content:    doc.Content,
			Importance: doc.Importance,
		}
		if doc.Timestamp != nil {
			msg.Timestamp = *doc.Timestamp
		}
		messages = append(messages, msg)
	}
	return messages
}
