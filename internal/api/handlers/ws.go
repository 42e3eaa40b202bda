package handlers

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/voxmind/voxmind-backend/internal/services"
)

// socketFrame is sent for every turn over the conversation socket.
type socketFrame struct {
	Type   string               `json:"type"`
	Result *services.TurnResult `json:"result,omitempty"`
	Error  string               `json:"error,omitempty"`
}

const rateLimitedMessage = "Rate limit exceeded. Please wait before sending more requests."

// ConversationSocket runs text turns over a websocket until the client
// disconnects. Each inbound frame is a SendMessageRequest. A connection may
// run at most turnsPerMinute turns; frames over the limit get an error frame.
func ConversationSocket(svc *services.Services, turnsPerMinute int) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()
		limiter := rate.NewLimiter(rate.Every(time.Minute/time.Duration(turnsPerMinute)), turnsPerMinute)

		id, err := uuid.Parse(c.Params("id"))
		if err != nil {
			_ = c.WriteJSON(socketFrame{Type: "error", Error: "Invalid conversation ID"})
			return
		}
		log := svc.Logger.WithField("conversation_id", id)
		log.Debug("Conversation socket opened")

		for {
			var req SendMessageRequest
			if err := c.ReadJSON(&req); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.WithError(err).Warn("Conversation socket closed unexpectedly")
				}
				return
			}

			if !limiter.Allow() {
				if err := c.WriteJSON(socketFrame{Type: "error", Error: rateLimitedMessage}); err != nil {
					return
				}
				continue
			}

			frame := socketFrame{Type: "turn"}
			result, err := svc.Chat.ProcessTurn(context.Background(), services.TurnRequest{
				ConversationID: id,
				Message:        req.Message,
				Model:          req.Model,
				Temperature:    req.Temperature,
				MaxTokens:      req.MaxTokens,
			})
			if err != nil {
				log.WithFields(logrus.Fields{"status": statusFor(err)}).WithError(err).Warn("Socket turn failed")
				frame = socketFrame{Type: "error", Error: clientMessage(err)}
			} else {
				frame.Result = result
			}

			if err := c.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}
