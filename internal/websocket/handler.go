package websocket

import (
	"encoding/json"
	"log"
	"time"

	"github.com/ow-stat-tracker/internal/dashboard"
)

// Message types sent by the client
const (
	TypeState = "state"
	TypePing  = "ping"
)

// Message types sent by the server, besides the dashboard notifications
const (
	TypeSession = "session"
	TypePong    = "pong"
	TypeError   = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// IncomingMessage represents a message from the client
type IncomingMessage struct {
	Type string `json:"type"`
}

// Handler processes WebSocket messages
type Handler struct {
	sessions *dashboard.Sessions
}

// NewHandler creates a new message handler
func NewHandler(sessions *dashboard.Sessions) *Handler {
	return &Handler{sessions: sessions}
}

// HandleMessage processes an incoming message
func (h *Handler) HandleMessage(client *Client, data []byte) {
	var msg IncomingMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error parsing message: %v", err)
		client.sendMessage(Message{Type: TypeError, Message: "Invalid message format"})
		return
	}

	client.sendMessage(h.reply(client.sessionID, msg))
}

// reply builds the response for one incoming message
func (h *Handler) reply(sessionID string, msg IncomingMessage) Message {
	now := time.Now().UTC().Format(time.RFC3339)

	switch msg.Type {
	case TypeState:
		sess, ok := h.sessions.Get(sessionID)
		if !ok {
			return Message{Type: TypeError, Message: "Session not found"}
		}
		return Message{Type: TypeSession, Data: sess, Timestamp: now}
	case TypePing:
		return Message{Type: TypePong, Timestamp: now}
	default:
		return Message{Type: TypeError, Message: "Unknown message type"}
	}
}

func marshal(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
