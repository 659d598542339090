package models

import (
	"encoding/json"
	"time"
)

// Event channel names.
const (
	EventJoin           = "join"
	EventSendMessage    = "sendMessage"
	EventReceiveMessage = "receiveMessage"
	EventMessageSent    = "messageSent"
	EventError          = "error"
)

// Event is a single frame on the event channel.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// LiveMessage is the payload pushed to live connections.
type LiveMessage struct {
	ID         string   `json:"id,omitempty"`
	SenderID   string   `json:"sender_id"`
	ReceiverID string   `json:"receiver_id"`
	Content    string   `json:"content"`
	SharedPost *PostRef `json:"shared_post,omitempty"`
	CreatedAt  string   `json:"created_at"`
}

// LiveFromView projects a persisted message into its push payload.
func LiveFromView(v MessageView) LiveMessage {
	return LiveMessage{
		ID:         v.ID,
		SenderID:   v.Sender.ID,
		ReceiverID: v.Receiver.ID,
		Content:    v.Content,
		SharedPost: v.SharedPost,
		CreatedAt:  v.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

// ErrorPayload is sent back on the channel when a client frame is refused.
type ErrorPayload struct {
	Event   string `json:"event"`
	Message string `json:"message"`
}
