package hub

import (
	"encoding/json"
	"time"

	"localmart/internal/app/chat"
	"localmart/internal/app/market"
	"localmart/internal/pkg/logx"
)

// Presence values carried by status events.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// event is the wire form of every frame the hub sends. Only the fields of Type are set.
type event struct {
	Type     chat.EventType `json:"type"`
	Message  any            `json:"message,omitempty"`
	UserID   int64          `json:"user_id,omitempty"`
	IsTyping *bool          `json:"is_typing,omitempty"`
	Status   string         `json:"status,omitempty"`
}

func messageEvent(m market.StoredMessage) event {
	return event{
		Type: chat.EventMessage,
		Message: chat.ChatMessage{
			ID:          m.ID,
			Content:     m.Content,
			SenderID:    m.SenderID,
			SenderName:  m.SenderName,
			RecipientID: m.RecipientID,
			IsRead:      m.IsRead,
			Timestamp:   m.CreatedAt.Format(time.RFC3339Nano),
		},
	}
}

func typingEvent(userID int64, isTyping bool) event {
	return event{Type: chat.EventTyping, UserID: userID, IsTyping: &isTyping}
}

func statusEvent(userID int64, status string) event {
	return event{Type: chat.EventStatus, UserID: userID, Status: status}
}

func readReceiptEvent(userID int64) event {
	return event{Type: chat.EventReadReceipt, UserID: userID}
}

func errorEvent(message string) event {
	return event{Type: chat.EventError, Message: message}
}

// encode marshals an event, returning nil (and logging) on failure.
func encode(ev event) []byte {
	data, err := json.Marshal(ev)
	if err != nil {
		logx.Error(err, "Failed to encode hub event", "type", string(ev.Type))
		return nil
	}
	return data
}
