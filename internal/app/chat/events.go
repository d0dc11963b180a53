package chat

import (
	"encoding/json"
	"fmt"
	"time"

	"localmart/internal/app/api"
)

// EventType names an inbound frame.
type EventType string

const (
	EventMessage     EventType = "message"
	EventTyping      EventType = "typing"
	EventStatus      EventType = "status"
	EventReadReceipt EventType = "read_receipt"
	EventError       EventType = "error"
)

// FrameType names an outbound frame.
type FrameType string

const (
	FrameMessage FrameType = "message"
	FrameTyping  FrameType = "typing"
	FrameRead    FrameType = "read"
)

// ChatMessage is the message payload carried by a message event.
type ChatMessage struct {
	ID          int64  `json:"id"`
	Content     string `json:"content"`
	SenderID    int64  `json:"sender_id"`
	SenderName  string `json:"sender_name"`
	RecipientID int64  `json:"recipient_id,omitempty"`
	IsRead      bool   `json:"is_read"`

	// Timestamp is kept as the server sent it; the chat consumer emits
	// ISO-8601 without a guaranteed zone.
	Timestamp string `json:"timestamp"`
}

// Event is one decoded inbound frame. Only the fields of its Type are set.
type Event struct {
	Type EventType

	// Message is set for EventMessage.
	Message *ChatMessage

	// UserID is the subject of typing, status and read_receipt events.
	UserID int64

	// IsTyping is set for EventTyping.
	IsTyping bool

	// Status is "online" or "offline" for EventStatus.
	Status string

	// Error is the server-supplied text of an EventError.
	Error string

	// Raw is the frame exactly as received.
	Raw json.RawMessage
}

// decodeEvent parses a frame of the form {"type": ..., <payload fields>}.
// Frames of unknown type decode to an Event carrying only Type and Raw.
func decodeEvent(data []byte) (Event, error) {
	var head struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Event{}, fmt.Errorf("decode frame: %w", err)
	}
	if head.Type == "" {
		return Event{}, fmt.Errorf("decode frame: missing type")
	}

	ev := Event{Type: head.Type, Raw: json.RawMessage(data)}

	switch head.Type {
	case EventMessage:
		var body struct {
			Message *ChatMessage `json:"message"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return Event{}, fmt.Errorf("decode message frame: %w", err)
		}
		if body.Message == nil {
			return Event{}, fmt.Errorf("decode message frame: missing message")
		}
		ev.Message = body.Message

	case EventTyping:
		var body struct {
			UserID   int64 `json:"user_id"`
			IsTyping bool  `json:"is_typing"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return Event{}, fmt.Errorf("decode typing frame: %w", err)
		}
		ev.UserID, ev.IsTyping = body.UserID, body.IsTyping

	case EventStatus:
		var body struct {
			UserID int64  `json:"user_id"`
			Status string `json:"status"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return Event{}, fmt.Errorf("decode status frame: %w", err)
		}
		ev.UserID, ev.Status = body.UserID, body.Status

	case EventReadReceipt:
		var body struct {
			UserID int64 `json:"user_id"`
		}
		if err := json.Unmarshal(data, &body); err != nil {
			return Event{}, fmt.Errorf("decode read_receipt frame: %w", err)
		}
		ev.UserID = body.UserID

	case EventError:
		var body struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		// The error text is best effort; an error frame is delivered regardless.
		_ = json.Unmarshal(data, &body)
		ev.Error = body.Message
		if ev.Error == "" {
			ev.Error = body.Error
		}
	}

	return ev, nil
}

// Frame is an outbound frame.
type Frame struct {
	Type     FrameType `json:"type"`
	Message  string    `json:"message,omitempty"`
	IsTyping *bool     `json:"is_typing,omitempty"`
}

// MessageFrame sends text to the room.
func MessageFrame(text string) Frame {
	return Frame{Type: FrameMessage, Message: text}
}

// TypingFrame announces that the current user started or stopped typing.
func TypingFrame(isTyping bool) Frame {
	return Frame{Type: FrameTyping, IsTyping: &isTyping}
}

// ReadFrame marks the room's messages as read.
func ReadFrame() Frame {
	return Frame{Type: FrameRead}
}

// fromAPIMessage converts a stored message into the payload of a message event.
func fromAPIMessage(m api.Message) *ChatMessage {
	out := &ChatMessage{
		ID:      m.ID,
		Content: m.Content,
		IsRead:  m.IsRead,
	}
	if !m.CreatedAt.IsZero() {
		out.Timestamp = m.CreatedAt.Format(time.RFC3339Nano)
	}
	if m.Sender != nil {
		out.SenderID = m.Sender.ID
		out.SenderName = m.Sender.Username
	}
	return out
}
