package api

import (
	"context"
	"errors"
	"time"

	"localmart/internal/app/user"
)

// ChatRoom is a conversation between a buyer and a seller about a listing.
type ChatRoom struct {
	ID               int64       `json:"id"`
	Participants     []user.User `json:"participants"`
	Product          *Product    `json:"product,omitempty"`
	LastMessage      *Message    `json:"last_message,omitempty"`
	UnreadCount      int         `json:"unread_count"`
	OtherParticipant *user.User  `json:"other_participant,omitempty"`
	CreatedAt        time.Time   `json:"created_at"`
	UpdatedAt        time.Time   `json:"updated_at"`
}

// Validate requires the room id.
func (r *ChatRoom) Validate() error {
	if r.ID <= 0 {
		return errors.New("chat room id is missing")
	}
	return nil
}

// Message is one chat message as stored by the server.
type Message struct {
	ID           int64      `json:"id"`
	Sender       *user.User `json:"sender,omitempty"`
	Content      string     `json:"content"`
	IsRead       bool       `json:"is_read"`
	CreatedAt    time.Time  `json:"created_at"`
	IsOwnMessage bool       `json:"is_own_message"`
}

// CreateRoomRequest opens (or finds) the room for a listing.
type CreateRoomRequest struct {
	ProductID int64 `json:"product_id"`
	SellerID  int64 `json:"seller_id"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// UnreadCount is the number of unread messages in a room.
type UnreadCount struct {
	UnreadCount int `json:"unread_count"`
}

// roomPath builds a room sub-resource path. Room ids are opaque to the client.
func roomPath(roomID, suffix string) string {
	return "/chat/rooms/" + roomID + "/" + suffix
}

// ListRooms returns the rooms the current user takes part in.
func (c *Client) ListRooms(ctx context.Context) ([]ChatRoom, error) {
	var out []ChatRoom
	if err := c.Get(ctx, "/chat/rooms/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateOrGetRoom returns the room between the current user and sellerID about productID.
func (c *Client) CreateOrGetRoom(ctx context.Context, productID, sellerID int64) (*ChatRoom, error) {
	var out ChatRoom
	in := CreateRoomRequest{ProductID: productID, SellerID: sellerID}
	if err := c.Post(ctx, "/chat/rooms/create/", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMessages returns a room's messages, oldest first.
func (c *Client) ListMessages(ctx context.Context, roomID string) ([]Message, error) {
	var out []Message
	if err := c.Get(ctx, roomPath(roomID, "messages/"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SendMessage posts a message through REST.
func (c *Client) SendMessage(ctx context.Context, roomID string, content string) (*Message, error) {
	var out Message
	if err := c.Post(ctx, roomPath(roomID, "send_message/"), sendMessageRequest{Content: content}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkRead marks the room's messages addressed to the current user as read.
func (c *Client) MarkRead(ctx context.Context, roomID string) error {
	return c.Post(ctx, roomPath(roomID, "mark-read/"), nil, nil)
}

// UnreadCount returns the number of unread messages in a room.
func (c *Client) UnreadCount(ctx context.Context, roomID string) (int, error) {
	var out UnreadCount
	if err := c.Get(ctx, roomPath(roomID, "unread_count/"), &out); err != nil {
		return 0, err
	}
	return out.UnreadCount, nil
}
