/*
Package hub is the server side of LocalMart chat: it fans frames out to every socket
connected to a chat room.

This file defines the Client, one authenticated WebSocket connection. ReadPump turns
inbound frames into stored messages and room events; WritePump drains the send queue
and keeps the connection alive with pings.
*/
package hub

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"localmart/internal/app/chat"
	"localmart/internal/app/user"
	"localmart/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 8192

	// WsCloseCodeSessionKicked signals that the session was replaced by a new connection.
	WsCloseCodeSessionKicked = 4001

	// WsCloseCodeSessionExpired signals that the access token expired or was revoked.
	WsCloseCodeSessionExpired = 4401
)

// SessionCheck reports whether the connection's access token is still acceptable.
type SessionCheck func() bool

// Client is an active WebSocket connection and its user.
type Client struct {
	// the chat room the client belongs to; set by Manager.Join.
	room *Room

	conn *websocket.Conn

	user user.User

	// valid is polled on every ping; a false result closes the connection.
	valid SessionCheck

	// a buffered channel of encoded frames waiting to be written.
	send chan []byte

	// mu guards sendClosed and the close code and reason written when send is closed.
	mu          sync.Mutex
	sendClosed  bool
	closeCode   int
	closeReason string

	logger zerolog.Logger
}

// NewClient constructs a Client for an upgraded connection.
func NewClient(conn *websocket.Conn, u user.User, valid SessionCheck) *Client {
	if valid == nil {
		valid = func() bool { return true }
	}
	return &Client{
		conn:      conn,
		user:      u,
		valid:     valid,
		send:      make(chan []byte, 64),
		closeCode: websocket.CloseNormalClosure,
		logger:    logx.Logger().With().Int64("user_id", u.ID).Logger(),
	}
}

// ReadPump reads frames until the connection fails, then leaves the room.
func (c *Client) ReadPump() {
	defer func() {
		c.room.leave(c)
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error")
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Unexpected client close")
			}
			return
		}

		c.processInbound(data)
	}
}

// processInbound applies one client frame. A frame without a type is a message,
// matching the chat consumer's default.
func (c *Client) processInbound(data []byte) {
	var frame chat.Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		c.logger.Warn().Err(err).Msg("Client sent invalid JSON")
		c.reply(errorEvent("Invalid JSON."))
		return
	}

	room := c.room
	switch frame.Type {
	case chat.FrameMessage, "":
		stored, customErr := room.store.AddMessage(c.user.ID, room.ID, frame.Message)
		if customErr != nil {
			c.reply(errorEvent(customErr.Message))
			return
		}
		room.Publish(messageEvent(stored))

	case chat.FrameTyping:
		isTyping := frame.IsTyping != nil && *frame.IsTyping
		room.Publish(typingEvent(c.user.ID, isTyping))

	case chat.FrameRead:
		if _, customErr := room.store.MarkRead(c.user.ID, room.ID); customErr != nil {
			c.reply(errorEvent(customErr.Message))
			return
		}
		room.Publish(readReceiptEvent(c.user.ID))

	default:
		c.logger.Warn().Str("frame_type", string(frame.Type)).Msg("Client sent unsupported frame type")
		c.reply(errorEvent("Unsupported frame type."))
	}
}

// reply queues an event for this client only.
func (c *Client) reply(ev event) {
	if data := encode(ev); data != nil && !c.trySend(data) {
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full or closed, dropping reply")
	}
}

// trySend queues data without blocking. It reports false when the queue is full or closed.
func (c *Client) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sendClosed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend closes the send queue once; WritePump then writes a close frame with code.
func (c *Client) closeSend(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sendClosed {
		return
	}
	c.sendClosed = true
	c.closeCode, c.closeReason = code, reason
	close(c.send)
}

// WritePump writes queued frames and pings until the send channel is closed.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message, ok := <-c.send:
			if !c.writeQueuedMessage(message, ok) {
				return
			}

		case <-ticker.C:
			if !c.valid() {
				c.logger.Info().Msg("Session no longer valid. Closing chat socket.")
				c.closeSend(WsCloseCodeSessionExpired, "Session expired.")
				c.writeClose()
				return
			}
			if !c.writePing() {
				return
			}
		}
	}
}

// writeQueuedMessage returns false when the WritePump loop should terminate.
func (c *Client) writeQueuedMessage(message []byte, ok bool) bool {
	if !ok {
		c.writeClose()
		return false
	}

	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		c.logger.Debug().Err(err).Msg("Error writing message")
		return false
	}
	return true
}

func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.logger.Debug().Err(err).Msg("Error writing ping")
		return false
	}
	return true
}

func (c *Client) writeClose() {
	c.mu.Lock()
	msg := websocket.FormatCloseMessage(c.closeCode, c.closeReason)
	c.mu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.CloseMessage, msg); err != nil {
		c.logger.Debug().Err(err).Msg("Error writing close message")
	}
}

// Kick closes the connection with WsCloseCodeSessionKicked.
func (c *Client) Kick(reason string) {
	c.logger.Warn().
		Int("close_code", WsCloseCodeSessionKicked).
		Str("reason", reason).
		Msg("Kicking client.")

	c.closeSend(WsCloseCodeSessionKicked, reason)
}
