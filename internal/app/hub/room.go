/*
Package hub is the server side of LocalMart chat: it fans frames out to every socket
connected to a chat room.

This file defines the Room, the event loop for a single chat room. It owns the set
of connected clients, announces presence changes, and shuts itself down after a
period without participants.
*/
package hub

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"localmart/internal/app/market"
	"localmart/internal/pkg/logx"
)

const broadcastChannelBuffer = 256

// RoomInactivityTimeout is the duration after which an empty room shuts down.
var RoomInactivityTimeout = 5 * time.Minute

// Room is a single, active chat room.
type Room struct {
	// ID is the chat room id in the market store.
	ID int64

	store *market.Store

	// connected clients, keyed by user id. A user has at most one socket per room.
	clients map[int64]*Client

	// encoded frames to deliver to every client.
	broadcast chan []byte

	register   chan *Client
	unregister chan *Client

	// write-only channel used to notify the Manager when Run returns.
	cleanupChan chan<- RoomCleanupMsg

	// closed by Stop to end the Run loop.
	stopChan chan struct{}

	// closed when the Run loop has finished.
	done chan struct{}

	logger zerolog.Logger
}

// NewRoom creates a Room. Call Run to start it.
func NewRoom(roomID int64, store *market.Store, cleanupChan chan<- RoomCleanupMsg) *Room {
	return &Room{
		ID:          roomID,
		store:       store,
		clients:     make(map[int64]*Client),
		broadcast:   make(chan []byte, broadcastChannelBuffer),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		cleanupChan: cleanupChan,
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logx.Logger().With().Int64("room_id", roomID).Logger(),
	}
}

// Stop signals the Run loop to terminate. It is safe to call more than once.
func (r *Room) Stop() {
	select {
	case <-r.stopChan:
	default:
		close(r.stopChan)
	}
}

func (r *Room) stopped() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// add hands c to the Run loop. It reports false when the room already stopped.
func (r *Room) add(c *Client) bool {
	select {
	case r.register <- c:
		return true
	case <-r.done:
		return false
	}
}

func (r *Room) leave(c *Client) {
	select {
	case r.unregister <- c:
	case <-r.done:
	}
}

// Publish queues an event for every client in the room.
func (r *Room) Publish(event any) {
	data, err := json.Marshal(event)
	if err != nil {
		r.logger.Error().Err(err).Msg("Error marshaling event for broadcast.")
		return
	}

	select {
	case r.broadcast <- data:
	case <-r.done:
	}
}

// Run is the room's event loop.
func (r *Room) Run() {
	shutdownTimer := time.NewTimer(RoomInactivityTimeout)

	defer func() {
		shutdownTimer.Stop()

		for id, c := range r.clients {
			c.closeSend(websocket.CloseGoingAway, "Room closed.")
			delete(r.clients, id)
		}

		func() {
			defer func() {
				if recover() != nil {
					logx.Warn("Recovered from panic during Manager cleanup notification (channel likely closed).")
				}
			}()

			select {
			case r.cleanupChan <- RoomCleanupMsg{RoomID: r.ID, Room: r}:
			default:
				r.logger.Warn().Msg("Manager cleanup channel full. Skipping cleanup notification.")
			}
		}()

		close(r.done)
		r.logger.Info().Msg("Room Run loop finished.")
	}()

	for {
		select {
		case c := <-r.register:
			if existing, ok := r.clients[c.user.ID]; ok {
				r.logger.Warn().Int64("user_id", c.user.ID).Msg("User already connected. Closing old connection for replacement.")
				delete(r.clients, c.user.ID)
				existing.Kick("Session replaced by new connection.")
			}

			shutdownTimer.Stop()
			r.clients[c.user.ID] = c
			r.logger.Info().Int64("user_id", c.user.ID).Int("total_users", len(r.clients)).Msg("Client joined room.")

			r.deliver(encode(statusEvent(c.user.ID, StatusOnline)))

		case c := <-r.unregister:
			current, ok := r.clients[c.user.ID]
			if !ok || current != c {
				r.logger.Debug().Int64("user_id", c.user.ID).Msg("Ignoring unregister for stale connection.")
				continue
			}

			delete(r.clients, c.user.ID)
			c.closeSend(websocket.CloseNormalClosure, "")
			r.logger.Info().Int64("user_id", c.user.ID).Int("total_users", len(r.clients)).Msg("Client left room.")

			r.deliver(encode(statusEvent(c.user.ID, StatusOffline)))

			if len(r.clients) == 0 {
				shutdownTimer.Reset(RoomInactivityTimeout)
			}

		case data := <-r.broadcast:
			r.deliver(data)

		case <-shutdownTimer.C:
			r.logger.Info().Dur("timeout", RoomInactivityTimeout).Msg("Room inactivity timeout reached.")
			return

		case <-r.stopChan:
			r.logger.Info().Msg("Room forced stop initiated.")
			return
		}
	}
}

// deliver queues data for every client. Clients whose queue is full are dropped.
func (r *Room) deliver(data []byte) {
	if data == nil {
		return
	}
	for id, c := range r.clients {
		if !c.trySend(data) {
			r.logger.Warn().Int64("user_id", id).Msg("Client send channel full, disconnecting.")
			delete(r.clients, id)
			c.closeSend(websocket.ClosePolicyViolation, "Too slow.")
		}
	}
}
