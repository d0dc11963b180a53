/*
Package hub is the server side of LocalMart chat: it fans frames out to every socket
connected to a chat room.

This file defines the Manager, which creates rooms on first use, hands connecting
clients to them and removes rooms that shut down after a period of inactivity.
*/
package hub

import (
	"sync"

	"github.com/rs/zerolog"

	"localmart/internal/app/market"
	"localmart/internal/pkg/logx"
)

// RoomCleanupMsg tells the Manager that a room's Run loop finished.
type RoomCleanupMsg struct {
	RoomID int64
	Room   *Room
}

// Manager coordinates every active chat room.
type Manager struct {
	// store persists messages and read state.
	store *market.Store

	// rooms stores all running Room instances, keyed by room id.
	rooms map[int64]*Room

	// mu protects concurrent access to the rooms map.
	mu sync.Mutex

	// the channel used by Rooms to notify the Manager to remove them.
	cleanup chan RoomCleanupMsg

	// wg waits for the runCleanupLoop goroutine during shutdown.
	wg sync.WaitGroup

	logger zerolog.Logger
}

// NewManager constructs a Manager and starts its cleanup loop.
func NewManager(store *market.Store) *Manager {
	m := &Manager{
		store:   store,
		rooms:   make(map[int64]*Room),
		cleanup: make(chan RoomCleanupMsg, 16),
		logger:  logx.Component("hub"),
	}

	m.wg.Add(1)
	go m.runCleanupLoop()

	return m
}

func (m *Manager) runCleanupLoop() {
	defer m.wg.Done()

	for msg := range m.cleanup {
		m.deleteRoom(msg.RoomID, msg.Room)
	}

	m.logger.Info().Msg("Cleanup loop stopped.")
}

// deleteRoom removes room unless a newer room already took its id.
func (m *Manager) deleteRoom(roomID int64, room *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.rooms[roomID]; ok && current == room {
		delete(m.rooms, roomID)
		m.logger.Info().Int64("room_id", roomID).Msg("Room removed.")
	}
}

// room returns the running room for roomID, starting one if needed.
func (m *Manager) room(roomID int64) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.rooms[roomID]; ok && !r.stopped() {
		return r
	}

	r := NewRoom(roomID, m.store, m.cleanup)
	m.rooms[roomID] = r
	go r.Run()

	m.logger.Info().Int64("room_id", roomID).Msg("Room started.")
	return r
}

// Join registers c with the room for roomID and returns that room.
func (m *Manager) Join(roomID int64, c *Client) *Room {
	for {
		r := m.room(roomID)
		c.room = r
		if r.add(c) {
			return r
		}
		// The room shut down between lookup and registration; start a fresh one.
		m.deleteRoom(roomID, r)
	}
}

// running returns the room for roomID when its Run loop is active.
func (m *Manager) running(roomID int64) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[roomID]
	if !ok || r.stopped() {
		return nil, false
	}
	return r, true
}

// PublishMessage pushes a message stored through the REST API to the sockets in its
// room. It reports false when nobody is connected.
func (m *Manager) PublishMessage(roomID int64, msg market.StoredMessage) bool {
	r, ok := m.running(roomID)
	if !ok {
		return false
	}
	r.Publish(messageEvent(msg))
	return true
}

// PublishReadReceipt tells the sockets in a room that userID read the conversation.
func (m *Manager) PublishReadReceipt(roomID, userID int64) bool {
	r, ok := m.running(roomID)
	if !ok {
		return false
	}
	r.Publish(readReceiptEvent(userID))
	return true
}

// ActiveRooms returns the number of running rooms.
func (m *Manager) ActiveRooms() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rooms)
}

// Shutdown stops every room and waits for the cleanup loop to exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	rooms := m.rooms
	m.rooms = make(map[int64]*Room)
	m.mu.Unlock()

	for _, r := range rooms {
		r.Stop()
		<-r.done
	}

	close(m.cleanup)
	m.wg.Wait()

	m.logger.Info().Msg("Manager shutdown complete.")
}
