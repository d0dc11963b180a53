/*
Package chat contains the client side of LocalMart's real-time chat.

A Transport is scoped to one chat room. SocketTransport keeps a WebSocket open to the
room, dispatches inbound frames to listeners by type and reconnects with exponential
backoff after unplanned closes. PollingTransport offers the same surface over the REST
message endpoints for networks that block WebSockets.
*/
package chat

import (
	"context"
	"fmt"
)

// ConnState is the lifecycle state of a Transport.
type ConnState int

const (
	// Closed means no connection exists and none is being attempted.
	Closed ConnState = iota

	// Connecting means a dial (initial or reconnect) is in flight.
	Connecting

	// Open means frames can be sent and events are being delivered.
	Open
)

// String returns the lowercase state name.
func (s ConnState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	default:
		return fmt.Sprintf("ConnState(%d)", int(s))
	}
}

// Listener receives events of the type it was registered for.
type Listener func(Event)

// ListenerID identifies a registered Listener for removal.
type ListenerID uint64

// Transport is a chat connection to a single room.
type Transport interface {
	// Connect opens the connection for roomID. It fails with ErrNotAuthenticated
	// when no access token is stored.
	Connect(ctx context.Context, roomID string) error

	// Send writes one outbound frame. Frames are never queued: when the
	// transport is not Open, Send fails with ErrSocketNotOpen.
	Send(frame Frame) error

	// AddListener registers fn for events of type t. Listeners of the same type
	// run in registration order.
	AddListener(t EventType, fn Listener) ListenerID

	// RemoveListener unregisters a listener. Unknown ids are ignored.
	RemoveListener(t EventType, id ListenerID)

	// Disconnect closes the connection, stops reconnecting and removes every
	// listener. It is safe to call more than once.
	Disconnect()

	// State reports the current connection state.
	State() ConnState
}
