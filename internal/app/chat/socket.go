package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"localmart/internal/app/api"
	"localmart/internal/pkg/clock"
	"localmart/internal/pkg/errs"
	"localmart/internal/pkg/logx"
)

const (
	// DefaultReconnectBaseDelay is the wait before the first reconnect attempt.
	DefaultReconnectBaseDelay = 2 * time.Second

	// DefaultMaxReconnectAttempts bounds consecutive reconnect attempts.
	DefaultMaxReconnectAttempts = 5

	// MaxReconnectDelay caps the doubling wait between reconnect attempts.
	MaxReconnectDelay = 5 * time.Minute

	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// timeout for each reconnect dial.
	dialWait = 15 * time.Second

	// maximum size (in bytes) of an inbound frame.
	maxFrameSize = 64 * 1024
)

// Conn is the part of *websocket.Conn the transport uses.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	SetReadLimit(limit int64)
	Close() error
}

// DialFunc opens a WebSocket connection to url.
type DialFunc func(ctx context.Context, url string) (Conn, error)

// GorillaDialer adapts a websocket.Dialer. A nil dialer selects websocket.DefaultDialer.
func GorillaDialer(d *websocket.Dialer) DialFunc {
	if d == nil {
		d = websocket.DefaultDialer
	}
	return func(ctx context.Context, url string) (Conn, error) {
		conn, resp, err := d.DialContext(ctx, url, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// SocketConfig holds the parameters of a SocketTransport.
type SocketConfig struct {
	// BaseURL is the API base; only its scheme and host are used.
	BaseURL string

	// Tokens supplies the access token sent in the connection URL.
	Tokens api.TokenSource

	// Dial defaults to GorillaDialer(nil).
	Dial DialFunc

	// Clock schedules reconnects. Defaults to clock.Real().
	Clock clock.Clock

	// ReconnectBaseDelay is the first backoff delay; attempt n waits
	// ReconnectBaseDelay × 2^(n-1). Zero selects DefaultReconnectBaseDelay.
	ReconnectBaseDelay time.Duration

	// MaxReconnectAttempts bounds consecutive failed reconnects. Zero selects
	// DefaultMaxReconnectAttempts; negative disables reconnection.
	MaxReconnectAttempts int
}

// SocketTransport is the WebSocket Transport. It is safe for concurrent use.
type SocketTransport struct {
	base        *url.URL
	tokens      api.TokenSource
	dial        DialFunc
	clock       clock.Clock
	baseDelay   time.Duration
	maxAttempts int
	listeners   *listenerSet
	logger      zerolog.Logger

	mu         sync.Mutex
	state      ConnState
	roomID     string
	conn       Conn
	generation uint64
	retryCount int
	stopped    bool
	retryTimer *clock.Timer

	// writeMu serializes writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex
}

var _ Transport = (*SocketTransport)(nil)

// NewSocketTransport validates cfg and returns a Closed transport.
func NewSocketTransport(cfg SocketConfig) (*SocketTransport, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("chat: invalid base url %q: %w", cfg.BaseURL, err)
	}
	if (base.Scheme != "http" && base.Scheme != "https") || base.Host == "" {
		return nil, fmt.Errorf("chat: base url %q must be an absolute http(s) url", cfg.BaseURL)
	}
	if cfg.Tokens == nil {
		return nil, errors.New("chat: token source is required")
	}

	t := &SocketTransport{
		base:        base,
		tokens:      cfg.Tokens,
		dial:        cfg.Dial,
		clock:       cfg.Clock,
		baseDelay:   cfg.ReconnectBaseDelay,
		maxAttempts: cfg.MaxReconnectAttempts,
		logger:      logx.Component("chat_socket"),
	}
	if t.dial == nil {
		t.dial = GorillaDialer(nil)
	}
	if t.clock == nil {
		t.clock = clock.Real()
	}
	if t.baseDelay <= 0 {
		t.baseDelay = DefaultReconnectBaseDelay
	}
	switch {
	case t.maxAttempts == 0:
		t.maxAttempts = DefaultMaxReconnectAttempts
	case t.maxAttempts < 0:
		t.maxAttempts = 0
	}
	t.listeners = newListenerSet(t.logger)

	return t, nil
}

// socketURL maps the API base onto the chat endpoint: ws(s)://host/ws/chat/{room}/?token=.
func socketURL(base *url.URL, roomID, token string) string {
	u := url.URL{
		Scheme:   "ws",
		Host:     base.Host,
		Path:     "/ws/chat/" + roomID + "/",
		RawQuery: url.Values{"token": {token}}.Encode(),
	}
	if base.Scheme == "https" {
		u.Scheme = "wss"
	}
	return u.String()
}

// ReconnectDelay is the wait before reconnect attempt n (1-based), capped at
// MaxReconnectDelay.
func ReconnectDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		return 0
	}
	if base >= MaxReconnectDelay {
		return MaxReconnectDelay
	}
	delay := base
	for i := 1; i < attempt; i++ {
		delay <<= 1
		if delay >= MaxReconnectDelay {
			return MaxReconnectDelay
		}
	}
	return delay
}

// Connect dials the room. A failed initial dial is returned to the caller and
// leaves the transport Closed; only connections that were once open reconnect.
func (t *SocketTransport) Connect(ctx context.Context, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return errs.NewLocalError(errs.ErrInvalidParams)
	}

	token, err := t.tokens.AccessToken(ctx)
	if err != nil {
		return errs.Wrap(errs.ErrUnknown, err)
	}
	if token == "" {
		return errs.NewLocalError(errs.ErrNotAuthenticated)
	}

	t.mu.Lock()
	if t.state != Closed {
		t.mu.Unlock()
		return fmt.Errorf("chat: already %s to room %s", t.state, t.roomID)
	}
	t.stopRetryLocked()
	t.generation++
	gen := t.generation
	t.roomID = roomID
	t.retryCount = 0
	t.stopped = false
	t.state = Connecting
	t.mu.Unlock()

	conn, err := t.dial(ctx, socketURL(t.base, roomID, token))
	if err != nil {
		t.mu.Lock()
		if t.generation == gen {
			t.state = Closed
		}
		t.mu.Unlock()

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		t.logger.Warn().Err(err).Str("room_id", roomID).Msg("Chat socket dial failed")
		return errs.Wrap(errs.ErrNetwork, err)
	}

	if !t.adopt(gen, conn) {
		return errs.NewLocalError(errs.ErrSocketNotOpen)
	}
	return nil
}

// adopt installs conn as the live connection if gen is still current.
func (t *SocketTransport) adopt(gen uint64, conn Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.generation != gen || t.stopped {
		conn.Close()
		return false
	}

	conn.SetReadLimit(maxFrameSize)
	t.conn = conn
	t.state = Open
	t.retryCount = 0

	t.logger.Info().Str("room_id", t.roomID).Uint64("generation", gen).Msg("Chat socket open")

	go t.readPump(gen, conn)
	return true
}

// readPump delivers frames from conn until it fails.
func (t *SocketTransport) readPump(gen uint64, conn Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.handleClose(gen, err)
			return
		}

		ev, err := decodeEvent(data)
		if err != nil {
			t.logger.Warn().Err(err).Msg("Discarding malformed chat frame")
			continue
		}

		t.mu.Lock()
		current := t.generation == gen
		t.mu.Unlock()
		if !current {
			return
		}

		t.listeners.dispatch(ev)
	}
}

// handleClose records an unplanned close of connection gen and schedules a reconnect.
func (t *SocketTransport) handleClose(gen uint64, cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.generation != gen || t.stopped {
		return
	}

	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.state = Closed
	t.retryCount++

	if t.retryCount > t.maxAttempts {
		t.logger.Warn().
			Err(cause).
			Str("room_id", t.roomID).
			Int("attempts", t.retryCount-1).
			Msg("Chat socket closed; giving up on reconnect")
		return
	}

	delay := ReconnectDelay(t.baseDelay, t.retryCount)
	t.logger.Info().
		Err(cause).
		Str("room_id", t.roomID).
		Int("attempt", t.retryCount).
		Dur("delay", delay).
		Msg("Chat socket closed; scheduling reconnect")

	t.retryTimer = t.clock.AfterFunc(delay, func() { t.reconnect(gen) })
}

// reconnect runs one scheduled attempt for the connection that closed as gen.
func (t *SocketTransport) reconnect(closedGen uint64) {
	t.mu.Lock()
	if t.generation != closedGen || t.stopped {
		t.mu.Unlock()
		return
	}
	t.retryTimer = nil
	t.generation++
	gen := t.generation
	roomID := t.roomID
	t.state = Connecting
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), dialWait)
	defer cancel()

	token, err := t.tokens.AccessToken(ctx)
	if err == nil && token == "" {
		t.mu.Lock()
		if t.generation == gen {
			t.state = Closed
		}
		t.mu.Unlock()
		t.logger.Info().Str("room_id", roomID).Msg("Session ended; chat reconnect abandoned")
		return
	}
	if err != nil {
		t.handleClose(gen, err)
		return
	}

	conn, err := t.dial(ctx, socketURL(t.base, roomID, token))
	if err != nil {
		t.handleClose(gen, err)
		return
	}
	t.adopt(gen, conn)
}

// Send marshals frame and writes it as one text message.
func (t *SocketTransport) Send(frame Frame) error {
	t.mu.Lock()
	conn := t.conn
	open := t.state == Open && conn != nil
	t.mu.Unlock()

	if !open {
		return errs.NewLocalError(errs.ErrSocketNotOpen)
	}

	data, err := json.Marshal(frame)
	if err != nil {
		return errs.Wrap(errs.ErrInvalidParams, err)
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return errs.Wrap(errs.ErrNetwork, err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errs.Wrap(errs.ErrNetwork, err)
	}
	return nil
}

// AddListener registers fn for events of type et.
func (t *SocketTransport) AddListener(et EventType, fn Listener) ListenerID {
	return t.listeners.add(et, fn)
}

// RemoveListener unregisters a listener.
func (t *SocketTransport) RemoveListener(et EventType, id ListenerID) {
	t.listeners.remove(et, id)
}

// Disconnect closes the socket with a normal close frame and stops reconnecting.
func (t *SocketTransport) Disconnect() {
	t.mu.Lock()
	t.stopped = true
	t.generation++
	t.stopRetryLocked()
	conn := t.conn
	t.conn = nil
	wasOpen := t.state != Closed
	t.state = Closed
	t.mu.Unlock()

	t.listeners.clear()

	if conn == nil {
		return
	}

	t.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")); err != nil {
		t.logger.Debug().Err(err).Msg("Writing close frame failed")
	}
	t.writeMu.Unlock()

	if err := conn.Close(); err != nil {
		t.logger.Debug().Err(err).Msg("Chat socket close error")
	}
	if wasOpen {
		t.logger.Info().Msg("Chat socket disconnected")
	}
}

// State reports the current connection state.
func (t *SocketTransport) State() ConnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// RetryCount reports consecutive failed reconnects since the last open.
func (t *SocketTransport) RetryCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retryCount
}

func (t *SocketTransport) stopRetryLocked() {
	if t.retryTimer != nil {
		t.retryTimer.Stop()
		t.retryTimer = nil
	}
}
