package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localmart/internal/pkg/clock"
	"localmart/internal/pkg/errs"
)

type staticTokens string

func (s staticTokens) AccessToken(context.Context) (string, error) { return string(s), nil }

// fakeConn is an in-memory Conn. push queues an inbound frame, drop simulates the
// server going away.
type fakeConn struct {
	frames chan []byte
	closed chan struct{}
	once   sync.Once

	mu      sync.Mutex
	written [][]byte
}

func newFakeConn() *fakeConn {
	return &fakeConn{frames: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case <-c.closed:
		return 0, nil, errors.New("connection closed")
	default:
	}
	select {
	case f := <-c.frames:
		return websocket.TextMessage, f, nil
	case <-c.closed:
		return 0, nil, errors.New("connection closed")
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if messageType == websocket.TextMessage {
		c.written = append(c.written, data)
	}
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (c *fakeConn) SetReadLimit(int64)               {}

func (c *fakeConn) Close() error {
	c.drop()
	return nil
}

func (c *fakeConn) drop() { c.once.Do(func() { close(c.closed) }) }

func (c *fakeConn) push(t *testing.T, v any) {
	data, err := json.Marshal(v)
	require.NoError(t, err)
	c.frames <- data
}

// scriptedDialer hands out conns in order and fails once they run out.
type scriptedDialer struct {
	clock *clock.FakeClock
	start time.Time

	mu    sync.Mutex
	conns []*fakeConn
	urls  []string
	times []time.Duration
}

func (d *scriptedDialer) dial(_ context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.urls = append(d.urls, url)
	d.times = append(d.times, d.clock.Now().Sub(d.start))
	if len(d.conns) == 0 {
		return nil, errors.New("connection refused")
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}

func (d *scriptedDialer) dialTimes() []time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]time.Duration(nil), d.times...)
}

func newScripted(conns ...*fakeConn) (*scriptedDialer, *clock.FakeClock) {
	fc := clock.Fake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return &scriptedDialer{clock: fc, start: fc.Now(), conns: conns}, fc
}

func newTestSocket(t *testing.T, d *scriptedDialer, fc *clock.FakeClock, base time.Duration) *SocketTransport {
	t.Helper()
	s, err := NewSocketTransport(SocketConfig{
		BaseURL:            "http://localhost:8080/api",
		Tokens:             staticTokens("tok1"),
		Dial:               d.dial,
		Clock:              fc,
		ReconnectBaseDelay: base,
	})
	require.NoError(t, err)
	return s
}

func TestSocketURL(t *testing.T) {
	s, err := NewSocketTransport(SocketConfig{BaseURL: "https://market.example.com/api", Tokens: staticTokens("x")})
	require.NoError(t, err)
	assert.Equal(t, "wss://market.example.com/ws/chat/42/?token=a%2Bb", socketURL(s.base, "42", "a+b"))

	s, err = NewSocketTransport(SocketConfig{BaseURL: "http://localhost:8080/api", Tokens: staticTokens("x")})
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws/chat/7/?token=tok", socketURL(s.base, "7", "tok"))
}

func TestNewSocketTransportRejectsBadConfig(t *testing.T) {
	_, err := NewSocketTransport(SocketConfig{BaseURL: "ftp://x", Tokens: staticTokens("x")})
	assert.Error(t, err)

	_, err = NewSocketTransport(SocketConfig{BaseURL: "http://x"})
	assert.Error(t, err)
}

func TestReconnectDelay(t *testing.T) {
	base := time.Second
	assert.Equal(t, time.Second, ReconnectDelay(base, 1))
	assert.Equal(t, 2*time.Second, ReconnectDelay(base, 2))
	assert.Equal(t, 4*time.Second, ReconnectDelay(base, 3))
	assert.Equal(t, 16*time.Second, ReconnectDelay(base, 5))
	assert.Equal(t, time.Second, ReconnectDelay(base, 0))
}

func TestReconnectDelayIsCapped(t *testing.T) {
	assert.Equal(t, MaxReconnectDelay, ReconnectDelay(2*time.Second, 9))
	for _, attempt := range []int{34, 64, 1000} {
		delay := ReconnectDelay(DefaultReconnectBaseDelay, attempt)
		assert.Equal(t, MaxReconnectDelay, delay, "attempt %d", attempt)
	}
	assert.Equal(t, MaxReconnectDelay, ReconnectDelay(time.Hour, 1))
}

func TestSocketConnectWithoutToken(t *testing.T) {
	d, fc := newScripted(newFakeConn())
	s, err := NewSocketTransport(SocketConfig{
		BaseURL: "http://localhost:8080/api",
		Tokens:  staticTokens(""),
		Dial:    d.dial,
		Clock:   fc,
	})
	require.NoError(t, err)

	err = s.Connect(context.Background(), "1")
	assert.True(t, errs.IsCode(err, errs.ErrNotAuthenticated))
	assert.Equal(t, Closed, s.State())
	assert.Empty(t, d.dialTimes())
}

func TestSocketSendWhenNotOpen(t *testing.T) {
	d, fc := newScripted()
	s := newTestSocket(t, d, fc, time.Second)

	err := s.Send(MessageFrame("hello"))
	require.Error(t, err)
	assert.True(t, errs.IsCode(err, errs.ErrSocketNotOpen))
}

func TestSocketInitialDialFailure(t *testing.T) {
	d, fc := newScripted()
	s := newTestSocket(t, d, fc, time.Second)

	err := s.Connect(context.Background(), "1")
	assert.True(t, errs.IsCode(err, errs.ErrNetwork))
	assert.Equal(t, Closed, s.State())
	assert.Equal(t, 0, fc.PendingCount())
}

func TestSocketDispatchAndSend(t *testing.T) {
	conn := newFakeConn()
	d, fc := newScripted(conn)
	s := newTestSocket(t, d, fc, time.Second)

	var mu sync.Mutex
	var order []string
	got := make(chan Event, 4)

	s.AddListener(EventMessage, func(Event) { panic("listener bug") })
	s.AddListener(EventMessage, func(ev Event) {
		mu.Lock()
		order = append(order, "second")
		mu.Unlock()
		got <- ev
	})
	removed := s.AddListener(EventMessage, func(Event) {
		mu.Lock()
		order = append(order, "removed")
		mu.Unlock()
	})
	s.RemoveListener(EventMessage, removed)
	s.AddListener(EventTyping, func(ev Event) { got <- ev })

	require.NoError(t, s.Connect(context.Background(), "9"))
	assert.Equal(t, Open, s.State())
	assert.Equal(t, []string{"ws://localhost:8080/ws/chat/9/?token=tok1"}, d.urls)

	conn.frames <- []byte("not json")
	conn.push(t, map[string]any{
		"type": "message",
		"message": map[string]any{
			"id": 5, "content": "hi", "sender_id": 2, "sender_name": "ann",
			"timestamp": "2024-01-01T10:00:00",
		},
	})
	conn.push(t, map[string]any{"type": "typing", "user_id": 2, "is_typing": true})

	select {
	case ev := <-got:
		require.Equal(t, EventMessage, ev.Type)
		require.NotNil(t, ev.Message)
		assert.Equal(t, int64(5), ev.Message.ID)
		assert.Equal(t, "hi", ev.Message.Content)
		assert.Equal(t, "ann", ev.Message.SenderName)
	case <-time.After(2 * time.Second):
		t.Fatal("message event not delivered")
	}

	select {
	case ev := <-got:
		assert.Equal(t, EventTyping, ev.Type)
		assert.Equal(t, int64(2), ev.UserID)
		assert.True(t, ev.IsTyping)
	case <-time.After(2 * time.Second):
		t.Fatal("typing event not delivered")
	}

	mu.Lock()
	assert.Equal(t, []string{"second"}, order)
	mu.Unlock()

	require.NoError(t, s.Send(TypingFrame(false)))
	require.NoError(t, s.Send(MessageFrame("hello")))

	conn.mu.Lock()
	require.Len(t, conn.written, 2)
	assert.JSONEq(t, `{"type":"typing","is_typing":false}`, string(conn.written[0]))
	assert.JSONEq(t, `{"type":"message","message":"hello"}`, string(conn.written[1]))
	conn.mu.Unlock()

	s.Disconnect()
}

// A server that drops the socket and then refuses every reconnect sees attempts
// spaced base, 2×base, 4×base, 8×base, 16×base and no sixth attempt.
func TestSocketReconnectBackoff(t *testing.T) {
	const base = time.Second
	first := newFakeConn()
	d, fc := newScripted(first)
	s := newTestSocket(t, d, fc, base)

	require.NoError(t, s.Connect(context.Background(), "3"))
	first.drop()

	fc.WaitForTimers(1)
	assert.Equal(t, Closed, s.State())
	assert.Equal(t, 1, s.RetryCount())

	fc.Advance(base - time.Millisecond)
	assert.Len(t, d.dialTimes(), 1)
	fc.Advance(time.Millisecond)
	assert.Len(t, d.dialTimes(), 2)

	fc.Advance(2 * base)
	fc.Advance(4 * base)
	fc.Advance(8 * base)
	fc.Advance(16 * base)
	fc.Advance(time.Hour)

	times := d.dialTimes()
	require.Len(t, times, 6)

	var gaps []time.Duration
	for i := 2; i < len(times); i++ {
		gaps = append(gaps, times[i]-times[i-1])
	}
	assert.Equal(t, base, times[1]-times[0])
	assert.Equal(t, []time.Duration{2 * base, 4 * base, 8 * base, 16 * base}, gaps)

	assert.Equal(t, Closed, s.State())
	assert.Equal(t, 0, fc.PendingCount())
}

func TestSocketReconnectResetsRetryCount(t *testing.T) {
	const base = time.Second
	first, second := newFakeConn(), newFakeConn()
	d, fc := newScripted(first, second)
	s := newTestSocket(t, d, fc, base)

	got := make(chan Event, 1)
	s.AddListener(EventStatus, func(ev Event) { got <- ev })

	require.NoError(t, s.Connect(context.Background(), "3"))
	first.drop()
	fc.WaitForTimers(1)

	fc.Advance(base)
	assert.Equal(t, Open, s.State())
	assert.Equal(t, 0, s.RetryCount())

	second.push(t, map[string]any{"type": "status", "user_id": 4, "status": "online"})
	select {
	case ev := <-got:
		assert.Equal(t, "online", ev.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("listeners did not survive the reconnect")
	}

	s.Disconnect()
}

func TestSocketDisconnectCancelsReconnect(t *testing.T) {
	first := newFakeConn()
	d, fc := newScripted(first, newFakeConn())
	s := newTestSocket(t, d, fc, time.Second)

	require.NoError(t, s.Connect(context.Background(), "3"))
	first.drop()
	fc.WaitForTimers(1)

	s.Disconnect()
	assert.Equal(t, 0, fc.PendingCount())

	fc.Advance(time.Minute)
	assert.Len(t, d.dialTimes(), 1)
	assert.Equal(t, Closed, s.State())
}

func TestSocketDoubleDisconnect(t *testing.T) {
	conn := newFakeConn()
	d, fc := newScripted(conn)
	s := newTestSocket(t, d, fc, time.Second)

	called := false
	s.AddListener(EventMessage, func(Event) { called = true })

	require.NoError(t, s.Connect(context.Background(), "1"))

	assert.NotPanics(t, func() {
		s.Disconnect()
		s.Disconnect()
	})
	assert.Equal(t, Closed, s.State())
	assert.Equal(t, 0, fc.PendingCount())

	s.listeners.dispatch(Event{Type: EventMessage})
	assert.False(t, called, "listeners are cleared on disconnect")

	err := s.Send(ReadFrame())
	assert.True(t, errs.IsCode(err, errs.ErrSocketNotOpen))
}

func TestSocketOverRealWebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	received := make(chan Frame, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ws/chat/42/" || r.URL.Query().Get("token") != "tok" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			return
		}
		received <- f

		reply, _ := json.Marshal(map[string]any{
			"type": "message",
			"message": map[string]any{
				"id": 1, "content": f.Message, "sender_id": 3, "sender_name": "bob",
				"timestamp": "2024-01-01T00:00:00+00:00",
			},
		})
		if err := conn.WriteMessage(websocket.TextMessage, reply); err != nil {
			return
		}
		// Hold the connection until the client closes it.
		conn.ReadMessage()
	}))
	defer srv.Close()

	s, err := NewSocketTransport(SocketConfig{BaseURL: srv.URL + "/api", Tokens: staticTokens("tok")})
	require.NoError(t, err)

	events := make(chan Event, 1)
	s.AddListener(EventMessage, func(ev Event) { events <- ev })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Connect(ctx, "42"))
	require.NoError(t, s.Send(MessageFrame("is it still available?")))

	select {
	case f := <-received:
		assert.Equal(t, FrameMessage, f.Type)
		assert.Equal(t, "is it still available?", f.Message)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not receive the frame")
	}

	select {
	case ev := <-events:
		assert.Equal(t, "is it still available?", ev.Message.Content)
		assert.Equal(t, int64(3), ev.Message.SenderID)
	case <-time.After(5 * time.Second):
		t.Fatal("client did not receive the echo")
	}

	s.Disconnect()
	s.Disconnect()
	assert.Equal(t, Closed, s.State())
}

func TestDecodeEvent(t *testing.T) {
	ev, err := decodeEvent([]byte(`{"type":"read_receipt","user_id":8}`))
	require.NoError(t, err)
	assert.Equal(t, EventReadReceipt, ev.Type)
	assert.Equal(t, int64(8), ev.UserID)

	ev, err = decodeEvent([]byte(`{"type":"error","message":"Room not found"}`))
	require.NoError(t, err)
	assert.Equal(t, "Room not found", ev.Error)

	ev, err = decodeEvent([]byte(`{"type":"presence","who":1}`))
	require.NoError(t, err)
	assert.Equal(t, EventType("presence"), ev.Type)
	assert.JSONEq(t, `{"type":"presence","who":1}`, string(ev.Raw))

	_, err = decodeEvent([]byte(`{"type":"message"}`))
	assert.Error(t, err)

	_, err = decodeEvent([]byte(`{"user_id":1}`))
	assert.Error(t, err)
}
