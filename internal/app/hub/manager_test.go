package hub

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localmart/internal/app/chat"
	"localmart/internal/app/market"
	"localmart/internal/pkg/clock"
)

func TestPublishWithoutActiveRoom(t *testing.T) {
	m := NewManager(market.NewStore(clock.Real()))
	defer m.Shutdown()

	assert.False(t, m.PublishMessage(1, market.StoredMessage{ID: 1, Content: "hi"}))
	assert.False(t, m.PublishReadReceipt(1, 2))
	assert.Zero(t, m.ActiveRooms())
}

func TestStoppedRoomIsReplaced(t *testing.T) {
	m := NewManager(market.NewStore(clock.Real()))
	defer m.Shutdown()

	first := m.room(7)
	assert.Equal(t, 1, m.ActiveRooms())

	first.Stop()
	<-first.done

	second := m.room(7)
	assert.NotSame(t, first, second)
	assert.True(t, m.PublishReadReceipt(7, 3))

	require.Eventually(t, func() bool { return m.ActiveRooms() == 1 }, time.Second, 10*time.Millisecond)
}

func TestEventEncoding(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	data := encode(messageEvent(market.StoredMessage{
		ID: 5, SenderID: 1, SenderName: "ann", RecipientID: 2, Content: "hello", CreatedAt: at,
	}))
	require.NotNil(t, data)

	var decoded struct {
		Type    chat.EventType   `json:"type"`
		Message chat.ChatMessage `json:"message"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, chat.EventMessage, decoded.Type)
	assert.Equal(t, "hello", decoded.Message.Content)
	assert.Equal(t, "2026-03-01T12:00:00Z", decoded.Message.Timestamp)

	assert.JSONEq(t, `{"type":"typing","user_id":4,"is_typing":false}`, string(encode(typingEvent(4, false))))
	assert.JSONEq(t, `{"type":"error","message":"nope"}`, string(encode(errorEvent("nope"))))
}
