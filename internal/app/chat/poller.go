package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"localmart/internal/app/api"
	"localmart/internal/pkg/clock"
	"localmart/internal/pkg/errs"
	"localmart/internal/pkg/logx"
)

// DefaultPollInterval is how often PollingTransport fetches a room's messages.
const DefaultPollInterval = 5 * time.Second

// MessageAPI is the REST surface PollingTransport needs. *api.Client satisfies it.
type MessageAPI interface {
	Token(ctx context.Context) (string, error)
	ListMessages(ctx context.Context, roomID string) ([]api.Message, error)
	SendMessage(ctx context.Context, roomID string, content string) (*api.Message, error)
	MarkRead(ctx context.Context, roomID string) error
}

// PollingConfig holds the parameters of a PollingTransport.
type PollingConfig struct {
	API MessageAPI

	// Clock drives the poll ticker. Defaults to clock.Real().
	Clock clock.Clock

	// Interval defaults to DefaultPollInterval.
	Interval time.Duration
}

// PollingTransport emulates the chat socket with periodic REST fetches.
// Typing frames have no REST equivalent and are dropped.
type PollingTransport struct {
	api       MessageAPI
	clock     clock.Clock
	interval  time.Duration
	listeners *listenerSet
	logger    zerolog.Logger

	mu     sync.Mutex
	state  ConnState
	roomID string
	seen   map[int64]bool
	cancel context.CancelFunc

	// generation increases on every successful Connect; a poll whose generation
	// is stale belongs to an earlier room and delivers nothing.
	generation uint64
}

var _ Transport = (*PollingTransport)(nil)

// NewPollingTransport returns a Closed transport.
func NewPollingTransport(cfg PollingConfig) (*PollingTransport, error) {
	if cfg.API == nil {
		return nil, errors.New("chat: message api is required")
	}

	p := &PollingTransport{
		api:      cfg.API,
		clock:    cfg.Clock,
		interval: cfg.Interval,
		logger:   logx.Component("chat_poller"),
	}
	if p.clock == nil {
		p.clock = clock.Real()
	}
	if p.interval <= 0 {
		p.interval = DefaultPollInterval
	}
	p.listeners = newListenerSet(p.logger)

	return p, nil
}

// Connect fetches the room's history once, marking it as seen, then starts polling.
// Messages already in the room when Connect returns are not delivered as events.
func (p *PollingTransport) Connect(ctx context.Context, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return errs.NewLocalError(errs.ErrInvalidParams)
	}

	token, err := p.api.Token(ctx)
	if err != nil {
		return errs.Wrap(errs.ErrUnknown, err)
	}
	if token == "" {
		return errs.NewLocalError(errs.ErrNotAuthenticated)
	}

	p.mu.Lock()
	if p.state != Closed {
		p.mu.Unlock()
		return errors.New("chat: poller already connected to room " + p.roomID)
	}
	p.state = Connecting
	p.mu.Unlock()

	history, err := p.api.ListMessages(ctx, roomID)
	if err != nil {
		p.mu.Lock()
		p.state = Closed
		p.mu.Unlock()
		return err
	}

	seen := make(map[int64]bool, len(history))
	for _, m := range history {
		seen[m.ID] = true
	}

	pollCtx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	if p.state != Connecting {
		// Disconnect ran while the history was loading.
		p.mu.Unlock()
		cancel()
		return errs.NewLocalError(errs.ErrSocketNotOpen)
	}
	p.roomID = roomID
	p.seen = seen
	p.cancel = cancel
	p.state = Open
	p.generation++
	gen := p.generation
	p.mu.Unlock()

	ticker := p.clock.NewTicker(p.interval)
	go p.loop(pollCtx, ticker, gen)

	p.logger.Info().Str("room_id", roomID).Dur("interval", p.interval).Msg("Chat polling started")
	return nil
}

func (p *PollingTransport) loop(ctx context.Context, ticker *clock.Ticker, gen uint64) {
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.poll(ctx, gen) {
				return
			}
		}
	}
}

// poll delivers unseen messages of connection gen. It reports false when polling must stop.
func (p *PollingTransport) poll(ctx context.Context, gen uint64) bool {
	p.mu.Lock()
	if p.generation != gen || p.state != Open {
		p.mu.Unlock()
		return false
	}
	roomID := p.roomID
	p.mu.Unlock()

	messages, err := p.api.ListMessages(ctx, roomID)
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return false
	case errs.IsUnauthorized(err):
		p.logger.Warn().Str("room_id", roomID).Msg("Session rejected; chat polling stopped")
		p.mu.Lock()
		if p.state == Open && p.generation == gen {
			p.state = Closed
			p.cancel()
			p.cancel = nil
		}
		p.mu.Unlock()
		return false
	default:
		p.logger.Warn().Err(err).Str("room_id", roomID).Msg("Chat poll failed")
		return true
	}

	var fresh []api.Message
	p.mu.Lock()
	if p.state != Open || p.generation != gen || p.roomID != roomID {
		p.mu.Unlock()
		return false
	}
	for _, m := range messages {
		if !p.seen[m.ID] {
			p.seen[m.ID] = true
			fresh = append(fresh, m)
		}
	}
	p.mu.Unlock()

	for _, m := range fresh {
		p.listeners.dispatch(Event{Type: EventMessage, Message: fromAPIMessage(m)})
	}
	return true
}

// Send maps message frames to send_message and read frames to mark-read.
func (p *PollingTransport) Send(frame Frame) error {
	p.mu.Lock()
	open := p.state == Open
	roomID := p.roomID
	p.mu.Unlock()

	if !open {
		return errs.NewLocalError(errs.ErrSocketNotOpen)
	}

	ctx := context.Background()
	switch frame.Type {
	case FrameMessage:
		_, err := p.api.SendMessage(ctx, roomID, frame.Message)
		return err
	case FrameRead:
		return p.api.MarkRead(ctx, roomID)
	case FrameTyping:
		return nil
	default:
		return errs.NewLocalError(errs.ErrInvalidParams)
	}
}

// AddListener registers fn for events of type et.
func (p *PollingTransport) AddListener(et EventType, fn Listener) ListenerID {
	return p.listeners.add(et, fn)
}

// RemoveListener unregisters a listener.
func (p *PollingTransport) RemoveListener(et EventType, id ListenerID) {
	p.listeners.remove(et, id)
}

// Disconnect stops polling. An in-flight poll is cancelled and delivers nothing.
func (p *PollingTransport) Disconnect() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.state = Closed
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.listeners.clear()
}

// State reports the current connection state.
func (p *PollingTransport) State() ConnState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}
