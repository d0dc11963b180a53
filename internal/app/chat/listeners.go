package chat

import (
	"fmt"
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

type listenerEntry struct {
	id ListenerID
	fn Listener
}

// listenerSet holds listeners per event type in registration order.
type listenerSet struct {
	mu     sync.Mutex
	seq    ListenerID
	byType map[EventType][]listenerEntry
	logger zerolog.Logger
}

func newListenerSet(logger zerolog.Logger) *listenerSet {
	return &listenerSet{
		byType: make(map[EventType][]listenerEntry),
		logger: logger,
	}
}

func (s *listenerSet) add(t EventType, fn Listener) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	s.byType[t] = append(s.byType[t], listenerEntry{id: s.seq, fn: fn})
	return s.seq
}

func (s *listenerSet) remove(t EventType, id ListenerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byType[t] = slices.DeleteFunc(s.byType[t], func(e listenerEntry) bool { return e.id == id })
	if len(s.byType[t]) == 0 {
		delete(s.byType, t)
	}
}

func (s *listenerSet) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.byType)
}

// dispatch calls the listeners of ev.Type outside the lock, so a listener may
// add or remove listeners. A panicking listener is logged and skipped.
func (s *listenerSet) dispatch(ev Event) {
	s.mu.Lock()
	entries := slices.Clone(s.byType[ev.Type])
	s.mu.Unlock()

	for _, e := range entries {
		s.call(e, ev)
	}
}

func (s *listenerSet) call(e listenerEntry, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Err(fmt.Errorf("%v", r)).
				Str("event_type", string(ev.Type)).
				Uint64("listener_id", uint64(e.id)).
				Msg("Chat listener panicked")
		}
	}()
	e.fn(ev)
}
