package session

import (
	"slices"

	"localmart/internal/app/user"
)

// Status is the authentication status of a Session.
type Status int

const (
	Unauthenticated Status = iota
	Loading
	Authenticated
	Error
)

func (s Status) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Loading:
		return "loading"
	case Authenticated:
		return "authenticated"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// State is a snapshot of a Session.
type State struct {
	Status Status

	// Token and User are set together or not at all.
	Token string
	User  *user.User

	// Reason is the message of the last failed login. With Status Error it is the
	// error reason; with Status Authenticated it reports a failed re-login that left
	// the existing session in place.
	Reason string
}

// IsAuthenticated reports whether the state holds a usable session.
func (s State) IsAuthenticated() bool {
	return s.Status == Authenticated && s.Token != ""
}

func (s State) clone() State {
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

type subscriber struct {
	id int
	fn func(State)
}

// Subscribe registers fn to receive every state change, in subscription order.
// fn runs synchronously on the goroutine that changed the state; it may call State
// but must not call the Session's other methods. The returned function unsubscribes.
func (s *Session) Subscribe(fn func(State)) (cancel func()) {
	s.mu.Lock()
	id := s.subSeq
	s.subSeq++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		s.subs = slices.DeleteFunc(s.subs, func(sub subscriber) bool { return sub.id == id })
		s.mu.Unlock()
	}
}

// State returns the current snapshot. It never waits on network I/O.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// publish installs next and notifies subscribers. Callers hold commitMu, which keeps
// notifications in the order the states were installed.
func (s *Session) publish(next State) {
	s.mu.Lock()
	prev := s.state.Status
	s.state = next.clone()
	subs := slices.Clone(s.subs)
	s.mu.Unlock()

	if prev != next.Status {
		s.logger.Debug().
			Str("from", prev.String()).
			Str("to", next.Status.String()).
			Msg("Session status changed")
	}

	for _, sub := range subs {
		sub.fn(next.clone())
	}
}
