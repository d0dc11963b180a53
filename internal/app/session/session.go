/*
Package session owns the record of who is logged in to LocalMart.

A Session keeps the access token and the cached user in memory and in a credstore.Store,
and moves between the statuses Unauthenticated, Loading, Authenticated and Error.
Mutating operations (Bootstrap, Login, Register, Logout, ValidateToken, UpdateProfile)
are serialized: one runs at a time, and each one is in Loading until it finishes,
successfully or not.

The session registers with the API client's unauthorized hook. A 401 on any request
that carried the current token logs the user out, while a 401 for a token that has
since been replaced is ignored.
*/
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"localmart/internal/app/api"
	"localmart/internal/app/credstore"
	"localmart/internal/app/user"
	"localmart/internal/pkg/clock"
	"localmart/internal/pkg/errs"
	"localmart/internal/pkg/logx"

	"github.com/rs/zerolog"
)

// DefaultValidateInterval is how often RunValidator checks the token.
const DefaultValidateInterval = 5 * time.Minute

// AuthAPI is the part of the API client a Session drives.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*api.LoginResponse, error)
	Register(ctx context.Context, in api.RegisterRequest) (*api.RegisterResponse, error)
	Logout(ctx context.Context) error
	VerifyToken(ctx context.Context) (*api.VerifyTokenResponse, error)
	UpdateProfile(ctx context.Context, update user.ProfileUpdate) (*user.User, error)
	OnUnauthorized(fn func(token string)) (remove func())
}

// Config holds the collaborators and policy of a Session.
type Config struct {
	API   AuthAPI
	Store credstore.Store

	// Clock drives RunValidator. Defaults to clock.Real().
	Clock clock.Clock

	// ValidateInterval defaults to DefaultValidateInterval.
	ValidateInterval time.Duration

	// MinPasswordLength is enforced by Register. Zero disables the check.
	MinPasswordLength int

	// AutoLoginAfterRegister signs the new user in after a successful Register.
	AutoLoginAfterRegister bool
}

// Session is the authoritative record of the current login. It is safe for concurrent use.
type Session struct {
	api               AuthAPI
	store             credstore.Store
	clock             clock.Clock
	validateInterval  time.Duration
	minPasswordLength int
	autoLogin         bool
	logger            zerolog.Logger
	removeHook        func()

	// opMu serializes mutating operations.
	opMu sync.Mutex

	// commitMu makes a store write plus the state change that follows it one step,
	// and orders subscriber notifications. It is never held across an API call.
	commitMu sync.Mutex

	mu     sync.RWMutex
	state  State
	subs   []subscriber
	subSeq int
}

// New returns a Session in the Unauthenticated state. Call Bootstrap to restore a
// persisted login.
func New(cfg Config) (*Session, error) {
	if cfg.API == nil {
		return nil, errors.New("session: API is required")
	}
	if cfg.Store == nil {
		return nil, errors.New("session: Store is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.ValidateInterval <= 0 {
		cfg.ValidateInterval = DefaultValidateInterval
	}

	s := &Session{
		api:               cfg.API,
		store:             cfg.Store,
		clock:             cfg.Clock,
		validateInterval:  cfg.ValidateInterval,
		minPasswordLength: cfg.MinPasswordLength,
		autoLogin:         cfg.AutoLoginAfterRegister,
		logger:            logx.Component("session"),
		state:             State{Status: Unauthenticated},
	}
	s.removeHook = cfg.API.OnUnauthorized(s.handleUnauthorized)
	return s, nil
}

// Close detaches the Session from the API client's unauthorized hook.
func (s *Session) Close() {
	s.removeHook()
}

// run executes op under the single-writer lock with the status set to Loading.
// If op has not installed a final state when it returns (or panics), the status held
// before the operation is restored.
func (s *Session) run(name string, op func(prev State) error) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.commitMu.Lock()
	prev := s.State()
	loading := prev
	loading.Status = Loading
	s.publish(loading)
	s.commitMu.Unlock()

	defer func() {
		s.commitMu.Lock()
		defer s.commitMu.Unlock()
		if cur := s.State(); cur.Status == Loading {
			cur.Status = prev.Status
			s.publish(cur)
		}
	}()

	start := time.Now()
	err := op(prev)
	s.logger.Debug().
		Str("operation", name).
		Dur("latency", time.Since(start)).
		Bool("failed", err != nil).
		Msg("Session operation finished")
	return err
}

// Bootstrap restores the persisted login. A complete stored pair makes the session
// Authenticated without contacting the server; anything else leaves it Unauthenticated,
// and a half-stored pair is removed.
func (s *Session) Bootstrap(ctx context.Context) error {
	return s.run("bootstrap", func(prev State) error {
		creds, err := s.store.Load(ctx)

		s.commitMu.Lock()
		defer s.commitMu.Unlock()

		switch {
		case err == nil && creds.User.Validate() == nil:
			s.publish(State{Status: Authenticated, Token: creds.AccessToken, User: creds.User})
			return nil

		case errors.Is(err, credstore.ErrNoCredentials):
			s.publish(State{Status: Unauthenticated})
			return nil

		case err == nil, errors.Is(err, credstore.ErrIncomplete):
			s.logger.Warn().Msg("Discarding incomplete stored credentials")
			if clearErr := s.store.Clear(context.WithoutCancel(ctx)); clearErr != nil {
				s.logger.Error().Err(clearErr).Msg("Failed to clear incomplete credentials")
			}
			s.publish(State{Status: Unauthenticated})
			return nil

		default:
			s.logger.Error().Err(err).Msg("Failed to load stored credentials")
			s.publish(State{Status: Unauthenticated})
			return errs.Wrap(errs.ErrUnknown, err)
		}
	})
}

// Login exchanges credentials for a session and persists it. On failure the previous
// session, if any, stays in place and the failure reason is recorded in State.Reason.
func (s *Session) Login(ctx context.Context, identifier, secret string) error {
	email := strings.TrimSpace(identifier)
	if email == "" || secret == "" {
		return errs.NewLocalError(errs.ErrValidation, "Email and password are required.")
	}

	return s.run("login", func(prev State) error {
		return s.login(ctx, email, secret)
	})
}

// login runs inside an operation.
func (s *Session) login(ctx context.Context, email, password string) error {
	res, err := s.api.Login(ctx, email, password)
	if err != nil {
		if !api.IsCanceled(err) {
			s.recordFailure(err)
		}
		return err
	}

	if err := s.establish(ctx, res.AccessToken, res.User); err != nil {
		s.recordFailure(err)
		return err
	}

	s.logger.Info().Int64("user_id", res.User.ID).Msg("Logged in")
	return nil
}

// establish persists and installs a new session.
func (s *Session) establish(ctx context.Context, token string, u *user.User) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	creds := credstore.Credentials{AccessToken: token, User: u}
	if err := s.store.Save(context.WithoutCancel(ctx), creds); err != nil {
		s.logger.Error().Err(err).Msg("Failed to persist credentials")
		return errs.Wrap(errs.ErrUnknown, err)
	}
	s.publish(State{Status: Authenticated, Token: token, User: u})
	return nil
}

// recordFailure keeps the current session, if any, and records err as the reason.
func (s *Session) recordFailure(err error) {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	cur := s.State()
	if cur.Token != "" {
		cur.Status = Authenticated
	} else {
		cur.Status = Error
	}
	cur.Reason = errs.Message(err)
	s.publish(cur)
}

// RegisterInput holds the fields of a new account.
type RegisterInput struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	PhoneNumber string
	Location    string
}

// Register creates an account. It does not sign the user in unless the Session was
// configured with AutoLoginAfterRegister.
func (s *Session) Register(ctx context.Context, in RegisterInput) (*user.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || in.Password == "" {
		return nil, errs.NewLocalError(errs.ErrValidation, "Email and password are required.")
	}
	if s.minPasswordLength > 0 && utf8.RuneCountInString(in.Password) < s.minPasswordLength {
		msg := fmt.Sprintf("Password must be at least %d characters.", s.minPasswordLength)
		return nil, errs.NewLocalError(errs.ErrValidation, msg)
	}

	var created *user.User
	err := s.run("register", func(prev State) error {
		res, err := s.api.Register(ctx, api.RegisterRequest{
			Email:       in.Email,
			Password:    in.Password,
			FirstName:   in.FirstName,
			LastName:    in.LastName,
			PhoneNumber: in.PhoneNumber,
			Location:    in.Location,
		})
		if err != nil {
			return err
		}
		created = res.User
		s.logger.Info().Int64("user_id", created.ID).Msg("Registered account")

		if !s.autoLogin {
			return nil
		}
		if res.AccessToken != "" {
			return s.establish(ctx, res.AccessToken, res.User)
		}
		return s.login(ctx, in.Email, in.Password)
	})
	if err != nil && created == nil {
		return nil, err
	}
	return created, err
}

// Logout ends the session. The server is told on a best-effort basis; the local
// credentials are cleared and the status becomes Unauthenticated regardless. The
// returned error reports only a failure to clear local storage.
func (s *Session) Logout(ctx context.Context) error {
	return s.run("logout", func(prev State) error {
		if prev.Token != "" {
			if err := s.api.Logout(ctx); err != nil {
				s.logger.Warn().Err(err).Msg("Remote logout failed, clearing local session anyway")
			}
		}

		s.commitMu.Lock()
		defer s.commitMu.Unlock()
		return s.clearLocked(ctx)
	})
}

// clearLocked removes the persisted pair and installs Unauthenticated even if the
// store fails. Callers hold commitMu.
func (s *Session) clearLocked(ctx context.Context) error {
	err := s.store.Clear(context.WithoutCancel(ctx))
	s.publish(State{Status: Unauthenticated})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to clear stored credentials")
		return errs.Wrap(errs.ErrUnknown, err)
	}
	return nil
}

// clearIfCurrent logs out if token is still the session's token.
func (s *Session) clearIfCurrent(ctx context.Context, token string) bool {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()

	if token == "" || s.State().Token != token {
		return false
	}
	_ = s.clearLocked(ctx)
	return true
}

func (s *Session) handleUnauthorized(token string) {
	if s.clearIfCurrent(context.Background(), token) {
		s.logger.Info().Msg("Access token rejected by server, session cleared")
	}
}

// ValidateToken asks the server whether the current token is still accepted. Any
// non-2xx answer logs the user out. Failures that never reached the server (network,
// cancellation) leave the session in place and are returned.
func (s *Session) ValidateToken(ctx context.Context) error {
	return s.run("validate_token", func(prev State) error {
		if prev.Token == "" {
			return nil
		}

		_, err := s.api.VerifyToken(ctx)
		if err == nil {
			return nil
		}

		customErr, ok := errs.As(err)
		if !ok || customErr.Status == 0 {
			s.logger.Warn().Err(err).Msg("Token validation did not reach the server")
			return err
		}

		if s.clearIfCurrent(ctx, prev.Token) {
			s.logger.Info().Int("status", customErr.Status).Msg("Token rejected, logged out")
		}
		return err
	})
}

// UpdateProfile applies a partial profile change. On success the returned record
// replaces the cached user in storage and in memory; on failure the cached user is kept.
func (s *Session) UpdateProfile(ctx context.Context, update user.ProfileUpdate) (*user.User, error) {
	if update.IsEmpty() {
		return nil, errs.NewLocalError(errs.ErrValidation, "Nothing to update.")
	}

	var updated *user.User
	err := s.run("update_profile", func(prev State) error {
		if !prev.IsAuthenticated() {
			return errs.NewLocalError(errs.ErrNotAuthenticated)
		}

		u, err := s.api.UpdateProfile(ctx, update)
		if err != nil {
			return err
		}

		s.commitMu.Lock()
		defer s.commitMu.Unlock()

		cur := s.State()
		if cur.Token != prev.Token {
			return errs.NewLocalError(errs.ErrNotAuthenticated)
		}

		creds := credstore.Credentials{AccessToken: cur.Token, User: u}
		if err := s.store.Save(context.WithoutCancel(ctx), creds); err != nil {
			s.logger.Error().Err(err).Msg("Failed to persist updated profile")
			return errs.Wrap(errs.ErrUnknown, err)
		}

		cur.Status = Authenticated
		cur.User = u
		s.publish(cur)
		updated = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
