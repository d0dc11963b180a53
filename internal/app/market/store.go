/*
Package market is the in-memory data layer of the LocalMart dev API server.

It keeps accounts (with bcrypt password hashes), listings, categories, wishlists,
chat rooms and messages, plus the deny-list of access tokens revoked by logout.
Every method is safe for concurrent use; handlers and the chat hub share one Store.
*/
package market

import (
	"net/mail"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"localmart/internal/app/api"
	"localmart/internal/app/user"
	"localmart/internal/pkg/clock"
	"localmart/internal/pkg/errs"
	"localmart/internal/pkg/logx"
)

// MinPasswordLength is the shortest password the server accepts.
const MinPasswordLength = 8

type account struct {
	user user.User
	hash []byte
}

// Store holds the whole marketplace in memory.
type Store struct {
	clock clock.Clock

	mu         sync.RWMutex
	nextID     map[string]int64
	accounts   map[int64]*account
	emails     map[string]int64
	products   map[int64]*api.Product
	categories []api.Category
	wishlists  map[int64]map[int64]bool
	rooms      map[int64]*room
	revoked    map[string]time.Time

	// views holds the time of every counted product view; soldAt the time a
	// listing was deactivated.
	views  map[int64][]time.Time
	soldAt map[int64]time.Time
}

// NewStore returns an empty Store seeded with the default categories.
func NewStore(c clock.Clock) *Store {
	if c == nil {
		c = clock.Real()
	}
	s := &Store{
		clock:     c,
		nextID:    make(map[string]int64),
		accounts:  make(map[int64]*account),
		emails:    make(map[string]int64),
		products:  make(map[int64]*api.Product),
		wishlists: make(map[int64]map[int64]bool),
		rooms:     make(map[int64]*room),
		revoked:   make(map[string]time.Time),
		views:     make(map[int64][]time.Time),
		soldAt:    make(map[int64]time.Time),
	}
	for _, name := range []string{"Produce", "Bakery", "Dairy", "Crafts", "Household"} {
		s.categories = append(s.categories, api.Category{ID: s.allocLocked("category"), Name: name})
	}
	return s
}

func (s *Store) allocLocked(kind string) int64 {
	s.nextID[kind]++
	return s.nextID[kind]
}

// Register creates an account. The username defaults to the email's local part.
func (s *Store) Register(in api.RegisterRequest) (user.User, *errs.CustomError) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return user.User{}, errs.NewError(errs.ErrValidation, "email: Enter a valid email address.")
	}
	if len(in.Password) < MinPasswordLength {
		return user.User{}, errs.NewError(errs.ErrValidation, "password: This password is too short.")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return user.User{}, errs.NewError(errs.ErrUnknown, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.emails[email]; taken {
		logx.Warn("registration conflict: email already exists", "email", email)
		return user.User{}, errs.NewError(errs.ErrUserAlreadyExists)
	}

	u := user.User{
		ID:        s.allocLocked("user"),
		Username:  email[:strings.IndexByte(email, '@')],
		Email:     email,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Phone:     strings.TrimSpace(in.PhoneNumber),
		Address:   strings.TrimSpace(in.Location),
	}
	s.accounts[u.ID] = &account{user: u, hash: hash}
	s.emails[email] = u.ID

	return u, nil
}

// Authenticate checks an email and password pair.
func (s *Store) Authenticate(email, password string) (user.User, *errs.CustomError) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mu.RLock()
	acc, ok := s.accountByEmailLocked(email)
	s.mu.RUnlock()

	if !ok {
		logx.Warn("login: unknown email", "email", email)
		return user.User{}, errs.NewError(errs.ErrInvalidCredentials)
	}
	if err := bcrypt.CompareHashAndPassword(acc.hash, []byte(password)); err != nil {
		logx.Warn("login: password mismatch", "user_id", acc.user.ID)
		return user.User{}, errs.NewError(errs.ErrInvalidCredentials)
	}
	return acc.user, nil
}

func (s *Store) accountByEmailLocked(email string) (account, bool) {
	id, ok := s.emails[email]
	if !ok {
		return account{}, false
	}
	return *s.accounts[id], true
}

// User returns the account with id.
func (s *Store) User(id int64) (user.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[id]
	if !ok {
		return user.User{}, false
	}
	return acc.user, true
}

// UpdateProfile applies the given profile fields. imagePath replaces the profile
// picture when non-empty. Unknown field names are ignored.
func (s *Store) UpdateProfile(id int64, fields map[string]string, imagePath string) (user.User, *errs.CustomError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, ok := s.accounts[id]
	if !ok {
		return user.User{}, errs.NewError(errs.ErrNotFound)
	}

	u := acc.user
	for key, value := range fields {
		value = strings.TrimSpace(value)
		switch key {
		case "username":
			if value == "" {
				return user.User{}, errs.NewError(errs.ErrValidation, "username: This field may not be blank.")
			}
			u.Username = value
		case "first_name":
			u.FirstName = value
		case "last_name":
			u.LastName = value
		case "phone":
			u.Phone = value
		case "address":
			u.Address = value
		}
	}
	if imagePath != "" {
		u.ProfileImage = imagePath
	}

	acc.user = u
	return u, nil
}

// Revoke puts a token id on the deny-list until expiresAt and drops entries that
// have already expired.
func (s *Store) Revoke(tokenID string, expiresAt time.Time) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, id)
		}
	}
	s.revoked[tokenID] = expiresAt
}

// IsRevoked reports whether tokenID was revoked by logout.
func (s *Store) IsRevoked(tokenID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.revoked[tokenID]
	return ok
}
