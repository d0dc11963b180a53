package market

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"localmart/internal/app/api"
	"localmart/internal/app/user"
	"localmart/internal/pkg/errs"
)

// MaxMessageLength bounds the content of one chat message.
const MaxMessageLength = 5000

type room struct {
	id           int64
	productID    int64
	participants [2]int64
	messages     []*message
	createdAt    time.Time
	updatedAt    time.Time
}

type message struct {
	id          int64
	senderID    int64
	recipientID int64
	content     string
	isRead      bool
	createdAt   time.Time
}

func (r *room) has(userID int64) bool {
	return r.participants[0] == userID || r.participants[1] == userID
}

func (r *room) other(userID int64) int64 {
	if r.participants[0] == userID {
		return r.participants[1]
	}
	return r.participants[0]
}

// StoredMessage is a message as the chat hub broadcasts it.
type StoredMessage struct {
	ID          int64
	SenderID    int64
	SenderName  string
	RecipientID int64
	Content     string
	IsRead      bool
	CreatedAt   time.Time
}

// CreateOrGetRoom returns the room between userID and sellerID about productID,
// creating it on first use.
func (s *Store) CreateOrGetRoom(userID, productID, sellerID int64) (api.ChatRoom, *errs.CustomError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[productID]
	if !ok {
		return api.ChatRoom{}, errs.NewError(errs.ErrNotFound)
	}
	if p.Seller != sellerID {
		return api.ChatRoom{}, errs.NewError(errs.ErrValidation, "seller_id: Seller does not own this product.")
	}
	if sellerID == userID {
		return api.ChatRoom{}, errs.NewError(errs.ErrValidation, "seller_id: You cannot chat with yourself.")
	}

	for _, r := range s.rooms {
		if r.productID == productID && r.has(userID) && r.has(sellerID) {
			return s.roomViewLocked(r, userID), nil
		}
	}

	now := s.clock.Now().UTC()
	r := &room{
		id:           s.allocLocked("room"),
		productID:    productID,
		participants: [2]int64{userID, sellerID},
		createdAt:    now,
		updatedAt:    now,
	}
	s.rooms[r.id] = r

	return s.roomViewLocked(r, userID), nil
}

// Rooms returns userID's rooms, most recently active first.
func (s *Store) Rooms(userID int64) []api.ChatRoom {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var mine []*room
	for _, r := range s.rooms {
		if r.has(userID) {
			mine = append(mine, r)
		}
	}
	slices.SortFunc(mine, func(a, b *room) int {
		if c := b.updatedAt.Compare(a.updatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.id, a.id)
	})

	out := make([]api.ChatRoom, 0, len(mine))
	for _, r := range mine {
		out = append(out, s.roomViewLocked(r, userID))
	}
	return out
}

// IsParticipant reports whether userID takes part in roomID.
func (s *Store) IsParticipant(userID, roomID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[roomID]
	return ok && r.has(userID)
}

// Messages returns a room's messages, oldest first.
func (s *Store) Messages(userID, roomID int64) ([]api.Message, *errs.CustomError) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, customErr := s.memberRoomLocked(userID, roomID)
	if customErr != nil {
		return nil, customErr
	}

	out := make([]api.Message, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, s.messageViewLocked(m, userID))
	}
	return out, nil
}

// AddMessage stores a message from userID addressed to the other participant.
func (s *Store) AddMessage(userID, roomID int64, content string) (StoredMessage, *errs.CustomError) {
	content = strings.TrimSpace(content)
	if content == "" {
		return StoredMessage{}, errs.NewError(errs.ErrValidation, "content: This field may not be blank.")
	}
	if len(content) > MaxMessageLength {
		return StoredMessage{}, errs.NewError(errs.ErrValidation, "content: Ensure this field has no more than 5000 characters.")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r, customErr := s.memberRoomLocked(userID, roomID)
	if customErr != nil {
		return StoredMessage{}, customErr
	}

	now := s.clock.Now().UTC()
	m := &message{
		id:          s.allocLocked("message"),
		senderID:    userID,
		recipientID: r.other(userID),
		content:     content,
		createdAt:   now,
	}
	r.messages = append(r.messages, m)
	r.updatedAt = now

	return StoredMessage{
		ID:          m.id,
		SenderID:    m.senderID,
		SenderName:  s.usernameLocked(m.senderID),
		RecipientID: m.recipientID,
		Content:     m.content,
		CreatedAt:   m.createdAt,
	}, nil
}

// MessageView renders a stored message the way the REST API returns it to userID.
func (s *Store) MessageView(m StoredMessage, userID int64) api.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.messageViewLocked(&message{
		id:          m.ID,
		senderID:    m.SenderID,
		recipientID: m.RecipientID,
		content:     m.Content,
		isRead:      m.IsRead,
		createdAt:   m.CreatedAt,
	}, userID)
}

// MarkRead marks the messages addressed to userID as read and returns how many changed.
func (s *Store) MarkRead(userID, roomID int64) (int, *errs.CustomError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, customErr := s.memberRoomLocked(userID, roomID)
	if customErr != nil {
		return 0, customErr
	}

	changed := 0
	for _, m := range r.messages {
		if m.recipientID == userID && !m.isRead {
			m.isRead = true
			changed++
		}
	}
	return changed, nil
}

// UnreadCount returns the number of unread messages addressed to userID in roomID.
func (s *Store) UnreadCount(userID, roomID int64) (int, *errs.CustomError) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, customErr := s.memberRoomLocked(userID, roomID)
	if customErr != nil {
		return 0, customErr
	}
	return unreadLocked(r, userID), nil
}

func unreadLocked(r *room, userID int64) int {
	n := 0
	for _, m := range r.messages {
		if m.recipientID == userID && !m.isRead {
			n++
		}
	}
	return n
}

func (s *Store) memberRoomLocked(userID, roomID int64) (*room, *errs.CustomError) {
	r, ok := s.rooms[roomID]
	if !ok {
		return nil, errs.NewError(errs.ErrNotFound)
	}
	if !r.has(userID) {
		return nil, errs.NewError(errs.ErrForbidden)
	}
	return r, nil
}

func (s *Store) usernameLocked(id int64) string {
	if acc, ok := s.accounts[id]; ok {
		return acc.user.Username
	}
	return ""
}

func (s *Store) userRefLocked(id int64) *user.User {
	if acc, ok := s.accounts[id]; ok {
		u := acc.user
		return &u
	}
	return nil
}

func (s *Store) messageViewLocked(m *message, viewerID int64) api.Message {
	return api.Message{
		ID:           m.id,
		Sender:       s.userRefLocked(m.senderID),
		Content:      m.content,
		IsRead:       m.isRead,
		CreatedAt:    m.createdAt,
		IsOwnMessage: m.senderID == viewerID,
	}
}

func (s *Store) roomViewLocked(r *room, viewerID int64) api.ChatRoom {
	view := api.ChatRoom{
		ID:               r.id,
		UnreadCount:      unreadLocked(r, viewerID),
		OtherParticipant: s.userRefLocked(r.other(viewerID)),
		CreatedAt:        r.createdAt,
		UpdatedAt:        r.updatedAt,
	}
	for _, id := range r.participants {
		if u := s.userRefLocked(id); u != nil {
			view.Participants = append(view.Participants, *u)
		}
	}
	if p, ok := s.products[r.productID]; ok {
		product := cloneProduct(p)
		view.Product = &product
	}
	if n := len(r.messages); n > 0 {
		last := s.messageViewLocked(r.messages[n-1], viewerID)
		view.LastMessage = &last
	}
	return view
}
