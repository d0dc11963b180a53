package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localmart/internal/app/api"
	"localmart/internal/app/user"
	"localmart/internal/pkg/clock"
	"localmart/internal/pkg/errs"
)

func newTestStore(t *testing.T) (*Store, *clock.FakeClock) {
	t.Helper()
	fc := clock.Fake(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	return NewStore(fc), fc
}

func register(t *testing.T, s *Store, email string) user.User {
	t.Helper()
	u, customErr := s.Register(api.RegisterRequest{Email: email, Password: "secret123", FirstName: "Test"})
	require.Nil(t, customErr)
	return u
}

func TestRegisterAndAuthenticate(t *testing.T) {
	s, _ := newTestStore(t)

	u := register(t, s, "Ann@Example.com")
	assert.Equal(t, "ann@example.com", u.Email)
	assert.Equal(t, "ann", u.Username)
	assert.Positive(t, u.ID)

	_, customErr := s.Register(api.RegisterRequest{Email: "ann@example.com", Password: "secret123"})
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrUserAlreadyExists, customErr.Code)

	got, customErr := s.Authenticate("ANN@example.com", "secret123")
	require.Nil(t, customErr)
	assert.Equal(t, u.ID, got.ID)

	_, customErr = s.Authenticate("ann@example.com", "wrong-password")
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrInvalidCredentials, customErr.Code)

	_, customErr = s.Authenticate("nobody@example.com", "secret123")
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrInvalidCredentials, customErr.Code)
}

func TestRegisterValidation(t *testing.T) {
	s, _ := newTestStore(t)

	_, customErr := s.Register(api.RegisterRequest{Email: "not-an-email", Password: "secret123"})
	require.NotNil(t, customErr)
	assert.Equal(t, "email: Enter a valid email address.", customErr.Message)

	_, customErr = s.Register(api.RegisterRequest{Email: "a@b.com", Password: "short"})
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrValidation, customErr.Code)
}

func TestUpdateProfile(t *testing.T) {
	s, _ := newTestStore(t)
	u := register(t, s, "ann@example.com")

	updated, customErr := s.UpdateProfile(u.ID, map[string]string{"first_name": "Annie", "phone": "555"}, "/media/profiles/a.png")
	require.Nil(t, customErr)
	assert.Equal(t, "Annie", updated.FirstName)
	assert.Equal(t, "555", updated.Phone)
	assert.Equal(t, "/media/profiles/a.png", updated.ProfileImage)

	stored, ok := s.User(u.ID)
	require.True(t, ok)
	assert.Equal(t, updated, stored)

	_, customErr = s.UpdateProfile(u.ID, map[string]string{"username": " "}, "")
	require.NotNil(t, customErr)

	_, customErr = s.UpdateProfile(999, nil, "")
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrNotFound, customErr.Code)
}

func TestRevocation(t *testing.T) {
	s, fc := newTestStore(t)

	s.Revoke("t1", fc.Now().Add(time.Hour))
	assert.True(t, s.IsRevoked("t1"))
	assert.False(t, s.IsRevoked("t2"))

	fc.Advance(2 * time.Hour)
	s.Revoke("t2", fc.Now().Add(time.Hour))
	assert.False(t, s.IsRevoked("t1"), "expired entries are swept")
	assert.True(t, s.IsRevoked("t2"))
}

func TestProductLifecycle(t *testing.T) {
	s, _ := newTestStore(t)
	seller := register(t, s, "seller@example.com")
	other := register(t, s, "other@example.com")

	category := s.Categories()[0].ID
	p, customErr := s.CreateProduct(seller.ID, api.ProductInput{
		Title: "Sourdough", Price: "4.5", Condition: api.ConditionNew, Category: &category, Location: "Leeds",
	})
	require.Nil(t, customErr)
	assert.Equal(t, "4.50", p.Price)
	assert.Equal(t, 1, p.Quantity)
	assert.Equal(t, "seller", p.SellerName)

	u, _ := s.User(seller.ID)
	assert.True(t, u.IsSeller)

	_, customErr = s.CreateProduct(seller.ID, api.ProductInput{Title: "Bad", Price: "abc"})
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrValidation, customErr.Code)

	_, customErr = s.UpdateProduct(other.ID, p.ID, api.ProductInput{Title: "Mine now", Price: "1"})
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrForbidden, customErr.Code)

	p, customErr = s.UpdateProduct(seller.ID, p.ID, api.ProductInput{Title: "Rye", Price: "5", Location: "York"})
	require.Nil(t, customErr)
	assert.Equal(t, "Rye", p.Title)

	img, customErr := s.AddProductImage(seller.ID, p.ID, "/media/products/rye.jpg", false)
	require.Nil(t, customErr)
	assert.True(t, img.IsPrimary, "first image becomes primary")

	liked, customErr := s.ToggleWishlist(other.ID, p.ID)
	require.Nil(t, customErr)
	assert.True(t, liked)
	assert.Len(t, s.Wishlist(other.ID), 1)

	require.Nil(t, s.DeleteProduct(seller.ID, p.ID))
	assert.Empty(t, s.Wishlist(other.ID))

	_, ok := s.ViewProduct(other.ID, p.ID)
	assert.False(t, ok)
}

func TestProductFilters(t *testing.T) {
	s, _ := newTestStore(t)
	seller := register(t, s, "seller@example.com")

	for _, in := range []api.ProductInput{
		{Title: "Apples", Price: "2", Location: "Leeds"},
		{Title: "Honey", Description: "raw apple blossom", Price: "8", Location: "York"},
		{Title: "Candles", Price: "12", Location: "Leeds"},
	} {
		_, customErr := s.CreateProduct(seller.ID, in)
		require.Nil(t, customErr)
	}

	titles := func(filter api.ProductFilter) []string {
		products, customErr := s.Products(filter)
		require.Nil(t, customErr)
		var out []string
		for _, p := range products {
			out = append(out, p.Title)
		}
		return out
	}

	assert.Equal(t, []string{"Candles", "Honey", "Apples"}, titles(api.ProductFilter{}))
	assert.Equal(t, []string{"Honey", "Apples"}, titles(api.ProductFilter{Search: "apple"}))
	assert.Equal(t, []string{"Candles", "Apples"}, titles(api.ProductFilter{Location: "leeds"}))
	assert.Equal(t, []string{"Honey"}, titles(api.ProductFilter{MinPrice: "5", MaxPrice: "10"}))

	_, customErr := s.Products(api.ProductFilter{MinPrice: "cheap"})
	require.NotNil(t, customErr)
}

func TestChatRooms(t *testing.T) {
	s, fc := newTestStore(t)
	seller := register(t, s, "seller@example.com")
	buyer := register(t, s, "buyer@example.com")
	stranger := register(t, s, "stranger@example.com")

	p, customErr := s.CreateProduct(seller.ID, api.ProductInput{Title: "Eggs", Price: "3"})
	require.Nil(t, customErr)

	room, customErr := s.CreateOrGetRoom(buyer.ID, p.ID, seller.ID)
	require.Nil(t, customErr)
	again, customErr := s.CreateOrGetRoom(buyer.ID, p.ID, seller.ID)
	require.Nil(t, customErr)
	assert.Equal(t, room.ID, again.ID)
	assert.Equal(t, seller.ID, room.OtherParticipant.ID)

	_, customErr = s.CreateOrGetRoom(seller.ID, p.ID, seller.ID)
	require.NotNil(t, customErr)

	fc.Advance(time.Minute)
	msg, customErr := s.AddMessage(buyer.ID, room.ID, "Still available?")
	require.Nil(t, customErr)
	assert.Equal(t, seller.ID, msg.RecipientID)
	assert.Equal(t, "buyer", msg.SenderName)

	_, customErr = s.AddMessage(stranger.ID, room.ID, "hi")
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrForbidden, customErr.Code)

	_, customErr = s.AddMessage(buyer.ID, room.ID, "   ")
	require.NotNil(t, customErr)

	count, customErr := s.UnreadCount(seller.ID, room.ID)
	require.Nil(t, customErr)
	assert.Equal(t, 1, count)

	rooms := s.Rooms(seller.ID)
	require.Len(t, rooms, 1)
	assert.Equal(t, 1, rooms[0].UnreadCount)
	require.NotNil(t, rooms[0].LastMessage)
	assert.Equal(t, "Still available?", rooms[0].LastMessage.Content)

	changed, customErr := s.MarkRead(seller.ID, room.ID)
	require.Nil(t, customErr)
	assert.Equal(t, 1, changed)

	messages, customErr := s.Messages(buyer.ID, room.ID)
	require.Nil(t, customErr)
	require.Len(t, messages, 1)
	assert.True(t, messages[0].IsRead)
	assert.True(t, messages[0].IsOwnMessage)

	assert.True(t, s.IsParticipant(seller.ID, room.ID))
	assert.False(t, s.IsParticipant(stranger.ID, room.ID))
}
