package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localmart/internal/app/api"
	"localmart/internal/pkg/errs"
)

func TestAnalytics(t *testing.T) {
	s, fc := newTestStore(t)
	seller := register(t, s, "seller@example.com")
	buyer := register(t, s, "buyer@example.com")

	_, customErr := s.CreateProduct(seller.ID, api.ProductInput{Title: "Jam", Price: "3"})
	require.Nil(t, customErr)

	fc.Advance(8 * 24 * time.Hour)
	bread, customErr := s.CreateProduct(seller.ID, api.ProductInput{Title: "Bread", Price: "4"})
	require.Nil(t, customErr)
	candles, customErr := s.CreateProduct(seller.ID, api.ProductInput{Title: "Candles", Price: "10"})
	require.Nil(t, customErr)

	s.ViewProduct(buyer.ID, bread.ID)
	s.ViewProduct(buyer.ID, bread.ID)
	s.ViewProduct(seller.ID, bread.ID)
	s.ViewProduct(0, candles.ID)

	inactive := false
	candles, customErr = s.UpdateProduct(seller.ID, candles.ID, api.ProductInput{Title: "Candles", Price: "10", IsActive: &inactive})
	require.Nil(t, customErr)
	assert.False(t, candles.IsActive)

	room, customErr := s.CreateOrGetRoom(buyer.ID, bread.ID, seller.ID)
	require.Nil(t, customErr)
	for _, from := range []int64{buyer.ID, buyer.ID, seller.ID} {
		_, customErr = s.AddMessage(from, room.ID, "hello")
		require.Nil(t, customErr)
	}
	_, customErr = s.ToggleWishlist(buyer.ID, bread.ID)
	require.Nil(t, customErr)

	summary, customErr := s.Analytics(seller.ID, "")
	require.Nil(t, customErr)
	assert.Equal(t, api.TimeframeWeek, summary.Timeframe)
	assert.Equal(t, "10.00", summary.TotalSales)
	assert.Equal(t, 2, summary.ActiveListings)
	assert.Equal(t, 3, summary.TotalViews)
	assert.Equal(t, 2, summary.TotalMessages)
	require.NotNil(t, summary.ListingsTrend)
	assert.InDelta(t, 100.0, *summary.ListingsTrend, 0.001)
	assert.Nil(t, summary.SalesTrend)
	assert.Nil(t, summary.ViewsTrend)

	month, customErr := s.Analytics(seller.ID, api.TimeframeMonth)
	require.Nil(t, customErr)
	assert.Nil(t, month.ListingsTrend, "all listings fall in the current month")

	_, customErr = s.Analytics(seller.ID, "decade")
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrValidation, customErr.Code)

	product, customErr := s.ProductAnalytics(seller.ID, bread.ID)
	require.Nil(t, customErr)
	assert.Equal(t, api.ProductAnalytics{ProductID: bread.ID, ViewsCount: 2, WishlistCount: 1, ChatRooms: 1, MessagesCount: 3}, product)

	_, customErr = s.ProductAnalytics(buyer.ID, bread.ID)
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrForbidden, customErr.Code)

	assert.Equal(t, api.UserStats{TotalListings: 3, ActiveListings: 2, ChatRooms: 1, UnreadMessages: 2}, s.UserStats(seller.ID))
	assert.Equal(t, api.UserStats{WishlistCount: 1, ChatRooms: 1, UnreadMessages: 1}, s.UserStats(buyer.ID))

	active := true
	_, customErr = s.UpdateProduct(seller.ID, candles.ID, api.ProductInput{Title: "Candles", Price: "10", IsActive: &active})
	require.Nil(t, customErr)
	summary, customErr = s.Analytics(seller.ID, api.TimeframeWeek)
	require.Nil(t, customErr)
	assert.Equal(t, "0.00", summary.TotalSales, "reactivating withdraws the sale")
}

func TestInactiveListingsAreHiddenFromBuyers(t *testing.T) {
	s, _ := newTestStore(t)
	seller := register(t, s, "seller@example.com")

	inactive := false
	_, customErr := s.CreateProduct(seller.ID, api.ProductInput{Title: "Shown", Price: "1"})
	require.Nil(t, customErr)
	hidden, customErr := s.CreateProduct(seller.ID, api.ProductInput{Title: "Hidden", Price: "1"})
	require.Nil(t, customErr)
	_, customErr = s.UpdateProduct(seller.ID, hidden.ID, api.ProductInput{Title: "Hidden", Price: "1", IsActive: &inactive})
	require.Nil(t, customErr)

	public, customErr := s.Products(api.ProductFilter{})
	require.Nil(t, customErr)
	assert.Len(t, public, 1)
	assert.Len(t, s.SellerProducts(seller.ID), 1)
	assert.Len(t, s.MyProducts(seller.ID), 2)
}

func TestTrendRounding(t *testing.T) {
	assert.Nil(t, tally{current: 4}.trend())

	v := tally{current: 2, previous: 3}.trend()
	require.NotNil(t, v)
	assert.InDelta(t, -33.3, *v, 0.001)
}
