package market

import (
	"math"
	"strconv"
	"time"

	"localmart/internal/app/api"
	"localmart/internal/pkg/errs"
)

var timeframes = map[string]time.Duration{
	api.TimeframeWeek:  7 * 24 * time.Hour,
	api.TimeframeMonth: 30 * 24 * time.Hour,
	api.TimeframeYear:  365 * 24 * time.Hour,
}

// window is a half-open interval [from, to).
type window struct {
	from, to time.Time
}

func (w window) has(t time.Time) bool {
	return !t.Before(w.from) && t.Before(w.to)
}

// tally counts one metric in the current window and the one before it.
type tally struct {
	current, previous float64
}

func (t *tally) add(cur, prev window, at time.Time, v float64) {
	switch {
	case cur.has(at):
		t.current += v
	case prev.has(at):
		t.previous += v
	}
}

// trend is the percent change from previous to current, rounded to one place.
// It is nil when previous is zero.
func (t tally) trend() *float64 {
	if t.previous == 0 {
		return nil
	}
	v := math.Round((t.current-t.previous)/t.previous*1000) / 10
	return &v
}

// Analytics summarizes sellerID's listings over timeframe: sales (deactivated
// listings), new listings, views and received messages, each with its trend.
func (s *Store) Analytics(sellerID int64, timeframe string) (api.Analytics, *errs.CustomError) {
	if timeframe == "" {
		timeframe = api.TimeframeWeek
	}
	length, ok := timeframes[timeframe]
	if !ok {
		return api.Analytics{}, errs.NewError(errs.ErrValidation, "timeframe: Choose week, month or year.")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	// The current window includes the present instant.
	now := s.clock.Now().UTC().Add(time.Nanosecond)
	cur := window{from: now.Add(-length), to: now}
	prev := window{from: cur.from.Add(-length), to: cur.from}

	var sales, listings, views, messages tally
	active := 0
	for id, p := range s.products {
		if p.Seller != sellerID {
			continue
		}
		if p.IsActive {
			active++
		}
		listings.add(cur, prev, p.CreatedAt, 1)
		for _, at := range s.views[id] {
			views.add(cur, prev, at, 1)
		}
		if at, sold := s.soldAt[id]; sold {
			price, _ := strconv.ParseFloat(p.Price, 64)
			sales.add(cur, prev, at, price)
		}
	}
	for _, r := range s.rooms {
		if !r.has(sellerID) {
			continue
		}
		for _, m := range r.messages {
			if m.recipientID == sellerID {
				messages.add(cur, prev, m.createdAt, 1)
			}
		}
	}

	return api.Analytics{
		Timeframe:      timeframe,
		TotalSales:     strconv.FormatFloat(sales.current, 'f', 2, 64),
		ActiveListings: active,
		TotalViews:     int(views.current),
		TotalMessages:  int(messages.current),
		SalesTrend:     sales.trend(),
		ListingsTrend:  listings.trend(),
		ViewsTrend:     views.trend(),
		MessagesTrend:  messages.trend(),
	}, nil
}

// ProductAnalytics reports the engagement of a listing owned by sellerID.
func (s *Store) ProductAnalytics(sellerID, productID int64) (api.ProductAnalytics, *errs.CustomError) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, customErr := s.ownedProductLocked(sellerID, productID)
	if customErr != nil {
		return api.ProductAnalytics{}, customErr
	}

	out := api.ProductAnalytics{ProductID: p.ID, ViewsCount: p.ViewsCount}
	for _, items := range s.wishlists {
		if items[productID] {
			out.WishlistCount++
		}
	}
	for _, r := range s.rooms {
		if r.productID == productID {
			out.ChatRooms++
			out.MessagesCount += len(r.messages)
		}
	}
	return out, nil
}

// UserStats counts userID's listings, wishlist, rooms and unread messages.
func (s *Store) UserStats(userID int64) api.UserStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out api.UserStats
	for _, p := range s.products {
		if p.Seller != userID {
			continue
		}
		out.TotalListings++
		if p.IsActive {
			out.ActiveListings++
		}
	}
	for id := range s.wishlists[userID] {
		if _, ok := s.products[id]; ok {
			out.WishlistCount++
		}
	}
	for _, r := range s.rooms {
		if r.has(userID) {
			out.ChatRooms++
			out.UnreadMessages += unreadLocked(r, userID)
		}
	}
	return out
}
