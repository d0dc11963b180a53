package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Analytics timeframes. The server compares each window with the one before it.
const (
	TimeframeWeek  = "week"
	TimeframeMonth = "month"
	TimeframeYear  = "year"
)

// Analytics summarizes the current seller's activity over a timeframe.
// Trend fields are percent changes against the previous window of the same
// length; they are nil when the previous window had nothing to compare with.
type Analytics struct {
	Timeframe      string   `json:"timeframe"`
	TotalSales     string   `json:"totalSales"`
	ActiveListings int      `json:"activeListings"`
	TotalViews     int      `json:"totalViews"`
	TotalMessages  int      `json:"totalMessages"`
	SalesTrend     *float64 `json:"salesTrend"`
	ListingsTrend  *float64 `json:"listingsTrend"`
	ViewsTrend     *float64 `json:"viewsTrend"`
	MessagesTrend  *float64 `json:"messagesTrend"`
}

// Validate requires a known timeframe and non-negative counters.
func (a *Analytics) Validate() error {
	switch a.Timeframe {
	case TimeframeWeek, TimeframeMonth, TimeframeYear:
	default:
		return fmt.Errorf("unknown analytics timeframe %q", a.Timeframe)
	}
	if a.ActiveListings < 0 || a.TotalViews < 0 || a.TotalMessages < 0 {
		return errors.New("analytics counters must not be negative")
	}
	return nil
}

// ProductAnalytics is the engagement of one listing, visible to its seller.
type ProductAnalytics struct {
	ProductID     int64 `json:"product_id"`
	ViewsCount    int   `json:"views_count"`
	WishlistCount int   `json:"wishlist_count"`
	ChatRooms     int   `json:"chat_rooms"`
	MessagesCount int   `json:"messages_count"`
}

// Validate requires a product id and non-negative counters.
func (p *ProductAnalytics) Validate() error {
	if p.ProductID <= 0 {
		return errors.New("product analytics id is missing")
	}
	if p.ViewsCount < 0 || p.WishlistCount < 0 || p.ChatRooms < 0 || p.MessagesCount < 0 {
		return errors.New("product analytics counters must not be negative")
	}
	return nil
}

// UserStats counts the current user's marketplace activity.
type UserStats struct {
	TotalListings  int `json:"total_listings"`
	ActiveListings int `json:"active_listings"`
	WishlistCount  int `json:"wishlist_count"`
	ChatRooms      int `json:"chat_rooms"`
	UnreadMessages int `json:"unread_messages"`
}

// Validate requires consistent, non-negative counters.
func (s *UserStats) Validate() error {
	if s.TotalListings < 0 || s.ActiveListings < 0 || s.WishlistCount < 0 || s.ChatRooms < 0 || s.UnreadMessages < 0 {
		return errors.New("user stats counters must not be negative")
	}
	if s.ActiveListings > s.TotalListings {
		return errors.New("user stats report more active than total listings")
	}
	return nil
}

// Analytics returns the current seller's summary for timeframe. An empty
// timeframe selects TimeframeWeek.
func (c *Client) Analytics(ctx context.Context, timeframe string) (*Analytics, error) {
	if timeframe == "" {
		timeframe = TimeframeWeek
	}
	var out Analytics
	req := Request{Method: http.MethodGet, Path: "/products/analytics/", Query: url.Values{"timeframe": {timeframe}}}
	if err := c.Do(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ProductAnalytics returns the engagement of one of the current user's listings.
func (c *Client) ProductAnalytics(ctx context.Context, id int64) (*ProductAnalytics, error) {
	var out ProductAnalytics
	if err := c.Get(ctx, productPath(id)+"analytics/", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UserStats returns the current user's activity counters.
func (c *Client) UserStats(ctx context.Context) (*UserStats, error) {
	var out UserStats
	if err := c.Get(ctx, "/users/stats/", &out); err != nil {
		return nil, err
	}
	return &out, nil
}
