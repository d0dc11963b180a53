package api

import (
	"context"
	"fmt"

	"localmart/internal/app/user"
)

// SellerProfile returns the public profile of a seller.
func (c *Client) SellerProfile(ctx context.Context, sellerID int64) (*user.User, error) {
	var out user.User
	if err := c.Get(ctx, fmt.Sprintf("/users/%d/", sellerID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SellerProducts returns a seller's active listings.
func (c *Client) SellerProducts(ctx context.Context, sellerID int64) ([]Product, error) {
	var out []Product
	if err := c.Get(ctx, fmt.Sprintf("/users/%d/products/", sellerID), &out); err != nil {
		return nil, err
	}
	return out, nil
}
