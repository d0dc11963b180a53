package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Product is a marketplace listing.
type Product struct {
	ID          int64          `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Price       string         `json:"price"`
	Condition   string         `json:"condition"`
	Quantity    int            `json:"quantity"`
	Category    *int64         `json:"category,omitempty"`
	ExpiryDate  *time.Time     `json:"expiry_date,omitempty"`
	IsUrgent    bool           `json:"is_urgent"`
	IsActive    bool           `json:"is_active"`
	ViewsCount  int            `json:"views_count"`
	Location    string         `json:"location"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Seller      int64          `json:"seller"`
	SellerName  string         `json:"seller_name"`
	Images      []ProductImage `json:"images"`
}

// Validate requires an id and a title.
func (p *Product) Validate() error {
	if p.ID <= 0 {
		return errors.New("product id is missing")
	}
	if p.Title == "" {
		return errors.New("product title is missing")
	}
	return nil
}

// ProductImage is one picture of a listing.
type ProductImage struct {
	ID        int64  `json:"id"`
	Image     string `json:"image"`
	IsPrimary bool   `json:"is_primary"`
}

// Product conditions accepted by the API.
const (
	ConditionNew     = "new"
	ConditionLikeNew = "like_new"
	ConditionGood    = "good"
	ConditionFair    = "fair"
)

// ProductInput is the body of create and update. A nil IsActive keeps the
// listing's current state; new listings start active.
type ProductInput struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Price       string     `json:"price"`
	Condition   string     `json:"condition"`
	Quantity    int        `json:"quantity,omitempty"`
	Category    *int64     `json:"category,omitempty"`
	ExpiryDate  *time.Time `json:"expiry_date,omitempty"`
	IsUrgent    bool       `json:"is_urgent"`
	IsActive    *bool      `json:"is_active,omitempty"`
	Location    string     `json:"location"`
}

// ProductFilter narrows a product listing. Zero fields are not sent.
type ProductFilter struct {
	Search   string
	Location string
	MinPrice string
	MaxPrice string
	Category int64
}

// Query encodes the filter as URL query parameters.
func (f ProductFilter) Query() url.Values {
	q := url.Values{}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Location != "" {
		q.Set("location", f.Location)
	}
	if f.MinPrice != "" {
		q.Set("min_price", f.MinPrice)
	}
	if f.MaxPrice != "" {
		q.Set("max_price", f.MaxPrice)
	}
	if f.Category != 0 {
		q.Set("category", strconv.FormatInt(f.Category, 10))
	}
	return q
}

// Category groups listings.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parent      *int64 `json:"parent,omitempty"`
}

// WishlistToggle reports the wishlist membership after a toggle.
type WishlistToggle struct {
	IsWishlisted bool `json:"is_wishlisted"`
}

func productPath(id int64) string {
	return fmt.Sprintf("/products/%d/", id)
}

// ListProducts returns the listings matching filter.
func (c *Client) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	var out []Product
	err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/products/", Query: filter.Query()}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetProduct returns one listing.
func (c *Client) GetProduct(ctx context.Context, id int64) (*Product, error) {
	var out Product
	if err := c.Get(ctx, productPath(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateProduct publishes a listing owned by the current user.
func (c *Client) CreateProduct(ctx context.Context, in ProductInput) (*Product, error) {
	var out Product
	if err := c.Post(ctx, "/products/", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProduct replaces a listing's editable fields.
func (c *Client) UpdateProduct(ctx context.Context, id int64, in ProductInput) (*Product, error) {
	var out Product
	if err := c.Put(ctx, productPath(id), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteProduct removes a listing.
func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	return c.Delete(ctx, productPath(id), nil)
}

// MyProducts returns the current user's listings.
func (c *Client) MyProducts(ctx context.Context) ([]Product, error) {
	var out []Product
	if err := c.Get(ctx, "/products/my/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ToggleWishlist adds or removes a listing from the current user's wishlist.
func (c *Client) ToggleWishlist(ctx context.Context, id int64) (*WishlistToggle, error) {
	var out WishlistToggle
	if err := c.Post(ctx, productPath(id)+"wishlist/toggle/", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Wishlist returns the listings on the current user's wishlist.
func (c *Client) Wishlist(ctx context.Context) ([]Product, error) {
	var out []Product
	if err := c.Get(ctx, "/wishlist/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadProductImage attaches a picture to a listing.
func (c *Client) UploadProductImage(ctx context.Context, id int64, filename string, content io.Reader, primary bool) (*ProductImage, error) {
	var out ProductImage
	form := &Multipart{
		Fields: map[string]string{"is_primary": strconv.FormatBool(primary)},
		Files:  []File{{Field: "image", Filename: filename, Content: content}},
	}
	if err := c.PostMultipart(ctx, productPath(id)+"upload_image/", form, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListCategories returns every category.
func (c *Client) ListCategories(ctx context.Context) ([]Category, error) {
	var out []Category
	if err := c.Get(ctx, "/categories/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CategoryProducts returns the listings of one category, narrowed by filter.
func (c *Client) CategoryProducts(ctx context.Context, categoryID int64, filter ProductFilter) ([]Product, error) {
	var out []Product
	path := fmt.Sprintf("/categories/%d/products/", categoryID)
	if err := c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: filter.Query()}, &out); err != nil {
		return nil, err
	}
	return out, nil
}
