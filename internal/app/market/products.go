package market

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"localmart/internal/app/api"
	"localmart/internal/pkg/errs"
)

var conditions = map[string]bool{
	api.ConditionNew:     true,
	api.ConditionLikeNew: true,
	api.ConditionGood:    true,
	api.ConditionFair:    true,
}

// normalizePrice validates a decimal price and renders it with two places.
func normalizePrice(raw string) (string, float64, *errs.CustomError) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || v < 0 {
		return "", 0, errs.NewError(errs.ErrValidation, "price: A valid non-negative number is required.")
	}
	return strconv.FormatFloat(v, 'f', 2, 64), v, nil
}

func (s *Store) validateProductLocked(in api.ProductInput) (string, *errs.CustomError) {
	if strings.TrimSpace(in.Title) == "" {
		return "", errs.NewError(errs.ErrValidation, "title: This field may not be blank.")
	}
	price, _, customErr := normalizePrice(in.Price)
	if customErr != nil {
		return "", customErr
	}
	if in.Condition != "" && !conditions[in.Condition] {
		return "", errs.NewError(errs.ErrValidation, fmt.Sprintf("condition: %q is not a valid choice.", in.Condition))
	}
	if in.Quantity < 0 {
		return "", errs.NewError(errs.ErrValidation, "quantity: Ensure this value is greater than or equal to 0.")
	}
	if in.Category != nil && !s.hasCategoryLocked(*in.Category) {
		return "", errs.NewError(errs.ErrValidation, "category: Invalid pk - object does not exist.")
	}
	return price, nil
}

func (s *Store) hasCategoryLocked(id int64) bool {
	return slices.ContainsFunc(s.categories, func(c api.Category) bool { return c.ID == id })
}

func applyInput(p *api.Product, in api.ProductInput, price string) {
	p.Title = strings.TrimSpace(in.Title)
	p.Description = in.Description
	p.Price = price
	p.Condition = cmp.Or(in.Condition, api.ConditionGood)
	p.Quantity = max(in.Quantity, 1)
	p.Category = in.Category
	p.ExpiryDate = in.ExpiryDate
	p.IsUrgent = in.IsUrgent
	if in.IsActive != nil {
		p.IsActive = *in.IsActive
	}
	p.Location = strings.TrimSpace(in.Location)
}

// CreateProduct publishes a listing owned by sellerID.
func (s *Store) CreateProduct(sellerID int64, in api.ProductInput) (api.Product, *errs.CustomError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seller, ok := s.accounts[sellerID]
	if !ok {
		return api.Product{}, errs.NewError(errs.ErrUnauthorized)
	}
	price, customErr := s.validateProductLocked(in)
	if customErr != nil {
		return api.Product{}, customErr
	}

	now := s.clock.Now().UTC()
	p := &api.Product{
		ID:         s.allocLocked("product"),
		CreatedAt:  now,
		UpdatedAt:  now,
		Seller:     sellerID,
		SellerName: seller.user.Username,
		IsActive:   true,
		Images:     []api.ProductImage{},
	}
	applyInput(p, in, price)
	s.products[p.ID] = p

	seller.user.IsSeller = true

	return cloneProduct(p), nil
}

// UpdateProduct replaces the editable fields of a listing owned by sellerID.
func (s *Store) UpdateProduct(sellerID, id int64, in api.ProductInput) (api.Product, *errs.CustomError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, customErr := s.ownedProductLocked(sellerID, id)
	if customErr != nil {
		return api.Product{}, customErr
	}
	price, customErr := s.validateProductLocked(in)
	if customErr != nil {
		return api.Product{}, customErr
	}

	wasActive := p.IsActive
	applyInput(p, in, price)
	p.UpdatedAt = s.clock.Now().UTC()

	// Deactivating a listing records it as sold; reactivating withdraws the sale.
	switch {
	case wasActive && !p.IsActive:
		s.soldAt[id] = p.UpdatedAt
	case !wasActive && p.IsActive:
		delete(s.soldAt, id)
	}

	return cloneProduct(p), nil
}

// DeleteProduct removes a listing owned by sellerID.
func (s *Store) DeleteProduct(sellerID, id int64) *errs.CustomError {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, customErr := s.ownedProductLocked(sellerID, id); customErr != nil {
		return customErr
	}
	delete(s.products, id)
	delete(s.views, id)
	delete(s.soldAt, id)
	for _, items := range s.wishlists {
		delete(items, id)
	}
	return nil
}

func (s *Store) ownedProductLocked(sellerID, id int64) (*api.Product, *errs.CustomError) {
	p, ok := s.products[id]
	if !ok {
		return nil, errs.NewError(errs.ErrNotFound)
	}
	if p.Seller != sellerID {
		return nil, errs.NewError(errs.ErrForbidden)
	}
	return p, nil
}

// ViewProduct returns one listing and counts the view unless viewerID is its
// seller. viewerID 0 is an anonymous visitor.
func (s *Store) ViewProduct(viewerID, id int64) (api.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return api.Product{}, false
	}
	if viewerID != p.Seller {
		p.ViewsCount++
		s.views[id] = append(s.views[id], s.clock.Now().UTC())
	}
	return cloneProduct(p), true
}

// Products returns the active listings matching filter, newest first.
func (s *Store) Products(filter api.ProductFilter) ([]api.Product, *errs.CustomError) {
	return s.selectProducts(filter, func(p *api.Product) bool { return p.IsActive })
}

// SellerProducts returns a seller's active listings, newest first.
func (s *Store) SellerProducts(sellerID int64) []api.Product {
	out, _ := s.selectProducts(api.ProductFilter{}, func(p *api.Product) bool { return p.IsActive && p.Seller == sellerID })
	return out
}

// MyProducts returns every listing of sellerID, inactive ones included.
func (s *Store) MyProducts(sellerID int64) []api.Product {
	out, _ := s.selectProducts(api.ProductFilter{}, func(p *api.Product) bool { return p.Seller == sellerID })
	return out
}

func (s *Store) selectProducts(filter api.ProductFilter, keep func(*api.Product) bool) ([]api.Product, *errs.CustomError) {
	var minPrice, maxPrice float64
	hasMin, hasMax := filter.MinPrice != "", filter.MaxPrice != ""
	if hasMin {
		_, v, customErr := normalizePrice(filter.MinPrice)
		if customErr != nil {
			return nil, errs.NewError(errs.ErrValidation, "min_price: Enter a number.")
		}
		minPrice = v
	}
	if hasMax {
		_, v, customErr := normalizePrice(filter.MaxPrice)
		if customErr != nil {
			return nil, errs.NewError(errs.ErrValidation, "max_price: Enter a number.")
		}
		maxPrice = v
	}
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	location := strings.ToLower(strings.TrimSpace(filter.Location))

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []api.Product{}
	for _, p := range s.products {
		if !keep(p) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Title), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		if location != "" && !strings.Contains(strings.ToLower(p.Location), location) {
			continue
		}
		if filter.Category != 0 && (p.Category == nil || *p.Category != filter.Category) {
			continue
		}
		price, _ := strconv.ParseFloat(p.Price, 64)
		if (hasMin && price < minPrice) || (hasMax && price > maxPrice) {
			continue
		}
		out = append(out, cloneProduct(p))
	}

	slices.SortFunc(out, func(a, b api.Product) int { return cmp.Compare(b.ID, a.ID) })
	return out, nil
}

// ToggleWishlist flips the membership of a listing in userID's wishlist and
// reports the new state.
func (s *Store) ToggleWishlist(userID, productID int64) (bool, *errs.CustomError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[productID]; !ok {
		return false, errs.NewError(errs.ErrNotFound)
	}

	items := s.wishlists[userID]
	if items == nil {
		items = make(map[int64]bool)
		s.wishlists[userID] = items
	}
	if items[productID] {
		delete(items, productID)
		return false, nil
	}
	items[productID] = true
	return true, nil
}

// Wishlist returns the listings on userID's wishlist, newest first.
func (s *Store) Wishlist(userID int64) []api.Product {
	s.mu.RLock()
	items := s.wishlists[userID]
	s.mu.RUnlock()

	out, _ := s.selectProducts(api.ProductFilter{}, func(p *api.Product) bool { return items[p.ID] })
	return out
}

// AddProductImage records an uploaded picture. A primary image demotes the previous one.
func (s *Store) AddProductImage(sellerID, productID int64, path string, primary bool) (api.ProductImage, *errs.CustomError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, customErr := s.ownedProductLocked(sellerID, productID)
	if customErr != nil {
		return api.ProductImage{}, customErr
	}

	primary = primary || len(p.Images) == 0
	if primary {
		for i := range p.Images {
			p.Images[i].IsPrimary = false
		}
	}
	img := api.ProductImage{ID: s.allocLocked("image"), Image: path, IsPrimary: primary}
	p.Images = append(p.Images, img)
	return img, nil
}

// Categories returns every category.
func (s *Store) Categories() []api.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.categories)
}

// HasCategory reports whether id names a category.
func (s *Store) HasCategory(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasCategoryLocked(id)
}

func cloneProduct(p *api.Product) api.Product {
	out := *p
	out.Images = slices.Clone(p.Images)
	if out.Images == nil {
		out.Images = []api.ProductImage{}
	}
	return out
}
