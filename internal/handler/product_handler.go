/*
Package handler provides HTTP handler functions for listings, categories and wishlists.
*/
package handler

import (
	"net/http"
	"strconv"

	"localmart/internal/app/api"
	"localmart/internal/pkg/auth/jwt"
	"localmart/internal/pkg/errs"
	"localmart/internal/pkg/logx"
	"localmart/internal/pkg/req"
	"localmart/internal/pkg/resp"
)

// productImageField is the multipart field carrying a listing photo.
const productImageField = "image"

// filterFromQuery reads the listing filter query parameters.
func filterFromQuery(r *http.Request) (api.ProductFilter, *errs.CustomError) {
	q := r.URL.Query()
	filter := api.ProductFilter{
		Search:   q.Get("search"),
		Location: q.Get("location"),
		MinPrice: q.Get("min_price"),
		MaxPrice: q.Get("max_price"),
	}
	if raw := q.Get("category"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, errs.NewError(errs.ErrValidation, "category: A valid integer is required.")
		}
		filter.Category = id
	}
	return filter, nil
}

// HandleListProducts lists listings matching the query filter, newest first.
func HandleListProducts(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter, customErr := filterFromQuery(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		products, customErr := deps.Store.Products(filter)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		resp.RespondSuccess(w, r, products)
	}
}

func HandleGetProduct(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, customErr := pathID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var viewerID int64
		if payload := jwt.GetPayloadFromContext(r); payload != nil {
			viewerID = payload.UserID
		}

		product, ok := deps.Store.ViewProduct(viewerID, id)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotFound))
			return
		}
		resp.RespondSuccess(w, r, product)
	}
}

// HandleCreateProduct publishes a listing owned by the caller.
func HandleCreateProduct(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, customErr := currentUserID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input api.ProductInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		product, customErr := deps.Store.CreateProduct(userID, input)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		logx.Info("Product created", "product_id", product.ID, "seller_id", userID)
		resp.RespondCreated(w, r, product)
	}
}

// HandleUpdateProduct replaces a listing's editable fields. Only the seller may edit.
func HandleUpdateProduct(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, customErr := currentUserID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		id, customErr := pathID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input api.ProductInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		product, customErr := deps.Store.UpdateProduct(userID, id, input)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		resp.RespondSuccess(w, r, product)
	}
}

func HandleDeleteProduct(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, customErr := currentUserID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		id, customErr := pathID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := deps.Store.DeleteProduct(userID, id); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		logx.Info("Product deleted", "product_id", id, "seller_id", userID)
		resp.RespondNoContent(w)
	}
}

// HandleMyProducts lists the caller's own listings.
func HandleMyProducts(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, customErr := currentUserID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		resp.RespondSuccess(w, r, deps.Store.MyProducts(userID))
	}
}

func HandleToggleWishlist(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, customErr := currentUserID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		id, customErr := pathID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		wishlisted, customErr := deps.Store.ToggleWishlist(userID, id)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		resp.RespondSuccess(w, r, api.WishlistToggle{IsWishlisted: wishlisted})
	}
}

func HandleWishlist(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, customErr := currentUserID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		resp.RespondSuccess(w, r, deps.Store.Wishlist(userID))
	}
}

// HandleUploadProductImage attaches a photo to one of the caller's listings.
// The is_primary form field makes it the cover image.
func HandleUploadProductImage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, customErr := currentUserID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		id, customErr := pathID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if customErr := req.SetupMultipart(w, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		fileHeader, customErr := req.FormFile(r, productImageField)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if fileHeader == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrValidation, "image: No file was submitted."))
			return
		}

		primary := false
		if raw, ok := req.FormValue(r, "is_primary"); ok {
			primary, _ = strconv.ParseBool(raw)
		}

		path, customErr := storeUpload(r, deps, "products", fileHeader)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		image, customErr := deps.Store.AddProductImage(userID, id, path, primary)
		if customErr != nil {
			discardUpload(r, deps, path)
			resp.RespondError(w, r, customErr)
			return
		}

		logx.Info("Product image uploaded", "product_id", id, "primary", image.IsPrimary)
		resp.RespondCreated(w, r, image)
	}
}

func HandleListCategories(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, deps.Store.Categories())
	}
}

// HandleCategoryProducts lists the listings of one category, narrowed by the query filter.
func HandleCategoryProducts(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, customErr := pathID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if !deps.Store.HasCategory(id) {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotFound))
			return
		}

		filter, customErr := filterFromQuery(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		filter.Category = id

		products, customErr := deps.Store.Products(filter)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		resp.RespondSuccess(w, r, products)
	}
}
