/*
Package handler provides HTTP handler functions for the current user's profile and
for public seller pages.
*/
package handler

import (
	"net/http"
	"strings"

	"localmart/internal/app/api"
	"localmart/internal/pkg/errs"
	"localmart/internal/pkg/logx"
	"localmart/internal/pkg/req"
	"localmart/internal/pkg/resp"
)

// profileImageField is the multipart field carrying a new profile picture.
const profileImageField = "profile_image"

// HandleVerifyToken confirms the presented token and returns its user.
func HandleVerifyToken(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, customErr := currentUserID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		u, ok := deps.Store.User(userID)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		resp.RespondSuccess(w, r, api.VerifyTokenResponse{Status: "valid", User: &u})
	}
}

// HandleUpdateProfile applies a partial profile change. A JSON body carries text fields
// only; a multipart body may add a profile picture.
func HandleUpdateProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, customErr := currentUserID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		fields := map[string]string{}
		imagePath := ""

		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if customErr := req.SetupMultipart(w, r); customErr != nil {
				resp.RespondError(w, r, customErr)
				return
			}
			for key := range r.MultipartForm.Value {
				if value, ok := req.FormValue(r, key); ok {
					fields[key] = value
				}
			}

			fileHeader, customErr := req.FormFile(r, profileImageField)
			if customErr != nil {
				resp.RespondError(w, r, customErr)
				return
			}
			if fileHeader != nil {
				imagePath, customErr = storeUpload(r, deps, "profiles", fileHeader)
				if customErr != nil {
					resp.RespondError(w, r, customErr)
					return
				}
			}
		} else if customErr := req.BindJSON(w, r, &fields); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		u, customErr := deps.Store.UpdateProfile(userID, fields, imagePath)
		if customErr != nil {
			discardUpload(r, deps, imagePath)
			resp.RespondError(w, r, customErr)
			return
		}

		logx.Info("Profile updated", "user_id", userID, "image", imagePath != "")
		resp.RespondSuccess(w, r, u)
	}
}

// HandleGetSeller returns a user's public profile.
func HandleGetSeller(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, customErr := pathID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		u, ok := deps.Store.User(id)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotFound))
			return
		}
		resp.RespondSuccess(w, r, u)
	}
}

// HandleSellerProducts lists one seller's listings.
func HandleSellerProducts(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, customErr := pathID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if _, ok := deps.Store.User(id); !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrNotFound))
			return
		}
		resp.RespondSuccess(w, r, deps.Store.SellerProducts(id))
	}
}
