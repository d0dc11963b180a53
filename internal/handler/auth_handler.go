/*
Package handler provides HTTP handler functions for account registration, login and logout.
*/
package handler

import (
	"net/http"
	"strings"
	"time"

	"localmart/internal/app/api"
	"localmart/internal/pkg/auth/jwt"
	"localmart/internal/pkg/errs"
	"localmart/internal/pkg/logx"
	"localmart/internal/pkg/req"
	"localmart/internal/pkg/resp"
)

// HandleRegister creates an account. The response carries the new user but no token;
// clients log in afterwards.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input api.RegisterRequest
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		u, customErr := deps.Store.Register(input)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		logx.Info("User registered", "user_id", u.ID)
		resp.RespondCreated(w, r, api.RegisterResponse{User: &u})
	}
}

// HandleLogin exchanges email and password for an access token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input api.LoginRequest
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if strings.TrimSpace(input.Email) == "" || input.Password == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrValidation, "Email and password are required."))
			return
		}

		u, customErr := deps.Store.Authenticate(input.Email, input.Password)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		token, _, err := jwt.Issue(u.ID, u.Email, deps.Config.JWTSecret, jwt.AccessTokenTTL)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		logx.Info("User logged in", "user_id", u.ID)
		resp.RespondSuccess(w, r, api.LoginResponse{AccessToken: token, User: &u})
	}
}

// HandleLogout revokes the presented token until it would have expired anyway.
func HandleLogout(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := jwt.GetPayloadFromContext(r)
		if payload == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		deps.Store.Revoke(payload.Id, time.Unix(payload.ExpiresAt, 0))

		logx.Info("User logged out", "user_id", payload.UserID)
		resp.RespondSuccess(w, r, map[string]string{"detail": "Logged out."})
	}
}
