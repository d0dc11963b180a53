/*
Package handler provides the HTTP handlers and routing setup for the LocalMart dev API server.

This file defines the main Router. It applies logging, CORS and recovery middleware,
rate limits the credential endpoints, and mounts the REST API under /api, the media
files under /media and the chat sockets under /ws/chat.
*/
package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"localmart/internal/pkg/auth/jwt"
	"localmart/internal/pkg/errs"
	"localmart/internal/pkg/limiter"
	"localmart/internal/pkg/logx"
	"localmart/internal/pkg/resp"
)

const (
	AuthRate  = 0.5
	AuthBurst = 10
	WSRate    = 1
	WSBurst   = 10
)

// Router builds the routing table. ctx bounds the lifetime of the rate limiters'
// background sweepers.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	authLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(AuthRate), AuthBurst)
	wsLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(WSRate), WSBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]any{
			"status":       "ok",
			"service":      "LocalMart Dev API",
			"active_rooms": deps.Manager.ActiveRooms(),
		})
	})

	revoked := jwt.RevocationChecker(deps.Store.IsRevoked)
	requireAuth := jwt.RequireAuthMiddleware(deps.Config.JWTSecret, revoked)

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret, revoked))

		api.Group(func(public chi.Router) {
			public.Use(authLimiter.Middleware)
			public.Post("/auth/login/", HandleLogin(deps))
			public.Post("/auth/register/", HandleRegister(deps))
		})

		api.Get("/products/", HandleListProducts(deps))
		api.Get("/products/{id}/", HandleGetProduct(deps))
		api.Get("/categories/", HandleListCategories(deps))
		api.Get("/categories/{id}/products/", HandleCategoryProducts(deps))
		api.Get("/users/{id}/", HandleGetSeller(deps))
		api.Get("/users/{id}/products/", HandleSellerProducts(deps))

		api.Group(func(private chi.Router) {
			private.Use(requireAuth)

			private.Post("/auth/logout/", HandleLogout(deps))
			private.Get("/users/verify-token/", HandleVerifyToken(deps))
			private.Patch("/users/profile/", HandleUpdateProfile(deps))
			private.Get("/users/stats/", HandleUserStats(deps))

			private.Post("/products/", HandleCreateProduct(deps))
			private.Get("/products/my/", HandleMyProducts(deps))
			private.Get("/products/analytics/", HandleAnalytics(deps))
			private.Get("/products/{id}/analytics/", HandleProductAnalytics(deps))
			private.Put("/products/{id}/", HandleUpdateProduct(deps))
			private.Delete("/products/{id}/", HandleDeleteProduct(deps))
			private.Post("/products/{id}/wishlist/toggle/", HandleToggleWishlist(deps))
			private.Post("/products/{id}/upload_image/", HandleUploadProductImage(deps))
			private.Get("/wishlist/", HandleWishlist(deps))

			private.Get("/chat/rooms/", HandleListRooms(deps))
			private.Post("/chat/rooms/create/", HandleCreateRoom(deps))
			private.Get("/chat/rooms/{id}/messages/", HandleListMessages(deps))
			private.Post("/chat/rooms/{id}/send_message/", HandleSendMessage(deps))
			private.Post("/chat/rooms/{id}/mark-read/", HandleMarkRead(deps))
			private.Get("/chat/rooms/{id}/unread_count/", HandleUnreadCount(deps))
		})
	})

	r.Get("/media/*", HandleMedia(deps))

	r.Get("/ws/chat/{id}/", HandleWebSocket(deps, wsUpgrader, wsLimiter))

	return r
}

// pathID parses the {id} URL parameter.
func pathID(r *http.Request) (int64, *errs.CustomError) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.NewError(errs.ErrNotFound)
	}
	return id, nil
}

// currentUserID returns the authenticated user's id. Routes behind RequireAuthMiddleware
// always carry a payload.
func currentUserID(r *http.Request) (int64, *errs.CustomError) {
	payload := jwt.GetPayloadFromContext(r)
	if payload == nil {
		return 0, errs.NewError(errs.ErrUnauthorized)
	}
	return payload.UserID, nil
}
