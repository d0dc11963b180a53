/*
Package handler provides the HTTP handler that upgrades chat socket connections.

HandleWebSocket rate limits the caller, authenticates the ?token= query parameter,
checks room membership, upgrades the connection and hands the client to the hub.
*/
package handler

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"localmart/internal/app/hub"
	"localmart/internal/pkg/auth/jwt"
	"localmart/internal/pkg/errs"
	"localmart/internal/pkg/limiter"
	"localmart/internal/pkg/logx"
	"localmart/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc to process chat socket requests.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)
		if !rateLimiter.GetLimiter(ip).Allow() {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		roomID, customErr := pathID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		payload, customErr := jwt.Authenticate(r, deps.Config.JWTSecret, deps.Store.IsRevoked)
		if customErr != nil {
			logx.Info("WebSocket connection rejected: Invalid token.", "room_id", roomID)
			resp.RespondError(w, r, customErr)
			return
		}

		currentUser, ok := deps.Store.User(payload.UserID)
		if !ok {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		if !deps.Store.IsParticipant(currentUser.ID, roomID) {
			logx.Info("WebSocket connection rejected: Not a participant.", "room_id", roomID, "user_id", currentUser.ID)
			resp.RespondError(w, r, errs.NewError(errs.ErrForbidden))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		tokenID, expiresAt := payload.Id, time.Unix(payload.ExpiresAt, 0)
		valid := func() bool {
			return time.Now().Before(expiresAt) && !deps.Store.IsRevoked(tokenID)
		}

		client := hub.NewClient(conn, currentUser, valid)
		deps.Manager.Join(roomID, client)

		go client.WritePump()

		logx.Info("Chat socket established", "user_id", currentUser.ID, "room_id", roomID)

		client.ReadPump()
	}
}
