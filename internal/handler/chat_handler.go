/*
Package handler provides HTTP handler functions for the REST side of chat: rooms,
message history, sending and read state. Messages sent here are also pushed to any
sockets connected to the room.
*/
package handler

import (
	"net/http"

	"localmart/internal/app/api"
	"localmart/internal/pkg/errs"
	"localmart/internal/pkg/logx"
	"localmart/internal/pkg/req"
	"localmart/internal/pkg/resp"
)

type sendMessageInput struct {
	Content string `json:"content"`
}

// HandleListRooms lists the caller's rooms, most recently active first.
func HandleListRooms(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, customErr := currentUserID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		resp.RespondSuccess(w, r, deps.Store.Rooms(userID))
	}
}

// HandleCreateRoom returns the room between the caller and a listing's seller,
// creating it on first contact.
func HandleCreateRoom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, customErr := currentUserID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input api.CreateRoomRequest
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if input.ProductID <= 0 || input.SellerID <= 0 {
			resp.RespondError(w, r, errs.NewError(errs.ErrValidation, "product_id and seller_id are required."))
			return
		}

		room, customErr := deps.Store.CreateOrGetRoom(userID, input.ProductID, input.SellerID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		resp.RespondSuccess(w, r, room)
	}
}

func HandleListMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, customErr := currentUserID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		roomID, customErr := pathID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		messages, customErr := deps.Store.Messages(userID, roomID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		resp.RespondSuccess(w, r, messages)
	}
}

// HandleSendMessage stores a message and relays it to the room's live sockets.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, customErr := currentUserID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		roomID, customErr := pathID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var input sendMessageInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		stored, customErr := deps.Store.AddMessage(userID, roomID, input.Content)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if deps.Manager.PublishMessage(roomID, stored) {
			logx.Debug("Relayed REST message to chat sockets", "room_id", roomID, "message_id", stored.ID)
		}
		resp.RespondCreated(w, r, deps.Store.MessageView(stored, userID))
	}
}

func HandleMarkRead(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, customErr := currentUserID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		roomID, customErr := pathID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		changed, customErr := deps.Store.MarkRead(userID, roomID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		if changed > 0 {
			deps.Manager.PublishReadReceipt(roomID, userID)
		}
		resp.RespondSuccess(w, r, map[string]int{"marked_read": changed})
	}
}

func HandleUnreadCount(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, customErr := currentUserID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		roomID, customErr := pathID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		count, customErr := deps.Store.UnreadCount(userID, roomID)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		resp.RespondSuccess(w, r, api.UnreadCount{UnreadCount: count})
	}
}
