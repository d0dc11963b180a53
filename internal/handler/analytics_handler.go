package handler

import (
	"net/http"

	"localmart/internal/pkg/resp"
)

// HandleAnalytics summarizes the caller's selling activity for ?timeframe=.
func HandleAnalytics(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, customErr := currentUserID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		summary, customErr := deps.Store.Analytics(userID, r.URL.Query().Get("timeframe"))
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		resp.RespondSuccess(w, r, summary)
	}
}

func HandleProductAnalytics(deps *AppDeps) http.HandlerFunc {
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

		stats, customErr := deps.Store.ProductAnalytics(userID, id)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		resp.RespondSuccess(w, r, stats)
	}
}

func HandleUserStats(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, customErr := currentUserID(r)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		resp.RespondSuccess(w, r, deps.Store.UserStats(userID))
	}
}
