/*
Package resp provides helper functions for sending HTTP JSON responses from the dev API server.

Success bodies are the resource itself, the shape the LocalMart REST API returns.
Error bodies are {"error": <message>, "code": <business code>}, which the client's
error normalizer reads.
*/
package resp

import (
	"encoding/json"
	"net/http"

	"localmart/internal/pkg/errs"
	"localmart/internal/pkg/logx"
)

// ErrorResponse is the JSON body of every non-2xx response.
type ErrorResponse struct {
	// Error is the client-friendly error message.
	Error string `json:"error"`

	// Code is the business error code (see errs package).
	Code int `json:"code"`
}

// RespondJSON sets the Content-Type and writes payload with httpStatus.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	response, err := json.Marshal(payload)
	if err != nil {
		logx.Error(
			err,
			"Error encoding JSON response",
			"http_status", httpStatus,
			"path", r.URL.Path,
		)

		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	w.Write(response)
}

// RespondSuccess sends data with HTTP 200.
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusOK, data)
}

// RespondCreated sends data with HTTP 201.
func RespondCreated(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusCreated, data)
}

// RespondNoContent sends an empty HTTP 204.
func RespondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// RespondError sends customErr's message and code with its HTTP status.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	status := customErr.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	RespondJSON(w, r, status, ErrorResponse{
		Error: customErr.Message,
		Code:  customErr.Code,
	})
}
