/*
Package errs provides custom error types and application-level error code constants.

This file defines the map from error codes to their default user message and HTTP status.
*/
package errs

import "net/http"

// errorMap stores the template CustomError for every application error code.
// Messages containing %s are filled from the details passed to NewError.
var errorMap = map[int]CustomError{
	// 1xxx: Request Building and Validation Errors
	ErrInvalidParams:         {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrValidation:            {Code: ErrValidation, Message: "%s", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType:  {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:     {Code: ErrInvalidJSONFormat, Message: "Malformed JSON body.", Status: http.StatusBadRequest},
	ErrFormParseFailed:       {Code: ErrFormParseFailed, Message: "Failed to process uploaded data.", Status: http.StatusBadRequest},
	ErrRequestEntityTooLarge: {Code: ErrRequestEntityTooLarge, Message: "Request size is too large.", Status: http.StatusRequestEntityTooLarge},
	ErrRateLimitExceeded:     {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx: API and Session Errors
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Session expired. Please login again.", Status: http.StatusUnauthorized},
	ErrNotFound:           {Code: ErrNotFound, Message: "The requested item was not found.", Status: http.StatusNotFound},
	ErrServer:             {Code: ErrServer, Message: "%s", Status: http.StatusInternalServerError},
	ErrForbidden:          {Code: ErrForbidden, Message: "You are not allowed to do that.", Status: http.StatusForbidden},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Invalid credentials", Status: http.StatusUnauthorized},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Message: "An account with this email already exists.", Status: http.StatusBadRequest},
	ErrInvalidResponse:    {Code: ErrInvalidResponse, Message: "Unexpected response from server."},
	ErrNotAuthenticated:   {Code: ErrNotAuthenticated, Message: "Please login to continue."},

	// 3xxx: Transport Errors
	ErrNetwork:       {Code: ErrNetwork, Message: "Network error. Please check your connection."},
	ErrSocketNotOpen: {Code: ErrSocketNotOpen, Message: "Chat is not connected."},

	// 5xxx: Internal Errors
	ErrUnknown: {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
}
