/*
Package errs provides custom error types and application-level error code constants.

These error codes identify every failure the LocalMart client core can surface,
from client-side validation before a request is built to transport failures and
unparseable server responses. The dev API server reuses the same table so both
sides of the wire agree on codes and HTTP statuses.
*/
package errs

// 1xxx: Request Building and Validation Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrValidation carries a field-level validation message, produced either locally
	// (before any network call) or from a 400/422 server response.
	ErrValidation = 1002

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1003

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect.
	ErrInvalidJSONFormat = 1004

	// ErrFormParseFailed indicates failure to parse multipart form data.
	ErrFormParseFailed = 1005

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: API and Session Errors
const (
	// ErrUnauthorized indicates a 401 response: the session is missing, expired or revoked.
	ErrUnauthorized = 2001

	// ErrNotFound indicates a 404 response.
	ErrNotFound = 2002

	// ErrServer indicates a non-2xx response that carried a readable error message.
	ErrServer = 2003

	// ErrForbidden indicates the caller is authenticated but not allowed to act on the resource.
	ErrForbidden = 2004

	// ErrInvalidCredentials indicates the login identifier or secret was rejected.
	ErrInvalidCredentials = 2005

	// ErrUserAlreadyExists indicates a registration conflict on the email address.
	ErrUserAlreadyExists = 2006

	// ErrInvalidResponse indicates a 2xx response whose body did not match the endpoint contract.
	ErrInvalidResponse = 2007

	// ErrNotAuthenticated indicates an operation that needs a session was called without one.
	ErrNotAuthenticated = 2008
)

// 3xxx: Transport Errors
const (
	// ErrNetwork indicates the server could not be reached (DNS, refused connection, reset).
	ErrNetwork = 3001

	// ErrSocketNotOpen indicates a chat frame was sent while the transport was not open.
	ErrSocketNotOpen = 3002
)

// 5xxx: Internal Errors
const (
	// ErrUnknown represents an unclassified failure, including unparseable error responses.
	ErrUnknown = 5000
)
