package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims of a LocalMart access token.
type Payload struct {
	// StandardClaims carries exp, iat, iss and jti. The jti identifies the token on the
	// logout deny-list.
	jwt.StandardClaims

	// UserID is the numeric id of the account the token was issued to.
	UserID int64 `json:"user_id"`

	// Email is the login identifier at issue time.
	Email string `json:"email"`
}
