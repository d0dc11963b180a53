package jwt

import (
	"errors"
	"fmt"
	"time"

	"localmart/internal/pkg/randx"

	"github.com/golang-jwt/jwt"
)

const (
	// AccessTokenTTL is how long a login stays valid unless logout deny-lists it first.
	AccessTokenTTL = 24 * time.Hour

	// Issuer is the iss claim of every token the dev API signs. Verify rejects others.
	Issuer = "LocalMart-DevAPI"
)

// Issue signs an HS256 access token for userID. Every token gets its own random
// jti, so logout can deny-list one device's token without touching the others.
// The returned claims carry that jti and the expiry.
func Issue(userID int64, email, secretKey string, ttl time.Duration) (string, *Payload, error) {
	if userID <= 0 {
		return "", nil, errors.New("access token needs a user id")
	}

	now := time.Now()
	claims := &Payload{
		StandardClaims: jwt.StandardClaims{
			Id:        randx.TokenID(),
			ExpiresAt: now.Add(ttl).Unix(),
			IssuedAt:  now.Unix(),
			Issuer:    Issuer,
		},
		UserID: userID,
		Email:  email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secretKey))
	if err != nil {
		return "", nil, fmt.Errorf("sign access token: %w", err)
	}
	return signed, claims, nil
}

// Verify checks the signature and expiry of an access token and returns its claims.
// Deny-list checks are left to the caller (see Authenticate).
func Verify(tokenString, secretKey string) (*Payload, error) {
	claims := &Payload{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	switch {
	case claims.Issuer != Issuer:
		return nil, fmt.Errorf("token issued by %q", claims.Issuer)
	case claims.UserID <= 0, claims.Id == "":
		return nil, errors.New("token lacks a user id or jti")
	}
	return claims, nil
}
