/*
Package randx provides functions for generating random identifiers.

Request IDs correlate client log lines with the dev API server's request log; token IDs
make every issued access token unique so a revoked token never matches a fresh one.
*/
package randx

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
)

// RequestID generates a UUID v4 string sent as the X-Request-Id header.
func RequestID() string {
	return uuid.New().String()
}

// TokenID generates a UUID v4 string used as a JWT ID.
func TokenID() string {
	return uuid.New().String()
}

// Secret returns n random bytes encoded as unpadded base64url.
func Secret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes for secret: %v", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
