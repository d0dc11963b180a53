package jwt

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-at-least-32-characters-long"

func TestIssueAndVerify(t *testing.T) {
	token, issued, err := Issue(7, "a@b.com", testSecret, time.Hour)
	require.NoError(t, err)

	payload, err := Verify(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(7), payload.UserID)
	assert.Equal(t, "a@b.com", payload.Email)
	assert.Equal(t, Issuer, payload.Issuer)
	assert.Equal(t, issued.Id, payload.Id)
	assert.Equal(t, issued.ExpiresAt, payload.ExpiresAt)

	_, err = Verify(token, "another-secret")
	assert.Error(t, err)
}

func TestEachLoginGetsItsOwnTokenID(t *testing.T) {
	_, first, err := Issue(7, "a@b.com", testSecret, time.Hour)
	require.NoError(t, err)
	_, second, err := Issue(7, "a@b.com", testSecret, time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, first.Id, second.Id)
}

func TestVerifyRejectsExpired(t *testing.T) {
	token, _, err := Issue(1, "", testSecret, -time.Minute)
	require.NoError(t, err)

	_, err = Verify(token, testSecret)
	assert.Error(t, err)
}

func TestVerifyRejectsForeignIssuer(t *testing.T) {
	claims := &Payload{UserID: 1}
	claims.Id = "abc"
	claims.Issuer = "someone-else"
	claims.ExpiresAt = time.Now().Add(time.Hour).Unix()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = Verify(token, testSecret)
	assert.Error(t, err)

	_, _, err = Issue(0, "", testSecret, time.Hour)
	assert.Error(t, err)
}

func TestRequireAuthMiddleware(t *testing.T) {
	token, payload, err := Issue(3, "", testSecret, time.Hour)
	require.NoError(t, err)

	revoked := map[string]bool{}
	var seen *Payload
	handler := RequireAuthMiddleware(testSecret, func(id string) bool { return revoked[id] })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetPayloadFromContext(r)
			w.WriteHeader(http.StatusOK)
		}),
	)

	serve := func(r *http.Request) int {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		return w.Code
	}

	r := httptest.NewRequest(http.MethodGet, "/users/verify-token/", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(r))

	r = httptest.NewRequest(http.MethodGet, "/users/verify-token/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusOK, serve(r))
	require.NotNil(t, seen)
	assert.Equal(t, int64(3), seen.UserID)

	r = httptest.NewRequest(http.MethodGet, "/ws/chat/1/?token="+token, nil)
	assert.Equal(t, http.StatusOK, serve(r))

	r = httptest.NewRequest(http.MethodGet, "/users/verify-token/", nil)
	r.Header.Set("Authorization", token)
	assert.Equal(t, http.StatusUnauthorized, serve(r), "header without Bearer prefix is rejected")

	revoked[payload.Id] = true
	r = httptest.NewRequest(http.MethodGet, "/users/verify-token/", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, serve(r))
}
