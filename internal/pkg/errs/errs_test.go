package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewErrorFillsTemplate(t *testing.T) {
	err := NewError(ErrValidation, "Password is too short.")
	assert.Equal(t, ErrValidation, err.Code)
	assert.Equal(t, "Password is too short.", err.Message)
	assert.Equal(t, http.StatusBadRequest, err.Status)

	err = NewError(ErrValidation)
	assert.Equal(t, fallbackMessage, err.Message)
}

func TestNewErrorUnknownCode(t *testing.T) {
	err := NewError(4242)
	assert.Equal(t, ErrUnknown, err.Code)
}

func TestNewErrorDoesNotShareTemplate(t *testing.T) {
	a := NewError(ErrNotFound)
	a.Message = "changed"
	b := NewError(ErrNotFound)
	assert.NotEqual(t, "changed", b.Message)
}

func TestNewLocalError(t *testing.T) {
	err := NewLocalError(ErrValidation, "Email is required.")
	assert.Equal(t, 0, err.Status)
	assert.Equal(t, "error code 1002: Email is required.", err.Error())
}

func TestWrapKeepsCauseOutOfMessage(t *testing.T) {
	cause := errors.New("dial tcp 127.0.0.1:1: connect: connection refused")
	err := Wrap(ErrNetwork, cause)

	assert.ErrorIs(t, err, cause)
	assert.NotContains(t, err.Message, "refused")
	assert.NotContains(t, err.Error(), "refused")
}

func TestWrapHasNoStatus(t *testing.T) {
	for _, code := range []int{ErrUnknown, ErrInvalidParams, ErrNetwork, ErrInvalidResponse} {
		err := Wrap(code, errors.New("token file unreadable"))
		assert.Equal(t, 0, err.Status, "code %d", code)
		assert.NotContains(t, err.Error(), "HTTP")
	}
}

func TestFromResponse(t *testing.T) {
	cases := []struct {
		status  int
		message string
		code    int
		want    string
	}{
		{http.StatusUnauthorized, "", ErrUnauthorized, "Session expired. Please login again."},
		{http.StatusUnauthorized, "Invalid credentials", ErrUnauthorized, "Invalid credentials"},
		{http.StatusNotFound, "", ErrNotFound, "The requested item was not found."},
		{http.StatusBadRequest, "Bad email", ErrValidation, "Bad email"},
		{http.StatusUnprocessableEntity, "Bad price", ErrValidation, "Bad price"},
		{http.StatusForbidden, "Not a participant", ErrForbidden, "Not a participant"},
		{http.StatusServiceUnavailable, "maintenance", ErrServer, "maintenance"},
		{http.StatusInternalServerError, "", ErrUnknown, "Something went wrong. Please try again."},
		{http.StatusBadRequest, "", ErrUnknown, "Something went wrong. Please try again."},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d_%s", tc.status, tc.message), func(t *testing.T) {
			err := FromResponse(tc.status, tc.message)
			assert.Equal(t, tc.code, err.Code)
			assert.Equal(t, tc.want, err.Message)
			assert.Equal(t, tc.status, err.Status)
		})
	}
}

func TestHelpers(t *testing.T) {
	wrapped := fmt.Errorf("login: %w", NewError(ErrUnauthorized))

	customErr, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrUnauthorized, customErr.Code)
	assert.True(t, IsUnauthorized(wrapped))
	assert.True(t, IsCode(wrapped, ErrUnauthorized))
	assert.False(t, IsCode(errors.New("plain"), ErrUnauthorized))

	assert.Equal(t, "Session expired. Please login again.", Message(wrapped))
	assert.Equal(t, "Something went wrong. Please try again.", Message(errors.New("plain")))
	assert.Equal(t, "", Message(nil))
}
