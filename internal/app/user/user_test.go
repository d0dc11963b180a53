package user

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Ada Lovelace", (&User{FirstName: "Ada", LastName: "Lovelace", Username: "ada"}).DisplayName())
	assert.Equal(t, "ada", (&User{Username: "ada", Email: "a@b.com"}).DisplayName())
	assert.Equal(t, "a@b.com", (&User{Email: "a@b.com"}).DisplayName())
}

func TestUserIgnoresUnknownFields(t *testing.T) {
	var u User
	err := json.Unmarshal([]byte(`{"id":1,"email":"a@b.com","favourite_colour":"teal"}`), &u)
	require.NoError(t, err)
	assert.Equal(t, User{ID: 1, Email: "a@b.com"}, u)
	assert.NoError(t, u.Validate())

	assert.Error(t, (&User{Email: "a@b.com"}).Validate())
}

func TestProfileUpdate(t *testing.T) {
	phone := "555-0100"
	empty := ""
	update := ProfileUpdate{Phone: &phone, Address: &empty}

	assert.False(t, update.IsEmpty())
	assert.Equal(t, map[string]string{"phone": "555-0100", "address": ""}, update.Fields())

	before := User{ID: 1, Email: "a@b.com", Phone: "old", Address: "Main St", FirstName: "Ada"}
	after := update.Apply(before)
	assert.Equal(t, "555-0100", after.Phone)
	assert.Equal(t, "", after.Address)
	assert.Equal(t, "Ada", after.FirstName)
	assert.Equal(t, "old", before.Phone, "Apply must not mutate its argument")

	assert.True(t, ProfileUpdate{}.IsEmpty())
}
