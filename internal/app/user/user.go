/*
Package user contains the LocalMart account record shared by the session, the API client
and the credential store.

User is the identity cached next to the access token. ProfileUpdate describes a partial
(PATCH) change to it; nil fields are left untouched on the server.
*/
package user

import (
	"errors"
	"io"
	"strings"
)

// User is the account of the logged-in person or of a seller.
// Unknown JSON fields from the server are ignored.
type User struct {
	ID           int64   `json:"id"`
	Username     string  `json:"username,omitempty"`
	Email        string  `json:"email"`
	FirstName    string  `json:"first_name,omitempty"`
	LastName     string  `json:"last_name,omitempty"`
	Phone        string  `json:"phone,omitempty"`
	Address      string  `json:"address,omitempty"`
	ProfileImage string  `json:"profile_image,omitempty"`
	IsSeller     bool    `json:"is_seller"`
	Rating       float64 `json:"rating,omitempty"`
	RatingCount  int     `json:"rating_count,omitempty"`
}

// DisplayName returns the full name, falling back to the username and then the email.
func (u *User) DisplayName() string {
	if full := strings.TrimSpace(u.FirstName + " " + u.LastName); full != "" {
		return full
	}
	if u.Username != "" {
		return u.Username
	}
	return u.Email
}

// Validate checks the fields every stored user record must carry.
func (u *User) Validate() error {
	if u.ID <= 0 {
		return errors.New("user id is missing")
	}
	return nil
}

// Image is a file to upload as multipart form data.
type Image struct {
	Filename string
	Content  io.Reader
}

// ProfileUpdate is a partial change to the current user's profile.
type ProfileUpdate struct {
	Username  *string
	FirstName *string
	LastName  *string
	Phone     *string
	Address   *string

	// Image replaces the profile picture when set.
	Image *Image
}

// Fields returns the set text fields keyed by their wire name.
func (p ProfileUpdate) Fields() map[string]string {
	fields := make(map[string]string)
	set := func(key string, v *string) {
		if v != nil {
			fields[key] = *v
		}
	}
	set("username", p.Username)
	set("first_name", p.FirstName)
	set("last_name", p.LastName)
	set("phone", p.Phone)
	set("address", p.Address)
	return fields
}

// IsEmpty reports whether the update changes nothing.
func (p ProfileUpdate) IsEmpty() bool {
	return len(p.Fields()) == 0 && p.Image == nil
}

// Apply returns a copy of u with the text fields of p applied.
// The profile image URL is assigned by the server and is not touched.
func (p ProfileUpdate) Apply(u User) User {
	if p.Username != nil {
		u.Username = *p.Username
	}
	if p.FirstName != nil {
		u.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		u.LastName = *p.LastName
	}
	if p.Phone != nil {
		u.Phone = *p.Phone
	}
	if p.Address != nil {
		u.Address = *p.Address
	}
	return u
}
