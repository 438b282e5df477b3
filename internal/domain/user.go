package domain

import (
	"strings"

	"github.com/google/uuid"
)

// User is the authenticated shopper as supplied by the identity layer.
// Login, registration and email verification live outside this module;
// the core only reads the fields below.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Verified  bool      `json:"isVerified"`
}

// FullName returns "First Last", falling back to the email address.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}
