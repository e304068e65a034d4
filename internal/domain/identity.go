package domain

import "strings"

// Profile is the user profile returned by the auth API.
type Profile struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Identity is the authenticated user. Token and Profile are always set and
// cleared together.
type Identity struct {
	Token   string
	Profile Profile
}

// Valid reports whether the identity carries a token and an email. The name
// may be empty.
func (i Identity) Valid() bool {
	return strings.TrimSpace(i.Token) != "" && strings.TrimSpace(i.Profile.Email) != ""
}
