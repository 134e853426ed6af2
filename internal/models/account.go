// Package models defines the core data structures for accounts, notes and
// tasks, together with the task time-tracking transitions.
package models

import "time"

// Account represents a registered user.
type Account struct {
	// ID is the unique identifier for the account.
	ID string `json:"id"`
	// Username is the unique login name chosen by the user.
	Username string `json:"username"`
	// Email is the unique e-mail address used to log in.
	Email string `json:"email"`
	// PasswordHash is the bcrypt hash of the password. It is never serialized.
	PasswordHash string `json:"-"`
	// Name is the display name.
	Name string `json:"name"`
	// ColorProfile selects the UI color theme.
	ColorProfile ColorProfile `json:"colorProfile"`
	// CreatedAt is the registration instant.
	CreatedAt time.Time `json:"createdAt"`
	// UpdatedAt is the instant of the last modification.
	UpdatedAt time.Time `json:"updatedAt"`
}

// AccountPatch lists the account fields that may change after registration.
// Nil fields are left untouched.
type AccountPatch struct {
	Name         *string
	ColorProfile *ColorProfile
	PasswordHash *string
}

// ColorProfile identifies one of the predefined color themes.
type ColorProfile string

// DefaultColorProfile is assigned to new accounts.
const DefaultColorProfile ColorProfile = "blue"

var colorProfiles = map[ColorProfile]struct{}{
	"blue":   {},
	"purple": {},
	"green":  {},
	"orange": {},
	"red":    {},
	"teal":   {},
	"dark":   {},
	"light":  {},
}

// Valid reports whether p is one of the known profiles.
func (p ColorProfile) Valid() bool {
	_, ok := colorProfiles[p]
	return ok
}
