// Package users defines the credential records persisted by the gateway and
// the repository contract over them.
package users

import "time"

// User is a registered account. Rows are created on sign-up and read on
// sign-in; they are never mutated in place.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Credential holds the password hash for one user. Rotation writes a new
// hash row rather than updating the old one.
type Credential struct {
	UserID       string    `json:"user_id"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UserCredential is the sign-in join of a user and their current credential.
type UserCredential struct {
	User       User
	Credential Credential
}
