package users

import (
	"context"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when no live record matches the email.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is the store-level uniqueness violation. There is no
	// pre-check race: the store's unique constraint is the authority.
	ErrEmailTaken = errors.New("email already registered")
)

// Repo is the credential store contract. Every call is a single blocking
// round-trip with no locks held across calls.
type Repo interface {
	// CreateWithCredential persists a new user and their password hash
	// atomically. A duplicate email yields ErrEmailTaken with nothing
	// persisted.
	CreateWithCredential(ctx context.Context, email, passwordHash string) (*User, error)

	// GetCredentialByEmail returns the user joined with their credential,
	// or ErrNotFound.
	GetCredentialByEmail(ctx context.Context, email string) (*UserCredential, error)
}
