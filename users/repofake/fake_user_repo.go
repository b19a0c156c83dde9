// Package repofake provides an in-memory users.Repo for tests.
package repofake

import (
	"context"
	"sync"
	"time"

	"github.com/danielmulvad/tda-backend/users"
	"github.com/google/uuid"
)

// FakeUserRepo is a map-backed users.Repo. Safe for concurrent use.
type FakeUserRepo struct {
	mu      sync.RWMutex
	byEmail map[string]*users.UserCredential
}

var _ users.Repo = (*FakeUserRepo)(nil)

// NewFakeUserRepo returns an empty fake repository.
func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{byEmail: make(map[string]*users.UserCredential)}
}

func (f *FakeUserRepo) CreateWithCredential(_ context.Context, email, passwordHash string) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.byEmail[email]; exists {
		return nil, users.ErrEmailTaken
	}

	now := time.Now().UTC()
	user := users.User{
		ID:        uuid.New().String(),
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.byEmail[email] = &users.UserCredential{
		User: user,
		Credential: users.Credential{
			UserID:       user.ID,
			PasswordHash: passwordHash,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
	}
	return &user, nil
}

func (f *FakeUserRepo) GetCredentialByEmail(_ context.Context, email string) (*users.UserCredential, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	uc, ok := f.byEmail[email]
	if !ok {
		return nil, users.ErrNotFound
	}
	copied := *uc
	return &copied, nil
}
