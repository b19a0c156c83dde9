package sqliterepo_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/danielmulvad/tda-backend/users"
	"github.com/danielmulvad/tda-backend/users/sqliterepo"
	"github.com/stretchr/testify/require"
)

func newRepo(t *testing.T) *sqliterepo.Repo {
	t.Helper()
	repo, err := sqliterepo.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestCreateAndGetCredential(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	created, err := repo.CreateWithCredential(ctx, "a@b.com", "$argon2id$fake-hash")
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, "a@b.com", created.Email)

	uc, err := repo.GetCredentialByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	require.Equal(t, created.ID, uc.User.ID)
	require.Equal(t, created.ID, uc.Credential.UserID)
	require.Equal(t, "$argon2id$fake-hash", uc.Credential.PasswordHash)
}

func TestDuplicateEmail(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.CreateWithCredential(ctx, "a@b.com", "hash-1")
	require.NoError(t, err)

	_, err = repo.CreateWithCredential(ctx, "a@b.com", "hash-2")
	require.ErrorIs(t, err, users.ErrEmailTaken)

	// The losing insert must leave nothing behind: the original credential
	// still wins the join.
	uc, err := repo.GetCredentialByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	require.Equal(t, "hash-1", uc.Credential.PasswordHash)
}

func TestUnknownEmail(t *testing.T) {
	repo := newRepo(t)

	_, err := repo.GetCredentialByEmail(context.Background(), "missing@b.com")
	require.ErrorIs(t, err, users.ErrNotFound)
}
