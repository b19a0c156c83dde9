// Package sqliterepo provides the SQLite-backed credential store.
package sqliterepo

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/danielmulvad/tda-backend/users"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

// Repo persists users and their credential hashes in SQLite.
type Repo struct {
	db      *sql.DB
	nowFunc func() time.Time
}

var _ users.Repo = (*Repo)(nil)

// RepoOption defines a function type to modify the Repo instance.
type RepoOption func(*Repo)

// WithNowFunc sets the now time function (primarily for testing).
func WithNowFunc(now func() time.Time) RepoOption {
	return func(r *Repo) {
		r.nowFunc = now
	}
}

// New opens (or creates) the database at dbPath and initialises the schema.
func New(dbPath string, options ...RepoOption) (*Repo, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "[sqliterepo.New] sql.Open")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		return nil, errors.Wrap(err, "[sqliterepo.New] enable foreign keys")
	}
	if err := initSchema(db); err != nil {
		return nil, errors.Wrap(err, "[sqliterepo.New] init schema")
	}

	r := &Repo{db: db, nowFunc: time.Now}
	for _, opt := range options {
		opt(r)
	}
	return r, nil
}

// Close releases the underlying database handle.
func (r *Repo) Close() error {
	return r.db.Close()
}

func initSchema(db *sql.DB) error {
	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id          TEXT PRIMARY KEY,
			email       TEXT UNIQUE NOT NULL,
			created_at  INTEGER NOT NULL,
			updated_at  INTEGER NOT NULL
		);`,
	); err != nil {
		return errors.Wrap(err, "users table")
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS user_auth (
			user_id        TEXT NOT NULL,
			password_hash  TEXT NOT NULL,
			created_at     INTEGER NOT NULL,
			updated_at     INTEGER NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users (id)
		);`,
	); err != nil {
		return errors.Wrap(err, "user_auth table")
	}

	return nil
}

// CreateWithCredential inserts the user and credential rows in one
// transaction. The email uniqueness constraint is the only duplicate guard.
func (r *Repo) CreateWithCredential(ctx context.Context, email, passwordHash string) (*users.User, error) {
	now := r.nowFunc().UTC().Truncate(time.Second)
	user := &users.User{
		ID:        uuid.New().String(),
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "[Repo.CreateWithCredential] BeginTx")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, email, created_at, updated_at)
		VALUES (?, ?, ?, ?);`,
		user.ID, user.Email, now.Unix(), now.Unix(),
	); err != nil {
		if isUniqueViolation(err) {
			return nil, users.ErrEmailTaken
		}
		return nil, errors.Wrap(err, "[Repo.CreateWithCredential] insert user")
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_auth (user_id, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?);`,
		user.ID, passwordHash, now.Unix(), now.Unix(),
	); err != nil {
		return nil, errors.Wrap(err, "[Repo.CreateWithCredential] insert credential")
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "[Repo.CreateWithCredential] Commit")
	}
	return user, nil
}

// GetCredentialByEmail joins users with their latest credential row.
func (r *Repo) GetCredentialByEmail(ctx context.Context, email string) (*users.UserCredential, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT u.id, u.email, u.created_at, u.updated_at,
		       a.password_hash, a.created_at, a.updated_at
		FROM users u
		JOIN user_auth a ON a.user_id = u.id
		WHERE u.email = ?
		ORDER BY a.created_at DESC
		LIMIT 1;`,
		email,
	)

	var uc users.UserCredential
	var userCreated, userUpdated, credCreated, credUpdated int64
	err := row.Scan(
		&uc.User.ID, &uc.User.Email, &userCreated, &userUpdated,
		&uc.Credential.PasswordHash, &credCreated, &credUpdated,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, users.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "[Repo.GetCredentialByEmail] Scan")
	}

	uc.User.CreatedAt = time.Unix(userCreated, 0).UTC()
	uc.User.UpdatedAt = time.Unix(userUpdated, 0).UTC()
	uc.Credential.UserID = uc.User.ID
	uc.Credential.CreatedAt = time.Unix(credCreated, 0).UTC()
	uc.Credential.UpdatedAt = time.Unix(credUpdated, 0).UTC()
	return &uc, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
