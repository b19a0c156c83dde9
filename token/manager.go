// Package token mints and validates the gateway's first-party session
// claims. Access and refresh tokens are HS256 JWTs signed with distinct
// secrets; a token minted for one purpose never validates against the
// other's secret.
package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Claim subjects. The subject is the only payload the gateway cares about:
// it marks what a token may be used for.
const (
	SubjectAccess  = "access_token"
	SubjectRefresh = "refresh_token"
)

const (
	defaultAccessExpiry  = time.Hour
	defaultRefreshExpiry = 7 * 24 * time.Hour
)

var (
	// ErrInvalidToken covers bad signature, expiry, and malformed structure.
	// Callers surface all three as the same 401.
	ErrInvalidToken = errors.New("invalid token")
	// ErrWrongSubject is returned when an access token is fed into refresh
	// rotation. It must be surfaced to clients identically to ErrInvalidToken.
	ErrWrongSubject = errors.New("wrong token subject")
)

// Claims is the decoded payload of a session token.
type Claims = jwt.RegisteredClaims

// Manager creates and validates session tokens. It is immutable after
// construction and safe for concurrent use.
type Manager struct {
	accessSecret  []byte
	refreshSecret []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	nowFunc       func() time.Time
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithExpiry overrides the access and refresh token lifetimes.
func WithExpiry(accessExpiry, refreshExpiry time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessExpiry = accessExpiry
		m.refreshExpiry = refreshExpiry
	}
}

// WithNowFunc sets the now time function (primarily for testing).
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// New creates a Manager signing access tokens with accessSecret and refresh
// tokens with refreshSecret.
func New(accessSecret, refreshSecret string, options ...ManagerOption) *Manager {
	m := &Manager{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessExpiry:  defaultAccessExpiry,
		refreshExpiry: defaultRefreshExpiry,
		nowFunc:       time.Now,
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// MintAccessToken creates a signed access claim valid for the access window.
func (m *Manager) MintAccessToken() (string, error) {
	return m.mint(SubjectAccess, m.accessExpiry, m.accessSecret)
}

// MintRefreshToken creates a signed refresh claim valid for the refresh window.
func (m *Manager) MintRefreshToken() (string, error) {
	return m.mint(SubjectRefresh, m.refreshExpiry, m.refreshSecret)
}

func (m *Manager) mint(subject string, expiry time.Duration, secret []byte) (string, error) {
	now := m.nowFunc()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", errors.Wrap(err, "[Manager.mint] SignedString")
	}
	return signed, nil
}

// ValidateAccessToken verifies signature and expiry against the access
// secret. Every failure mode collapses to ErrInvalidToken.
func (m *Manager) ValidateAccessToken(raw string) (*Claims, error) {
	return m.validate(raw, m.accessSecret)
}

// ValidateRefreshToken verifies signature and expiry against the refresh
// secret. Every failure mode collapses to ErrInvalidToken.
func (m *Manager) ValidateRefreshToken(raw string) (*Claims, error) {
	return m.validate(raw, m.refreshSecret)
}

func (m *Manager) validate(raw string, secret []byte) (*Claims, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims,
		func(*jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.nowFunc),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RotateRefreshToken validates raw as a refresh claim and mints a fresh one.
// Feeding an access token in yields ErrWrongSubject, never a rotated token.
func (m *Manager) RotateRefreshToken(raw string) (string, error) {
	claims, err := m.ValidateRefreshToken(raw)
	if err != nil {
		return "", err
	}
	if claims.Subject != SubjectRefresh {
		return "", ErrWrongSubject
	}
	return m.MintRefreshToken()
}
