// Package cookies derives session-cookie attributes from the deployment
// context and mints or expires the gateway's cookie kinds. Provider-scoped
// cookies are the same kinds under a suffixed name; the manager is
// parameterized by name and knows nothing about providers.
package cookies

import (
	"net/http"
	"time"

	"github.com/danielmulvad/tda-backend/internal/config"
)

// First-party cookie names. Provider-scoped variants append the provider
// suffix, e.g. "access_token_tda".
const (
	AccessTokenName  = "access_token"
	RefreshTokenName = "refresh_token"
)

// Kind selects the expiry window of a cookie.
type Kind int

const (
	Access Kind = iota
	Refresh
)

const (
	defaultAccessWindow  = 30 * time.Minute
	defaultRefreshWindow = 7 * 24 * time.Hour
)

// Manager computes cookie attributes once at construction; the deployment
// context is not re-evaluated per request.
type Manager struct {
	domain        string
	secure        bool
	accessWindow  time.Duration
	refreshWindow time.Duration
	nowFunc       func() time.Time
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithNowFunc sets the now time function (primarily for testing).
func WithNowFunc(now func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowFunc = now
	}
}

// WithWindows overrides the access and refresh expiry windows.
func WithWindows(access, refresh time.Duration) ManagerOption {
	return func(m *Manager) {
		m.accessWindow = access
		m.refreshWindow = refresh
	}
}

// NewManager derives the attribute policy from cfg. Local mode drops Secure
// and domain pinning for developer ergonomics; deployed mode enforces both.
func NewManager(cfg *config.Config, options ...ManagerOption) *Manager {
	m := &Manager{
		accessWindow:  defaultAccessWindow,
		refreshWindow: defaultRefreshWindow,
		nowFunc:       time.Now,
	}
	if !cfg.IsLocal() {
		m.domain = cfg.BaseURLHost()
		m.secure = true
	}
	for _, opt := range options {
		opt(m)
	}
	return m
}

// Build mints a cookie of the given kind with the policy's attributes.
func (m *Manager) Build(name, value string, kind Kind) *http.Cookie {
	window := m.accessWindow
	if kind == Refresh {
		window = m.refreshWindow
	}
	c := m.base(name)
	c.Value = value
	c.Expires = m.nowFunc().Add(window)
	return c
}

// Expire returns a tombstone for name: empty value, expiry now. Setting it
// deletes the client-side state on the next response.
func (m *Manager) Expire(name string) *http.Cookie {
	c := m.base(name)
	c.Expires = m.nowFunc()
	c.MaxAge = -1
	return c
}

func (m *Manager) base(name string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Path:     "/",
		Domain:   m.domain,
		Secure:   m.secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
