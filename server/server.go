// Package server wires the credential providers, cookie manager, and
// credential store into the gateway's HTTP surface. Each flow is a
// request-scoped sequence; no state survives past the response.
package server

import (
	"net/http"

	"github.com/danielmulvad/tda-backend/cookies"
	"github.com/danielmulvad/tda-backend/internal/config"
	"github.com/danielmulvad/tda-backend/providers"
	"github.com/danielmulvad/tda-backend/tda"
	"github.com/danielmulvad/tda-backend/token"
	"github.com/danielmulvad/tda-backend/transport"
	"github.com/danielmulvad/tda-backend/turnstile"
	"github.com/danielmulvad/tda-backend/users"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Server is the auth gateway's HTTP handler.
type Server struct {
	mux    *http.ServeMux
	routes []string

	config    *config.Config
	users     users.Repo
	tokens    *token.Manager
	cookieMgr *cookies.Manager
	tdaClient *tda.Client
	verifier  *turnstile.Verifier

	local     *providers.LocalPassword
	upstream  *providers.UpstreamOAuth
	providers []providers.Provider
}

// Option defines a function type to modify the Server instance.
type Option func(*Server)

// WithTokenManager overrides the session token manager.
func WithTokenManager(m *token.Manager) Option {
	return func(s *Server) { s.tokens = m }
}

// WithCookieManager overrides the session cookie manager.
func WithCookieManager(m *cookies.Manager) Option {
	return func(s *Server) { s.cookieMgr = m }
}

// WithTDAClient overrides the upstream OAuth client.
func WithTDAClient(c *tda.Client) Option {
	return func(s *Server) { s.tdaClient = c }
}

// WithVerifier overrides the bot-challenge verifier.
func WithVerifier(v *turnstile.Verifier) Option {
	return func(s *Server) { s.verifier = v }
}

// New builds the gateway from configuration. All upstream calls share one
// retrying HTTP client; retry state never crosses requests.
func New(cfg *config.Config, userRepo users.Repo, options ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("[server.New] config is required")
	}
	if userRepo == nil {
		return nil, errors.New("[server.New] user repo is required")
	}

	httpClient := transport.NewClient(transport.DefaultPolicy())

	s := &Server{
		mux:       http.NewServeMux(),
		config:    cfg,
		users:     userRepo,
		tokens:    token.New(cfg.JWTAccessTokenSecret, cfg.JWTRefreshTokenSecret),
		cookieMgr: cookies.NewManager(cfg),
		tdaClient: tda.New(cfg, httpClient),
	}

	verifierOpts := []turnstile.VerifierOption{}
	if cfg.IsLocal() || cfg.TurnstileSecretKey == "" {
		verifierOpts = append(verifierOpts, turnstile.WithDisabled())
	}
	s.verifier = turnstile.New(cfg.TurnstileSecretKey, httpClient, verifierOpts...)

	for _, opt := range options {
		opt(s)
	}

	s.local = &providers.LocalPassword{Tokens: s.tokens}
	s.upstream = &providers.UpstreamOAuth{Client: s.tdaClient}
	s.providers = []providers.Provider{s.local, s.upstream}

	s.initRoutes()
	s.logRoutes()

	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// RegisterRouteFunc registers a handler and records the pattern for startup
// logging.
func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	if !s.config.IsLocal() {
		return
	}
	for _, route := range s.routes {
		log.Debug().Str("route", route).Msg("registered")
	}
}
