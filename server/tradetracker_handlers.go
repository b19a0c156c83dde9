package server

import (
	stderrors "errors"
	"net/http"

	"github.com/danielmulvad/tda-backend/cookies"
	"github.com/danielmulvad/tda-backend/password"
	"github.com/danielmulvad/tda-backend/providers"
	"github.com/danielmulvad/tda-backend/transport"
	"github.com/danielmulvad/tda-backend/turnstile"
	"github.com/danielmulvad/tda-backend/users"
	"github.com/rs/zerolog/log"
)

type signUpRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	TurnstileResponse string `json:"cf-turnstile-response"`
}

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// SignUp verifies the bot challenge, hashes the password, and stores the new
// account. No session is created; the client signs in afterwards.
func (s *Server) SignUp(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest[signUpRequest](r)
	if err != nil || req.Email == "" || req.Password == "" {
		returnError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if err := s.verifier.Verify(r.Context(), req.TurnstileResponse); err != nil {
		if stderrors.Is(err, turnstile.ErrChallengeFailed) {
			returnError(w, http.StatusBadRequest, "challenge verification failed")
			return
		}
		log.Err(err).Msg("turnstile verification")
		returnError(w, http.StatusBadGateway, "challenge verification unavailable")
		return
	}

	hash, err := password.Hash(req.Password)
	if err != nil {
		log.Err(err).Msg("password hashing")
		returnError(w, http.StatusInternalServerError, "could not create account")
		return
	}

	if _, err := s.users.CreateWithCredential(r.Context(), req.Email, hash); err != nil {
		if stderrors.Is(err, users.ErrEmailTaken) {
			returnError(w, http.StatusBadRequest, "email already registered")
			return
		}
		log.Err(err).Msg("create user")
		returnError(w, http.StatusInternalServerError, "could not create account")
		return
	}

	returnJSON(w, http.StatusOK, messageResponse{Message: "account created"})
}

// SignIn checks the credentials and establishes a first-party session. An
// unknown email and a wrong password produce an identical response so the
// endpoint does not leak which addresses are registered.
func (s *Server) SignIn(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest[signInRequest](r)
	if err != nil || req.Email == "" || req.Password == "" {
		returnError(w, http.StatusBadRequest, "invalid email or password")
		return
	}

	cred, err := s.users.GetCredentialByEmail(r.Context(), req.Email)
	if err != nil || !password.Verify(req.Password, cred.Credential.PasswordHash) {
		if err != nil && !stderrors.Is(err, users.ErrNotFound) {
			log.Err(err).Msg("credential lookup")
		}
		returnError(w, http.StatusBadRequest, "invalid email or password")
		return
	}

	access, err := s.tokens.MintAccessToken()
	if err != nil {
		log.Err(err).Msg("mint access token")
		returnError(w, http.StatusInternalServerError, "could not establish session")
		return
	}
	refresh, err := s.tokens.MintRefreshToken()
	if err != nil {
		log.Err(err).Msg("mint refresh token")
		returnError(w, http.StatusInternalServerError, "could not establish session")
		return
	}

	s.setSessionCookies(w, s.local, access, refresh)
	returnJSON(w, http.StatusOK, providers.TokenPair{AccessToken: access, RefreshToken: refresh})
}

// SignOut tombstones every provider's session cookies. It succeeds whether or
// not a session exists.
func (s *Server) SignOut(w http.ResponseWriter, r *http.Request) {
	for _, p := range s.providers {
		http.SetCookie(w, s.cookieMgr.Expire(cookies.AccessTokenName+p.CookieSuffix()))
		http.SetCookie(w, s.cookieMgr.Expire(cookies.RefreshTokenName+p.CookieSuffix()))
	}
	returnJSON(w, http.StatusOK, messageResponse{Message: "signed out"})
}

// RefreshHandler builds the rotation endpoint for one provider. The refresh
// token is read from the provider's cookie, falling back to a
// {refresh_token} JSON body for clients that do not hold cookies. On success
// both cookies are replaced with the freshly issued pair; existing cookies
// are left untouched on failure.
func (s *Server) RefreshHandler(p providers.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := refreshTokenFromRequest(r, p)
		if raw == "" {
			returnError(w, http.StatusUnauthorized, "missing refresh token")
			return
		}

		pair, err := p.Rotate(r.Context(), raw)
		if err != nil {
			if stderrors.Is(err, transport.ErrTransient) {
				log.Err(err).Str("provider", p.Name()).Msg("refresh rotation")
				returnError(w, http.StatusBadGateway, "upstream unavailable")
				return
			}
			returnError(w, http.StatusUnauthorized, "invalid refresh token")
			return
		}

		s.setSessionCookies(w, p, pair.AccessToken, pair.RefreshToken)
		returnJSON(w, http.StatusOK, pair)
	}
}

func refreshTokenFromRequest(r *http.Request, p providers.Provider) string {
	if c, err := r.Cookie(cookies.RefreshTokenName + p.CookieSuffix()); err == nil && c.Value != "" {
		return c.Value
	}
	req, err := decodeRequest[refreshRequest](r)
	if err != nil {
		return ""
	}
	return req.RefreshToken
}

func (s *Server) setSessionCookies(w http.ResponseWriter, p providers.Provider, access, refresh string) {
	http.SetCookie(w, s.cookieMgr.Build(cookies.AccessTokenName+p.CookieSuffix(), access, cookies.Access))
	http.SetCookie(w, s.cookieMgr.Build(cookies.RefreshTokenName+p.CookieSuffix(), refresh, cookies.Refresh))
}
