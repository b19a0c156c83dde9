package server

import (
	stderrors "errors"
	"net/http"

	"github.com/danielmulvad/tda-backend/cookies"
	"github.com/danielmulvad/tda-backend/transport"
	"github.com/rs/zerolog/log"
)

type authorizationURLResponse struct {
	URL string `json:"url"`
}

// AuthorizationURL returns the brokerage consent URL for the client to
// navigate to.
func (s *Server) AuthorizationURL(w http.ResponseWriter, _ *http.Request) {
	returnJSON(w, http.StatusOK, authorizationURLResponse{URL: s.tdaClient.AuthorizationURL()})
}

// Callback lands the user back from the brokerage consent screen. The
// one-time code is exchanged for an upstream token pair, the pair is folded
// into provider-scoped cookies, and the user is redirected to the app. A
// failed exchange redirects without cookies; the landing page re-initiates
// consent when the session is absent.
func (s *Server) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		log.Warn().Msg("callback without code")
		http.Redirect(w, r, s.config.BaseURL, http.StatusTemporaryRedirect)
		return
	}

	tok, err := s.tdaClient.ExchangeAuthorizationCode(r.Context(), code)
	if err != nil {
		log.Err(err).Msg("authorization code exchange")
		http.Redirect(w, r, s.config.BaseURL, http.StatusTemporaryRedirect)
		return
	}

	s.setSessionCookies(w, s.upstream, tok.AccessToken, tok.RefreshToken)
	http.Redirect(w, r, s.config.BaseURL, http.StatusTemporaryRedirect)
}

// Accounts proxies the brokerage account list using the caller's upstream
// access token.
func (s *Server) Accounts(w http.ResponseWriter, r *http.Request) {
	upstreamToken, ok := s.upstreamAccessToken(w, r)
	if !ok {
		return
	}

	accounts, err := s.tdaClient.GetAccounts(r.Context(), upstreamToken)
	if err != nil {
		s.returnUpstreamError(w, err, "fetch accounts")
		return
	}
	returnJSON(w, http.StatusOK, accounts)
}

// Orders proxies the order list for one brokerage account.
func (s *Server) Orders(w http.ResponseWriter, r *http.Request) {
	upstreamToken, ok := s.upstreamAccessToken(w, r)
	if !ok {
		return
	}

	orders, err := s.tdaClient.GetOrders(r.Context(), r.PathValue("accountID"), upstreamToken)
	if err != nil {
		s.returnUpstreamError(w, err, "fetch orders")
		return
	}
	returnJSON(w, http.StatusOK, orders)
}

// upstreamAccessToken reads the brokerage access token cookie. A missing
// cookie means the upstream session lapsed; the client refreshes and retries.
func (s *Server) upstreamAccessToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	c, err := r.Cookie(cookies.AccessTokenName + s.upstream.CookieSuffix())
	if err != nil || c.Value == "" {
		returnError(w, http.StatusUnauthorized, "missing brokerage session")
		return "", false
	}
	return c.Value, true
}

func (s *Server) returnUpstreamError(w http.ResponseWriter, err error, opName string) {
	log.Err(err).Msg(opName)
	if stderrors.Is(err, transport.ErrTransient) {
		returnError(w, http.StatusBadGateway, "upstream unavailable")
		return
	}
	returnError(w, http.StatusUnauthorized, "brokerage session rejected")
}
