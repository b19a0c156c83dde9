// Package tda is the client-side integration with the TD Ameritrade OAuth
// endpoint: authorization-URL construction, authorization-code exchange, and
// refresh-token exchange. Upstream tokens are ephemeral; they are handed back
// to the caller and never persisted here.
package tda

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	stderrors "errors"

	"github.com/danielmulvad/tda-backend/internal/config"
	"github.com/danielmulvad/tda-backend/transport"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const authScope = "AccountAccess"

// TokenResponse is the upstream token envelope. It is held only for the
// duration of one request/response cycle, then folded into cookies.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

// Client talks to the brokerage OAuth and trading API. It is immutable after
// construction and safe for concurrent use.
type Client struct {
	apiKey      string
	authURL     string
	apiBaseURL  string
	callbackURL string
	oauth       *oauth2.Config
	httpClient  *http.Client
	nowFunc     func() time.Time
}

// ClientOption defines a function type to modify the Client instance.
type ClientOption func(*Client)

// WithNowFunc sets the now time function (primarily for testing expiry math).
func WithNowFunc(now func() time.Time) ClientOption {
	return func(c *Client) {
		c.nowFunc = now
	}
}

// New builds a Client from configuration. httpClient carries the retry
// policy; every upstream call goes through it.
func New(cfg *config.Config, httpClient *http.Client, options ...ClientOption) *Client {
	c := &Client{
		apiKey:      cfg.TDAAPIKey,
		authURL:     cfg.TDAAuthURL,
		apiBaseURL:  cfg.TDAAPIBaseURL,
		callbackURL: cfg.TDACallbackURL,
		httpClient:  httpClient,
		nowFunc:     time.Now,
		oauth: &oauth2.Config{
			ClientID:    cfg.TDAAPIKey,
			RedirectURL: cfg.TDACallbackURL,
			Scopes:      []string{authScope},
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.TDAAuthURL,
				TokenURL:  cfg.TDAAPIBaseURL + "/oauth2/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// AuthorizationURL builds the upstream consent URL. The parameter order and
// encoding are part of the upstream contract; callers assert the result byte
// for byte, so it is assembled by hand rather than through oauth2.AuthCodeURL.
func (c *Client) AuthorizationURL() string {
	return fmt.Sprintf(
		"%s?response_type=code&redirect_uri=%s&client_id=%s%%40AMER.OAUTHAP&scope=%s",
		c.authURL,
		url.QueryEscape(c.callbackURL),
		c.apiKey,
		authScope,
	)
}

// ExchangeAuthorizationCode trades a one-time authorization code for an
// upstream token pair. Codes are single-use and short-lived: a 4xx here is
// definitive (ErrRejected) and is never retried.
func (c *Client) ExchangeAuthorizationCode(ctx context.Context, code string) (*TokenResponse, error) {
	tok, err := c.oauth.Exchange(c.oauthContext(ctx), code,
		oauth2.SetAuthURLParam("access_type", "offline"))
	if err != nil {
		return nil, mapExchangeError(err, "[Client.ExchangeAuthorizationCode]")
	}
	return c.fromOAuth2Token(tok), nil
}

// ExchangeRefreshToken trades an upstream refresh token for a fresh token
// pair. Same error taxonomy as the code exchange.
func (c *Client) ExchangeRefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	src := c.oauth.TokenSource(c.oauthContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, mapExchangeError(err, "[Client.ExchangeRefreshToken]")
	}
	return c.fromOAuth2Token(tok), nil
}

// oauthContext injects the retrying client so the oauth2 exchanges share the
// resilient transport with every other upstream call.
func (c *Client) oauthContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
}

func (c *Client) fromOAuth2Token(tok *oauth2.Token) *TokenResponse {
	out := &TokenResponse{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		out.Scope = scope
	}
	out.ExpiresIn = expiresIn(tok, c.nowFunc)
	return out
}

func expiresIn(tok *oauth2.Token, now func() time.Time) int64 {
	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	if tok.Expiry.IsZero() {
		return 0
	}
	return int64(tok.Expiry.Sub(now()).Seconds())
}

// mapExchangeError folds oauth2 failures into the transport taxonomy. The
// retrying transport has already consumed the retry budget by the time an
// error surfaces here.
func mapExchangeError(err error, opCtx string) error {
	if stderrors.Is(err, transport.ErrInsecureTarget) {
		return err
	}

	var retrieveErr *oauth2.RetrieveError
	if stderrors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		if status >= http.StatusInternalServerError {
			return errors.Wrapf(transport.ErrTransient, "%s upstream status %d", opCtx, status)
		}
		return errors.Wrapf(transport.ErrRejected, "%s upstream status %d", opCtx, status)
	}

	var urlErr *url.Error
	if stderrors.As(err, &urlErr) {
		return errors.Wrapf(transport.ErrTransient, "%s %v", opCtx, urlErr)
	}

	return errors.Wrapf(transport.ErrMalformed, "%s %v", opCtx, err)
}
