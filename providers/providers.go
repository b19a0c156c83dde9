// Package providers abstracts over the gateway's credential sources. The
// orchestration layer rotates tokens and scopes cookies through this
// interface without knowing whether a provider is the self-hosted password
// engine or an upstream OAuth broker.
package providers

import (
	"context"

	"github.com/danielmulvad/tda-backend/tda"
	"github.com/danielmulvad/tda-backend/token"
	"github.com/pkg/errors"
)

// TokenPair is the provider-neutral result of a rotation.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Provider is one credential source.
type Provider interface {
	// Name identifies the provider in routes and logs.
	Name() string
	// CookieSuffix scopes this provider's cookies ("" for the first-party
	// pair, "_tda" for the brokerage pair).
	CookieSuffix() string
	// Rotate redeems refreshToken for a fresh token pair. The incoming
	// token value is never echoed back.
	Rotate(ctx context.Context, refreshToken string) (*TokenPair, error)
}

// LocalPassword is the self-hosted provider: sessions are this service's own
// HMAC claims, rotated without any network call.
type LocalPassword struct {
	Tokens *token.Manager
}

var _ Provider = (*LocalPassword)(nil)

func (p *LocalPassword) Name() string         { return "tradetracker" }
func (p *LocalPassword) CookieSuffix() string { return "" }

func (p *LocalPassword) Rotate(_ context.Context, refreshToken string) (*TokenPair, error) {
	rotated, err := p.Tokens.RotateRefreshToken(refreshToken)
	if err != nil {
		return nil, errors.Wrap(err, "[LocalPassword.Rotate]")
	}
	access, err := p.Tokens.MintAccessToken()
	if err != nil {
		return nil, errors.Wrap(err, "[LocalPassword.Rotate] MintAccessToken")
	}
	return &TokenPair{AccessToken: access, RefreshToken: rotated}, nil
}

// UpstreamOAuth is the brokerage provider: rotation re-exchanges the
// upstream refresh token over the wire.
type UpstreamOAuth struct {
	Client *tda.Client
}

var _ Provider = (*UpstreamOAuth)(nil)

func (p *UpstreamOAuth) Name() string         { return "tda" }
func (p *UpstreamOAuth) CookieSuffix() string { return "_tda" }

func (p *UpstreamOAuth) Rotate(ctx context.Context, refreshToken string) (*TokenPair, error) {
	tok, err := p.Client.ExchangeRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, errors.Wrap(err, "[UpstreamOAuth.Rotate]")
	}
	return &TokenPair{AccessToken: tok.AccessToken, RefreshToken: tok.RefreshToken}, nil
}
