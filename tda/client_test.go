package tda_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielmulvad/tda-backend/internal/config"
	"github.com/danielmulvad/tda-backend/tda"
	"github.com/danielmulvad/tda-backend/transport"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "GUUU9EWYV1ULXCG7GCTSQDFI73FHZGNT"

func testConfig(apiBaseURL string) *config.Config {
	return &config.Config{
		Env:            "local",
		TDAAPIKey:      testAPIKey,
		TDACallbackURL: "https://localhost:3000/api/auth/callback/tda",
		TDAAuthURL:     "https://auth.tdameritrade.com/auth",
		TDAAPIBaseURL:  apiBaseURL,
	}
}

func testClient(apiBaseURL string, options ...tda.ClientOption) *tda.Client {
	httpClient := transport.NewClient(
		transport.Policy{MaxRetries: 3, InitialInterval: time.Millisecond},
		transport.WithPlaintextAllowed(),
	)
	return tda.New(testConfig(apiBaseURL), httpClient, options...)
}

func TestAuthorizationURL(t *testing.T) {
	client := testClient("https://api.tdameritrade.com/v1")

	// The upstream contract fixes parameter order and encoding; assert byte
	// for byte.
	require.Equal(t,
		"https://auth.tdameritrade.com/auth?response_type=code&redirect_uri=https%3A%2F%2Flocalhost%3A3000%2Fapi%2Fauth%2Fcallback%2Ftda&client_id=GUUU9EWYV1ULXCG7GCTSQDFI73FHZGNT%40AMER.OAUTHAP&scope=AccountAccess",
		client.AuthorizationURL(),
	)
}

func tokenEndpoint(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /oauth2/token", handler)
	return httptest.NewServer(mux)
}

func TestExchangeAuthorizationCode(t *testing.T) {
	srv := tokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		require.Equal(t, "offline", r.PostForm.Get("access_type"))
		require.Equal(t, "one-time-code", r.PostForm.Get("code"))
		require.Equal(t, testAPIKey, r.PostForm.Get("client_id"))
		require.Equal(t, "https://localhost:3000/api/auth/callback/tda", r.PostForm.Get("redirect_uri"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "upstream-access",
			"token_type":    "Bearer",
			"expires_in":    1800,
			"refresh_token": "upstream-refresh",
			"scope":         "AccountAccess",
		})
	})
	defer srv.Close()

	client := testClient(srv.URL)
	tok, err := client.ExchangeAuthorizationCode(context.Background(), "one-time-code")
	require.NoError(t, err)

	require.Equal(t, "upstream-access", tok.AccessToken)
	require.Equal(t, "Bearer", tok.TokenType)
	require.Equal(t, "upstream-refresh", tok.RefreshToken)
	require.Equal(t, "AccountAccess", tok.Scope)
	require.EqualValues(t, 1800, tok.ExpiresIn)
}

func TestExchangeRefreshToken(t *testing.T) {
	srv := tokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		require.Equal(t, "old-refresh", r.PostForm.Get("refresh_token"))
		require.Equal(t, testAPIKey, r.PostForm.Get("client_id"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "new-access",
			"token_type":    "Bearer",
			"expires_in":    1800,
			"refresh_token": "new-refresh",
			"scope":         "AccountAccess",
		})
	})
	defer srv.Close()

	client := testClient(srv.URL)
	tok, err := client.ExchangeRefreshToken(context.Background(), "old-refresh")
	require.NoError(t, err)

	// The rotated-in refresh token is the upstream's new one, never an echo
	// of the old value.
	require.Equal(t, "new-refresh", tok.RefreshToken)
	require.Equal(t, "new-access", tok.AccessToken)
}

func TestExchangeRejectedCodeIsNotRetried(t *testing.T) {
	var calls int32
	srv := tokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	})
	defer srv.Close()

	client := testClient(srv.URL)
	_, err := client.ExchangeAuthorizationCode(context.Background(), "already-used-code")
	require.ErrorIs(t, err, transport.ErrRejected)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls), "a consumed code must not be re-posted")
}

func TestExchangeTransientFailure(t *testing.T) {
	var calls int32
	srv := tokenEndpoint(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})
	defer srv.Close()

	client := testClient(srv.URL)
	_, err := client.ExchangeRefreshToken(context.Background(), "old-refresh")
	require.ErrorIs(t, err, transport.ErrTransient)
	require.EqualValues(t, 4, atomic.LoadInt32(&calls), "5xx retried to the policy budget")
}

func TestGetAccounts(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /accounts", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer upstream-access", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"securitiesAccount":{"accountId":"12345678","type":"CASH","currentBalances":{"cashBalance":1000.5,"liquidationValue":2000.25}}}]`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(srv.URL)
	accounts, err := client.GetAccounts(context.Background(), "upstream-access")
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	require.Equal(t, "12345678", accounts[0].SecuritiesAccount.AccountID)
	require.Equal(t, 1000.5, accounts[0].SecuritiesAccount.CurrentBalances.CashBalance)
}
