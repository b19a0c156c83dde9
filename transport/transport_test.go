package transport_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danielmulvad/tda-backend/transport"
	"github.com/stretchr/testify/require"
)

func testPolicy() transport.Policy {
	return transport.Policy{MaxRetries: 3, InitialInterval: time.Millisecond}
}

func TestRetriesTransientThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := transport.NewClient(testPolicy(), transport.WithPlaintextAllowed())
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestNoRetryOnRejection(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := transport.NewClient(testPolicy(), transport.WithPlaintextAllowed())
	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls), "4xx must not be retried")
}

func TestTransientAfterExhaustedBudget(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := transport.NewClient(testPolicy(), transport.WithPlaintextAllowed())
	_, err := client.Get(srv.URL) //nolint:bodyclose // no response on error
	require.ErrorIs(t, err, transport.ErrTransient)
	require.EqualValues(t, 4, atomic.LoadInt32(&calls), "initial attempt plus three retries")
}

func TestRetryReplaysRequestBody(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		require.Equal(t, "payload", string(body))
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := transport.NewClient(testPolicy(), transport.WithPlaintextAllowed())
	resp, err := client.Post(srv.URL, "text/plain", strings.NewReader("payload"))
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestReplayFailureIsNotTransient(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := transport.NewClient(testPolicy(), transport.WithPlaintextAllowed())
	req, err := http.NewRequest(http.MethodPost, srv.URL, strings.NewReader("payload"))
	require.NoError(t, err)
	// The body source is gone: the first retry cannot replay the request.
	req.GetBody = func() (io.ReadCloser, error) {
		return nil, errors.New("body source gone")
	}

	_, err = client.Do(req) //nolint:bodyclose // no response on error
	require.Error(t, err)
	require.NotErrorIs(t, err, transport.ErrTransient)
	require.Contains(t, err.Error(), "body source gone")
	require.EqualValues(t, 1, atomic.LoadInt32(&calls), "replay failure must stop the retry loop")
}

func TestRejectsPlaintextTargetByDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request must never reach a non-TLS target")
	}))
	defer srv.Close()

	client := transport.NewClient(testPolicy())
	_, err := client.Get(srv.URL) //nolint:bodyclose // no response on error
	require.ErrorIs(t, err, transport.ErrInsecureTarget)
}
