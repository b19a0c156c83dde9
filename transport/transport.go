// Package transport wraps outbound HTTP calls with bounded
// exponential-backoff retry. Transient failures (connection errors, timeouts,
// 5xx) are retried up to the policy budget; definitive rejections (4xx) and
// malformed responses return immediately. Callers classify failures through
// the ErrTransient / ErrRejected / ErrMalformed sentinels.
package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

var (
	// ErrTransient marks a failure that exhausted the retry budget.
	ErrTransient = errors.New("transient upstream failure")
	// ErrRejected marks a definitive upstream rejection (4xx). Never retried.
	ErrRejected = errors.New("upstream rejected request")
	// ErrMalformed marks a response body that did not parse.
	ErrMalformed = errors.New("malformed upstream response")
	// ErrInsecureTarget marks a non-TLS target URL. This is a configuration
	// error, not a runtime retry case.
	ErrInsecureTarget = errors.New("non-TLS target")
)

const maxDrainBytes = 64 << 10

// Policy bounds the retry loop. It is immutable after construction and
// carries no cross-call state; each call's attempt counter is its own.
type Policy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
}

// DefaultPolicy matches the upstream clients' historical behavior: three
// retries with a doubling backoff interval.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
	}
}

// Option modifies the retrying round tripper.
type Option func(*retryRoundTripper)

// WithBaseTransport overrides the underlying RoundTripper.
func WithBaseTransport(base http.RoundTripper) Option {
	return func(t *retryRoundTripper) {
		t.base = base
	}
}

// WithPlaintextAllowed permits http:// targets. Only for tests and local
// loopback upstreams; deployed transports stay TLS-only.
func WithPlaintextAllowed() Option {
	return func(t *retryRoundTripper) {
		t.allowPlaintext = true
	}
}

// NewClient builds an *http.Client whose transport retries per policy. The
// retry loop is invisible to callers beyond the error taxonomy.
func NewClient(policy Policy, options ...Option) *http.Client {
	return &http.Client{Transport: NewRoundTripper(policy, options...)}
}

// NewRoundTripper builds the retrying transport directly, for callers that
// compose their own client.
func NewRoundTripper(policy Policy, options ...Option) http.RoundTripper {
	t := &retryRoundTripper{
		base:   http.DefaultTransport,
		policy: policy,
	}
	for _, opt := range options {
		opt(t)
	}
	return t
}

type retryRoundTripper struct {
	base           http.RoundTripper
	policy         Policy
	allowPlaintext bool
}

func (t *retryRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme != "https" && !t.allowPlaintext {
		return nil, errors.Wrapf(ErrInsecureTarget, "[transport] %s", req.URL.Redacted())
	}

	// A body without GetBody cannot be replayed, so such requests get a
	// single attempt.
	if req.Body != nil && req.GetBody == nil {
		return t.base.RoundTrip(req)
	}

	var resp *http.Response
	var permanentErr error
	attempt := 0
	operation := func() error {
		attempt++
		if attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				permanentErr = errors.Wrap(err, "[transport] GetBody")
				return backoff.Permanent(permanentErr)
			}
			req.Body = body
		}

		r, err := t.base.RoundTrip(req)
		if err != nil {
			return err
		}
		if r.StatusCode >= http.StatusInternalServerError {
			drain(r)
			return errors.Errorf("upstream status %d", r.StatusCode)
		}
		resp = r
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = t.policy.InitialInterval
	bo.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(bo, t.policy.MaxRetries), req.Context()))
	if err != nil {
		// A permanent local failure is not a retry-exhausted transient one;
		// backoff strips the Permanent marker before returning.
		if permanentErr != nil {
			return nil, permanentErr
		}
		return nil, errors.Wrap(ErrTransient, err.Error())
	}
	return resp, nil
}

// drain consumes a response that will be retried so the underlying
// connection can be reused.
func drain(r *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, maxDrainBytes))
	_ = r.Body.Close()
}

// DecodeJSON consumes resp, mapping failures into the transport taxonomy:
// 4xx becomes ErrRejected and an unparseable body becomes ErrMalformed.
func DecodeJSON(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		drainRemaining(resp)
		return errors.Wrapf(ErrRejected, "[transport.DecodeJSON] upstream status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return errors.Wrap(ErrMalformed, err.Error())
	}
	return nil
}

func drainRemaining(r *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(r.Body, maxDrainBytes))
}
