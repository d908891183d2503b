package stream

import (
	"context"
	"errors"

	"quantra-hq/hermes/pkg/accounts"
	"quantra-hq/hermes/pkg/providers"
)

// Kind is the error classification consumed by the retry policy.
type Kind string

const (
	// KindNetwork is a transport-level failure (connect, reset, EOF).
	KindNetwork Kind = "network"

	// KindTimeout is a deadline exceeded talking to the upstream.
	KindTimeout Kind = "timeout"

	// KindRateLimit is an upstream 429.
	KindRateLimit Kind = "rate_limited"

	// KindUpstream is an upstream API failure (5xx, malformed response,
	// truncated stream). It trips the account circuit breaker.
	KindUpstream Kind = "upstream_error"

	// KindAuth is an upstream credential rejection. Not retryable.
	KindAuth Kind = "auth_error"

	// KindNoAccount means every account is excluded or none configured.
	// Terminal.
	KindNoAccount Kind = "no_account_available"

	// KindCancelled means the request's context was cancelled.
	KindCancelled Kind = "cancelled"

	// KindUnknown is anything unclassified. Treated as retryable so a
	// novel transient failure is still retried.
	KindUnknown Kind = "unknown"
)

// Retryable reports whether the retry loop should attempt again.
func (k Kind) Retryable() bool {
	switch k {
	case KindNetwork, KindTimeout, KindRateLimit, KindUpstream, KindUnknown:
		return true
	}
	return false
}

// TripsBreaker reports whether the failing account should be marked
// failed for the recovery window. Only account-class upstream failures
// trip the breaker; transport problems say nothing about the account.
func (k Kind) TripsBreaker() bool {
	return k == KindUpstream
}

// Classify maps an error from the provider or selector into a Kind.
// Classification is separate from the retry policy so each is testable
// on its own.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, accounts.ErrNoAccountAvailable) {
		return KindNoAccount
	}

	var (
		authErr    *providers.AuthError
		rateErr    *providers.RateLimitError
		timeoutErr *providers.TimeoutError
		netErr     *providers.NetworkError
		parseErr   *providers.ParseError
		streamErr  *providers.StreamError
		upErr      *providers.UpstreamError
	)
	switch {
	case errors.As(err, &authErr):
		return KindAuth
	case errors.As(err, &rateErr):
		return KindRateLimit
	case errors.As(err, &timeoutErr):
		return KindTimeout
	case errors.As(err, &netErr):
		return KindNetwork
	case errors.As(err, &parseErr):
		return KindUpstream
	case errors.As(err, &streamErr):
		return KindUpstream
	case errors.As(err, &upErr):
		return KindUpstream
	}

	return KindUnknown
}
