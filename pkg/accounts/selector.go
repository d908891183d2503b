// Package accounts provides upstream account handles and the selection
// policy used by the streaming pipeline.
package accounts

import (
	"errors"
	"log/slog"
	"sync"

	"quantra-hq/hermes/pkg/providers"
)

// ErrNoAccountAvailable is returned when every configured account is
// excluded (typically by the recovery circuit breaker). It is terminal:
// the pipeline does not retry it.
var ErrNoAccountAvailable = errors.New("no upstream account available")

// Account is one configured upstream provider account.
type Account struct {
	// ID is the opaque account identifier used for circuit breaking
	ID string `yaml:"id"`

	// APIKey authenticates against the upstream
	APIKey string `yaml:"api_key"`

	// BaseURL is the account's API endpoint
	BaseURL string `yaml:"base_url"`

	// Model is the default model requested through this account
	Model string `yaml:"model"`
}

// Credentials converts the account into a per-call provider handle.
func (a *Account) Credentials() providers.Credentials {
	return providers.Credentials{
		AccountID: a.ID,
		APIKey:    a.APIKey,
		BaseURL:   a.BaseURL,
		Model:     a.Model,
	}
}

// Selector picks an upstream account for one stream attempt. The exclude
// predicate filters accounts currently held out by the circuit breaker;
// re-selection between retries may therefore land on a different account
// than the failing one.
type Selector interface {
	Select(exclude func(accountID string) bool) (*Account, error)
}

// RoundRobinSelector distributes attempts across the configured accounts
// in rotation, skipping excluded ones.
type RoundRobinSelector struct {
	mu       sync.Mutex
	accounts []*Account
	next     int
}

// NewRoundRobinSelector creates a selector over the given accounts.
func NewRoundRobinSelector(accts []*Account) *RoundRobinSelector {
	return &RoundRobinSelector{accounts: accts}
}

// Select returns the next non-excluded account in rotation, or
// ErrNoAccountAvailable when none remain.
func (s *RoundRobinSelector) Select(exclude func(accountID string) bool) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.accounts) == 0 {
		return nil, ErrNoAccountAvailable
	}

	for i := 0; i < len(s.accounts); i++ {
		acct := s.accounts[s.next%len(s.accounts)]
		s.next++
		if exclude != nil && exclude(acct.ID) {
			slog.Debug("account excluded from selection", "account", acct.ID)
			continue
		}
		return acct, nil
	}
	return nil, ErrNoAccountAvailable
}

// Len returns the number of configured accounts.
func (s *RoundRobinSelector) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}
