// Package auth validates client tokens and resolves them to user ids.
package auth

import (
	"context"
	"errors"
	"sync"
)

// ErrInvalidToken is returned when a token is unknown or disabled.
var ErrInvalidToken = errors.New("invalid token")

// TokenInfo describes one issued token.
type TokenInfo struct {
	// Token is the opaque credential presented by the client
	Token string `yaml:"token"`

	// UserID is the user the token resolves to
	UserID string `yaml:"user_id"`

	// Enabled allows revoking a token without removing it
	Enabled bool `yaml:"enabled"`
}

// Authenticator resolves a client token to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (userID string, err error)
}

// TokenValidator validates tokens against a configured set. Token
// verification is an external concern in production deployments; this
// in-process implementation backs development and tests.
type TokenValidator struct {
	mu     sync.RWMutex
	tokens map[string]*TokenInfo
}

// NewTokenValidator creates a validator over the given tokens.
func NewTokenValidator(tokens []*TokenInfo) *TokenValidator {
	m := make(map[string]*TokenInfo, len(tokens))
	for _, t := range tokens {
		m[t.Token] = t
	}
	return &TokenValidator{tokens: m}
}

// Authenticate implements Authenticator.
func (v *TokenValidator) Authenticate(_ context.Context, token string) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	info, ok := v.tokens[token]
	if !ok || !info.Enabled {
		return "", ErrInvalidToken
	}
	return info.UserID, nil
}

// Add registers a token.
func (v *TokenValidator) Add(info *TokenInfo) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.tokens[info.Token] = info
}

// Remove revokes a token entirely.
func (v *TokenValidator) Remove(token string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.tokens, token)
}
