package transport

import (
	"strings"
	"sync"
)

// AuthState holds the process-wide bearer credential. It is set once at
// startup (or when the user signs in) and read by every call; there is
// exactly one setter.
type AuthState struct {
	mu    sync.RWMutex
	token string
}

// NewAuthState creates an auth state, optionally seeded with a token.
func NewAuthState(token string) *AuthState {
	return &AuthState{token: strings.TrimSpace(token)}
}

// SetToken replaces the bearer token. An empty token clears it.
func (a *AuthState) SetToken(token string) {
	if a == nil {
		return
	}
	a.mu.Lock()
	a.token = strings.TrimSpace(token)
	a.mu.Unlock()
}

// Token returns the current bearer token, or empty when unauthenticated.
func (a *AuthState) Token() string {
	if a == nil {
		return ""
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}
