package service

import (
	"crypto/subtle"
	"sync"
	"time"
)

// SessionRegistry tracks which operators hold an authenticated privileged
// session and for how long. State is in-process only; sessions do not
// survive a restart and are not required to.
type SessionRegistry struct {
	pin   string
	super map[int64]bool
	ttl   time.Duration

	mu       sync.Mutex
	sessions map[int64]time.Time // operator -> expiry

	// Now is the clock used for expiry checks; tests override it.
	Now func() time.Time
}

// NewSessionRegistry creates a registry with the shared PIN, the statically
// configured super-operators and the session lifetime.
func NewSessionRegistry(pin string, superIDs []int64, ttl time.Duration) *SessionRegistry {
	super := make(map[int64]bool, len(superIDs))
	for _, id := range superIDs {
		super[id] = true
	}
	return &SessionRegistry{
		pin:      pin,
		super:    super,
		ttl:      ttl,
		sessions: make(map[int64]time.Time),
		Now:      time.Now,
	}
}

// Authenticate verifies a presented PIN against the configured secret.
func (r *SessionRegistry) Authenticate(operator int64, presentedPIN string) bool {
	return subtle.ConstantTimeCompare([]byte(presentedPIN), []byte(r.pin)) == 1
}

// StartSession opens (or renews) the operator's session. A new login
// overwrites the prior expiry.
func (r *SessionRegistry) StartSession(operator int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[operator] = r.Now().Add(r.ttl)
}

// Login is Authenticate followed by StartSession on success.
func (r *SessionRegistry) Login(operator int64, presentedPIN string) bool {
	if !r.Authenticate(operator, presentedPIN) {
		return false
	}
	r.StartSession(operator)
	return true
}

// IsAuthorized reports whether the operator is a configured super-operator
// or holds a live session. Expiry is checked lazily here, not swept.
func (r *SessionRegistry) IsAuthorized(operator int64) bool {
	if r.super[operator] {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	expiry, ok := r.sessions[operator]
	if !ok {
		return false
	}
	if !r.Now().Before(expiry) {
		delete(r.sessions, operator)
		return false
	}
	return true
}

// EndSession removes the operator's session immediately regardless of
// expiry.
func (r *SessionRegistry) EndSession(operator int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, operator)
}
