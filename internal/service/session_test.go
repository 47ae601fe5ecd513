package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionLogin(t *testing.T) {
	r := NewSessionRegistry("4321", nil, 2*time.Hour)

	assert.False(t, r.Login(7, "1234"))
	assert.False(t, r.IsAuthorized(7))

	assert.True(t, r.Login(7, "4321"))
	assert.True(t, r.IsAuthorized(7))
}

func TestSessionExpiry(t *testing.T) {
	r := NewSessionRegistry("4321", nil, 2*time.Hour)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.Now = func() time.Time { return now }

	assert.True(t, r.Login(7, "4321"))
	assert.True(t, r.IsAuthorized(7))

	// Just inside the TTL.
	now = now.Add(2*time.Hour - time.Minute)
	assert.True(t, r.IsAuthorized(7))

	// Past the TTL the session lapses.
	now = now.Add(2 * time.Minute)
	assert.False(t, r.IsAuthorized(7))
}

func TestSessionRenewalOnRelogin(t *testing.T) {
	r := NewSessionRegistry("4321", nil, 2*time.Hour)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.Now = func() time.Time { return now }

	assert.True(t, r.Login(7, "4321"))

	now = now.Add(90 * time.Minute)
	assert.True(t, r.Login(7, "4321"))

	// The renewed session outlives the original expiry.
	now = now.Add(90 * time.Minute)
	assert.True(t, r.IsAuthorized(7))
}

func TestSuperOperatorAlwaysAuthorized(t *testing.T) {
	r := NewSessionRegistry("4321", []int64{99}, time.Minute)

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	r.Now = func() time.Time { return now }

	assert.True(t, r.IsAuthorized(99))

	// No TTL applies to configured operators.
	now = now.Add(48 * time.Hour)
	assert.True(t, r.IsAuthorized(99))
}

func TestEndSession(t *testing.T) {
	r := NewSessionRegistry("4321", nil, 2*time.Hour)

	assert.True(t, r.Login(7, "4321"))
	r.EndSession(7)
	assert.False(t, r.IsAuthorized(7))

	// Ending an absent session is harmless.
	r.EndSession(8)
}
