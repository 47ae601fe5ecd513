package domain

import (
	"context"
	"time"
)

// Recipient is a registered end user eligible to receive broadcasts.
// Records are created once on first observed interaction and never updated
// or deleted by the engine.
type Recipient struct {
	ID          int64
	DisplayName string
	FirstSeen   time.Time
}

// RecipientDirectory is the append-only registry of users who have
// interacted with the bot.
type RecipientDirectory interface {
	// Register records a user on first contact. Registering an already
	// known identity is a no-op.
	Register(ctx context.Context, id int64, displayName string) error

	// Get returns a recipient record, or ErrNotFound.
	Get(ctx context.Context, id int64) (Recipient, error)

	// ListIdentities returns all registered identities in first-seen order.
	ListIdentities(ctx context.Context) ([]int64, error)

	// Count returns the number of registered recipients.
	Count(ctx context.Context) (int, error)
}
