package repository

import (
	"context"
	"time"

	"student-progress-bot/internal/domain/model"
)

// StateRepository is the Conversation Store port. Implementations must be
// safe for concurrent use across distinct users; per-user ordering is the
// Dialog Engine's responsibility (see Locker).
type StateRepository interface {
	// GetState returns the user's dialog state, or an idle state when absent.
	GetState(ctx context.Context, tgID int64) (*model.ConversationState, error)
	SetState(ctx context.Context, tgID int64, state *model.ConversationState) error
	ClearState(ctx context.Context, tgID int64) error
}

// Locker provides keyed mutual exclusion so that two events for the same
// user never run their dialog transitions concurrently.
type Locker interface {
	// TryLock attempts to acquire the key within a bounded number of
	// retries and returns an opaque token for Unlock.
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
