package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"student-progress-bot/internal/domain"
	"student-progress-bot/internal/domain/ports/repository"
)

var _ repository.Locker = (*Locker)(nil)

// Locker is an in-process keyed lock with the same contract as the Redis
// one: bounded acquisition attempts, token-guarded release. Single-instance
// deployments and tests only.
type Locker struct {
	mu     sync.Mutex
	tokens map[string]string
}

func NewLocker() *Locker {
	return &Locker{tokens: make(map[string]string)}
}

func (l *Locker) TryLock(ctx context.Context, key string, _ time.Duration) (string, error) {
	token := uuid.NewString()
	for i := 0; i < 5; i++ {
		l.mu.Lock()
		if _, held := l.tokens[key]; !held {
			l.tokens[key] = token
			l.mu.Unlock()
			return token, nil
		}
		l.mu.Unlock()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return "", domain.ErrBusy
}

func (l *Locker) Unlock(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tokens[key] == token {
		delete(l.tokens, key)
	}
	return nil
}
