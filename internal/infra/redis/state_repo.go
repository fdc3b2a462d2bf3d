package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"student-progress-bot/internal/domain/model"
	"student-progress-bot/internal/domain/ports/repository"
)

var _ repository.StateRepository = (*StateRepo)(nil)

// StateRepo is the Redis-backed Conversation Store. State is stored as JSON
// under a per-user key with a TTL, so a half-finished dialog survives a
// process restart but not an abandoned afternoon.
type StateRepo struct {
	client *Client
	ttl    time.Duration
}

func NewStateRepo(client *Client, ttl time.Duration) *StateRepo {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &StateRepo{client: client, ttl: ttl}
}

func (s *StateRepo) stateKey(tgID int64) string {
	return fmt.Sprintf("conv_state:%d", tgID)
}

func (s *StateRepo) SetState(ctx context.Context, tgID int64, state *model.ConversationState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.stateKey(tgID), data, s.ttl)
}

func (s *StateRepo) GetState(ctx context.Context, tgID int64) (*model.ConversationState, error) {
	data, err := s.client.Get(ctx, s.stateKey(tgID))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.NewIdleState(tgID), nil
		}
		return nil, err
	}

	var state model.ConversationState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *StateRepo) ClearState(ctx context.Context, tgID int64) error {
	return s.client.Del(ctx, s.stateKey(tgID))
}
