package memory

import (
	"context"
	"sync"

	"student-progress-bot/internal/domain/model"
	"student-progress-bot/internal/domain/ports/repository"
)

var _ repository.StateRepository = (*StateRepo)(nil)

// StateRepo is an in-process Conversation Store for dev mode and tests.
// It does not survive restarts; production deployments use the Redis store.
type StateRepo struct {
	mu     sync.RWMutex
	states map[int64]*model.ConversationState
}

func NewStateRepo() *StateRepo {
	return &StateRepo{states: make(map[int64]*model.ConversationState)}
}

func (s *StateRepo) GetState(_ context.Context, tgID int64) (*model.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[tgID]
	if !ok {
		return model.NewIdleState(tgID), nil
	}
	cp := *st
	if st.Fields != nil {
		cp.Fields = make(map[string]string, len(st.Fields))
		for k, v := range st.Fields {
			cp.Fields[k] = v
		}
	}
	return &cp, nil
}

func (s *StateRepo) SetState(_ context.Context, tgID int64, state *model.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *state
	s.states[tgID] = &cp
	return nil
}

func (s *StateRepo) ClearState(_ context.Context, tgID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, tgID)
	return nil
}
