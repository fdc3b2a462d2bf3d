package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"student-progress-bot/internal/domain"
	"student-progress-bot/internal/domain/model"
)

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

// memStateRepo is a small in-memory conversation store used by unit tests.
type memStateRepo struct {
	mu     sync.RWMutex
	states map[int64]*model.ConversationState

	getErr error // used by tests to simulate store failures
	setErr error
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{states: make(map[int64]*model.ConversationState)}
}

func (m *memStateRepo) GetState(_ context.Context, tgID int64) (*model.ConversationState, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[tgID]
	if !ok {
		return model.NewIdleState(tgID), nil
	}
	cp := *st
	return &cp, nil
}

func (m *memStateRepo) SetState(_ context.Context, tgID int64, state *model.ConversationState) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.states[tgID] = &cp
	return nil
}

func (m *memStateRepo) ClearState(_ context.Context, tgID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, tgID)
	return nil
}

// stage returns the stored stage for assertions, idle when absent.
func (m *memStateRepo) stage(tgID int64) model.Stage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.states[tgID]; ok {
		return st.Stage
	}
	return model.StageIdle
}

func (m *memStateRepo) editingID(tgID int64) *int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.states[tgID]; ok {
		return st.EditingLessonID
	}
	return nil
}

// mockLocker hands out locks immediately and records usage. Set busy to
// simulate a contended user.
type mockLocker struct {
	mu      sync.Mutex
	busy    bool
	lockCnt int
}

func (l *mockLocker) TryLock(_ context.Context, _ string, _ time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.busy {
		return "", domain.ErrBusy
	}
	l.lockCnt++
	return "token", nil
}

func (l *mockLocker) Unlock(_ context.Context, _, _ string) error { return nil }

// mockDataService implements the backend port with overridable function
// fields; unset mutating operations fail loudly via ErrUnavailable.
type mockDataService struct {
	mu    sync.Mutex
	calls []string

	GetStudentFunc    func(ctx context.Context, tgID int64) (*model.Student, error)
	CreateStudentFunc func(ctx context.Context, tgID int64, name, surname string) (*model.Student, error)
	ListLessonsFunc   func(ctx context.Context, tgID int64) ([]model.Lesson, error)
	CreateLessonFunc  func(ctx context.Context, tgID int64, title string, score int) (*model.Lesson, error)
	UpdateLessonFunc  func(ctx context.Context, lessonID, tgID int64, title string, score int) (*model.Lesson, error)
	DeleteLessonFunc  func(ctx context.Context, lessonID int64) error
}

func newMockDataService() *mockDataService { return &mockDataService{} }

func (m *mockDataService) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, op)
}

func (m *mockDataService) callCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (m *mockDataService) GetStudent(ctx context.Context, tgID int64) (*model.Student, error) {
	m.record("get_student")
	if m.GetStudentFunc != nil {
		return m.GetStudentFunc(ctx, tgID)
	}
	return nil, domain.ErrNotFound
}

func (m *mockDataService) CreateStudent(ctx context.Context, tgID int64, name, surname string) (*model.Student, error) {
	m.record("create_student")
	if m.CreateStudentFunc != nil {
		return m.CreateStudentFunc(ctx, tgID, name, surname)
	}
	return nil, domain.ErrUnavailable
}

func (m *mockDataService) ListLessons(ctx context.Context, tgID int64) ([]model.Lesson, error) {
	m.record("list_lessons")
	if m.ListLessonsFunc != nil {
		return m.ListLessonsFunc(ctx, tgID)
	}
	return nil, nil
}

func (m *mockDataService) CreateLesson(ctx context.Context, tgID int64, title string, score int) (*model.Lesson, error) {
	m.record("create_lesson")
	if m.CreateLessonFunc != nil {
		return m.CreateLessonFunc(ctx, tgID, title, score)
	}
	return nil, domain.ErrUnavailable
}

func (m *mockDataService) UpdateLesson(ctx context.Context, lessonID, tgID int64, title string, score int) (*model.Lesson, error) {
	m.record("update_lesson")
	if m.UpdateLessonFunc != nil {
		return m.UpdateLessonFunc(ctx, lessonID, tgID, title, score)
	}
	return nil, domain.ErrUnavailable
}

func (m *mockDataService) DeleteLesson(ctx context.Context, lessonID int64) error {
	m.record("delete_lesson")
	if m.DeleteLessonFunc != nil {
		return m.DeleteLessonFunc(ctx, lessonID)
	}
	return domain.ErrUnavailable
}
