package adapter

import (
	"context"

	"student-progress-bot/internal/domain/model"
)

// DataService is the typed client port for the backend student/lesson CRUD
// API. Definitive rejections surface as domain sentinels (domain.ErrNotFound,
// domain.ErrAlreadyExists); transport failures and timeouts surface as
// domain.ErrUnavailable. Callers branch with errors.Is instead of inspecting
// status codes.
type DataService interface {
	GetStudent(ctx context.Context, tgID int64) (*model.Student, error)
	CreateStudent(ctx context.Context, tgID int64, name, surname string) (*model.Student, error)
	ListLessons(ctx context.Context, tgID int64) ([]model.Lesson, error)
	CreateLesson(ctx context.Context, tgID int64, title string, score int) (*model.Lesson, error)
	UpdateLesson(ctx context.Context, lessonID, tgID int64, title string, score int) (*model.Lesson, error)
	DeleteLesson(ctx context.Context, lessonID int64) error
}
