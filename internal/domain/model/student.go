package model

import "student-progress-bot/internal/domain"

// Student is the backend-owned student record, referenced read-only here.
// TelegramID is the stable correlation key across sessions.
type Student struct {
	ID         int64  `json:"id"`
	TelegramID int64  `json:"telegram_id"`
	Name       string `json:"name"`
	Surname    string `json:"surname"`
}

// Lesson is a per-subject score owned by a student.
type Lesson struct {
	ID         int64  `json:"id"`
	TelegramID int64  `json:"telegram_id"`
	Title      string `json:"title"`
	Score      int    `json:"score"`
}

// NewStudent validates and constructs a Student value for create requests.
func NewStudent(tgID int64, name, surname string) (*Student, error) {
	if tgID <= 0 || name == "" || surname == "" {
		return nil, domain.ErrInvalidArgument
	}
	return &Student{TelegramID: tgID, Name: name, Surname: surname}, nil
}

// NewLesson validates and constructs a Lesson value for create requests.
func NewLesson(tgID int64, title string, score int) (*Lesson, error) {
	if tgID <= 0 || title == "" || score < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Lesson{TelegramID: tgID, Title: title, Score: score}, nil
}
