package dataservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"student-progress-bot/internal/domain"
	"student-progress-bot/internal/domain/model"
	"student-progress-bot/internal/domain/ports/adapter"
	"student-progress-bot/internal/infra/metrics"
)

var _ adapter.DataService = (*Client)(nil)

// Client is the typed HTTP wrapper around the student/lesson CRUD backend.
// It holds no state beyond the connection pool; all conversation semantics
// live in the Dialog Engine.
//
// Status mapping: 404 -> domain.ErrNotFound, 409 -> domain.ErrAlreadyExists,
// transport errors and timeouts -> domain.ErrUnavailable.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     logger,
	}
}

type studentPayload struct {
	TelegramID int64  `json:"telegram_id"`
	Name       string `json:"name"`
	Surname    string `json:"surname"`
}

type lessonPayload struct {
	ID         int64  `json:"id,omitempty"`
	TelegramID int64  `json:"telegram_id"`
	Title      string `json:"title"`
	Score      int    `json:"score"`
}

func (c *Client) GetStudent(ctx context.Context, tgID int64) (*model.Student, error) {
	var student model.Student
	err := c.do(ctx, "get_student", http.MethodGet, fmt.Sprintf("/student/%d", tgID), nil, &student)
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (c *Client) CreateStudent(ctx context.Context, tgID int64, name, surname string) (*model.Student, error) {
	if _, err := model.NewStudent(tgID, name, surname); err != nil {
		return nil, err
	}
	body := studentPayload{TelegramID: tgID, Name: name, Surname: surname}
	var student model.Student
	err := c.do(ctx, "create_student", http.MethodPost, "/student", body, &student)
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (c *Client) ListLessons(ctx context.Context, tgID int64) ([]model.Lesson, error) {
	var lessons []model.Lesson
	err := c.do(ctx, "list_lessons", http.MethodGet, fmt.Sprintf("/lessons/%d", tgID), nil, &lessons)
	if err != nil {
		return nil, err
	}
	return lessons, nil
}

func (c *Client) CreateLesson(ctx context.Context, tgID int64, title string, score int) (*model.Lesson, error) {
	if _, err := model.NewLesson(tgID, title, score); err != nil {
		return nil, err
	}
	body := lessonPayload{TelegramID: tgID, Title: title, Score: score}
	var lesson model.Lesson
	err := c.do(ctx, "create_lesson", http.MethodPost, "/lessons", body, &lesson)
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (c *Client) UpdateLesson(ctx context.Context, lessonID, tgID int64, title string, score int) (*model.Lesson, error) {
	if _, err := model.NewLesson(tgID, title, score); err != nil {
		return nil, err
	}
	body := lessonPayload{ID: lessonID, TelegramID: tgID, Title: title, Score: score}
	var lesson model.Lesson
	err := c.do(ctx, "update_lesson", http.MethodPut, "/lessons", body, &lesson)
	if err != nil {
		return nil, err
	}
	return &lesson, nil
}

func (c *Client) DeleteLesson(ctx context.Context, lessonID int64) error {
	return c.do(ctx, "delete_lesson", http.MethodDelete, fmt.Sprintf("/lessons/%d", lessonID), nil, nil)
}

// do performs one request and decodes a 200 response into out (when non-nil).
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.ObserveBackend(op, outcome, float64(time.Since(start).Milliseconds()))
	}()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and transport errors are indistinguishable to the dialog:
		// both surface as the backend being unavailable.
		c.log.Warn().Err(err).Str("op", op).Msg("data service request failed")
		return fmt.Errorf("%s: %w", op, domain.ErrUnavailable)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		outcome = "ok"
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			outcome = "error"
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
		return nil
	case http.StatusNotFound:
		outcome = "not_found"
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case http.StatusConflict:
		outcome = "conflict"
		return fmt.Errorf("%s: %w", op, domain.ErrAlreadyExists)
	default:
		c.log.Warn().Str("op", op).Int("status", resp.StatusCode).Msg("data service rejected request")
		return fmt.Errorf("%s: status %d: %w", op, resp.StatusCode, domain.ErrUnavailable)
	}
}
