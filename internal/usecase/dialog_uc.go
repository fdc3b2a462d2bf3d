package usecase

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"student-progress-bot/internal/domain"
	"student-progress-bot/internal/domain/model"
	"student-progress-bot/internal/domain/ports/adapter"
	"student-progress-bot/internal/domain/ports/repository"
	"student-progress-bot/internal/infra/logging"
)

// Compile-time check
var _ DialogUseCase = (*dialogUC)(nil)

// Reply is what the engine wants rendered back to the user. EditOrigin asks
// the transport to replace the message that carried the pressed button
// (dropping its keyboard) instead of sending a new one.
type Reply struct {
	Text       string
	Buttons    [][]adapter.InlineButton
	EditOrigin bool
}

// DialogUseCase drives the per-user conversational state machine. Both entry
// points serialize per user: two concurrent events for the same Telegram id
// never interleave their read-then-write of conversation state.
type DialogUseCase interface {
	HandleMessage(ctx context.Context, tgID int64, firstName, text string) (Reply, error)
	// HandleCallback returns handled=false for unrecognized payloads,
	// which are dropped without a reply or a state change.
	HandleCallback(ctx context.Context, tgID int64, data string) (reply Reply, handled bool, err error)
}

const (
	fieldName    = "name"
	fieldSurname = "surname"

	lockTTL = 30 * time.Second
)

var praises = []string{
	"\n\nWell done!",
	"\n\nExcellent results!",
	"\n\nI can see real progress!",
}

type dialogUC struct {
	states  repository.StateRepository
	locks   repository.Locker
	data    adapter.DataService
	timeout time.Duration
	log     *zerolog.Logger
}

func NewDialogUseCase(
	states repository.StateRepository,
	locks repository.Locker,
	data adapter.DataService,
	timeout time.Duration,
	logger *zerolog.Logger,
) *dialogUC {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &dialogUC{states: states, locks: locks, data: data, timeout: timeout, log: logger}
}

func (d *dialogUC) HandleMessage(ctx context.Context, tgID int64, firstName, text string) (Reply, error) {
	defer logging.TraceDuration(d.log, "DialogUC.HandleMessage")()

	unlock, err := d.lockUser(ctx, tgID)
	if err != nil {
		return busyReply(), nil
	}
	defer unlock()

	state, err := d.states.GetState(ctx, tgID)
	if err != nil {
		d.log.Error().Err(err).Int64("tg_id", tgID).Msg("get conversation state")
		return Reply{Text: "Something went wrong, please try again."}, err
	}

	// An active stage consumes raw text before command classification, so a
	// user mid-dialog can name a subject "/start" if they insist.
	switch state.Stage {
	case model.StageAwaitingName:
		return d.handleName(ctx, state, text)
	case model.StageAwaitingSurname:
		return d.handleSurname(ctx, state, text)
	case model.StageAwaitingLessonText:
		return d.handleLessonText(ctx, state, text)
	}

	intent := ParseMessage(text)
	switch intent.Kind {
	case IntentStart:
		return d.handleStart(ctx, tgID, firstName), nil
	case IntentRegister:
		return d.handleRegister(ctx, tgID)
	case IntentViewScores:
		return d.handleViewScores(ctx, tgID), nil
	case IntentEnterScores:
		return d.handleEnterScores(ctx, tgID), nil
	}
	return Reply{Text: "I didn't understand that.\nCommands: /start, /register, /view_scores, /enter_scores"}, nil
}

func (d *dialogUC) HandleCallback(ctx context.Context, tgID int64, data string) (Reply, bool, error) {
	defer logging.TraceDuration(d.log, "DialogUC.HandleCallback")()

	intent, ok := ParseCallback(data)
	if !ok {
		d.log.Debug().Int64("tg_id", tgID).Str("data", data).Msg("ignoring unknown callback payload")
		return Reply{}, false, nil
	}

	unlock, err := d.lockUser(ctx, tgID)
	if err != nil {
		return busyReply(), true, nil
	}
	defer unlock()

	switch intent.Kind {
	case IntentAddLesson:
		return d.enterLessonStage(ctx, tgID, nil)
	case IntentEditLesson:
		id := intent.LessonID
		return d.enterLessonStage(ctx, tgID, &id)
	case IntentDeleteLesson:
		return d.handleDeleteLesson(ctx, intent.LessonID), true, nil
	}
	return Reply{}, false, nil
}

// ---- Idle transitions ----

func (d *dialogUC) handleStart(ctx context.Context, tgID int64, firstName string) Reply {
	student, err := d.getStudent(ctx, tgID)
	if err == nil {
		return Reply{Text: fmt.Sprintf("Hi, %s! 👋\nReady to keep tracking your progress?", student.Name)}
	}
	if !errors.Is(err, domain.ErrNotFound) {
		d.log.Warn().Err(err).Int64("tg_id", tgID).Msg("student lookup failed on /start")
	}
	return Reply{Text: fmt.Sprintf(
		"Hi, %s! 👋\nI'm a bot that helps you track your exam scores.\nTo register, send /register", firstName)}
}

func (d *dialogUC) handleRegister(ctx context.Context, tgID int64) (Reply, error) {
	if _, err := d.getStudent(ctx, tgID); err == nil {
		return Reply{Text: "You are already registered"}, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		// Backend unreachable reads as "not registered yet"; the create
		// call at the end of the flow is the authoritative check.
		d.log.Warn().Err(err).Int64("tg_id", tgID).Msg("student lookup failed on /register")
	}

	state := model.NewIdleState(tgID)
	state.Stage = model.StageAwaitingName
	if err := d.states.SetState(ctx, tgID, state); err != nil {
		d.log.Error().Err(err).Int64("tg_id", tgID).Msg("save conversation state")
		return Reply{Text: "Something went wrong, please try again."}, err
	}
	return Reply{Text: "Great! First, send me your name"}, nil
}

func (d *dialogUC) handleViewScores(ctx context.Context, tgID int64) Reply {
	lessons := d.listLessons(ctx, tgID)

	var sb strings.Builder
	sb.WriteString("==Your progress==\n")
	if len(lessons) == 0 {
		sb.WriteString("You have no saved subjects")
		return Reply{Text: sb.String()}
	}
	for _, l := range lessons {
		sb.WriteString(fmt.Sprintf("\n%s: *%d*", l.Title, l.Score))
	}
	sb.WriteString(praises[rand.Intn(len(praises))])
	return Reply{Text: sb.String()}
}

func (d *dialogUC) handleEnterScores(ctx context.Context, tgID int64) Reply {
	lessons := d.listLessons(ctx, tgID)

	var sb strings.Builder
	rows := make([][]adapter.InlineButton, 0, len(lessons)+1)
	if len(lessons) > 0 {
		sb.WriteString("Pick a subject to change, or add a new one:\n")
		for _, l := range lessons {
			sb.WriteString(fmt.Sprintf("\n%s: *%d*", l.Title, l.Score))
			rows = append(rows, []adapter.InlineButton{
				{Text: fmt.Sprintf("📝 Edit %s", l.Title), Data: fmt.Sprintf("edit_%d", l.ID)},
				{Text: fmt.Sprintf("🗑️ Delete %s", l.Title), Data: fmt.Sprintf("del_%d", l.ID)},
			})
		}
	} else {
		sb.WriteString("You have no saved subjects")
	}
	rows = append(rows, []adapter.InlineButton{{Text: "➕ Add a new subject", Data: "add_lesson"}})
	return Reply{Text: sb.String(), Buttons: rows}
}

// ---- Registration stages ----

func (d *dialogUC) handleName(ctx context.Context, state *model.ConversationState, text string) (Reply, error) {
	name := strings.TrimSpace(text)
	if name == "" {
		return Reply{Text: "Please send me your name as plain text"}, nil
	}
	state.SetField(fieldName, name)
	state.Stage = model.StageAwaitingSurname
	if err := d.states.SetState(ctx, state.TelegramID, state); err != nil {
		d.log.Error().Err(err).Int64("tg_id", state.TelegramID).Msg("save conversation state")
		return Reply{Text: "Something went wrong, please try again."}, err
	}
	return Reply{Text: fmt.Sprintf("Name *%s* saved!\n\nNow send your *surname*:", name)}, nil
}

func (d *dialogUC) handleSurname(ctx context.Context, state *model.ConversationState, text string) (Reply, error) {
	tgID := state.TelegramID
	// Registration finishes here one way or another; the user re-runs
	// /register after a failure rather than resuming a half-done dialog.
	defer d.clearState(ctx, tgID)

	surname := strings.TrimSpace(text)
	if surname == "" {
		return Reply{Text: "❌ Registration failed: surname is empty.\n\nTry again: /register"}, nil
	}
	name := state.Field(fieldName)

	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	_, err := d.data.CreateStudent(cctx, tgID, name, surname)
	switch {
	case err == nil:
		return Reply{Text: fmt.Sprintf(
			"✅ *Registration complete!*\n\n*%s %s* is now registered!\n\nYou can now add subjects and track your progress.",
			name, surname)}, nil
	case errors.Is(err, domain.ErrAlreadyExists):
		return Reply{Text: "❌ Registration failed: you are already registered"}, nil
	default:
		d.log.Error().Err(err).Int64("tg_id", tgID).Msg("create student")
		return Reply{Text: "❌ Registration failed.\n\nTry again: /register"}, nil
	}
}

// ---- Lesson stages ----

func (d *dialogUC) enterLessonStage(ctx context.Context, tgID int64, editing *int64) (Reply, bool, error) {
	state := model.NewIdleState(tgID)
	state.Stage = model.StageAwaitingLessonText
	state.EditingLessonID = editing
	if err := d.states.SetState(ctx, tgID, state); err != nil {
		d.log.Error().Err(err).Int64("tg_id", tgID).Msg("save conversation state")
		return Reply{Text: "Something went wrong, please try again.", EditOrigin: true}, true, err
	}
	return Reply{Text: "Send your score as: `Subject name = 100`", EditOrigin: true}, true, nil
}

func (d *dialogUC) handleLessonText(ctx context.Context, state *model.ConversationState, text string) (Reply, error) {
	tgID := state.TelegramID

	title, score, err := ParseLessonEntry(text)
	if err != nil {
		// The only path that keeps the stage alive: the user retries in place.
		return Reply{Text: "Wrong message format.\nThe message must match: `Subject name = 100`"}, nil
	}

	defer d.clearState(ctx, tgID)

	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if state.EditingLessonID != nil {
		_, err = d.data.UpdateLesson(cctx, *state.EditingLessonID, tgID, title, score)
		switch {
		case err == nil:
			return Reply{Text: "✅ *Subject updated!*"}, nil
		case errors.Is(err, domain.ErrNotFound):
			return Reply{Text: "❌ Could not update the subject: it no longer exists"}, nil
		default:
			d.log.Error().Err(err).Int64("tg_id", tgID).Int64("lesson_id", *state.EditingLessonID).Msg("update lesson")
			return Reply{Text: "❌ Could not update the subject, please try again later"}, nil
		}
	}

	_, err = d.data.CreateLesson(cctx, tgID, title, score)
	switch {
	case err == nil:
		return Reply{Text: "✅ *Subject added!*"}, nil
	case errors.Is(err, domain.ErrNotFound):
		return Reply{Text: "❌ Could not add the subject: register first with /register"}, nil
	default:
		d.log.Error().Err(err).Int64("tg_id", tgID).Msg("create lesson")
		return Reply{Text: "❌ Could not add the subject, please try again later"}, nil
	}
}

func (d *dialogUC) handleDeleteLesson(ctx context.Context, lessonID int64) Reply {
	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	if err := d.data.DeleteLesson(cctx, lessonID); err != nil {
		d.log.Error().Err(err).Int64("lesson_id", lessonID).Msg("delete lesson")
		return Reply{Text: "Failed to delete the subject!", EditOrigin: true}
	}
	return Reply{Text: "The subject was deleted!", EditOrigin: true}
}

// ---- Helpers ----

func (d *dialogUC) lockUser(ctx context.Context, tgID int64) (func(), error) {
	key := fmt.Sprintf("dialog_lock:%d", tgID)
	token, err := d.locks.TryLock(ctx, key, lockTTL)
	if err != nil {
		d.log.Warn().Err(err).Int64("tg_id", tgID).Msg("user dialog is locked")
		return nil, err
	}
	return func() {
		if err := d.locks.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			d.log.Warn().Err(err).Int64("tg_id", tgID).Msg("unlock user dialog")
		}
	}, nil
}

func (d *dialogUC) getStudent(ctx context.Context, tgID int64) (*model.Student, error) {
	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.data.GetStudent(cctx, tgID)
}

// listLessons degrades to an empty list when the backend is unreachable so
// read-only views still render.
func (d *dialogUC) listLessons(ctx context.Context, tgID int64) []model.Lesson {
	cctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	lessons, err := d.data.ListLessons(cctx, tgID)
	if err != nil {
		d.log.Warn().Err(err).Int64("tg_id", tgID).Msg("list lessons failed")
		return nil
	}
	return lessons
}

func (d *dialogUC) clearState(ctx context.Context, tgID int64) {
	if err := d.states.ClearState(context.WithoutCancel(ctx), tgID); err != nil {
		d.log.Error().Err(err).Int64("tg_id", tgID).Msg("clear conversation state")
	}
}

func busyReply() Reply {
	return Reply{Text: "One moment, I'm still processing your previous message 🙏"}
}
