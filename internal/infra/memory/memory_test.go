package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"student-progress-bot/internal/domain"
	"student-progress-bot/internal/domain/model"
)

func TestStateRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("missing state reads as idle", func(t *testing.T) {
		repo := NewStateRepo()
		st, err := repo.GetState(ctx, 1)
		if err != nil {
			t.Fatal(err)
		}
		if !st.IsIdle() || st.TelegramID != 1 {
			t.Errorf("got %+v", st)
		}
	})

	t.Run("set, get, clear round trip", func(t *testing.T) {
		repo := NewStateRepo()
		id := int64(7)
		st := model.NewIdleState(1)
		st.Stage = model.StageAwaitingLessonText
		st.EditingLessonID = &id
		st.SetField("name", "Ann")

		if err := repo.SetState(ctx, 1, st); err != nil {
			t.Fatal(err)
		}
		got, err := repo.GetState(ctx, 1)
		if err != nil {
			t.Fatal(err)
		}
		if got.Stage != model.StageAwaitingLessonText || got.EditingLessonID == nil || *got.EditingLessonID != 7 {
			t.Errorf("got %+v", got)
		}
		if got.Field("name") != "Ann" {
			t.Errorf("field lost: %+v", got.Fields)
		}

		if err := repo.ClearState(ctx, 1); err != nil {
			t.Fatal(err)
		}
		got, _ = repo.GetState(ctx, 1)
		if !got.IsIdle() {
			t.Error("state should be idle after clear")
		}
	})

	t.Run("returned state is a copy", func(t *testing.T) {
		repo := NewStateRepo()
		st := model.NewIdleState(1)
		st.Stage = model.StageAwaitingName
		st.SetField("name", "Ann")
		_ = repo.SetState(ctx, 1, st)

		got, _ := repo.GetState(ctx, 1)
		got.Stage = model.StageIdle
		got.SetField("name", "Mallory")

		again, _ := repo.GetState(ctx, 1)
		if again.Stage != model.StageAwaitingName || again.Field("name") != "Ann" {
			t.Errorf("stored state mutated through the returned copy: %+v", again)
		}
	})

	t.Run("concurrent users stay isolated", func(t *testing.T) {
		repo := NewStateRepo()
		var wg sync.WaitGroup
		for u := int64(1); u <= 32; u++ {
			wg.Add(1)
			go func(u int64) {
				defer wg.Done()
				id := u * 10
				st := model.NewIdleState(u)
				st.Stage = model.StageAwaitingLessonText
				st.EditingLessonID = &id
				if err := repo.SetState(ctx, u, st); err != nil {
					t.Errorf("user %d: %v", u, err)
				}
			}(u)
		}
		wg.Wait()

		for u := int64(1); u <= 32; u++ {
			got, err := repo.GetState(ctx, u)
			if err != nil {
				t.Fatal(err)
			}
			if got.EditingLessonID == nil || *got.EditingLessonID != u*10 {
				t.Errorf("user %d editing id = %v", u, got.EditingLessonID)
			}
		}
	})
}

func TestLocker(t *testing.T) {
	ctx := context.Background()

	t.Run("lock, unlock, relock", func(t *testing.T) {
		l := NewLocker()
		tok, err := l.TryLock(ctx, "dialog_lock:1", time.Second)
		if err != nil {
			t.Fatal(err)
		}
		if err := l.Unlock(ctx, "dialog_lock:1", tok); err != nil {
			t.Fatal(err)
		}
		if _, err := l.TryLock(ctx, "dialog_lock:1", time.Second); err != nil {
			t.Fatalf("relock after unlock: %v", err)
		}
	})

	t.Run("contended key reports busy", func(t *testing.T) {
		l := NewLocker()
		if _, err := l.TryLock(ctx, "dialog_lock:1", time.Second); err != nil {
			t.Fatal(err)
		}
		if _, err := l.TryLock(ctx, "dialog_lock:1", time.Second); !errors.Is(err, domain.ErrBusy) {
			t.Fatalf("second acquisition = %v, want ErrBusy", err)
		}
	})

	t.Run("distinct keys do not contend", func(t *testing.T) {
		l := NewLocker()
		if _, err := l.TryLock(ctx, "dialog_lock:1", time.Second); err != nil {
			t.Fatal(err)
		}
		if _, err := l.TryLock(ctx, "dialog_lock:2", time.Second); err != nil {
			t.Fatalf("other user's lock: %v", err)
		}
	})

	t.Run("stale token cannot release a fresh lock", func(t *testing.T) {
		l := NewLocker()
		tok, _ := l.TryLock(ctx, "k", time.Second)
		_ = l.Unlock(ctx, "k", tok)
		tok2, _ := l.TryLock(ctx, "k", time.Second)
		_ = l.Unlock(ctx, "k", tok) // stale
		if _, err := l.TryLock(ctx, "k", time.Second); !errors.Is(err, domain.ErrBusy) {
			t.Fatalf("lock released by stale token: %v", err)
		}
		_ = l.Unlock(ctx, "k", tok2)
	})
}
