package model

// Stage marks which piece of information the bot expects next from a user.
type Stage string

const (
	StageIdle               Stage = "idle"
	StageAwaitingName       Stage = "awaiting_name"
	StageAwaitingSurname    Stage = "awaiting_surname"
	StageAwaitingLessonText Stage = "awaiting_lesson_text"
)

// ConversationState is the durable per-user dialog state. It is serialized
// as-is into the conversation store, so every field must round-trip JSON.
//
// EditingLessonID is set only while Stage is StageAwaitingLessonText and
// switches lesson completion from "create" to "update" semantics.
type ConversationState struct {
	TelegramID      int64             `json:"telegram_id"`
	Stage           Stage             `json:"stage"`
	Fields          map[string]string `json:"fields,omitempty"`
	EditingLessonID *int64            `json:"editing_lesson_id,omitempty"`
}

// NewIdleState returns the zero conversation for a user. An absent store
// entry reads as this value.
func NewIdleState(tgID int64) *ConversationState {
	return &ConversationState{TelegramID: tgID, Stage: StageIdle}
}

// SetField records an accumulated free-text field, allocating lazily.
func (s *ConversationState) SetField(key, value string) {
	if s.Fields == nil {
		s.Fields = make(map[string]string, 2)
	}
	s.Fields[key] = value
}

// Field returns an accumulated field or "".
func (s *ConversationState) Field(key string) string {
	return s.Fields[key]
}

// IsIdle reports whether no multi-step dialog is in flight.
func (s *ConversationState) IsIdle() bool {
	return s == nil || s.Stage == StageIdle || s.Stage == ""
}
