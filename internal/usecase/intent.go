package usecase

import (
	"strconv"
	"strings"

	"student-progress-bot/internal/domain"
)

// IntentKind classifies what the user is trying to do.
type IntentKind int

const (
	IntentFreeText IntentKind = iota
	IntentStart
	IntentRegister
	IntentViewScores
	IntentEnterScores
	IntentAddLesson
	IntentEditLesson
	IntentDeleteLesson
)

// Intent is the normalized, transient representation of one inbound event.
// It is never persisted.
type Intent struct {
	Kind     IntentKind
	Text     string // raw text for IntentFreeText
	LessonID int64  // set for IntentEditLesson / IntentDeleteLesson
}

// ParseMessage classifies inbound text into a command intent or free text.
// Only the four user-facing commands are recognized; anything else, slash
// prefixed or not, is free text and may be consumed by an active dialog
// stage.
func ParseMessage(text string) Intent {
	trimmed := strings.TrimSpace(text)
	cmd := trimmed
	if i := strings.IndexAny(cmd, " \t"); i >= 0 {
		cmd = cmd[:i]
	}
	// Group chats append the bot username to commands.
	if i := strings.IndexByte(cmd, '@'); i >= 0 {
		cmd = cmd[:i]
	}
	switch cmd {
	case "/start":
		return Intent{Kind: IntentStart}
	case "/register":
		return Intent{Kind: IntentRegister}
	case "/view_scores":
		return Intent{Kind: IntentViewScores}
	case "/enter_scores":
		return Intent{Kind: IntentEnterScores}
	}
	return Intent{Kind: IntentFreeText, Text: text}
}

// ParseCallback parses inline-button payloads: the literal "add_lesson", or
// "edit_<id>" / "del_<id>". Unrecognized payloads return ok=false and are
// dropped by the caller without touching conversation state.
func ParseCallback(data string) (Intent, bool) {
	switch {
	case data == "add_lesson":
		return Intent{Kind: IntentAddLesson}, true
	case strings.HasPrefix(data, "edit_"):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, "edit_"), 10, 64)
		if err != nil {
			return Intent{}, false
		}
		return Intent{Kind: IntentEditLesson, LessonID: id}, true
	case strings.HasPrefix(data, "del_"):
		id, err := strconv.ParseInt(strings.TrimPrefix(data, "del_"), 10, 64)
		if err != nil {
			return Intent{}, false
		}
		return Intent{Kind: IntentDeleteLesson, LessonID: id}, true
	}
	return Intent{}, false
}

// ParseLessonEntry splits lesson text on a single "=" into a title and a
// score. Whichever trimmed side is a valid non-negative integer becomes the
// score, the other the title, so "Math = 90" and "90 = Math" are equivalent.
// A purely numeric subject name is therefore ambiguous and rejected; this
// mirrors the historical input contract rather than guessing an order.
func ParseLessonEntry(text string) (title string, score int, err error) {
	parts := strings.Split(text, "=")
	if len(parts) != 2 {
		return "", 0, domain.ErrMalformedLesson
	}
	left := strings.TrimSpace(parts[0])
	right := strings.TrimSpace(parts[1])

	ln, leftNum := parseScore(left)
	rn, rightNum := parseScore(right)
	switch {
	case leftNum == rightNum: // neither or both numeric
		return "", 0, domain.ErrMalformedLesson
	case rightNum:
		title, score = left, rn
	default:
		title, score = right, ln
	}
	if title == "" {
		return "", 0, domain.ErrMalformedLesson
	}
	return title, score, nil
}

func parseScore(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
