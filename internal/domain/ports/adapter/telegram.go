package adapter

import "context"

type InlineButton struct {
	Text string
	Data string
}

// TelegramBotAdapter is the outbound messaging port. The Dialog Engine
// emits plain text plus optional inline button rows; the transport decides
// how to render them.
type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, telegramID int64, text string) error
	SendButtons(ctx context.Context, telegramID int64, text string, rows [][]InlineButton) error
}
