package telegram

import (
	"context"
	"errors"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"student-progress-bot/internal/config"
	"student-progress-bot/internal/domain/ports/adapter"
	"student-progress-bot/internal/infra/logging"
	"student-progress-bot/internal/infra/metrics"
	red "student-progress-bot/internal/infra/redis"
	"student-progress-bot/internal/usecase"
)

var _ adapter.TelegramBotAdapter = (*RealBotAdapter)(nil)

// RealBotAdapter polls Telegram for updates and delegates every event to the
// Dialog Engine. It is also the presentation adapter: Reply values become
// Markdown messages, inline keyboards, or edits of the originating message.
type RealBotAdapter struct {
	bot    *tgbotapi.BotAPI
	cfg    *config.BotConfig
	dialog usecase.DialogUseCase
	log    *zerolog.Logger

	// rateLimiter is optional; without it (local runs on the in-memory
	// store) updates are never throttled.
	rateLimiter *red.RateLimiter

	// updateWorkers is how many goroutines will concurrently process updates.
	// Per-user ordering is enforced by the engine's lock, not the pool.
	updateWorkers int
	cancelPolling context.CancelFunc
}

func NewRealBotAdapter(cfg *config.BotConfig, dialog usecase.DialogUseCase, rateLimiter *red.RateLimiter, logger *zerolog.Logger) (*RealBotAdapter, error) {
	if cfg == nil {
		return nil, errors.New("bot config is nil")
	}
	if dialog == nil {
		return nil, errors.New("dialog usecase is nil")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, err
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 5
	}

	return &RealBotAdapter{
		bot:           bot,
		cfg:           cfg,
		dialog:        dialog,
		log:           logger,
		rateLimiter:   rateLimiter,
		updateWorkers: workers,
	}, nil
}

// StartPolling registers the command menu, drops pending updates and polls
// Telegram until ctx is canceled.
func (r *RealBotAdapter) StartPolling(ctx context.Context) error {
	r.registerCommands()

	if _, err := r.bot.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: true}); err != nil {
		r.log.Warn().Err(err).Msg("delete webhook")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := r.bot.GetUpdatesChan(u)

	ctx, cancel := context.WithCancel(ctx)
	r.cancelPolling = cancel

	var wg sync.WaitGroup
	updateChan := make(chan tgbotapi.Update, 100)

	for i := 0; i < r.updateWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up, ok := <-updateChan:
					if !ok {
						return
					}
					if err := r.handleUpdate(ctx, up); err != nil {
						r.log.Error().Err(err).Int("worker", id).Msg("handle update")
					}
				}
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			r.bot.StopReceivingUpdates()
			close(updateChan)
			wg.Wait()
			return ctx.Err()
		case up := <-updates:
			updateChan <- up
		}
	}
}

// StopPolling stops the polling loop gracefully.
func (r *RealBotAdapter) StopPolling() {
	if r.cancelPolling != nil {
		r.cancelPolling()
	}
}

func (r *RealBotAdapter) registerCommands() {
	cmds := tgbotapi.NewSetMyCommands(
		tgbotapi.BotCommand{Command: "start", Description: "Get started"},
		tgbotapi.BotCommand{Command: "register", Description: "Register as a student"},
		tgbotapi.BotCommand{Command: "view_scores", Description: "View your progress"},
		tgbotapi.BotCommand{Command: "enter_scores", Description: "Record your scores"},
	)
	if _, err := r.bot.Request(cmds); err != nil {
		r.log.Warn().Err(err).Msg("set bot commands")
	}
}

func (r *RealBotAdapter) handleUpdate(ctx context.Context, update tgbotapi.Update) error {
	switch {
	case update.CallbackQuery != nil:
		return r.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		return r.handleMessage(ctx, update.Message)
	}
	return nil
}

func (r *RealBotAdapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil || msg.Text == "" {
		return nil
	}
	ctx = logging.WithTgID(ctx, msg.From.ID)
	if !r.allow(ctx, msg.From.ID, "msg", 20) {
		metrics.ObserveUpdate("message", "throttled")
		logging.With(ctx, r.log).Debug().Msg("message throttled")
		return nil
	}

	reply, err := r.dialog.HandleMessage(ctx, msg.From.ID, msg.From.FirstName, msg.Text)
	if err != nil {
		metrics.ObserveUpdate("message", "error")
	} else {
		metrics.ObserveUpdate("message", "ok")
	}
	if reply.Text == "" {
		return err
	}
	if sendErr := r.sendReply(msg.Chat.ID, reply); sendErr != nil {
		return sendErr
	}
	return err
}

func (r *RealBotAdapter) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) error {
	// Acknowledge first so the client stops its spinner.
	if _, err := r.bot.Request(tgbotapi.NewCallback(cq.ID, "")); err != nil {
		r.log.Warn().Err(err).Msg("answer callback query")
	}
	if cq.From == nil {
		return nil
	}
	ctx = logging.WithTgID(ctx, cq.From.ID)
	if !r.allow(ctx, cq.From.ID, "cb", 30) {
		metrics.ObserveUpdate("callback", "throttled")
		logging.With(ctx, r.log).Debug().Msg("callback throttled")
		return nil
	}

	reply, handled, err := r.dialog.HandleCallback(ctx, cq.From.ID, cq.Data)
	if !handled {
		metrics.ObserveUpdate("callback", "ignored")
		return err
	}
	if err != nil {
		metrics.ObserveUpdate("callback", "error")
	} else {
		metrics.ObserveUpdate("callback", "ok")
	}
	if reply.Text == "" {
		return err
	}

	if reply.EditOrigin && cq.Message != nil {
		edit := tgbotapi.NewEditMessageText(cq.Message.Chat.ID, cq.Message.MessageID, reply.Text)
		edit.ParseMode = tgbotapi.ModeMarkdown
		if _, sendErr := r.bot.Send(edit); sendErr == nil {
			return err
		}
		// The origin message may be too old to edit; fall through to a send.
	}
	if sendErr := r.sendReply(cq.From.ID, reply); sendErr != nil {
		return sendErr
	}
	return err
}

// allow consults the rate limiter; limiter errors fail open so a redis
// hiccup never silences the bot.
func (r *RealBotAdapter) allow(ctx context.Context, tgID int64, kind string, limit int) bool {
	if r.rateLimiter == nil {
		return true
	}
	allowed, err := r.rateLimiter.Allow(ctx, red.UserUpdateKey(tgID, kind), limit, time.Minute)
	if err != nil {
		r.log.Warn().Err(err).Int64("tg_id", tgID).Msg("rate limiter check")
		return true
	}
	return allowed
}

func (r *RealBotAdapter) sendReply(chatID int64, reply usecase.Reply) error {
	msg := tgbotapi.NewMessage(chatID, reply.Text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if len(reply.Buttons) > 0 {
		msg.ReplyMarkup = buildKeyboard(reply.Buttons)
	}
	_, err := r.bot.Send(msg)
	return err
}

// SendMessage implements the outbound port for callers outside the update loop.
func (r *RealBotAdapter) SendMessage(_ context.Context, telegramID int64, text string) error {
	return r.sendReply(telegramID, usecase.Reply{Text: text})
}

// SendButtons implements the outbound port with inline keyboard rows.
func (r *RealBotAdapter) SendButtons(_ context.Context, telegramID int64, text string, rows [][]adapter.InlineButton) error {
	return r.sendReply(telegramID, usecase.Reply{Text: text, Buttons: rows})
}

func buildKeyboard(rows [][]adapter.InlineButton) tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		btns := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			btns = append(btns, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		kbRows = append(kbRows, btns)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kbRows...)
}
