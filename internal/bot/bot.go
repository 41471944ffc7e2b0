// Package bot adapts the Telegram Bot API to the chat message bus.
package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/liftcare/field-bot/internal/chat"
	"github.com/liftcare/field-bot/internal/logging"
)

// maxPhotoBytes caps journal photo downloads.
const maxPhotoBytes = 20 << 20

type Bot struct {
	api      *tgbotapi.BotAPI
	limiter  *rate.Limiter
	executor *chat.Executor
	logger   *zap.Logger
}

type Config struct {
	Token    string
	Name     string  // log name, e.g. "requests"
	SendRate float64 // outbound API calls per second
	Linker   chat.Linker
}

func New(cfg Config, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s bot: %w", cfg.Name, err)
	}

	limit := rate.Inf
	if cfg.SendRate > 0 {
		limit = rate.Limit(cfg.SendRate)
	}
	b := &Bot{
		api:     api,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("bot").With(zap.String("bot", cfg.Name)),
	}
	b.executor = chat.NewExecutor(b, cfg.Linker, b.logger)

	b.logger.Info("authorized", zap.String("account", api.Self.UserName))
	return b, nil
}

// Executor delivers effects through this bot.
func (b *Bot) Executor() *chat.Executor {
	return b.executor
}

// Run long-polls for updates and feeds them to handler until ctx is done.
// Updates are handled one at a time, which keeps each chat's events in order.
func (b *Bot) Run(ctx context.Context, handler chat.Handler) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("stopping")
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			for _, ev := range toEvents(update, b.api.Self.ID) {
				b.dispatch(ctx, handler, ev)
			}
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, handler chat.Handler, ev chat.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panicked", logging.ChatID(ev.ChatID), zap.Any("panic", r))
		}
	}()
	effects := handler.Handle(ctx, ev)
	b.executor.Run(ctx, effects)
}

// toEvents converts one Telegram update into engine events. selfID filters
// the bot's own membership changes.
func toEvents(update tgbotapi.Update, selfID int64) []chat.Event {
	if cq := update.CallbackQuery; cq != nil {
		ev := chat.Event{
			Kind:         chat.EventCallback,
			CallbackID:   cq.ID,
			CallbackData: cq.Data,
		}
		if cq.From != nil {
			ev.UserID = cq.From.ID
			ev.FirstName = cq.From.FirstName
			ev.FullName = fullName(cq.From)
		}
		if cq.Message != nil && cq.Message.Chat != nil {
			ev.ChatID = cq.Message.Chat.ID
			ev.IsPrivate = cq.Message.Chat.IsPrivate()
			ev.MessageID = cq.Message.MessageID
		}
		return []chat.Event{ev}
	}

	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return nil
	}
	base := chat.Event{
		ChatID:    msg.Chat.ID,
		IsPrivate: msg.Chat.IsPrivate(),
		MessageID: msg.MessageID,
	}
	if msg.From != nil {
		base.UserID = msg.From.ID
		base.FirstName = msg.From.FirstName
		base.FullName = fullName(msg.From)
	}

	switch {
	case len(msg.NewChatMembers) > 0:
		var events []chat.Event
		for i := range msg.NewChatMembers {
			m := msg.NewChatMembers[i]
			if m.IsBot || m.ID == selfID {
				continue
			}
			ev := base
			ev.Kind = chat.EventMemberJoined
			ev.UserID, ev.FirstName, ev.FullName = m.ID, m.FirstName, fullName(&m)
			events = append(events, ev)
		}
		return events

	case msg.LeftChatMember != nil:
		m := msg.LeftChatMember
		if m.ID == selfID {
			return nil
		}
		ev := base
		ev.Kind = chat.EventMemberLeft
		ev.UserID, ev.FirstName, ev.FullName = m.ID, m.FirstName, fullName(m)
		return []chat.Event{ev}

	case msg.Location != nil:
		base.Kind = chat.EventLocation
		base.Lat, base.Lon = msg.Location.Latitude, msg.Location.Longitude
		return []chat.Event{base}

	case len(msg.Photo) > 0:
		base.Kind = chat.EventPhoto
		base.PhotoID = msg.Photo[len(msg.Photo)-1].FileID
		return []chat.Event{base}

	case strings.HasPrefix(msg.Text, "/"):
		base.Kind = chat.EventCommand
		base.Command, base.Text = parseCommand(msg.Text)
		if r := msg.ReplyToMessage; r != nil && r.From != nil {
			base.ReplyToUser = r.From.ID
		}
		return []chat.Event{base}

	case msg.Text != "":
		base.Kind = chat.EventText
		base.Text = msg.Text
		return []chat.Event{base}
	}
	return nil
}

// parseCommand splits "/cmd@bot args". Telegram does not mark Cyrillic
// commands as bot_command entities, so the text is parsed directly.
func parseCommand(text string) (command, args string) {
	head, rest, _ := strings.Cut(strings.TrimPrefix(text, "/"), " ")
	command, _, _ = strings.Cut(head, "@")
	return strings.ToLower(command), strings.TrimSpace(rest)
}

func fullName(u *tgbotapi.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func inlineMarkup(rows [][]chat.Button) tgbotapi.InlineKeyboardMarkup {
	markup := tgbotapi.InlineKeyboardMarkup{InlineKeyboard: make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))}
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(btn.Text, btn.Data))
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, buttons)
	}
	return markup
}

func replyKeyboard(kb *chat.Keyboard) interface{} {
	if kb.Remove {
		return tgbotapi.NewRemoveKeyboard(true)
	}
	var rows [][]tgbotapi.KeyboardButton
	if kb.RequestLocation != "" {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButtonLocation(kb.RequestLocation)))
	}
	for _, row := range kb.Rows {
		buttons := make([]tgbotapi.KeyboardButton, 0, len(row))
		for _, label := range row {
			buttons = append(buttons, tgbotapi.NewKeyboardButton(label))
		}
		rows = append(rows, buttons)
	}
	markup := tgbotapi.NewReplyKeyboard(rows...)
	markup.ResizeKeyboard = true
	markup.OneTimeKeyboard = true
	return markup
}

func messageConfig(e chat.Effect) tgbotapi.MessageConfig {
	msg := tgbotapi.NewMessage(e.ChatID, e.Text)
	if e.HTML {
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
	}
	switch {
	case len(e.Buttons) > 0:
		msg.ReplyMarkup = inlineMarkup(e.Buttons)
	case e.Keyboard != nil:
		msg.ReplyMarkup = replyKeyboard(e.Keyboard)
	}
	return msg
}

// Send implements chat.Transport.
func (b *Bot) Send(ctx context.Context, e chat.Effect) (int, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	sent, err := b.api.Send(messageConfig(e))
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return sent.MessageID, nil
}

// EditMarkup replaces the inline buttons of a sent message; nil removes them.
func (b *Bot) EditMarkup(ctx context.Context, e chat.Effect) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	_, err := b.api.Request(tgbotapi.NewEditMessageReplyMarkup(e.ChatID, e.MessageID, inlineMarkup(e.Buttons)))
	if err != nil {
		return fmt.Errorf("edit markup: %w", err)
	}
	return nil
}

func (b *Bot) EditText(ctx context.Context, e chat.Effect) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(e.ChatID, e.MessageID, e.Text)
	if e.HTML {
		edit.ParseMode = tgbotapi.ModeHTML
	}
	if _, err := b.api.Request(edit); err != nil {
		return fmt.Errorf("edit text: %w", err)
	}
	return nil
}

func (b *Bot) AnswerCallback(ctx context.Context, e chat.Effect) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(e.CallbackID, e.Text)); err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}

// FetchPhoto implements chat.PhotoFetcher.
func (b *Bot) FetchPhoto(ctx context.Context, photoID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(photoID)
	if err != nil {
		return nil, fmt.Errorf("resolve photo: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.api.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download photo: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download photo: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
}
