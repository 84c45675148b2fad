package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"auto-order/internal/util"
)

// Telegram adapts the Telegram Bot API to Sender and to a stream of Events
type Telegram struct {
	api         *tgbotapi.BotAPI
	pollTimeout int
	logger      *zap.Logger
}

// NewTelegram connects to the Bot API with the given token
func NewTelegram(token string, pollTimeout int) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to telegram: %w", err)
	}

	logger := util.GetLogger()
	logger.Info("Telegram bot authorized", zap.String("username", api.Self.UserName))

	return &Telegram{
		api:         api,
		pollTimeout: pollTimeout,
		logger:      logger,
	}, nil
}

// Events long-polls for updates until ctx is done
func (t *Telegram) Events(ctx context.Context) <-chan Event {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = t.pollTimeout
	updates := t.api.GetUpdatesChan(u)

	out := make(chan Event)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				t.api.StopReceivingUpdates()
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				ev, ok := toEvent(update)
				if !ok {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					t.api.StopReceivingUpdates()
					return
				}
			}
		}
	}()
	return out
}

// toEvent converts a Telegram update. Updates the bot does not handle are dropped.
func toEvent(update tgbotapi.Update) (Event, bool) {
	if cq := update.CallbackQuery; cq != nil && cq.From != nil {
		ev := Event{
			Kind:       EventCallback,
			UserID:     cq.From.ID,
			ChatID:     cq.From.ID,
			Username:   displayName(cq.From),
			Data:       cq.Data,
			CallbackID: cq.ID,
		}
		if cq.Message != nil && cq.Message.Chat != nil {
			ev.ChatID = cq.Message.Chat.ID
			ev.MessageID = cq.Message.MessageID
		}
		return ev, true
	}

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return Event{}, false
	}
	ev := Event{
		UserID:    msg.From.ID,
		ChatID:    msg.Chat.ID,
		Username:  displayName(msg.From),
		MessageID: msg.MessageID,
	}
	switch {
	case len(msg.Photo) > 0:
		ev.Kind = EventPhoto
		// the last size is the largest
		ev.PhotoID = msg.Photo[len(msg.Photo)-1].FileID
		ev.Caption = msg.Caption
	case msg.IsCommand():
		ev.Kind = EventCommand
		ev.Command = msg.Command()
		ev.Args = msg.CommandArguments()
		ev.Text = msg.Text
	case msg.Text != "":
		ev.Kind = EventText
		ev.Text = msg.Text
	default:
		return Event{}, false
	}
	return ev, true
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return "@" + u.UserName
	}
	if u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.FirstName
}

// SendText sends a message
func (t *Telegram) SendText(ctx context.Context, chatID int64, text string, kb Keyboard) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	if markup, ok := inlineMarkup(kb); ok {
		msg.ReplyMarkup = markup
	}
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message to %d: %w", chatID, err)
	}
	return nil
}

// SendPhoto sends a photo already stored on Telegram
func (t *Telegram) SendPhoto(ctx context.Context, chatID int64, fileID, caption string, kb Keyboard) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	photo.Caption = caption
	if markup, ok := inlineMarkup(kb); ok {
		photo.ReplyMarkup = markup
	}
	if _, err := t.api.Send(photo); err != nil {
		return fmt.Errorf("failed to send photo to %d: %w", chatID, err)
	}
	return nil
}

// EditText replaces the text and keyboard of an earlier message
func (t *Telegram) EditText(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.DisableWebPagePreview = true
	if markup, ok := inlineMarkup(kb); ok {
		edit.ReplyMarkup = &markup
	}
	if _, err := t.api.Send(edit); err != nil {
		return fmt.Errorf("failed to edit message %d: %w", messageID, err)
	}
	return nil
}

// AnswerCallback stops the button spinner, optionally with a toast
func (t *Telegram) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if _, err := t.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

func inlineMarkup(kb Keyboard) (tgbotapi.InlineKeyboardMarkup, bool) {
	if len(kb) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		rows = append(rows, buttons)
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...), true
}
