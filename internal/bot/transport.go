// Package bot is the chat front of the store: it turns chat events into
// checkout, order and admin operations and renders the replies.
package bot

import (
	"context"
)

// EventKind tells what a chat event carries
type EventKind int

const (
	EventText EventKind = iota + 1
	EventCommand
	EventCallback
	EventPhoto
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventCommand:
		return "command"
	case EventCallback:
		return "callback"
	case EventPhoto:
		return "photo"
	}
	return "unknown"
}

// Event is one inbound chat event, independent of the chat platform
type Event struct {
	Kind       EventKind
	UserID     int64
	ChatID     int64
	Username   string
	Text       string
	Command    string
	Args       string
	Data       string
	CallbackID string
	MessageID  int
	PhotoID    string
	Caption    string
}

// Button is an inline keyboard button. Either Data or URL is set.
type Button struct {
	Text string
	Data string
	URL  string
}

// Keyboard is rows of inline buttons
type Keyboard [][]Button

// Sender is the outbound side of the chat transport
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string, kb Keyboard) error
	SendPhoto(ctx context.Context, chatID int64, fileID, caption string, kb Keyboard) error
	EditText(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error
	AnswerCallback(ctx context.Context, callbackID, text string) error
}
