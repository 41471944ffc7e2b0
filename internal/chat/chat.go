// Package chat is the transport-neutral message bus between the bots and the
// conversation engines: inbound Events in, outbound Effects out.
package chat

import "context"

type EventKind int

const (
	EventText EventKind = iota
	EventCommand
	EventLocation
	EventPhoto
	EventCallback
	EventMemberJoined
	EventMemberLeft
)

// Event is one inbound chat update.
type Event struct {
	Kind      EventKind
	ChatID    int64
	UserID    int64
	FirstName string
	FullName  string
	IsPrivate bool

	Text    string // message text, or command arguments
	Command string // without the leading slash
	Lat     float64
	Lon     float64
	PhotoID string

	MessageID    int // message the event refers to (reply target, callback source)
	ReplyToUser  int64
	CallbackID   string
	CallbackData string
}

type EffectKind int

const (
	EffectSend EffectKind = iota
	EffectEditMarkup
	EffectEditText
	EffectAnswerCallback
)

// Button is an inline action bound to callback data.
type Button struct {
	Text string
	Data string
}

// Keyboard is a reply keyboard shown under the input field.
type Keyboard struct {
	Rows            [][]string
	RequestLocation string // label of a location-request button, if any
	Remove          bool
}

// Effect is one outbound chat operation.
type Effect struct {
	Kind      EffectKind
	ChatID    int64
	Text      string
	HTML      bool
	Buttons   [][]Button
	Keyboard  *Keyboard
	MessageID int

	CallbackID string

	// TrackRequest binds the sent message id to a request once delivered.
	TrackRequest int64
}

// Send builds a plain text message effect.
func Send(chatID int64, text string) Effect {
	return Effect{Kind: EffectSend, ChatID: chatID, Text: text}
}

// SendHTML builds an HTML-formatted message effect.
func SendHTML(chatID int64, text string) Effect {
	return Effect{Kind: EffectSend, ChatID: chatID, Text: text, HTML: true}
}

// WithButtons attaches inline buttons.
func (e Effect) WithButtons(rows ...[]Button) Effect {
	e.Buttons = rows
	return e
}

// WithKeyboard attaches a reply keyboard.
func (e Effect) WithKeyboard(kb *Keyboard) Effect {
	e.Keyboard = kb
	return e
}

// EditMarkup replaces the inline buttons of a sent message; nil removes them.
func EditMarkup(chatID int64, messageID int, rows [][]Button) Effect {
	return Effect{Kind: EffectEditMarkup, ChatID: chatID, MessageID: messageID, Buttons: rows}
}

// EditText replaces the text of a sent message and drops its buttons.
func EditText(chatID int64, messageID int, text string) Effect {
	return Effect{Kind: EffectEditText, ChatID: chatID, MessageID: messageID, Text: text}
}

// Answer acknowledges a button press, optionally with a toast.
func Answer(callbackID, text string) Effect {
	return Effect{Kind: EffectAnswerCallback, CallbackID: callbackID, Text: text}
}

// Transport delivers effects to a concrete chat network.
type Transport interface {
	Send(ctx context.Context, e Effect) (messageID int, err error)
	EditMarkup(ctx context.Context, e Effect) error
	EditText(ctx context.Context, e Effect) error
	AnswerCallback(ctx context.Context, e Effect) error
}

// PhotoFetcher downloads the bytes of a received photo.
type PhotoFetcher interface {
	FetchPhoto(ctx context.Context, photoID string) ([]byte, error)
}

// Handler turns one event into effects.
type Handler interface {
	Handle(ctx context.Context, ev Event) []Effect
}
