package domain

import (
	"context"
	"io"
)

// Button is one inline keyboard button. Data is the opaque callback payload
// delivered back when the button is pressed.
type Button struct {
	Label string
	Data  string
}

// Keyboard is a grid of buttons, one slice per row.
type Keyboard [][]Button

// Row builds a single-button row, a convenience for menu builders.
func Row(label, data string) []Button {
	return []Button{{Label: label, Data: data}}
}

// Transport is the chat delivery boundary. Every send may fail per call;
// such failures wrap ErrDeliveryFailed.
type Transport interface {
	SendText(ctx context.Context, chatID int64, text string) error

	// SendMenu sends text with an inline keyboard attached.
	SendMenu(ctx context.Context, chatID int64, text string, kb Keyboard) error

	// EditMenu rewrites a previously sent menu message in place.
	EditMenu(ctx context.Context, chatID, messageID int64, text string, kb Keyboard) error

	// SendMedia re-sends a photo or document by transport reference.
	SendMedia(ctx context.Context, chatID int64, kind MediaKind, ref, caption string) error

	// SendDocumentUpload uploads file bytes as a document.
	SendDocumentUpload(ctx context.Context, chatID int64, filename string, src io.Reader, caption string) error

	// AnswerCallback acknowledges a button press.
	AnswerCallback(ctx context.Context, callbackID string) error
}

// ByteFetcher retrieves the bytes behind an inbound media reference.
type ByteFetcher interface {
	FetchBytes(ctx context.Context, ref string) (io.ReadCloser, error)
}

// User identifies the sender of an inbound event.
type User struct {
	ID       int64
	Username string
}

// Document is an inbound file attachment.
type Document struct {
	Ref      string // transport reference used with FetchBytes / SendMedia
	Filename string // original filename, may be empty
}

// Message is an inbound chat message.
type Message struct {
	From     User
	ChatID   int64
	Text     string
	Caption  string
	Document *Document
	PhotoRef string // largest photo size reference, empty when no photo
}

// Callback is an inbound button press.
type Callback struct {
	ID        string
	From      User
	ChatID    int64
	MessageID int64
	Data      string
}

// Update is one inbound transport event; exactly one field is set.
type Update struct {
	Message  *Message
	Callback *Callback
}
