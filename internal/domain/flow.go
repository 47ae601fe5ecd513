package domain

import (
	"strconv"
	"strings"
)

// FlowState tags the single pending multi-step operator workflow.
type FlowState int

const (
	FlowIdle FlowState = iota
	FlowAwaitingUpload
	FlowAwaitingBroadcastText
	FlowAwaitingBroadcastMedia
)

func (s FlowState) String() string {
	switch s {
	case FlowIdle:
		return "idle"
	case FlowAwaitingUpload:
		return "awaiting_upload"
	case FlowAwaitingBroadcastText:
		return "awaiting_broadcast_text"
	case FlowAwaitingBroadcastMedia:
		return "awaiting_broadcast_media"
	}
	return "unknown"
}

// Flow is the per-operator workflow descriptor. Category is set only in the
// FlowAwaitingUpload state.
type Flow struct {
	State    FlowState
	Category string
}

// EventKind classifies an inbound payload from the operator.
type EventKind int

const (
	EventText EventKind = iota
	EventDocument
	EventPhoto
)

// Event is the inbound payload fed into the transition function.
type Event struct {
	Kind     EventKind
	Text     string
	Caption  string
	Ref      string // transport media reference
	Filename string // original document filename, may be empty
}

// EffectKind tags the side effect a transition asks its caller to perform.
type EffectKind int

const (
	// EffectNone: the payload is not consumed by any flow.
	EffectNone EffectKind = iota
	// EffectPrompt: reply with a corrective prompt, flow stays armed.
	EffectPrompt
	// EffectStoreUpload: store the document in Category with ExpiryDays.
	EffectStoreUpload
	// EffectBroadcastText: broadcast Text to all recipients.
	EffectBroadcastText
	// EffectBroadcastMedia: broadcast the media reference with Caption.
	EffectBroadcastMedia
)

// Effect is the output half of a transition. Only the fields relevant to
// Kind are populated.
type Effect struct {
	Kind       EffectKind
	Prompt     string
	Category   string
	Filename   string
	Ref        string
	ExpiryDays int
	Text       string
	Media      MediaKind
	Caption    string
}

// Transition is the pure state machine: (state, event) -> (state, effect).
// A structurally matching payload consumes the flow and returns it to idle;
// a mismatch keeps the same flow armed and asks for a corrective prompt.
// Side effects are executed by the flow service, never here.
func Transition(f Flow, ev Event) (Flow, Effect) {
	switch f.State {
	case FlowAwaitingUpload:
		if ev.Kind != EventDocument {
			return f, Effect{Kind: EffectPrompt, Prompt: "Please send a document file to upload."}
		}
		return Flow{}, Effect{
			Kind:       EffectStoreUpload,
			Category:   f.Category,
			Filename:   ev.Filename,
			Ref:        ev.Ref,
			ExpiryDays: ParseExpiryDirective(ev.Caption),
		}

	case FlowAwaitingBroadcastText:
		if ev.Kind != EventText || strings.TrimSpace(ev.Text) == "" {
			return f, Effect{Kind: EffectPrompt, Prompt: "Send the text message to broadcast."}
		}
		return Flow{}, Effect{Kind: EffectBroadcastText, Text: ev.Text}

	case FlowAwaitingBroadcastMedia:
		switch ev.Kind {
		case EventPhoto:
			return Flow{}, Effect{Kind: EffectBroadcastMedia, Media: MediaPhoto, Ref: ev.Ref, Caption: ev.Caption}
		case EventDocument:
			return Flow{}, Effect{Kind: EffectBroadcastMedia, Media: MediaDocument, Ref: ev.Ref, Caption: ev.Caption}
		}
		return f, Effect{Kind: EffectPrompt, Prompt: "Please send a photo or document."}
	}

	return f, Effect{Kind: EffectNone}
}

// ParseExpiryDirective extracts the optional "expiry:<days>" caption
// directive. Malformed or absent directives mean no expiry (0).
func ParseExpiryDirective(caption string) int {
	c := strings.TrimSpace(caption)
	if !strings.HasPrefix(strings.ToLower(c), "expiry:") {
		return 0
	}
	days, err := strconv.Atoi(strings.TrimSpace(c[len("expiry:"):]))
	if err != nil || days < 0 {
		return 0
	}
	return days
}
