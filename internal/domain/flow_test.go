package domain

import "testing"

func TestTransitionUpload(t *testing.T) {
	armed := Flow{State: FlowAwaitingUpload, Category: "plans"}

	t.Run("document consumes flow", func(t *testing.T) {
		next, eff := Transition(armed, Event{Kind: EventDocument, Ref: "file-1", Filename: "report.pdf", Caption: "expiry:7"})
		if next.State != FlowIdle {
			t.Fatalf("state = %v, want idle", next.State)
		}
		if eff.Kind != EffectStoreUpload || eff.Category != "plans" || eff.ExpiryDays != 7 {
			t.Errorf("effect = %+v, want store upload into plans with 7 day expiry", eff)
		}
	})

	t.Run("text keeps flow armed", func(t *testing.T) {
		next, eff := Transition(armed, Event{Kind: EventText, Text: "hello"})
		if next != armed {
			t.Errorf("state = %+v, want unchanged %+v", next, armed)
		}
		if eff.Kind != EffectPrompt {
			t.Errorf("effect = %+v, want corrective prompt", eff)
		}
	})
}

func TestTransitionBroadcastText(t *testing.T) {
	armed := Flow{State: FlowAwaitingBroadcastText}

	next, eff := Transition(armed, Event{Kind: EventText, Text: "maintenance tonight"})
	if next.State != FlowIdle || eff.Kind != EffectBroadcastText || eff.Text != "maintenance tonight" {
		t.Errorf("got (%+v, %+v), want consumed text broadcast", next, eff)
	}

	// Empty text is a mismatch, not a broadcast of nothing.
	next, eff = Transition(armed, Event{Kind: EventText, Text: "   "})
	if next != armed || eff.Kind != EffectPrompt {
		t.Errorf("got (%+v, %+v), want armed flow with prompt", next, eff)
	}

	next, eff = Transition(armed, Event{Kind: EventPhoto, Ref: "photo-1"})
	if next != armed || eff.Kind != EffectPrompt {
		t.Errorf("photo payload: got (%+v, %+v), want armed flow with prompt", next, eff)
	}
}

func TestTransitionBroadcastMedia(t *testing.T) {
	armed := Flow{State: FlowAwaitingBroadcastMedia}

	tests := []struct {
		name      string
		ev        Event
		wantKind  EffectKind
		wantMedia MediaKind
	}{
		{"photo", Event{Kind: EventPhoto, Ref: "p1", Caption: "new plans"}, EffectBroadcastMedia, MediaPhoto},
		{"document", Event{Kind: EventDocument, Ref: "d1"}, EffectBroadcastMedia, MediaDocument},
		{"text mismatch", Event{Kind: EventText, Text: "hi"}, EffectPrompt, MediaNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, eff := Transition(armed, tt.ev)
			if eff.Kind != tt.wantKind || eff.Media != tt.wantMedia {
				t.Errorf("effect = %+v, want kind %v media %v", eff, tt.wantKind, tt.wantMedia)
			}
			if tt.wantKind == EffectPrompt && next != armed {
				t.Errorf("mismatch must keep flow armed, got %+v", next)
			}
			if tt.wantKind != EffectPrompt && next.State != FlowIdle {
				t.Errorf("match must reset to idle, got %+v", next)
			}
		})
	}
}

func TestTransitionIdlePassesThrough(t *testing.T) {
	_, eff := Transition(Flow{}, Event{Kind: EventText, Text: "hello"})
	if eff.Kind != EffectNone {
		t.Errorf("idle flow consumed payload: %+v", eff)
	}
}

func TestParseExpiryDirective(t *testing.T) {
	tests := []struct {
		caption string
		want    int
	}{
		{"expiry:7", 7},
		{"EXPIRY: 30", 30},
		{"expiry:0", 0},
		{"expiry:-1", 0},
		{"expiry:soon", 0},
		{"no directive", 0},
		{"", 0},
	}

	for _, tt := range tests {
		if got := ParseExpiryDirective(tt.caption); got != tt.want {
			t.Errorf("ParseExpiryDirective(%q) = %d, want %d", tt.caption, got, tt.want)
		}
	}
}
