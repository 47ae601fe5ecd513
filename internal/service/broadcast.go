package service

import (
	"context"
	"log"
	"time"

	"github.com/plandrop/plandrop/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Broadcaster fans a single payload out to every registered recipient with
// inter-send pacing and partial-failure accounting. A failed recipient is
// counted and skipped permanently for that job; there are no retries and no
// mid-flight cancellation.
type Broadcaster struct {
	directory domain.RecipientDirectory
	transport domain.Transport
	delay     time.Duration

	sentCounter   metric.Int64Counter
	failedCounter metric.Int64Counter
}

// NewBroadcaster creates a broadcaster. delay is the fixed pause between
// consecutive sends, honoring the transport's rate limits.
func NewBroadcaster(directory domain.RecipientDirectory, transport domain.Transport, delay time.Duration) *Broadcaster {
	meter := otel.Meter("plandrop/broadcast")
	sent, _ := meter.Int64Counter("broadcast.recipients.sent")
	failed, _ := meter.Int64Counter("broadcast.recipients.failed")
	return &Broadcaster{
		directory:     directory,
		transport:     transport,
		delay:         delay,
		sentCounter:   sent,
		failedCounter: failed,
	}
}

// Broadcast sends the payload to a snapshot of the recipient directory
// taken at dispatch time, in first-seen order. The returned tally accounts
// every recipient exactly once.
func (b *Broadcaster) Broadcast(ctx context.Context, payload domain.BroadcastPayload) (domain.BroadcastTally, error) {
	recipients, err := b.directory.ListIdentities(ctx)
	if err != nil {
		return domain.BroadcastTally{}, err
	}

	log.Printf("[Broadcast] starting, recipients=%d", len(recipients))

	var tally domain.BroadcastTally
	for i, id := range recipients {
		if i > 0 && b.delay > 0 {
			time.Sleep(b.delay)
		}
		if err := b.send(ctx, id, payload); err != nil {
			// Blocked or unreachable recipients never abort the run.
			log.Printf("[Broadcast] send to %d failed: %v", id, err)
			tally.Failed++
			if b.failedCounter != nil {
				b.failedCounter.Add(ctx, 1)
			}
			continue
		}
		tally.Sent++
		if b.sentCounter != nil {
			b.sentCounter.Add(ctx, 1)
		}
	}

	log.Printf("[Broadcast] done, sent=%d failed=%d", tally.Sent, tally.Failed)
	return tally, nil
}

func (b *Broadcaster) send(ctx context.Context, recipient int64, payload domain.BroadcastPayload) error {
	if payload.Media == domain.MediaNone {
		return b.transport.SendText(ctx, recipient, payload.Text)
	}
	return b.transport.SendMedia(ctx, recipient, payload.Media, payload.Ref, payload.Caption)
}
