package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/plandrop/plandrop/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// FlowService owns the per-operator interaction state: the single pending
// multi-step workflow (upload or broadcast). At most one flow is armed per
// operator; starting a new one silently abandons the previous. Mutations
// are serialized by the registry lock so overlapping transport deliveries
// for one operator cannot violate the single-active-flow invariant.
type FlowService struct {
	mu    sync.Mutex
	flows map[int64]domain.Flow

	sessions    *SessionRegistry
	store       domain.ContentStore
	broadcaster *Broadcaster
	fetcher     domain.ByteFetcher

	uploadCounter metric.Int64Counter
}

// FlowOutcome reports how an inbound payload was handled.
type FlowOutcome struct {
	// Consumed is false when the operator had no armed flow and the
	// payload should pass through to ordinary handling.
	Consumed bool
	// Reply is the text to send back to the operator, empty for none.
	Reply string
	// Tally is set when the payload completed a broadcast flow.
	Tally *domain.BroadcastTally
}

// NewFlowService wires the state machine to its collaborators.
func NewFlowService(sessions *SessionRegistry, store domain.ContentStore, broadcaster *Broadcaster, fetcher domain.ByteFetcher) *FlowService {
	meter := otel.Meter("plandrop/flows")
	uploads, _ := meter.Int64Counter("uploads.stored")
	return &FlowService{
		flows:         make(map[int64]domain.Flow),
		sessions:      sessions,
		store:         store,
		broadcaster:   broadcaster,
		fetcher:       fetcher,
		uploadCounter: uploads,
	}
}

// BeginUpload arms the upload flow for a category. Unauthorized operators
// are rejected and the state stays idle.
func (s *FlowService) BeginUpload(operator int64, category string) error {
	return s.arm(operator, domain.Flow{State: domain.FlowAwaitingUpload, Category: category})
}

// BeginBroadcastText arms the text broadcast flow.
func (s *FlowService) BeginBroadcastText(operator int64) error {
	return s.arm(operator, domain.Flow{State: domain.FlowAwaitingBroadcastText})
}

// BeginBroadcastMedia arms the media broadcast flow.
func (s *FlowService) BeginBroadcastMedia(operator int64) error {
	return s.arm(operator, domain.Flow{State: domain.FlowAwaitingBroadcastMedia})
}

func (s *FlowService) arm(operator int64, flow domain.Flow) error {
	if !s.sessions.IsAuthorized(operator) {
		return domain.ErrUnauthorized
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// Last writer wins: any unfinished prior flow is discarded.
	s.flows[operator] = flow
	return nil
}

// Cancel resets the operator's flow to idle, reporting whether one was
// armed.
func (s *FlowService) Cancel(operator int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flows[operator]
	if !ok || f.State == domain.FlowIdle {
		return false
	}
	delete(s.flows, operator)
	return true
}

// Active returns the operator's current flow descriptor.
func (s *FlowService) Active(operator int64) domain.Flow {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flows[operator]
}

// HandlePayload feeds one inbound payload through the transition function
// and executes the resulting effect. A structurally matching payload
// completes the flow; a mismatch leaves it armed and returns a corrective
// prompt.
func (s *FlowService) HandlePayload(ctx context.Context, operator int64, ev domain.Event) (FlowOutcome, error) {
	s.mu.Lock()
	flow := s.flows[operator]
	next, effect := domain.Transition(flow, ev)
	if next.State == domain.FlowIdle {
		delete(s.flows, operator)
	} else {
		s.flows[operator] = next
	}
	s.mu.Unlock()

	switch effect.Kind {
	case domain.EffectNone:
		return FlowOutcome{}, nil

	case domain.EffectPrompt:
		return FlowOutcome{Consumed: true, Reply: effect.Prompt}, nil

	case domain.EffectStoreUpload:
		return s.storeUpload(ctx, effect)

	case domain.EffectBroadcastText:
		tally, err := s.broadcaster.Broadcast(ctx, domain.BroadcastPayload{Text: effect.Text})
		if err != nil {
			return FlowOutcome{Consumed: true, Reply: "Broadcast failed."}, err
		}
		return broadcastOutcome(tally), nil

	case domain.EffectBroadcastMedia:
		tally, err := s.broadcaster.Broadcast(ctx, domain.BroadcastPayload{
			Media:   effect.Media,
			Ref:     effect.Ref,
			Caption: effect.Caption,
		})
		if err != nil {
			return FlowOutcome{Consumed: true, Reply: "Broadcast failed."}, err
		}
		return broadcastOutcome(tally), nil
	}

	return FlowOutcome{}, nil
}

func (s *FlowService) storeUpload(ctx context.Context, effect domain.Effect) (FlowOutcome, error) {
	src, err := s.fetcher.FetchBytes(ctx, effect.Ref)
	if err != nil {
		return FlowOutcome{Consumed: true, Reply: "Failed to download file."},
			fmt.Errorf("fetch upload bytes: %w", err)
	}
	defer src.Close()

	// Documents may arrive without a filename; the transport reference is
	// the caller-supplied opaque fallback.
	filename := effect.Filename
	if filename == "" {
		filename = effect.Ref
	}

	file, err := s.store.Put(ctx, effect.Category, filename, src, effect.ExpiryDays)
	if err != nil {
		return FlowOutcome{Consumed: true, Reply: "Failed to store file."},
			fmt.Errorf("store upload: %w", err)
	}

	if s.uploadCounter != nil {
		s.uploadCounter.Add(ctx, 1)
	}
	return FlowOutcome{
		Consumed: true,
		Reply:    fmt.Sprintf("Uploaded %s to %s. Expiry days: %d", file.Name, file.Category, effect.ExpiryDays),
	}, nil
}

func broadcastOutcome(tally domain.BroadcastTally) FlowOutcome {
	return FlowOutcome{
		Consumed: true,
		Reply:    fmt.Sprintf("Broadcast done. Sent %d, Failed %d", tally.Sent, tally.Failed),
		Tally:    &tally,
	}
}
