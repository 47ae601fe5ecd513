package service

import (
	"context"
	"testing"

	"github.com/plandrop/plandrop/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastTallyAccountsEveryRecipient(t *testing.T) {
	ctx := context.Background()
	transport := newFakeTransport()
	directory := &fakeDirectory{ids: []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}}
	transport.failFor[2] = true
	transport.failFor[5] = true
	transport.failFor[9] = true

	b := NewBroadcaster(directory, transport, 0)
	tally, err := b.Broadcast(ctx, domain.BroadcastPayload{Text: "hello"})
	require.NoError(t, err)

	assert.Equal(t, 7, tally.Sent)
	assert.Equal(t, 3, tally.Failed)

	// Every recipient is attempted exactly once, in directory order.
	assert.Equal(t, directory.ids, transport.attempts)
}

func TestBroadcastFailureDoesNotAbortRun(t *testing.T) {
	ctx := context.Background()
	transport := newFakeTransport()
	directory := &fakeDirectory{ids: []int64{1, 2, 3}}
	transport.failFor[1] = true

	b := NewBroadcaster(directory, transport, 0)
	tally, err := b.Broadcast(ctx, domain.BroadcastPayload{Text: "hi"})
	require.NoError(t, err)

	assert.Equal(t, 2, tally.Sent)
	assert.Equal(t, 1, tally.Failed)
	assert.Equal(t, []string{"hi"}, transport.texts[3])
}

func TestBroadcastMediaUsesMediaSend(t *testing.T) {
	ctx := context.Background()
	transport := newFakeTransport()
	directory := &fakeDirectory{ids: []int64{1, 2}}

	b := NewBroadcaster(directory, transport, 0)
	tally, err := b.Broadcast(ctx, domain.BroadcastPayload{
		Media:   domain.MediaPhoto,
		Ref:     "photo-ref",
		Caption: "look",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, tally.Sent)
	assert.Equal(t, []string{"photo-ref"}, transport.media[1])
	assert.Empty(t, transport.texts[1])
}

func TestBroadcastEmptyDirectory(t *testing.T) {
	ctx := context.Background()
	transport := newFakeTransport()

	b := NewBroadcaster(&fakeDirectory{}, transport, 0)
	tally, err := b.Broadcast(ctx, domain.BroadcastPayload{Text: "hello"})
	require.NoError(t, err)

	assert.Equal(t, domain.BroadcastTally{}, tally)
	assert.Empty(t, transport.attempts)
}

func TestBroadcastDirectoryError(t *testing.T) {
	ctx := context.Background()
	directory := &fakeDirectory{err: domain.ErrStorageUnavailable}

	b := NewBroadcaster(directory, newFakeTransport(), 0)
	_, err := b.Broadcast(ctx, domain.BroadcastPayload{Text: "hello"})
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
}
