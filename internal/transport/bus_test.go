package transport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/servedeck/internal/envelope"
)

func TestBus_DeliversToOtherSideOnly(t *testing.T) {
	bus := NewBus(nil)
	ctx := context.Background()

	var hostGot, peerGot []envelope.Envelope
	require.NoError(t, bus.Host().Receive(envelope.ChannelStatus, func(_ context.Context, env envelope.Envelope) {
		hostGot = append(hostGot, env)
	}))
	require.NoError(t, bus.Peer().Receive(envelope.ChannelStatus, func(_ context.Context, env envelope.Envelope) {
		peerGot = append(peerGot, env)
	}))

	bus.Host().Send(ctx, envelope.ChannelStatus, envelope.Envelope{Type: envelope.TypeStatus, ID: "1", Path: "/p"})
	assert.Equal(t, 1, bus.Pending())
	assert.Empty(t, peerGot, "send must not deliver synchronously")

	assert.Equal(t, 1, bus.Drain())
	require.Len(t, peerGot, 1)
	assert.Empty(t, hostGot)
	assert.Equal(t, envelope.ChannelStatus, peerGot[0].Channel)
	assert.Equal(t, "/p", peerGot[0].Path)
}

func TestBus_HandlersRunInRegistrationOrder(t *testing.T) {
	bus := NewBus(nil)

	var calls []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		require.NoError(t, bus.Host().Receive(envelope.ChannelNotification, func(context.Context, envelope.Envelope) {
			calls = append(calls, name)
		}))
	}

	bus.Peer().Send(context.Background(), envelope.ChannelNotification, envelope.Envelope{Type: "info"})
	bus.Drain()

	assert.Equal(t, []string{"first", "second", "third"}, calls)
}

func TestBus_PreservesSendOrderAndDrainsNestedSends(t *testing.T) {
	bus := NewBus(nil)
	ctx := context.Background()

	// peer echoes each request back as a reply
	require.NoError(t, bus.Peer().Receive(envelope.ChannelStatus, func(ctx context.Context, env envelope.Envelope) {
		bus.Peer().Send(ctx, envelope.ChannelStatus, envelope.Envelope{Type: envelope.TypeStatus, ID: env.ID, Value: "running"})
	}))

	var replies []string
	require.NoError(t, bus.Host().Receive(envelope.ChannelStatus, func(_ context.Context, env envelope.Envelope) {
		replies = append(replies, env.ID)
	}))

	for _, id := range []string{"1", "2", "3"} {
		bus.Host().Send(ctx, envelope.ChannelStatus, envelope.Envelope{Type: envelope.TypeStatus, ID: id})
	}

	assert.Equal(t, 6, bus.Drain())
	assert.Equal(t, []string{"1", "2", "3"}, replies)
	assert.Equal(t, 0, bus.Pending())
}

func TestBus_UnhandledChannelIsDropped(t *testing.T) {
	bus := NewBus(nil)
	bus.Host().Send(context.Background(), envelope.ChannelRemote, envelope.Envelope{Type: envelope.TypeRemote})
	assert.Equal(t, 1, bus.Drain())
	assert.Equal(t, 0, bus.Pending())
}

func TestBus_Run(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan envelope.Envelope, 1)
	require.NoError(t, bus.Host().Receive(envelope.ChannelLifecycle, func(_ context.Context, env envelope.Envelope) {
		got <- env
	}))

	errCh := make(chan error, 1)
	go func() { errCh <- bus.Run(ctx) }()

	bus.Peer().Send(ctx, envelope.ChannelLifecycle, envelope.Envelope{Type: envelope.TypeFocused})

	select {
	case env := <-got:
		assert.Equal(t, envelope.TypeFocused, env.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("envelope not delivered by Run")
	}

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestBus_SendOutlivesCancelledContext(t *testing.T) {
	bus := NewBus(nil)
	ctx, cancel := context.WithCancel(context.Background())

	var seen context.Context
	require.NoError(t, bus.Peer().Receive(envelope.ChannelRemote, func(ctx context.Context, _ envelope.Envelope) {
		seen = ctx
	}))

	bus.Host().Send(ctx, envelope.ChannelRemote, envelope.Envelope{Type: envelope.TypeRemote})
	cancel()
	bus.Drain()

	require.NotNil(t, seen)
	assert.NoError(t, seen.Err())
}
