// Package transport moves envelopes between servedeck and its producers.
//
// Requests and replies share channel names, so every transport has two
// sides. The host side (servedeck) sends requests and receives replies;
// the peer side (producers) receives requests and sends replies. An
// envelope sent by one side is only ever delivered to the other.
//
// Two implementations are provided:
//   - Bus: in-process, delivers every envelope from a single goroutine in
//     send order, giving handlers a cooperative single-threaded model.
//   - NATS: cross-process over a NATS connection, one subject per side and
//     channel. Delivery is ordered per channel and concurrent across
//     channels.
package transport

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/servedeck/internal/envelope"
)

// Handler reacts to one inbound envelope.
type Handler func(ctx context.Context, env envelope.Envelope)

// Transport is the send/receive capability one side of the boundary sees.
type Transport interface {
	// Send publishes env on channel ch. It never blocks on a reply and
	// reports delivery failures through logging only.
	Send(ctx context.Context, ch envelope.Channel, env envelope.Envelope)

	// Receive registers h for envelopes arriving on ch. Several handlers may
	// be registered per channel; they run in registration order.
	Receive(ch envelope.Channel, h Handler) error
}

// Side identifies which end of the boundary a transport serves.
type Side int

const (
	SideHost Side = iota
	SidePeer
)

func (s Side) String() string {
	switch s {
	case SideHost:
		return "host"
	case SidePeer:
		return "peer"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// other returns the opposite side.
func (s Side) other() Side {
	if s == SideHost {
		return SidePeer
	}
	return SideHost
}
