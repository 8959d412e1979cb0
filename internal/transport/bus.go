package transport

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/servedeck/internal/envelope"
	"github.com/fyrsmithlabs/servedeck/internal/logging"
)

type delivery struct {
	ctx context.Context
	to  Side
	env envelope.Envelope
}

// Bus is an in-process transport with an unbounded FIFO queue.
//
// Send only enqueues. Handlers run when the queue is drained, either by Run
// or by an explicit Drain, and never concurrently with each other.
type Bus struct {
	logger *logging.Logger

	mu       sync.Mutex
	queue    []delivery
	handlers map[Side]map[envelope.Channel][]Handler
	wake     chan struct{}

	// procMu serializes handler execution.
	procMu sync.Mutex
}

// NewBus creates an empty bus.
func NewBus(logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Bus{
		logger: logger.Named("bus"),
		handlers: map[Side]map[envelope.Channel][]Handler{
			SideHost: make(map[envelope.Channel][]Handler),
			SidePeer: make(map[envelope.Channel][]Handler),
		},
		wake: make(chan struct{}, 1),
	}
}

// Host returns the servedeck side of the bus.
func (b *Bus) Host() Transport { return busSide{bus: b, side: SideHost} }

// Peer returns the producer side of the bus.
func (b *Bus) Peer() Transport { return busSide{bus: b, side: SidePeer} }

// Pending returns the number of queued deliveries.
func (b *Bus) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.queue)
}

// Run drains the queue whenever something is sent until ctx is cancelled.
func (b *Bus) Run(ctx context.Context) error {
	for {
		b.Drain()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-b.wake:
		}
	}
}

// Drain delivers queued envelopes, including those enqueued by handlers
// while draining, until the queue is empty. It returns how many were
// delivered.
func (b *Bus) Drain() int {
	b.procMu.Lock()
	defer b.procMu.Unlock()

	n := 0
	for {
		d, ok := b.pop()
		if !ok {
			return n
		}
		b.deliver(d)
		n++
	}
}

func (b *Bus) enqueue(d delivery) {
	b.mu.Lock()
	b.queue = append(b.queue, d)
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *Bus) pop() (delivery, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.queue) == 0 {
		return delivery{}, false
	}
	d := b.queue[0]
	b.queue[0] = delivery{}
	b.queue = b.queue[1:]
	return d, true
}

func (b *Bus) deliver(d delivery) {
	b.mu.Lock()
	hs := append([]Handler(nil), b.handlers[d.to][d.env.Channel]...)
	b.mu.Unlock()

	ctx := logging.WithChannel(d.ctx, string(d.env.Channel))
	if len(hs) == 0 {
		b.logger.Debug(ctx, "no handler for envelope",
			zap.Stringer("side", d.to),
			zap.String("type", d.env.Type))
		return
	}
	for _, h := range hs {
		h(ctx, d.env)
	}
}

type busSide struct {
	bus  *Bus
	side Side
}

func (s busSide) Send(ctx context.Context, ch envelope.Channel, env envelope.Envelope) {
	env.Channel = ch
	// Deliveries outlive the sender's request scope.
	s.bus.enqueue(delivery{ctx: context.WithoutCancel(ctx), to: s.side.other(), env: env})
}

func (s busSide) Receive(ch envelope.Channel, h Handler) error {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	s.bus.handlers[s.side][ch] = append(s.bus.handlers[s.side][ch], h)
	return nil
}
