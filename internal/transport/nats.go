package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/servedeck/internal/envelope"
	"github.com/fyrsmithlabs/servedeck/internal/logging"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "servedeck"

// ErrClosed is returned by Receive after Close.
var ErrClosed = errors.New("transport closed")

// NATS carries envelopes as JSON over a NATS connection.
//
// Envelopes are published to subjects:
//   - {prefix}.out.{channel}  host -> peer (requests)
//   - {prefix}.in.{channel}   peer -> host (replies, notifications, lifecycle)
//
// Example usage:
//
//	nc, _ := nats.Connect(nats.DefaultURL)
//	host := transport.NewNATS(nc, "servedeck", transport.SideHost, logger)
//	host.Receive(envelope.ChannelStatus, handler)
//	host.Send(ctx, envelope.ChannelStatus, env)
type NATS struct {
	conn   *nats.Conn
	prefix string
	side   Side
	logger *logging.Logger

	mu     sync.Mutex
	subs   []*nats.Subscription
	closed bool
}

// NewNATS creates a transport for one side over an existing connection.
// The caller keeps ownership of nc.
func NewNATS(nc *nats.Conn, prefix string, side Side, logger *logging.Logger) *NATS {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &NATS{
		conn:   nc,
		prefix: prefix,
		side:   side,
		logger: logger.Named("nats").With(zap.Stringer("side", side)),
	}
}

// Subject returns the subject an envelope on ch travels on when sent by side.
func Subject(prefix string, from Side, ch envelope.Channel) string {
	dir := "out"
	if from == SidePeer {
		dir = "in"
	}
	return fmt.Sprintf("%s.%s.%s", prefix, dir, ch)
}

// Send publishes env on ch. Publish failures are logged, not returned.
func (t *NATS) Send(ctx context.Context, ch envelope.Channel, env envelope.Envelope) {
	env.Channel = ch
	ctx = logging.WithProjectID(logging.WithChannel(ctx, string(ch)), env.ID)

	data, err := env.Marshal()
	if err != nil {
		t.logger.Warn(ctx, "dropping unencodable envelope", zap.Error(err))
		return
	}

	subject := Subject(t.prefix, t.side, ch)
	if err := t.conn.Publish(subject, data); err != nil {
		t.logger.Warn(ctx, "publish envelope failed",
			zap.String("subject", subject),
			zap.Error(err))
		return
	}
	t.logger.Trace(ctx, "envelope published",
		zap.String("subject", subject),
		zap.String("type", env.Type))
}

// Receive subscribes h to envelopes sent by the other side on ch.
func (t *NATS) Receive(ch envelope.Channel, h Handler) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return ErrClosed
	}

	subject := Subject(t.prefix, t.side.other(), ch)
	sub, err := t.conn.Subscribe(subject, func(m *nats.Msg) {
		ctx := logging.WithChannel(context.Background(), string(ch))
		env, err := envelope.Unmarshal(ch, m.Data)
		if err != nil {
			t.logger.Warn(ctx, "dropping malformed envelope",
				zap.String("subject", m.Subject),
				zap.Error(err))
			return
		}
		h(ctx, env)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}

	t.subs = append(t.subs, sub)
	return nil
}

// Flush waits until all published envelopes reached the server.
func (t *NATS) Flush() error {
	return t.conn.Flush()
}

// Close removes every subscription made through this transport.
func (t *NATS) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	for _, sub := range t.subs {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, err)
		}
	}
	t.subs = nil
	return errors.Join(errs...)
}
