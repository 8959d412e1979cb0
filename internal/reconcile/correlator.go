package reconcile

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/servedeck/internal/envelope"
	"github.com/fyrsmithlabs/servedeck/internal/logging"
	"github.com/fyrsmithlabs/servedeck/internal/notify"
	"github.com/fyrsmithlabs/servedeck/internal/project"
	"github.com/fyrsmithlabs/servedeck/internal/transport"
)

// FocusFunc is invoked when the host reports it regained focus.
type FocusFunc func(ctx context.Context)

// Correlator reacts to inbound envelopes on every channel.
type Correlator struct {
	store   Store
	policy  *Policy
	sink    notify.Sink
	focus   FocusFunc
	logger  *logging.Logger
	metrics *Metrics
}

// CorrelatorOption configures a Correlator.
type CorrelatorOption func(*Correlator)

// WithFocus sets the lifecycle focus callback.
func WithFocus(fn FocusFunc) CorrelatorOption {
	return func(c *Correlator) { c.focus = fn }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) CorrelatorOption {
	return func(c *Correlator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics sets the counters shared with the policy.
func WithMetrics(m *Metrics) CorrelatorOption {
	return func(c *Correlator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// NewCorrelator creates a correlator that resolves ids against store,
// merges through policy and forwards notifications to sink.
func NewCorrelator(store Store, policy *Policy, sink notify.Sink, opts ...CorrelatorOption) *Correlator {
	c := &Correlator{
		store:  store,
		policy: policy,
		sink:   sink,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = policy.metrics
	}
	c.logger = c.logger.Named("correlator")
	return c
}

// Attach registers exactly one handler per channel on t.
func (c *Correlator) Attach(t transport.Transport) error {
	for _, ch := range envelope.Channels() {
		if err := t.Receive(ch, c.Handle); err != nil {
			return fmt.Errorf("registering %s handler: %w", ch, err)
		}
	}
	return nil
}

// Handle processes one inbound envelope. It never fails: stale ids and
// unrecognized types are dropped and counted.
func (c *Correlator) Handle(ctx context.Context, env envelope.Envelope) {
	if env.ID != "" {
		ctx = logging.WithProjectID(ctx, env.ID)
	}
	outcome := c.handle(ctx, envelope.Decode(env, envelope.Inbound))
	c.metrics.EnvelopesTotal.WithLabelValues(string(env.Channel), outcome).Inc()
	c.logger.Trace(ctx, "envelope handled",
		zap.String("channel", string(env.Channel)),
		zap.String("type", env.Type),
		zap.String("outcome", outcome))
}

func (c *Correlator) handle(ctx context.Context, msg envelope.Message) string {
	switch m := msg.(type) {
	case envelope.StatusReply:
		if !c.store.Has(m.ProjectID) {
			return OutcomeStale
		}
		return outcomeOf(c.policy.ApplyStatus(ctx, m))

	case envelope.ConfigReply:
		if !c.store.Has(m.ProjectID) {
			return OutcomeStale
		}
		res, err := c.policy.ApplyConfig(ctx, m)
		if err != nil {
			return OutcomeInvalid
		}
		return outcomeOf(res)

	case envelope.RemoteReply:
		if !c.store.Has(m.ProjectID) {
			return OutcomeStale
		}
		return outcomeOf(c.policy.ApplyRemote(ctx, m))

	case envelope.Focused:
		if c.focus != nil {
			c.focus(ctx)
		}
		return OutcomeFocused

	case envelope.Notice:
		if c.sink != nil {
			c.sink.Append(notify.Notification{
				Type:      m.Type,
				ProjectID: m.ProjectID,
				Text:      m.Text,
				Data:      m.Data,
			})
		}
		return OutcomeNotified

	default:
		return OutcomeIgnored
	}
}

func outcomeOf(res project.WriteResult) string {
	switch res {
	case project.WriteApplied:
		return OutcomeApplied
	case project.WriteMissing:
		return OutcomeStale
	default:
		return OutcomeUnchanged
	}
}
