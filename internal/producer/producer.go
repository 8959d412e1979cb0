// Package producer implements the external collaborators that answer
// servedeck's requests: a container status poller, a config file reader,
// a version-control remote reader and a config file watcher.
//
// Producers attach to the peer side of a transport. They reply on the
// channel the request arrived on and report failures as notification
// envelopes rather than errors.
package producer

import (
	"context"
	"fmt"

	"github.com/fyrsmithlabs/servedeck/internal/envelope"
	"github.com/fyrsmithlabs/servedeck/internal/notify"
	"github.com/fyrsmithlabs/servedeck/internal/transport"
)

// Producer answers requests arriving on a transport.
type Producer interface {
	Attach(t transport.Transport) error
}

// AttachAll attaches every producer to t.
func AttachAll(t transport.Transport, producers ...Producer) error {
	for _, p := range producers {
		if err := p.Attach(t); err != nil {
			return fmt.Errorf("attaching %T: %w", p, err)
		}
	}
	return nil
}

func reply(ctx context.Context, t transport.Transport, msg envelope.Message) {
	env := envelope.Encode(msg)
	t.Send(ctx, env.Channel, env)
}

func reportError(ctx context.Context, t transport.Transport, projectID string, err error) {
	reply(ctx, t, envelope.Notice{
		Type:      notify.TypeError,
		ProjectID: projectID,
		Text:      err.Error(),
	})
}
