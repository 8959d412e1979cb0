package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/servedeck/internal/config"
	"github.com/fyrsmithlabs/servedeck/internal/envelope"
	"github.com/fyrsmithlabs/servedeck/internal/logging"
	"github.com/fyrsmithlabs/servedeck/internal/transport"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the bundled producers against a NATS server",
	Long: `Run the status poller, config reader, remote reader and config watcher
as the producer side of a NATS transport. Pair with "servedeck run" using
transport.kind: nats.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		return agent(cmd.Context(), cfg, logger)
	},
}

// agent serves producer requests over NATS until ctx is cancelled.
func agent(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	nc, err := connectNATS(cfg.Transport.NATSURL, "servedeck-agent")
	if err != nil {
		return err
	}
	defer nc.Close()
	peer := transport.NewNATS(nc, cfg.Transport.SubjectPrefix, transport.SidePeer, logger)
	defer peer.Close()

	watcher, err := attachProducers(peer, cfg, logger)
	if err != nil {
		return err
	}
	if err := peer.Flush(); err != nil {
		return err
	}
	logger.Info(ctx, "agent ready",
		zap.String("url", cfg.Transport.NATSURL),
		zap.String("subject_prefix", cfg.Transport.SubjectPrefix))

	g, gctx := errgroup.WithContext(ctx)
	if watcher != nil {
		defer watcher.Close()
		g.Go(func() error { return ignoreCanceled(watcher.Run(gctx)) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})
	return g.Wait()
}

var focusCmd = &cobra.Command{
	Use:   "focus",
	Short: "Ask a running servedeck to refresh every project",
	Long: `Publish a lifecycle "focused" envelope over NATS. A servedeck instance
using the NATS transport re-requests status, config and remote for every
project.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		if cfg.Transport.Kind != config.TransportNATS {
			return errors.New("focus requires transport.kind: nats")
		}
		return focus(cmd.Context(), cfg.Transport.NATSURL, cfg.Transport.SubjectPrefix, logger)
	},
}

// focus publishes a focused envelope from the producer side.
func focus(ctx context.Context, url, prefix string, logger *logging.Logger) error {
	nc, err := connectNATS(url, "servedeck-focus")
	if err != nil {
		return err
	}
	defer nc.Close()
	peer := transport.NewNATS(nc, prefix, transport.SidePeer, logger)
	defer peer.Close()

	env := envelope.Encode(envelope.Focused{})
	peer.Send(ctx, env.Channel, env)
	return peer.Flush()
}
