package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fyrsmithlabs/servedeck/internal/config"
	"github.com/fyrsmithlabs/servedeck/internal/engine"
	httpserver "github.com/fyrsmithlabs/servedeck/internal/http"
	"github.com/fyrsmithlabs/servedeck/internal/logging"
	"github.com/fyrsmithlabs/servedeck/internal/producer"
	"github.com/fyrsmithlabs/servedeck/internal/transport"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the project registry and HTTP API",
	Long: `Start the project registry, the bundled producers (local transport)
and the HTTP API. Runs until interrupted.

Examples:
  # Use the default config file
  servedeck run

  # Use producers running elsewhere over NATS
  SERVEDECK_TRANSPORT_KIND=nats servedeck run`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
		return run(cmd.Context(), cfg, logger)
	},
}

// run wires the engine to its transport and serves until ctx is cancelled.
//
//  1. Creates the metrics registry
//  2. Builds the transport (in-process bus or NATS)
//  3. Attaches the bundled producers when using the bus
//  4. Seeds configured projects and starts the engine
//  5. Serves the HTTP API
func run(ctx context.Context, cfg *config.Config, logger *logging.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	g, gctx := errgroup.WithContext(ctx)

	var host transport.Transport
	switch cfg.Transport.Kind {
	case config.TransportNATS:
		nc, err := connectNATS(cfg.Transport.NATSURL, "servedeck")
		if err != nil {
			return err
		}
		defer nc.Close()
		t := transport.NewNATS(nc, cfg.Transport.SubjectPrefix, transport.SideHost, logger)
		defer t.Close()
		host = t
		logger.Info(ctx, "connected to NATS", zap.String("url", cfg.Transport.NATSURL))
	default:
		bus := transport.NewBus(logger)
		host = bus.Host()
		if cfg.Producers.Enabled {
			watcher, err := attachProducers(bus.Peer(), cfg, logger)
			if err != nil {
				return err
			}
			if watcher != nil {
				defer watcher.Close()
				g.Go(func() error { return ignoreCanceled(watcher.Run(gctx)) })
			}
		}
		g.Go(func() error { return ignoreCanceled(bus.Run(gctx)) })
	}

	eng, err := engine.New(engine.Options{
		Transport:  host,
		ConfigFile: cfg.Settings.ConfigFile,
		Logger:     logger,
		Registerer: reg,
	})
	if err != nil {
		return fmt.Errorf("creating engine: %w", err)
	}
	if err := eng.Seed(ctx, cfg.Projects); err != nil {
		return err
	}
	if err := eng.Start(ctx); err != nil {
		return fmt.Errorf("starting engine: %w", err)
	}

	srv, err := httpserver.NewServer(eng, logger, &httpserver.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout.Duration(),
		Gatherer:        reg,
		Registerer:      reg,
	})
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}
	g.Go(func() error {
		if err := srv.Start(gctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	err = g.Wait()
	logger.Info(context.Background(), "servedeck stopped")
	return err
}

// attachProducers attaches the bundled producers to t. The returned watcher
// is nil when watching is disabled.
func attachProducers(t transport.Transport, cfg *config.Config, logger *logging.Logger) (*producer.Watcher, error) {
	producers := []producer.Producer{
		producer.NewStatusPoller(logger,
			producer.WithStatusCommand(cfg.Producers.StatusArgv()...),
			producer.WithStatusTimeout(cfg.Producers.StatusTimeout.Duration())),
		producer.NewFileReader(logger),
		producer.NewRemoteReader(logger),
	}

	var watcher *producer.Watcher
	if cfg.Producers.Watch {
		w, err := producer.NewWatcher(logger)
		if err != nil {
			return nil, err
		}
		watcher = w
		producers = append(producers, w)
	}

	if err := producer.AttachAll(t, producers...); err != nil {
		if watcher != nil {
			_ = watcher.Close()
		}
		return nil, err
	}
	return watcher, nil
}

func connectNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return nc, nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
