// Package engine wires the project registry, dispatcher and correlator to
// a transport.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/servedeck/internal/config"
	"github.com/fyrsmithlabs/servedeck/internal/dispatch"
	"github.com/fyrsmithlabs/servedeck/internal/logging"
	"github.com/fyrsmithlabs/servedeck/internal/notify"
	"github.com/fyrsmithlabs/servedeck/internal/project"
	"github.com/fyrsmithlabs/servedeck/internal/reconcile"
	"github.com/fyrsmithlabs/servedeck/internal/transport"
)

var (
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("engine already started")

	// ErrNoTransport is returned when Options has no transport.
	ErrNoTransport = errors.New("transport is required")
)

// Options configures the engine.
type Options struct {
	// Transport is the servedeck side of the producer transport.
	Transport transport.Transport

	// Registry defaults to an empty registry.
	Registry *project.Registry

	// Notifications defaults to an empty log.
	Notifications *notify.Log

	// Parser defaults to TOML.
	Parser reconcile.Parser

	// ConfigFile is the per-project config file name.
	ConfigFile string

	Logger     *logging.Logger
	Registerer prometheus.Registerer
}

// Engine owns the registry and reacts to producer replies.
type Engine struct {
	transport     transport.Transport
	registry      *project.Registry
	notifications *notify.Log
	dispatcher    *dispatch.Dispatcher
	correlator    *reconcile.Correlator
	logger        *logging.Logger
	started       atomic.Bool
}

// New creates an engine. Nothing is sent until Start.
func New(opts Options) (*Engine, error) {
	if opts.Transport == nil {
		return nil, ErrNoTransport
	}
	if opts.Registry == nil {
		opts.Registry = project.NewRegistry()
	}
	if opts.Notifications == nil {
		opts.Notifications = notify.NewLog()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}

	e := &Engine{
		transport:     opts.Transport,
		registry:      opts.Registry,
		notifications: opts.Notifications,
		logger:        opts.Logger.Named("engine"),
	}

	e.dispatcher = dispatch.New(e.registry, opts.Transport,
		dispatch.WithConfigFile(opts.ConfigFile),
		dispatch.WithLogger(opts.Logger),
		dispatch.WithRegisterer(opts.Registerer))

	metrics := reconcile.NewMetrics(opts.Registerer)
	policy := reconcile.NewPolicy(e.registry, opts.Parser, e.notifications, opts.Logger, metrics)
	e.correlator = reconcile.NewCorrelator(e.registry, policy, e.notifications,
		reconcile.WithFocus(func(ctx context.Context) { e.Focus(ctx) }),
		reconcile.WithLogger(opts.Logger),
		reconcile.WithMetrics(metrics))

	e.registry.Subscribe(e.logChange)
	return e, nil
}

// Projects returns the project registry.
func (e *Engine) Projects() *project.Registry { return e.registry }

// Notifications returns the notification log.
func (e *Engine) Notifications() *notify.Log { return e.notifications }

// Seed registers the configured projects. Projects whose path is already
// registered are skipped.
func (e *Engine) Seed(ctx context.Context, projects []config.ProjectConfig) error {
	for _, pc := range projects {
		p, err := e.registry.Create(ctx, pc.Name, pc.Path)
		if errors.Is(err, project.ErrProjectExists) {
			e.logger.Debug(ctx, "project already registered", zap.String("path", pc.Path))
			continue
		}
		if err != nil {
			return fmt.Errorf("seeding project %q: %w", pc.Name, err)
		}
		e.logger.Info(logging.WithProjectID(ctx, p.ID), "project registered",
			zap.String("name", p.Name), zap.String("path", p.Path))
	}
	return nil
}

// Start attaches the correlator to the transport and performs the mount
// dispatch.
func (e *Engine) Start(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if err := e.correlator.Attach(e.transport); err != nil {
		return fmt.Errorf("attaching correlator: %w", err)
	}
	n := e.dispatcher.Dispatch(ctx, dispatch.TriggerMount)
	e.logger.Info(ctx, "engine started",
		zap.Int("projects", e.registry.Len()),
		zap.Int("requests", n))
	return nil
}

// Focus re-requests everything for every project, as when the host window
// regains focus.
func (e *Engine) Focus(ctx context.Context) int {
	return e.dispatcher.Dispatch(ctx, dispatch.TriggerFocus)
}

// AddProject registers a project and, once started, requests its state.
func (e *Engine) AddProject(ctx context.Context, name, path string) (*project.Project, error) {
	p, err := e.registry.Create(ctx, name, path)
	if err != nil {
		return nil, err
	}
	if e.started.Load() {
		e.dispatcher.DispatchProject(ctx, p)
	}
	return p, nil
}

// RemoveProject unregisters a project. Replies still in flight for it are
// dropped on arrival.
func (e *Engine) RemoveProject(ctx context.Context, id string) error {
	return e.registry.Remove(ctx, id)
}

func (e *Engine) logChange(c project.Change) {
	ctx := logging.WithProjectID(context.Background(), c.Project.ID)
	switch c.Group {
	case project.GroupStatus:
		e.logger.Info(ctx, "project status changed", zap.String("status", string(c.Project.Status)))
	case project.GroupSettings:
		e.logger.Info(ctx, "project settings changed",
			zap.Int("keys", len(c.Project.Settings.Config)),
			zap.String("repository", c.Project.Settings.Repository))
	}
}
