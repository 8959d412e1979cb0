// Package dispatch emits per-project requests to the producers whenever
// the host asks for a refresh.
package dispatch

import (
	"context"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/servedeck/internal/envelope"
	"github.com/fyrsmithlabs/servedeck/internal/logging"
	"github.com/fyrsmithlabs/servedeck/internal/project"
	"github.com/fyrsmithlabs/servedeck/internal/transport"
)

// DefaultConfigFile is the per-project config file name.
const DefaultConfigFile = "serve.toml"

// Trigger names the event that caused a dispatch.
type Trigger string

const (
	TriggerMount Trigger = "mount"
	TriggerFocus Trigger = "focus"
)

// Lister is the read path of the project registry.
type Lister interface {
	List() []*project.Project
}

// Dispatcher fans one request per channel out to every registered project.
//
// Dispatch is fire-and-forget and does not de-duplicate: a second trigger
// before replies arrive sends a second round of requests.
type Dispatcher struct {
	projects   Lister
	transport  transport.Transport
	configFile string
	logger     *logging.Logger
	requests   *prometheus.CounterVec
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConfigFile overrides the config file name appended to project paths.
func WithConfigFile(name string) Option {
	return func(d *Dispatcher) {
		if name != "" {
			d.configFile = name
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithRegisterer registers dispatch metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(d *Dispatcher) {
		d.requests = newRequestCounter(reg)
	}
}

// New creates a dispatcher reading projects from l and sending on t.
func New(l Lister, t transport.Transport, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		projects:   l,
		transport:  t,
		configFile: DefaultConfigFile,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.requests == nil {
		d.requests = newRequestCounter(nil)
	}
	d.logger = d.logger.Named("dispatch")
	return d
}

// ConfigPath returns the config file path requested for a project path.
func (d *Dispatcher) ConfigPath(projectPath string) string {
	return filepath.Join(projectPath, d.configFile)
}

// Dispatch sends status, filesystem and remote requests for every project
// currently registered. It returns the number of envelopes sent.
func (d *Dispatcher) Dispatch(ctx context.Context, trigger Trigger) int {
	projects := d.projects.List()
	sent := 0

	for _, p := range projects {
		sent += d.DispatchProject(ctx, p)
	}

	d.logger.Debug(ctx, "requests dispatched",
		zap.String("trigger", string(trigger)),
		zap.Int("projects", len(projects)),
		zap.Int("envelopes", sent))
	return sent
}

// DispatchProject sends the three requests for a single project, using the
// snapshot p. It returns the number of envelopes sent.
func (d *Dispatcher) DispatchProject(ctx context.Context, p *project.Project) int {
	ctx = logging.WithProjectID(ctx, p.ID)
	d.send(ctx, envelope.StatusRequest{ProjectID: p.ID, Name: p.Name, Path: p.Path})
	d.send(ctx, envelope.ConfigRequest{ProjectID: p.ID, Path: d.ConfigPath(p.Path)})
	d.send(ctx, envelope.RemoteRequest{ProjectID: p.ID, Path: p.Path})
	return 3
}

func (d *Dispatcher) send(ctx context.Context, msg envelope.Message) {
	env := envelope.Encode(msg)
	d.transport.Send(ctx, env.Channel, env)
	d.requests.WithLabelValues(string(env.Channel)).Inc()
	d.logger.Trace(ctx, "request sent",
		zap.String("channel", string(env.Channel)),
		zap.String("path", env.Path))
}

func newRequestCounter(reg prometheus.Registerer) *prometheus.CounterVec {
	return promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "servedeck_requests_dispatched_total",
			Help: "Total number of requests sent to producers, by channel",
		},
		[]string{"channel"},
	)
}
