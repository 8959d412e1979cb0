package producer

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/fyrsmithlabs/servedeck/internal/envelope"
	"github.com/fyrsmithlabs/servedeck/internal/logging"
	"github.com/fyrsmithlabs/servedeck/internal/project"
	"github.com/fyrsmithlabs/servedeck/internal/transport"
)

// DefaultStatusCommand lists the running compose services of a project.
var DefaultStatusCommand = []string{"docker", "compose", "ps", "--status", "running", "--quiet"}

const (
	defaultStatusTimeout  = 10 * time.Second
	defaultMaxConcurrency = 4
)

// Runner runs argv in dir and returns its standard output.
type Runner func(ctx context.Context, dir string, argv []string) ([]byte, error)

// ExecRunner runs commands with os/exec.
func ExecRunner(ctx context.Context, dir string, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("empty status command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = dir
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w (stderr: %s)", argv[0], err, bytes.TrimSpace(stderr.Bytes()))
	}
	return out, nil
}

// StatusPoller answers status requests by running a command in the
// project directory. Any output means running; no output means stopped.
//
// Commands run off the delivering goroutine, at most MaxConcurrency at a
// time.
type StatusPoller struct {
	command []string
	timeout time.Duration
	run     Runner
	sem     *semaphore.Weighted
	logger  *logging.Logger
}

// StatusOption configures a StatusPoller.
type StatusOption func(*StatusPoller)

// WithStatusCommand overrides the status command.
func WithStatusCommand(argv ...string) StatusOption {
	return func(p *StatusPoller) {
		if len(argv) > 0 {
			p.command = argv
		}
	}
}

// WithRunner overrides how the status command is executed.
func WithRunner(r Runner) StatusOption {
	return func(p *StatusPoller) { p.run = r }
}

// WithStatusTimeout bounds each command run.
func WithStatusTimeout(d time.Duration) StatusOption {
	return func(p *StatusPoller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithMaxConcurrency bounds the number of commands running at once.
func WithMaxConcurrency(n int64) StatusOption {
	return func(p *StatusPoller) {
		if n > 0 {
			p.sem = semaphore.NewWeighted(n)
		}
	}
}

// NewStatusPoller creates a status poller.
func NewStatusPoller(logger *logging.Logger, opts ...StatusOption) *StatusPoller {
	if logger == nil {
		logger = logging.NewNop()
	}
	p := &StatusPoller{
		command: DefaultStatusCommand,
		timeout: defaultStatusTimeout,
		run:     ExecRunner,
		sem:     semaphore.NewWeighted(defaultMaxConcurrency),
		logger:  logger.Named("status"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Attach implements Producer.
func (p *StatusPoller) Attach(t transport.Transport) error {
	return t.Receive(envelope.ChannelStatus, func(ctx context.Context, env envelope.Envelope) {
		req, ok := envelope.Decode(env, envelope.Outbound).(envelope.StatusRequest)
		if !ok {
			return
		}
		go p.poll(context.WithoutCancel(ctx), t, req)
	})
}

func (p *StatusPoller) poll(ctx context.Context, t transport.Transport, req envelope.StatusRequest) {
	ctx = logging.WithProjectID(ctx, req.ProjectID)
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return
	}
	defer p.sem.Release(1)

	status, err := p.Status(ctx, req.Path)
	if err != nil {
		p.logger.Warn(ctx, "status command failed", zap.String("project", req.Name), zap.Error(err))
		reportError(ctx, t, req.ProjectID, fmt.Errorf("status of %s: %w", req.Name, err))
		return
	}
	reply(ctx, t, envelope.StatusReply{ProjectID: req.ProjectID, Value: string(status)})
}

// Status runs the status command in dir.
func (p *StatusPoller) Status(ctx context.Context, dir string) (project.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	out, err := p.run(ctx, dir, p.command)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return project.StatusUnknown, fmt.Errorf("status command timeout after %v", p.timeout)
		}
		return project.StatusUnknown, err
	}
	if len(bytes.TrimSpace(out)) == 0 {
		return project.StatusStopped, nil
	}
	return project.StatusRunning, nil
}
