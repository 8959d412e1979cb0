package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/mitchellh/copystructure"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/servedeck/internal/envelope"
	"github.com/fyrsmithlabs/servedeck/internal/logging"
	"github.com/fyrsmithlabs/servedeck/internal/notify"
	"github.com/fyrsmithlabs/servedeck/internal/project"
)

// Store is the write path of the project registry.
type Store interface {
	Has(id string) bool
	UpdateStatus(id string, fn func(project.Status) (project.Status, bool)) project.WriteResult
	UpdateSettings(id string, fn func(project.Settings) (project.Settings, bool)) project.WriteResult
}

// Policy applies correlated replies to the registry.
type Policy struct {
	store   Store
	parser  Parser
	sink    notify.Sink
	logger  *logging.Logger
	metrics *Metrics
}

// NewPolicy creates a merge policy. A nil parser defaults to TOMLParser.
func NewPolicy(store Store, parser Parser, sink notify.Sink, logger *logging.Logger, metrics *Metrics) *Policy {
	if parser == nil {
		parser = TOMLParser{}
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Policy{
		store:   store,
		parser:  parser,
		sink:    sink,
		logger:  logger.Named("policy"),
		metrics: metrics,
	}
}

// ApplyStatus writes the reported status when it differs from the current one.
func (p *Policy) ApplyStatus(ctx context.Context, r envelope.StatusReply) project.WriteResult {
	next := project.Status(r.Value)
	res := p.store.UpdateStatus(r.ProjectID, func(cur project.Status) (project.Status, bool) {
		return next, cur != next
	})
	p.record(ctx, project.GroupStatus, res)
	return res
}

// ApplyConfig parses the config text and replaces the file-sourced part of
// the settings with a deep copy of the result. A parse failure is reported
// to the notification sink and returned; nothing is written.
func (p *Policy) ApplyConfig(ctx context.Context, r envelope.ConfigReply) (project.WriteResult, error) {
	if !p.store.Has(r.ProjectID) {
		return project.WriteMissing, nil
	}

	parsed, err := p.parser.Parse(r.Text)
	if err != nil {
		p.reportParseError(ctx, r.ProjectID, err)
		return project.WriteUnchanged, err
	}

	cfg, err := deepCopy(parsed)
	if err != nil {
		return project.WriteUnchanged, fmt.Errorf("copying parsed config: %w", err)
	}

	res := p.store.UpdateSettings(r.ProjectID, func(cur project.Settings) (project.Settings, bool) {
		next := project.Settings{Config: cfg, Repository: cur.Repository}
		if next.Equal(cur) {
			return cur, false
		}
		return next, true
	})
	p.record(ctx, project.GroupSettings, res)
	return res, nil
}

// ApplyRemote sets the repository descriptor, leaving the rest of the
// settings untouched.
func (p *Policy) ApplyRemote(ctx context.Context, r envelope.RemoteReply) project.WriteResult {
	res := p.store.UpdateSettings(r.ProjectID, func(cur project.Settings) (project.Settings, bool) {
		if cur.Repository == r.Content {
			return cur, false
		}
		cur.Repository = r.Content
		return cur, true
	})
	p.record(ctx, project.GroupSettings, res)
	return res
}

func (p *Policy) record(ctx context.Context, group project.FieldGroup, res project.WriteResult) {
	if res != project.WriteApplied {
		return
	}
	p.metrics.WritesTotal.WithLabelValues(string(group)).Inc()
	p.logger.Debug(ctx, "registry updated", zap.String("group", string(group)))
}

func (p *Policy) reportParseError(ctx context.Context, projectID string, err error) {
	p.logger.Warn(ctx, "config parse failed", zap.Error(err))
	if p.sink == nil {
		return
	}
	p.sink.Append(notify.Notification{
		Type:      notify.TypeError,
		ProjectID: projectID,
		Text:      err.Error(),
	})
}

// deepCopy detaches the parsed structure from any buffer the parser or
// transport may reuse.
func deepCopy(m map[string]any) (map[string]any, error) {
	v, err := copystructure.Copy(m)
	if err != nil {
		return nil, err
	}
	out, ok := v.(map[string]any)
	if !ok {
		return nil, errors.New("unexpected copy type")
	}
	return out, nil
}
