package project

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// FieldGroup names the unit of atomic mutation on a project.
type FieldGroup string

const (
	GroupStatus   FieldGroup = "status"
	GroupSettings FieldGroup = "settings"
)

// WriteResult reports what an update did.
type WriteResult int

const (
	// WriteMissing means the id is not registered; nothing happened.
	WriteMissing WriteResult = iota
	// WriteUnchanged means the project exists but the value did not change.
	WriteUnchanged
	// WriteApplied means the field group was replaced.
	WriteApplied
)

func (r WriteResult) String() string {
	switch r {
	case WriteMissing:
		return "missing"
	case WriteUnchanged:
		return "unchanged"
	case WriteApplied:
		return "applied"
	default:
		return fmt.Sprintf("WriteResult(%d)", int(r))
	}
}

// Change describes one applied write.
type Change struct {
	Group   FieldGroup
	Project *Project
}

// entry guards one project's field groups.
type entry struct {
	mu      sync.Mutex
	project *Project
}

// Registry is the authoritative, in-memory set of known projects.
//
// Membership is guarded by an RWMutex. Field-group writes hold the read side
// of it plus the target project's own mutex, so writes to different projects
// proceed in parallel while writes to the same project are serialized.
type Registry struct {
	mu      sync.RWMutex
	order   []string          // insertion order of ids
	entries map[string]*entry // id -> entry
	byPath  map[string]string // path -> id

	statusWrites   atomic.Int64
	settingsWrites atomic.Int64

	subMu       sync.RWMutex
	subscribers []func(Change)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*entry),
		byPath:  make(map[string]string),
	}
}

// Create registers a new project with a generated id.
func (r *Registry) Create(ctx context.Context, name, path string) (*Project, error) {
	p, err := NewProject(name, path)
	if err != nil {
		return nil, err
	}
	if err := r.Add(ctx, p); err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// Add registers an existing project. The registry keeps its own copy.
func (r *Registry) Add(ctx context.Context, p *Project) error {
	if err := p.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[p.ID]; ok {
		return fmt.Errorf("%w: id %s", ErrProjectExists, p.ID)
	}
	if existing, ok := r.byPath[p.Path]; ok {
		return fmt.Errorf("%w: project %s already exists at path %s", ErrProjectExists, existing, p.Path)
	}

	stored := p.Clone()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
		stored.UpdatedAt = stored.CreatedAt
	}

	r.entries[stored.ID] = &entry{project: stored}
	r.byPath[stored.Path] = stored.ID
	r.order = append(r.order, stored.ID)
	return nil
}

// Remove unregisters a project.
func (r *Registry) Remove(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyProjectID
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}

	delete(r.entries, id)
	delete(r.byPath, e.project.Path)
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns a snapshot of the project with the given id.
func (r *Registry) Get(id string) (*Project, error) {
	if id == "" {
		return nil, ErrEmptyProjectID
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, id)
	}
	return e.snapshot(), nil
}

// Has reports whether id is currently registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// List returns snapshots of all projects in registration order.
func (r *Registry) List() []*Project {
	r.mu.RLock()
	defer r.mu.RUnlock()

	projects := make([]*Project, 0, len(r.order))
	for _, id := range r.order {
		projects = append(projects, r.entries[id].snapshot())
	}
	return projects
}

// Len returns the number of registered projects.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// UpdateStatus applies fn to the current status of project id. fn returns
// the new status and whether it differs; only a reported difference is
// written.
func (r *Registry) UpdateStatus(id string, fn func(current Status) (Status, bool)) WriteResult {
	return r.update(id, GroupStatus, func(p *Project) bool {
		next, changed := fn(p.Status)
		if !changed {
			return false
		}
		p.Status = next
		return true
	})
}

// UpdateSettings applies fn to a private copy of the current settings of
// project id. fn returns the new settings and whether they differ.
func (r *Registry) UpdateSettings(id string, fn func(current Settings) (Settings, bool)) WriteResult {
	return r.update(id, GroupSettings, func(p *Project) bool {
		next, changed := fn(p.Settings.Clone())
		if !changed {
			return false
		}
		p.Settings = next
		return true
	})
}

// Writes returns how many writes were applied to a field group.
func (r *Registry) Writes(group FieldGroup) int64 {
	switch group {
	case GroupStatus:
		return r.statusWrites.Load()
	case GroupSettings:
		return r.settingsWrites.Load()
	default:
		return 0
	}
}

// Subscribe registers fn to be called after every applied write.
// Subscribers run on the writer's goroutine, outside registry locks.
func (r *Registry) Subscribe(fn func(Change)) {
	r.subMu.Lock()
	defer r.subMu.Unlock()
	r.subscribers = append(r.subscribers, fn)
}

func (r *Registry) update(id string, group FieldGroup, apply func(*Project) bool) WriteResult {
	if id == "" {
		return WriteMissing
	}

	r.mu.RLock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.RUnlock()
		return WriteMissing
	}

	e.mu.Lock()
	changed := apply(e.project)
	var snap *Project
	if changed {
		e.project.UpdatedAt = time.Now()
		snap = e.project.Clone()
	}
	e.mu.Unlock()
	r.mu.RUnlock()

	if !changed {
		return WriteUnchanged
	}

	switch group {
	case GroupStatus:
		r.statusWrites.Add(1)
	case GroupSettings:
		r.settingsWrites.Add(1)
	}
	r.notify(Change{Group: group, Project: snap})
	return WriteApplied
}

func (r *Registry) notify(c Change) {
	r.subMu.RLock()
	subs := make([]func(Change), len(r.subscribers))
	copy(subs, r.subscribers)
	r.subMu.RUnlock()

	for _, fn := range subs {
		fn(c)
	}
}

func (e *entry) snapshot() *Project {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.project.Clone()
}
