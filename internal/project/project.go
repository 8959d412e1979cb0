package project

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors.
var (
	ErrProjectNotFound  = errors.New("project not found")
	ErrProjectExists    = errors.New("project already exists")
	ErrEmptyProjectID   = errors.New("project ID cannot be empty")
	ErrEmptyProjectName = errors.New("project name cannot be empty")
	ErrEmptyProjectPath = errors.New("project path cannot be empty")
)

// Status is the last-known container-runtime status of a project.
// The empty status means unknown.
type Status string

// Well-known status values reported by the bundled status poller.
const (
	StatusUnknown Status = ""
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// Project represents a user's codebase and what servedeck observed about it.
type Project struct {
	// ID is the unique project identifier.
	ID string `json:"id"`

	// Name is the human-readable project name.
	Name string `json:"name"`

	// Path is the filesystem location of the project.
	Path string `json:"path"`

	// Status is the last-known container-runtime status.
	Status Status `json:"status,omitempty"`

	// Settings is the merged configuration of the project.
	Settings Settings `json:"settings"`

	// CreatedAt is when the project was registered.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when status or settings last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewProject creates a new project with a generated UUID.
func NewProject(name, path string) (*Project, error) {
	if name == "" {
		return nil, ErrEmptyProjectName
	}
	if path == "" {
		return nil, ErrEmptyProjectPath
	}

	now := time.Now()
	return &Project{
		ID:        uuid.New().String(),
		Name:      name,
		Path:      path,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Validate checks if the project has valid fields.
func (p *Project) Validate() error {
	if p.ID == "" {
		return ErrEmptyProjectID
	}
	if p.Name == "" {
		return ErrEmptyProjectName
	}
	if p.Path == "" {
		return ErrEmptyProjectPath
	}
	return nil
}

// Clone returns a deep copy of the project.
func (p *Project) Clone() *Project {
	c := *p
	c.Settings = p.Settings.Clone()
	return &c
}
