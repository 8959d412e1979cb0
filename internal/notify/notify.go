// Package notify keeps the append-only log of user-visible messages.
package notify

import (
	"encoding/json"
	"sync"
	"time"
)

// Notification types emitted by servedeck itself.
const (
	TypeError = "error"
	TypeInfo  = "info"
)

// Notification is one user-visible log entry.
type Notification struct {
	Type      string          `json:"type"`
	ProjectID string          `json:"project_id,omitempty"`
	Text      string          `json:"text"`
	Data      json.RawMessage `json:"data,omitempty"`
	At        time.Time       `json:"at"`
}

// Sink accepts notifications.
type Sink interface {
	Append(n Notification)
}

// Log is an append-only, concurrency-safe notification log.
// It never de-duplicates.
type Log struct {
	mu      sync.RWMutex
	entries []Notification
	now     func() time.Time
}

// NewLog creates an empty log.
func NewLog() *Log {
	return &Log{now: time.Now}
}

// Append adds n to the log, stamping it if At is zero.
func (l *Log) Append(n Notification) {
	if n.At.IsZero() {
		n.At = l.now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, n)
}

// List returns a copy of all entries in append order.
func (l *Log) List() []Notification {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Notification, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
