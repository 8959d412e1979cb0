package producer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/servedeck/internal/envelope"
	"github.com/fyrsmithlabs/servedeck/internal/logging"
	"github.com/fyrsmithlabs/servedeck/internal/transport"
)

// ErrWatcherFailed indicates the filesystem watcher failed to initialize.
var ErrWatcherFailed = errors.New("failed to initialize filesystem watcher")

const (
	defaultWatchInterval = 100 * time.Millisecond
	defaultWatchBurst    = 5
)

// Watcher pushes unsolicited config replies when a config file that was
// previously requested changes on disk.
//
// Directories are watched rather than files so that editors replacing a
// file by rename are still observed.
type Watcher struct {
	watcher *fsnotify.Watcher
	limiter *rate.Limiter
	logger  *logging.Logger

	mu      sync.Mutex
	t       transport.Transport
	targets map[string]map[string]struct{} // config path -> project ids
	dirs    map[string]struct{}
}

// NewWatcher creates a watcher. Call Run to start delivering changes.
func NewWatcher(logger *logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWatcherFailed, err)
	}
	return &Watcher{
		watcher: fw,
		limiter: rate.NewLimiter(rate.Every(defaultWatchInterval), defaultWatchBurst),
		logger:  logger.Named("watcher"),
		targets: make(map[string]map[string]struct{}),
		dirs:    make(map[string]struct{}),
	}, nil
}

// Attach implements Producer. It observes read requests to learn which
// files to watch; it never answers them.
func (w *Watcher) Attach(t transport.Transport) error {
	w.mu.Lock()
	w.t = t
	w.mu.Unlock()

	return t.Receive(envelope.ChannelFilesystem, func(ctx context.Context, env envelope.Envelope) {
		req, ok := envelope.Decode(env, envelope.Outbound).(envelope.ConfigRequest)
		if !ok || req.Path == "" {
			return
		}
		if err := w.Track(req.ProjectID, req.Path); err != nil {
			w.logger.Debug(logging.WithProjectID(ctx, req.ProjectID), "not watching config",
				zap.String("path", req.Path), zap.Error(err))
		}
	})
}

// Track starts watching path on behalf of projectID.
func (w *Watcher) Track(projectID, path string) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.dirs[dir]; !ok {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		w.dirs[dir] = struct{}{}
	}

	ids, ok := w.targets[path]
	if !ok {
		ids = make(map[string]struct{})
		w.targets[path] = ids
	}
	ids[projectID] = struct{}{}
	return nil
}

// Tracked reports whether path is being watched.
func (w *Watcher) Tracked(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.targets[filepath.Clean(path)]
	return ok
}

// Run delivers change notifications until ctx is cancelled or the
// watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := w.limiter.Wait(ctx); err != nil {
				return ctx.Err()
			}
			w.changed(ctx, filepath.Clean(event.Name))
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn(ctx, "watch error", zap.Error(err))
		}
	}
}

// Close stops the underlying watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) changed(ctx context.Context, path string) {
	w.mu.Lock()
	t := w.t
	var ids []string
	for id := range w.targets[path] {
		ids = append(ids, id)
	}
	w.mu.Unlock()

	if t == nil || len(ids) == 0 {
		return
	}

	text, err := readConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		return
	}

	for _, id := range ids {
		pctx := logging.WithProjectID(ctx, id)
		if err != nil {
			reportError(pctx, t, id, err)
			continue
		}
		w.logger.Debug(pctx, "config changed", zap.String("path", path))
		reply(pctx, t, envelope.ConfigReply{ProjectID: id, Text: text})
	}
}
