package producer

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/servedeck/internal/envelope"
	"github.com/fyrsmithlabs/servedeck/internal/logging"
	"github.com/fyrsmithlabs/servedeck/internal/transport"
)

// DefaultRemote is the remote whose URL describes a project.
const DefaultRemote = "origin"

// ErrNoRemote means the project has no usable remote.
var ErrNoRemote = errors.New("no remote configured")

// RemoteReader answers remote requests with the project's origin URL.
// Directories that are not repositories, or have no origin, get no reply.
type RemoteReader struct {
	remote string
	logger *logging.Logger
}

// NewRemoteReader creates a remote reader.
func NewRemoteReader(logger *logging.Logger) *RemoteReader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &RemoteReader{remote: DefaultRemote, logger: logger.Named("remote")}
}

// Attach implements Producer.
func (r *RemoteReader) Attach(t transport.Transport) error {
	return t.Receive(envelope.ChannelRemote, func(ctx context.Context, env envelope.Envelope) {
		req, ok := envelope.Decode(env, envelope.Outbound).(envelope.RemoteRequest)
		if !ok {
			return
		}
		ctx = logging.WithProjectID(ctx, req.ProjectID)

		url, err := r.RemoteURL(req.Path)
		if err != nil {
			r.logger.Debug(ctx, "no remote for project", zap.String("path", req.Path), zap.Error(err))
			return
		}
		reply(ctx, t, envelope.RemoteReply{ProjectID: req.ProjectID, Content: url})
	})
}

// RemoteURL returns the first URL of the configured remote of the
// repository containing path.
func (r *RemoteReader) RemoteURL(path string) (string, error) {
	repo, err := git.PlainOpenWithOptions(path, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", fmt.Errorf("opening repository: %w", err)
	}

	remote, err := repo.Remote(r.remote)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNoRemote, r.remote)
		}
		return "", fmt.Errorf("reading remote %s: %w", r.remote, err)
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("%w: %s has no URL", ErrNoRemote, r.remote)
	}
	return urls[0], nil
}
