package producer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/servedeck/internal/envelope"
	"github.com/fyrsmithlabs/servedeck/internal/logging"
	"github.com/fyrsmithlabs/servedeck/internal/transport"
)

// MaxConfigSize is the largest config file the reader will send.
const MaxConfigSize = 1024 * 1024

// ErrConfigTooLarge is returned for config files over MaxConfigSize.
var ErrConfigTooLarge = errors.New("config file too large")

// FileReader answers filesystem read requests with the file's text.
// A missing file gets no reply.
type FileReader struct {
	logger *logging.Logger
}

// NewFileReader creates a file reader.
func NewFileReader(logger *logging.Logger) *FileReader {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FileReader{logger: logger.Named("file")}
}

// Attach implements Producer.
func (r *FileReader) Attach(t transport.Transport) error {
	return t.Receive(envelope.ChannelFilesystem, func(ctx context.Context, env envelope.Envelope) {
		req, ok := envelope.Decode(env, envelope.Outbound).(envelope.ConfigRequest)
		if !ok {
			return
		}
		r.read(logging.WithProjectID(ctx, req.ProjectID), t, req)
	})
}

func (r *FileReader) read(ctx context.Context, t transport.Transport, req envelope.ConfigRequest) {
	text, err := readConfig(req.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		r.logger.Debug(ctx, "config file not found", zap.String("path", req.Path))
	case err != nil:
		r.logger.Warn(ctx, "config read failed", zap.String("path", req.Path), zap.Error(err))
		reportError(ctx, t, req.ProjectID, err)
	default:
		reply(ctx, t, envelope.ConfigReply{ProjectID: req.ProjectID, Text: text})
	}
}

func readConfig(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("reading %s: is a directory", path)
	}
	if info.Size() > MaxConfigSize {
		return "", fmt.Errorf("%w: %s (%d bytes, max %d)", ErrConfigTooLarge, path, info.Size(), MaxConfigSize)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
