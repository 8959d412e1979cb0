package envelope

import (
	"encoding/json"
)

// Message is the decoded, typed form of an Envelope.
type Message interface {
	// Channel reports the channel the message belongs to.
	Channel() Channel
}

// StatusRequest asks the status poller for a project's container status.
type StatusRequest struct {
	ProjectID string
	Name      string
	Path      string
}

// StatusReply carries the raw status value for a project.
type StatusReply struct {
	ProjectID string
	Value     string
}

// ConfigRequest asks the filesystem reader for a project's config file.
type ConfigRequest struct {
	ProjectID string
	Path      string
}

// ConfigReply carries raw config file text.
type ConfigReply struct {
	ProjectID string
	Text      string
}

// RemoteRequest asks the version-control reader for a project's remote.
type RemoteRequest struct {
	ProjectID string
	Path      string
}

// RemoteReply carries the remote descriptor of a project.
type RemoteReply struct {
	ProjectID string
	Content   string
}

// Focused signals that the host window regained focus.
type Focused struct{}

// Notice is a free-form user-visible message.
type Notice struct {
	Type      string
	ProjectID string
	Text      string
	Data      json.RawMessage
}

// Ignored is an envelope whose (channel, type) pair has no variant here.
type Ignored struct {
	On   Channel
	Type string
}

func (StatusRequest) Channel() Channel { return ChannelStatus }
func (StatusReply) Channel() Channel   { return ChannelStatus }
func (ConfigRequest) Channel() Channel { return ChannelFilesystem }
func (ConfigReply) Channel() Channel   { return ChannelFilesystem }
func (RemoteRequest) Channel() Channel { return ChannelRemote }
func (RemoteReply) Channel() Channel   { return ChannelRemote }
func (Focused) Channel() Channel       { return ChannelLifecycle }
func (Notice) Channel() Channel        { return ChannelNotification }
func (i Ignored) Channel() Channel     { return i.On }
