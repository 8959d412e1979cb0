package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Channel names one category of envelopes produced by one external producer.
type Channel string

const (
	ChannelStatus       Channel = "status"
	ChannelFilesystem   Channel = "filesystem"
	ChannelRemote       Channel = "remote"
	ChannelLifecycle    Channel = "lifecycle"
	ChannelNotification Channel = "notification"
)

// Envelope types understood by the reconciliation core.
const (
	TypeStatus  = "ps"
	TypeRead    = "read"
	TypeRemote  = "remote"
	TypeFocused = "focused"
)

// ErrUnknownChannel is returned when a channel name is not part of the fixed set.
var ErrUnknownChannel = errors.New("unknown channel")

// Channels returns the fixed channel set in a stable order.
func Channels() []Channel {
	return []Channel{
		ChannelStatus,
		ChannelFilesystem,
		ChannelRemote,
		ChannelLifecycle,
		ChannelNotification,
	}
}

// ParseChannel validates a channel name.
func ParseChannel(name string) (Channel, error) {
	for _, ch := range Channels() {
		if string(ch) == name {
			return ch, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownChannel, name)
}

// String implements fmt.Stringer.
func (c Channel) String() string {
	return string(c)
}

// Envelope is one unit of cross-process communication.
//
// ID correlates to a project id and is empty for channel-wide envelopes.
// Which of the remaining fields are populated depends on channel and type.
type Envelope struct {
	Channel Channel         `json:"channel"`
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Path    string          `json:"path,omitempty"`
	Value   string          `json:"value,omitempty"`
	Content string          `json:"content,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
}

// Marshal encodes the envelope as JSON.
func (e Envelope) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a JSON envelope received on channel. The channel the
// envelope arrived on wins over whatever the payload claims.
func Unmarshal(channel Channel, data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal envelope: %w", err)
	}
	env.Channel = channel
	return env, nil
}
