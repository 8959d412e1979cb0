package envelope

import (
	"encoding/json"
	"strings"
)

// Direction tells Decode which side of the boundary an envelope came from.
// Requests and replies share channel and type, so the direction picks the
// variant.
type Direction int

const (
	// Inbound envelopes travel from producers to servedeck.
	Inbound Direction = iota
	// Outbound envelopes travel from servedeck to producers.
	Outbound
)

// Decode maps an envelope onto its concrete Message variant.
func Decode(env Envelope, dir Direction) Message {
	switch env.Channel {
	case ChannelStatus:
		if env.Type != TypeStatus {
			break
		}
		if dir == Outbound {
			return StatusRequest{ProjectID: env.ID, Name: env.Name, Path: env.Path}
		}
		return StatusReply{ProjectID: env.ID, Value: env.Value}
	case ChannelFilesystem:
		if env.Type != TypeRead {
			break
		}
		if dir == Outbound {
			return ConfigRequest{ProjectID: env.ID, Path: env.Path}
		}
		return ConfigReply{ProjectID: env.ID, Text: env.Value}
	case ChannelRemote:
		if env.Type != TypeRemote {
			break
		}
		if dir == Outbound {
			return RemoteRequest{ProjectID: env.ID, Path: env.Path}
		}
		return RemoteReply{ProjectID: env.ID, Content: env.Content}
	case ChannelLifecycle:
		if env.Type == TypeFocused && dir == Inbound {
			return Focused{}
		}
	case ChannelNotification:
		if dir == Inbound {
			return decodeNotice(env)
		}
	}
	return Ignored{On: env.Channel, Type: env.Type}
}

// Encode builds the wire envelope for a message.
func Encode(msg Message) Envelope {
	switch m := msg.(type) {
	case StatusRequest:
		return Envelope{Channel: ChannelStatus, Type: TypeStatus, ID: m.ProjectID, Name: m.Name, Path: m.Path}
	case StatusReply:
		return Envelope{Channel: ChannelStatus, Type: TypeStatus, ID: m.ProjectID, Value: m.Value}
	case ConfigRequest:
		return Envelope{Channel: ChannelFilesystem, Type: TypeRead, ID: m.ProjectID, Path: m.Path}
	case ConfigReply:
		return Envelope{Channel: ChannelFilesystem, Type: TypeRead, ID: m.ProjectID, Value: m.Text}
	case RemoteRequest:
		return Envelope{Channel: ChannelRemote, Type: TypeRemote, ID: m.ProjectID, Path: m.Path}
	case RemoteReply:
		return Envelope{Channel: ChannelRemote, Type: TypeRemote, ID: m.ProjectID, Content: m.Content}
	case Focused:
		return Envelope{Channel: ChannelLifecycle, Type: TypeFocused}
	case Notice:
		return encodeNotice(m)
	case Ignored:
		return Envelope{Channel: m.On, Type: m.Type}
	}
	return Envelope{}
}

// noticeBody is the structured form of a notification message payload.
type noticeBody struct {
	Text string          `json:"text"`
	Data json.RawMessage `json:"data,omitempty"`
}

// decodeNotice accepts a message payload that is either a JSON string or an
// object with a text field. Anything else is kept verbatim in Data.
func decodeNotice(env Envelope) Notice {
	n := Notice{Type: env.Type, ProjectID: env.ID}
	raw := json.RawMessage(strings.TrimSpace(string(env.Message)))
	if len(raw) == 0 {
		n.Text = env.Value
		return n
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		n.Text = text
		return n
	}

	var body noticeBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Text != "" {
		n.Text = body.Text
		n.Data = body.Data
		return n
	}

	n.Data = raw
	return n
}

func encodeNotice(n Notice) Envelope {
	env := Envelope{Channel: ChannelNotification, Type: n.Type, ID: n.ProjectID}
	if n.Data == nil {
		env.Message, _ = json.Marshal(n.Text)
		return env
	}
	env.Message, _ = json.Marshal(noticeBody{Text: n.Text, Data: n.Data})
	return env
}
