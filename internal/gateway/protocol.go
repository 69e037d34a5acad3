// Package gateway implements the WebSocket boundary between farmbot and
// the chat platform. The platform relays user traffic as JSON frames;
// farmbot answers with send frames addressed to channels.
package gateway

import "encoding/json"

// Frame types.
const (
	TypeMessage = "message"
	TypeCommand = "command"
	TypeSend    = "send"
)

// BaseFrame lets us route unknown JSON frames by type.
type BaseFrame struct {
	Type string `json:"type"`
}

// DecodeBase extracts the frame type for routing.
func DecodeBase(b []byte) (BaseFrame, error) {
	var f BaseFrame
	err := json.Unmarshal(b, &f)
	return f, err
}

// MessageFrame is a plain chat message relayed from the platform.
type MessageFrame struct {
	Type      string `json:"type"`
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp,omitempty"`
	FromBot   bool   `json:"from_bot,omitempty"`
}

// CommandFrame is a slash-command invocation relayed from the platform.
// Permission booleans are resolved platform-side; farmbot only checks
// them.
type CommandFrame struct {
	Type               string            `json:"type"`
	Name               string            `json:"name"`
	UserID             string            `json:"user_id"`
	ChannelID          string            `json:"channel_id"`
	DMChannelID        string            `json:"dm_channel_id,omitempty"`
	Args               map[string]string `json:"args,omitempty"`
	IsAdmin            bool              `json:"is_admin,omitempty"`
	CanMentionEveryone bool              `json:"can_mention_everyone,omitempty"`
	Attachment         *Attachment       `json:"attachment,omitempty"`
}

// Attachment carries a single file through the gateway. Data is base64 on
// the wire.
type Attachment struct {
	Filename string `json:"filename"`
	Data     []byte `json:"data"`
}

// SendFrame is an outbound message addressed to a channel.
type SendFrame struct {
	Type       string      `json:"type"`
	ChannelID  string      `json:"channel_id"`
	Content    string      `json:"content"`
	Ephemeral  bool        `json:"ephemeral,omitempty"`
	Attachment *Attachment `json:"attachment,omitempty"`
}
