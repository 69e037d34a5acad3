package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// ErrNoRelay is returned when output is sent while no platform connection
// is attached.
var ErrNoRelay = errors.New("no platform connection attached")

// Relay holds the active platform connection and serializes outbound
// frames onto it. One relay connection is active at a time; a newly
// registered connection replaces the previous one.
type Relay struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewRelay creates a relay with no connection attached.
func NewRelay() *Relay {
	return &Relay{}
}

// Register installs a new platform connection, closing any previous one.
func (r *Relay) Register(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil && r.conn != conn {
		_ = r.conn.Close(websocket.StatusNormalClosure, "relay replaced")
		slog.Info("Gateway relay replaced")
	}
	r.conn = conn
	slog.Info("Gateway relay registered")
}

// Unregister detaches a connection if it is still the active one.
func (r *Relay) Unregister(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn == conn {
		r.conn = nil
		slog.Info("Gateway relay unregistered")
	}
}

// Emit sends a plain text message to a channel. It implements the session
// engine's Emitter. Output is dropped with a warning when no platform
// connection is attached.
func (r *Relay) Emit(channelID, text string) {
	if err := r.Send(SendFrame{Type: TypeSend, ChannelID: channelID, Content: text}); err != nil {
		slog.Warn("Failed to emit message", "channel_id", channelID, "error", err)
	}
}

// Send writes an outbound frame to the platform connection.
func (r *Relay) Send(frame SendFrame) error {
	frame.Type = TypeSend

	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conn == nil {
		return ErrNoRelay
	}
	return r.conn.Write(context.Background(), websocket.MessageText, data)
}
