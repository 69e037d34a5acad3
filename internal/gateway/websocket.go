package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"
)

// Dispatcher consumes validated inbound frames.
type Dispatcher interface {
	DispatchMessage(ctx context.Context, msg MessageFrame)
	DispatchCommand(ctx context.Context, cmd CommandFrame)
}

// WebSocketHandler upgrades the platform connection and pumps inbound
// frames to the dispatcher.
type WebSocketHandler struct {
	relay      *Relay
	dispatcher Dispatcher
	token      string
}

// NewWebSocketHandler creates a gateway handler. An empty token disables
// authentication.
func NewWebSocketHandler(relay *Relay, dispatcher Dispatcher, token string) *WebSocketHandler {
	return &WebSocketHandler{
		relay:      relay,
		dispatcher: dispatcher,
		token:      token,
	}
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slog.Info("Gateway connection request", "ip", r.RemoteAddr)

	if !h.authorized(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "gateway closed"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	h.relay.Register(ws)
	defer h.relay.Unregister(ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	h.readLoop(ctx, ws)
	slog.Info("Gateway connection ended", "ip", r.RemoteAddr)
}

func (h *WebSocketHandler) authorized(r *http.Request) bool {
	if h.token == "" {
		return true
	}
	header := r.Header.Get("Authorization")
	presented, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.token)) == 1
}

// readLoop decodes, validates, and routes inbound frames. Frames are
// processed in arrival order so answers reach sessions in sequence;
// invalid frames are dropped without disturbing any session.
func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn) {
	for {
		_, raw, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by platform")
			} else {
				slog.Warn("WebSocket read error", "error", err)
			}
			return
		}

		if err := ValidateInbound(raw); err != nil {
			slog.Warn("Dropping invalid gateway frame", "error", err)
			continue
		}

		base, err := DecodeBase(raw)
		if err != nil {
			slog.Warn("Dropping undecodable gateway frame", "error", err)
			continue
		}

		switch base.Type {
		case TypeMessage:
			var msg MessageFrame
			if err := json.Unmarshal(raw, &msg); err != nil {
				slog.Warn("Dropping malformed message frame", "error", err)
				continue
			}
			if msg.FromBot {
				continue
			}
			h.dispatcher.DispatchMessage(ctx, msg)
		case TypeCommand:
			var cmd CommandFrame
			if err := json.Unmarshal(raw, &cmd); err != nil {
				slog.Warn("Dropping malformed command frame", "error", err)
				continue
			}
			h.dispatcher.DispatchCommand(ctx, cmd)
		default:
			slog.Warn("Dropping gateway frame with unknown type", "type", base.Type)
		}
	}
}
