package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	msgs []MessageFrame
	cmds []CommandFrame
}

func (r *recordingDispatcher) DispatchMessage(_ context.Context, m MessageFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
}

func (r *recordingDispatcher) DispatchCommand(_ context.Context, c CommandFrame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, c)
}

func (r *recordingDispatcher) messageCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestGatewayRoundTrip(t *testing.T) {
	relay := NewRelay()
	disp := &recordingDispatcher{}
	srv := httptest.NewServer(NewWebSocketHandler(relay, disp, ""))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "test done")
	}()

	// A schema-invalid frame is dropped; the valid one after it is
	// dispatched.
	if err := conn.Write(ctx, websocket.MessageText, []byte(`{"type":"bogus"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	valid := `{"type":"message","user_id":"u1","channel_id":"c1","content":"hi"}`
	if err := conn.Write(ctx, websocket.MessageText, []byte(valid)); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitUntil(t, func() bool { return disp.messageCount() == 1 })
	disp.mu.Lock()
	got := disp.msgs[0]
	disp.mu.Unlock()
	if got.UserID != "u1" || got.ChannelID != "c1" || got.Content != "hi" {
		t.Errorf("dispatched frame = %+v", got)
	}

	// Outbound emit reaches the platform connection.
	relay.Emit("c1", "hello back")

	_, raw, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var frame SendFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		t.Fatalf("decode send frame: %v", err)
	}
	if frame.Type != TypeSend || frame.ChannelID != "c1" || frame.Content != "hello back" {
		t.Errorf("send frame = %+v", frame)
	}
}

func TestGatewayIgnoresBotMessages(t *testing.T) {
	relay := NewRelay()
	disp := &recordingDispatcher{}
	srv := httptest.NewServer(NewWebSocketHandler(relay, disp, ""))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "test done")
	}()

	frames := []string{
		`{"type":"message","user_id":"bot","channel_id":"c1","content":"echo","from_bot":true}`,
		`{"type":"message","user_id":"u1","channel_id":"c1","content":"real"}`,
	}
	for _, f := range frames {
		if err := conn.Write(ctx, websocket.MessageText, []byte(f)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	waitUntil(t, func() bool { return disp.messageCount() == 1 })
	disp.mu.Lock()
	defer disp.mu.Unlock()
	if disp.msgs[0].Content != "real" {
		t.Errorf("bot message was dispatched: %+v", disp.msgs)
	}
}

func TestGatewayAuthToken(t *testing.T) {
	srv := httptest.NewServer(NewWebSocketHandler(NewRelay(), &recordingDispatcher{}, "secret"))
	defer srv.Close()

	// No token: rejected before the upgrade.
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	// Correct token: accepted.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	header := http.Header{}
	header.Set("Authorization", "Bearer secret")
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), &websocket.DialOptions{
		HTTPHeader: header,
	})
	if err != nil {
		t.Fatalf("dial with token: %v", err)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "test done")
}

func TestRelayReplacedOnSecondConnection(t *testing.T) {
	relay := NewRelay()
	srv := httptest.NewServer(NewWebSocketHandler(relay, &recordingDispatcher{}, ""))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	first, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial first: %v", err)
	}
	waitUntil(t, func() bool { return relay.Send(SendFrame{ChannelID: "c1"}) == nil })

	second, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial second: %v", err)
	}
	defer func() {
		_ = second.Close(websocket.StatusNormalClosure, "test done")
	}()

	// The first connection is closed by the replacement; its next read
	// fails.
	readErr := make(chan error, 1)
	go func() {
		for {
			if _, _, err := first.Read(ctx); err != nil {
				readErr <- err
				return
			}
		}
	}()
	select {
	case <-readErr:
	case <-time.After(2 * time.Second):
		t.Fatal("first connection was not closed after replacement")
	}
}
