package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/donutsmp/farmbot/internal/cooldown"
	"github.com/donutsmp/farmbot/internal/domain"
	"github.com/donutsmp/farmbot/internal/gateway"
	"github.com/donutsmp/farmbot/internal/session"
	"github.com/donutsmp/farmbot/internal/sysinfo"
)

type captureSender struct {
	mu      sync.Mutex
	frames  []gateway.SendFrame
	sendErr error
}

func (c *captureSender) Send(f gateway.SendFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, f)
	return nil
}

// Emit lets the capture double as the engine's emitter.
func (c *captureSender) Emit(channelID, text string) {
	_ = c.Send(gateway.SendFrame{ChannelID: channelID, Content: text})
}

func (c *captureSender) all() []gateway.SendFrame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]gateway.SendFrame, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *captureSender) last() gateway.SendFrame {
	frames := c.all()
	if len(frames) == 0 {
		return gateway.SendFrame{}
	}
	return frames[len(frames)-1]
}

type upsertCall struct {
	category, farmID, name string
	income                 float64
}

type fakeStore struct {
	cats      []domain.Category
	upserts   []upsertCall
	upsertErr error
}

func (f *fakeStore) Upsert(_ context.Context, category, farmID, name string, income float64) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, upsertCall{category, farmID, name, income})
	return nil
}

func (f *fakeStore) ListCategories(context.Context) ([]domain.Category, error) {
	return f.cats, nil
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error               { return nil }

func newTestDispatcher(t *testing.T, store *fakeStore) (*Dispatcher, *captureSender) {
	t.Helper()
	sender := &captureSender{}
	engine := session.New(store, sender, time.Minute)
	d := NewDispatcher(engine, store, cooldown.NewTracker(), sender,
		map[string]string{"giveaway": "role-123"}, 60*time.Second)
	return d, sender
}

func testStore() *fakeStore {
	return &fakeStore{cats: []domain.Category{
		{Name: "crop", Farms: []domain.FarmEntry{
			{ID: "cactus1", Name: "Cactus Farm", Income: 2},
		}},
	}}
}

func TestCalculatorTriggerStartsSession(t *testing.T) {
	d, sender := newTestDispatcher(t, testStore())

	d.DispatchMessage(context.Background(), gateway.MessageFrame{
		Type: gateway.TypeMessage, UserID: "u1", ChannelID: "c1", Content: "  !CALCULATOR  ",
	})

	if !d.engine.IsActive("u1", "c1") {
		t.Fatal("trigger did not start a session")
	}
	if !strings.HasPrefix(sender.last().Content, "Choose a category by number:") {
		t.Errorf("prompt = %q", sender.last().Content)
	}
}

func TestPlainMessageFeedsActiveSession(t *testing.T) {
	d, sender := newTestDispatcher(t, testStore())
	ctx := context.Background()

	d.DispatchMessage(ctx, gateway.MessageFrame{UserID: "u1", ChannelID: "c1", Content: "!calculator"})
	d.DispatchMessage(ctx, gateway.MessageFrame{UserID: "u1", ChannelID: "c1", Content: "1"})

	if !strings.HasPrefix(sender.last().Content, "Choose a farm from 'crop'") {
		t.Errorf("session did not advance: %q", sender.last().Content)
	}
}

func TestCalculateCommandStartsInDM(t *testing.T) {
	d, sender := newTestDispatcher(t, testStore())

	d.DispatchCommand(context.Background(), gateway.CommandFrame{
		Name: "calculate", UserID: "u1", ChannelID: "c1", DMChannelID: "dm-u1",
	})

	frames := sender.all()
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].ChannelID != "c1" || frames[0].Content != "Starting calculator in DMs!" || !frames[0].Ephemeral {
		t.Errorf("ack frame = %+v", frames[0])
	}
	if frames[1].ChannelID != "dm-u1" || !strings.HasPrefix(frames[1].Content, "Choose a category by number:") {
		t.Errorf("prompt frame = %+v", frames[1])
	}
	if !d.engine.IsActive("u1", "dm-u1") {
		t.Error("session should be bound to the DM channel")
	}
}

func TestAddFarmRequiresAdmin(t *testing.T) {
	store := testStore()
	d, sender := newTestDispatcher(t, store)

	d.DispatchCommand(context.Background(), gateway.CommandFrame{
		Name: "addfarm", UserID: "u1", ChannelID: "c1",
		Args: map[string]string{"category": "crop", "id": "x", "name": "X", "income": "1"},
	})

	if sender.last().Content != "❌ You must be an admin to use this command." {
		t.Errorf("reply = %q", sender.last().Content)
	}
	if len(store.upserts) != 0 {
		t.Error("non-admin upsert reached the store")
	}
}

func TestAddFarmUpserts(t *testing.T) {
	store := testStore()
	d, sender := newTestDispatcher(t, store)

	d.DispatchCommand(context.Background(), gateway.CommandFrame{
		Name: "addfarm", UserID: "admin", ChannelID: "c1", IsAdmin: true,
		Args: map[string]string{"category": "crop", "id": "pumpkin1", "name": "Pumpkin Farm", "income": "3.5"},
	})

	if len(store.upserts) != 1 {
		t.Fatalf("got %d upserts, want 1", len(store.upserts))
	}
	got := store.upserts[0]
	if got.category != "crop" || got.farmID != "pumpkin1" || got.name != "Pumpkin Farm" || got.income != 3.5 {
		t.Errorf("upsert = %+v", got)
	}
	want := "✅ Added farm 'Pumpkin Farm' to category 'crop' with ID 'pumpkin1'."
	if sender.last().Content != want {
		t.Errorf("reply = %q, want %q", sender.last().Content, want)
	}
}

func TestAddFarmSurfacesPersistenceFailure(t *testing.T) {
	store := testStore()
	store.upsertErr = errors.New("disk full")
	d, sender := newTestDispatcher(t, store)

	d.DispatchCommand(context.Background(), gateway.CommandFrame{
		Name: "addfarm", UserID: "admin", ChannelID: "c1", IsAdmin: true,
		Args: map[string]string{"category": "crop", "id": "x", "name": "X", "income": "1"},
	})

	if !strings.HasPrefix(sender.last().Content, "❌ Failed to save farm:") {
		t.Errorf("write failure not surfaced: %q", sender.last().Content)
	}
}

func TestAddFarmRejectsBadIncome(t *testing.T) {
	d, sender := newTestDispatcher(t, testStore())

	for _, income := range []string{"abc", "-2", ""} {
		d.DispatchCommand(context.Background(), gateway.CommandFrame{
			Name: "addfarm", UserID: "admin", ChannelID: "c1", IsAdmin: true,
			Args: map[string]string{"category": "crop", "id": "x", "name": "X", "income": income},
		})
		if !strings.HasPrefix(sender.last().Content, "❌ Income must be") {
			t.Errorf("income %q: reply = %q", income, sender.last().Content)
		}
	}
}

func TestListFarms(t *testing.T) {
	d, sender := newTestDispatcher(t, testStore())

	d.DispatchCommand(context.Background(), gateway.CommandFrame{
		Name: "listfarms", UserID: "u1", ChannelID: "c1",
	})

	got := sender.last().Content
	if !strings.HasPrefix(got, "**Farms:**\n") {
		t.Errorf("listing = %q", got)
	}
	if !strings.Contains(got, "__crop__:\n") || !strings.Contains(got, "cactus1: Cactus Farm ($2M/hr)") {
		t.Errorf("listing missing entries: %q", got)
	}
}

func TestPingPermissionAndCooldown(t *testing.T) {
	d, sender := newTestDispatcher(t, testStore())
	ctx := context.Background()

	d.DispatchCommand(ctx, gateway.CommandFrame{
		Name: "ping", UserID: "u1", ChannelID: "c1",
		Args: map[string]string{"type": "giveaway"},
	})
	if sender.last().Content != "❌ You need `Mention Everyone` permission in this channel." {
		t.Fatalf("reply = %q", sender.last().Content)
	}

	d.DispatchCommand(ctx, gateway.CommandFrame{
		Name: "ping", UserID: "u1", ChannelID: "c1", CanMentionEveryone: true,
		Args: map[string]string{"type": "giveaway"},
	})
	if sender.last().Content != "🔔 <@&role-123>" {
		t.Fatalf("mention = %q", sender.last().Content)
	}

	d.DispatchCommand(ctx, gateway.CommandFrame{
		Name: "ping", UserID: "u1", ChannelID: "c1", CanMentionEveryone: true,
		Args: map[string]string{"type": "giveaway"},
	})
	if !strings.HasPrefix(sender.last().Content, "⏳ You must wait") {
		t.Errorf("cooldown reply = %q", sender.last().Content)
	}
}

func TestPingUnknownRole(t *testing.T) {
	d, sender := newTestDispatcher(t, testStore())

	d.DispatchCommand(context.Background(), gateway.CommandFrame{
		Name: "ping", UserID: "u1", ChannelID: "c1", CanMentionEveryone: true,
		Args: map[string]string{"type": "nope"},
	})
	if sender.last().Content != "❌ Role not found." {
		t.Errorf("reply = %q", sender.last().Content)
	}
}

func TestMessageRelaysWithAttachment(t *testing.T) {
	d, sender := newTestDispatcher(t, testStore())

	att := &gateway.Attachment{Filename: "notes.txt", Data: []byte("hello")}
	d.DispatchCommand(context.Background(), gateway.CommandFrame{
		Name: "message", UserID: "admin", ChannelID: "c1", IsAdmin: true,
		Args:       map[string]string{"channel": "announcements", "message": "big news"},
		Attachment: att,
	})

	frames := sender.all()
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want relay + ack", len(frames))
	}
	relay := frames[0]
	if relay.ChannelID != "announcements" || relay.Content != "big news" {
		t.Errorf("relay frame = %+v", relay)
	}
	if relay.Attachment == nil || relay.Attachment.Filename != "notes.txt" {
		t.Errorf("attachment not relayed: %+v", relay.Attachment)
	}
	if frames[1].Content != "✅ Message sent." || !frames[1].Ephemeral {
		t.Errorf("ack frame = %+v", frames[1])
	}
}

func TestRAMInfo(t *testing.T) {
	d, sender := newTestDispatcher(t, testStore())
	d.collectSysinfo = func(context.Context, time.Time) (sysinfo.Snapshot, error) {
		return sysinfo.Snapshot{
			CPUPercent: 12.5, RAMUsedMB: 512, RAMTotalMB: 2048, RAMPercent: 25,
			Uptime: 90 * time.Second, Platform: "linux amd64",
		}, nil
	}

	d.DispatchCommand(context.Background(), gateway.CommandFrame{
		Name: "raminfo", UserID: "admin", ChannelID: "c1", IsAdmin: true,
	})

	deadline := time.Now().Add(time.Second)
	for {
		if len(sender.all()) > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	got := sender.last().Content
	if !strings.Contains(got, "CPU Usage: 12.5%") || !strings.Contains(got, "512MB / 2048MB") {
		t.Errorf("raminfo reply = %q", got)
	}
}

func TestHelpListsCommands(t *testing.T) {
	d, sender := newTestDispatcher(t, testStore())

	d.DispatchCommand(context.Background(), gateway.CommandFrame{
		Name: "help", UserID: "u1", ChannelID: "c1",
	})

	got := sender.last().Content
	for _, want := range []string{"!calculator", "/calculate", "/addfarm", "/listfarms", "/ping", "/message", "/raminfo", "/help"} {
		if !strings.Contains(got, want) {
			t.Errorf("help text missing %q", want)
		}
	}
	if !sender.last().Ephemeral {
		t.Error("help reply should be ephemeral")
	}
}

func TestUnknownCommand(t *testing.T) {
	d, sender := newTestDispatcher(t, testStore())

	d.DispatchCommand(context.Background(), gateway.CommandFrame{
		Name: "dance", UserID: "u1", ChannelID: "c1",
	})
	if sender.last().Content != "❌ Unknown command." {
		t.Errorf("reply = %q", sender.last().Content)
	}
}
