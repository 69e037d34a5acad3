// Package bot routes inbound chat traffic to the calculator engine and
// implements the command surface.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/donutsmp/farmbot/internal/catalog"
	"github.com/donutsmp/farmbot/internal/cooldown"
	"github.com/donutsmp/farmbot/internal/gateway"
	"github.com/donutsmp/farmbot/internal/session"
	"github.com/donutsmp/farmbot/internal/sysinfo"
)

// calculatorTrigger starts a session when sent as a plain message.
const calculatorTrigger = "!calculator"

const msgAdminOnly = "❌ You must be an admin to use this command."

// Sender delivers outbound frames to the platform.
type Sender interface {
	Send(frame gateway.SendFrame) error
}

// Dispatcher implements gateway.Dispatcher: plain messages feed the
// calculator engine, command frames run the command surface.
type Dispatcher struct {
	engine       *session.Engine
	catalog      catalog.Store
	cooldowns    *cooldown.Tracker
	sender       Sender
	pingRoles    map[string]string
	pingCooldown time.Duration
	startTime    time.Time

	// collectSysinfo is swappable in tests; the real collector blocks for
	// a one second CPU sample.
	collectSysinfo func(ctx context.Context, startTime time.Time) (sysinfo.Snapshot, error)
}

// NewDispatcher wires the command surface. pingRoles maps a ping type
// (e.g. "giveaway") to the role id it mentions.
func NewDispatcher(engine *session.Engine, store catalog.Store, cooldowns *cooldown.Tracker, sender Sender, pingRoles map[string]string, pingCooldown time.Duration) *Dispatcher {
	return &Dispatcher{
		engine:         engine,
		catalog:        store,
		cooldowns:      cooldowns,
		sender:         sender,
		pingRoles:      pingRoles,
		pingCooldown:   pingCooldown,
		startTime:      time.Now(),
		collectSysinfo: sysinfo.Collect,
	}
}

// DispatchMessage handles a plain chat message: the calculator trigger
// starts a session, everything else is offered to the engine as a
// candidate answer.
func (d *Dispatcher) DispatchMessage(ctx context.Context, msg gateway.MessageFrame) {
	if strings.EqualFold(strings.TrimSpace(msg.Content), calculatorTrigger) {
		if err := d.engine.Start(ctx, msg.UserID, msg.ChannelID); err != nil {
			slog.Error("Failed to start calculator session",
				"user_id", msg.UserID, "channel_id", msg.ChannelID, "error", err)
		}
		return
	}
	d.engine.HandleMessage(msg.UserID, msg.ChannelID, msg.Content)
}

// DispatchCommand runs a slash-command invocation.
func (d *Dispatcher) DispatchCommand(ctx context.Context, cmd gateway.CommandFrame) {
	switch cmd.Name {
	case "calculate":
		d.handleCalculate(ctx, cmd)
	case "addfarm":
		d.handleAddFarm(ctx, cmd)
	case "listfarms":
		d.handleListFarms(ctx, cmd)
	case "ping":
		d.handlePing(cmd)
	case "message":
		d.handleMessage(cmd)
	case "raminfo":
		d.handleRAMInfo(ctx, cmd)
	case "help":
		d.reply(cmd, helpText, true)
	default:
		d.reply(cmd, "❌ Unknown command.", true)
	}
}

func (d *Dispatcher) handleCalculate(ctx context.Context, cmd gateway.CommandFrame) {
	d.reply(cmd, "Starting calculator in DMs!", true)

	target := cmd.DMChannelID
	if target == "" {
		target = cmd.ChannelID
	}
	if err := d.engine.Start(ctx, cmd.UserID, target); err != nil {
		slog.Error("Failed to start calculator session",
			"user_id", cmd.UserID, "channel_id", target, "error", err)
	}
}

func (d *Dispatcher) handleAddFarm(ctx context.Context, cmd gateway.CommandFrame) {
	if !cmd.IsAdmin {
		d.reply(cmd, msgAdminOnly, true)
		return
	}

	category := cmd.Args["category"]
	farmID := cmd.Args["id"]
	name := cmd.Args["name"]
	if category == "" || farmID == "" || name == "" {
		d.reply(cmd, "❌ Usage: /addfarm category id name income", true)
		return
	}
	income, err := strconv.ParseFloat(cmd.Args["income"], 64)
	if err != nil || income < 0 {
		d.reply(cmd, "❌ Income must be a non-negative number (millions per hour).", true)
		return
	}

	if err := d.catalog.Upsert(ctx, category, farmID, name, income); err != nil {
		slog.Error("Catalog upsert failed",
			"category", category, "farm_id", farmID, "error", err)
		d.reply(cmd, "❌ Failed to save farm: "+err.Error(), true)
		return
	}

	d.reply(cmd, fmt.Sprintf("✅ Added farm '%s' to category '%s' with ID '%s'.", name, category, farmID), false)
}

func (d *Dispatcher) handleListFarms(ctx context.Context, cmd gateway.CommandFrame) {
	categories, err := d.catalog.ListCategories(ctx)
	if err != nil {
		slog.Error("Catalog listing failed", "error", err)
		d.reply(cmd, "❌ Failed to load the farm catalog.", true)
		return
	}

	var b strings.Builder
	b.WriteString("**Farms:**\n")
	for _, cat := range categories {
		fmt.Fprintf(&b, "\n__%s__:\n", cat.Name)
		for _, farm := range cat.Farms {
			fmt.Fprintf(&b, "%s: %s ($%sM/hr)\n", farm.ID, farm.Name, strconv.FormatFloat(farm.Income, 'g', -1, 64))
		}
	}
	d.reply(cmd, b.String(), false)
}

func (d *Dispatcher) handlePing(cmd gateway.CommandFrame) {
	if !cmd.CanMentionEveryone {
		d.reply(cmd, "❌ You need `Mention Everyone` permission in this channel.", true)
		return
	}

	allowed, remaining := d.cooldowns.TryConsume(cmd.UserID, time.Now(), d.pingCooldown)
	if !allowed {
		d.reply(cmd, fmt.Sprintf("⏳ You must wait %ds before using this command again.", int(remaining.Seconds())), true)
		return
	}

	roleID, ok := d.pingRoles[cmd.Args["type"]]
	if !ok {
		d.reply(cmd, "❌ Role not found.", true)
		return
	}
	d.reply(cmd, fmt.Sprintf("🔔 <@&%s>", roleID), false)
}

func (d *Dispatcher) handleMessage(cmd gateway.CommandFrame) {
	if !cmd.IsAdmin {
		d.reply(cmd, msgAdminOnly, true)
		return
	}

	target := cmd.Args["channel"]
	content := cmd.Args["message"]
	if target == "" || content == "" {
		d.reply(cmd, "❌ Usage: /message channel message [attachment]", true)
		return
	}

	err := d.sender.Send(gateway.SendFrame{
		ChannelID:  target,
		Content:    content,
		Attachment: cmd.Attachment,
	})
	if err != nil {
		slog.Error("Message relay failed", "channel_id", target, "error", err)
		d.reply(cmd, "❌ Failed to send message.", true)
		return
	}
	d.reply(cmd, "✅ Message sent.", true)
}

func (d *Dispatcher) handleRAMInfo(ctx context.Context, cmd gateway.CommandFrame) {
	if !cmd.IsAdmin {
		d.reply(cmd, msgAdminOnly, true)
		return
	}

	// The CPU sample blocks for a second; keep the read loop moving.
	go func() {
		snapshot, err := d.collectSysinfo(ctx, d.startTime)
		if err != nil {
			slog.Error("Sysinfo collection failed", "error", err)
			d.reply(cmd, "❌ Failed to read system stats.", true)
			return
		}
		d.reply(cmd, snapshot.Format(), true)
	}()
}

func (d *Dispatcher) reply(cmd gateway.CommandFrame, text string, ephemeral bool) {
	err := d.sender.Send(gateway.SendFrame{
		ChannelID: cmd.ChannelID,
		Content:   text,
		Ephemeral: ephemeral,
	})
	if err != nil {
		slog.Warn("Failed to send command reply",
			"command", cmd.Name, "channel_id", cmd.ChannelID, "error", err)
	}
}
