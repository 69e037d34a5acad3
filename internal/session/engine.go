// Package session implements the interactive calculator flow: one
// state machine per (user, channel) pair, advanced by inbound chat
// messages and torn down on completion, invalid input, or timeout.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/donutsmp/farmbot/internal/calc"
	"github.com/donutsmp/farmbot/internal/domain"
)

// DefaultStepTimeout is how long a session waits for each answer.
const DefaultStepTimeout = 30 * time.Second

// User-facing messages match the bot's historical wording.
const (
	msgInvalidOrTimeout = "❌ Invalid input or timeout."
	msgInvalidFarmID    = "❌ Invalid farm ID."
	msgSpawnerPrompt    = "🦴 How many Skeleton spawners do you have?"
	msgModulesPrompt    = "How many modules do you have?"
	msgMultiplierPrompt = "What is your sell multiplier? (1.0 to 3.0)"

	bonesCategoryLabel = "Bones per Min/hour"
)

// Emitter delivers engine output back to a channel. Implementations must
// be safe for concurrent use; sessions on different channels emit
// independently.
type Emitter interface {
	Emit(channelID, text string)
}

// CatalogReader provides the catalog snapshot taken at session start.
type CatalogReader interface {
	ListCategories(ctx context.Context) ([]domain.Category, error)
}

type sessionKey struct {
	userID    string
	channelID string
}

// activeSession pairs the session state with its pending step timer. The
// generation counter guards the race between an arriving answer and the
// step deadline: whichever resolves the step first bumps (or removes) the
// generation, and the loser becomes a no-op.
type activeSession struct {
	domain.Session
	gen   uint64
	timer *time.Timer
}

// Engine multiplexes calculator sessions across (user, channel) pairs.
type Engine struct {
	emitter Emitter
	catalog CatalogReader
	timeout time.Duration

	mu     sync.Mutex
	active map[sessionKey]*activeSession
}

// New creates an engine. A non-positive timeout falls back to
// DefaultStepTimeout.
func New(catalog CatalogReader, emitter Emitter, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = DefaultStepTimeout
	}
	return &Engine{
		emitter: emitter,
		catalog: catalog,
		timeout: timeout,
		active:  make(map[sessionKey]*activeSession),
	}
}

// Start begins a calculator session for the given (user, channel) pair and
// emits the category prompt. An active session for the same pair is
// silently replaced; its pending timeout can no longer fire.
func (e *Engine) Start(ctx context.Context, userID, channelID string) error {
	categories, err := e.catalog.ListCategories(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	now := time.Now()
	s := &activeSession{
		Session: domain.Session{
			ID:         uuid.New(),
			UserID:     userID,
			ChannelID:  channelID,
			Step:       domain.StepAwaitingCategory,
			Categories: categories,
			CreatedAt:  now,
			Deadline:   now.Add(e.timeout),
		},
	}

	k := sessionKey{userID, channelID}

	e.mu.Lock()
	if old, ok := e.active[k]; ok {
		old.timer.Stop()
		slog.Info("Calculator session replaced",
			"user_id", userID, "channel_id", channelID, "session_id", old.ID)
	}
	e.active[k] = s
	e.armTimerLocked(k, s)
	e.mu.Unlock()

	slog.Info("Calculator session started",
		"user_id", userID, "channel_id", channelID, "session_id", s.ID)
	e.emitter.Emit(channelID, categoryPrompt(categories))
	return nil
}

// HandleMessage offers an inbound message to the engine. It returns true
// if the message qualified as the next answer of an active session (and
// was consumed), false if no session for (user, channel) was awaiting
// input.
func (e *Engine) HandleMessage(userID, channelID, text string) bool {
	k := sessionKey{userID, channelID}

	e.mu.Lock()
	s, ok := e.active[k]
	if !ok {
		e.mu.Unlock()
		return false
	}

	// Invalidate the pending deadline before advancing. If the timer has
	// already fired and is waiting on the lock, the generation bump turns
	// it into a no-op.
	s.timer.Stop()
	s.gen++

	replies, done := e.advance(s, strings.TrimSpace(text))
	if done {
		delete(e.active, k)
	} else {
		s.Deadline = time.Now().Add(e.timeout)
		e.armTimerLocked(k, s)
	}
	e.mu.Unlock()

	if done {
		slog.Info("Calculator session ended",
			"user_id", userID, "channel_id", channelID, "session_id", s.ID, "step", s.Step.String())
	}
	for _, reply := range replies {
		e.emitter.Emit(channelID, reply)
	}
	return true
}

// IsActive reports whether a session exists for the (user, channel) pair.
func (e *Engine) IsActive(userID, channelID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.active[sessionKey{userID, channelID}]
	return ok
}

// armTimerLocked schedules the step deadline. Caller holds e.mu.
func (e *Engine) armTimerLocked(k sessionKey, s *activeSession) {
	gen := s.gen
	s.timer = time.AfterFunc(e.timeout, func() {
		e.expire(k, s, gen)
	})
}

// expire resolves a step deadline. It does nothing if the session already
// advanced, ended, or was replaced by a newer one under the same key.
func (e *Engine) expire(k sessionKey, s *activeSession, gen uint64) {
	e.mu.Lock()
	current, ok := e.active[k]
	if !ok || current != s || s.gen != gen {
		e.mu.Unlock()
		return
	}
	delete(e.active, k)
	e.mu.Unlock()

	slog.Info("Calculator session timed out",
		"user_id", k.userID, "channel_id", k.channelID, "session_id", s.ID, "step", s.Step.String())
	e.emitter.Emit(k.channelID, msgInvalidOrTimeout)
}

// advance applies one answer to the session and returns the replies to
// emit plus whether the session reached a terminal outcome. Caller holds
// e.mu.
func (e *Engine) advance(s *activeSession, input string) (replies []string, done bool) {
	switch s.Step {
	case domain.StepAwaitingCategory:
		index, err := strconv.Atoi(input)
		if err != nil || index < 1 || index > len(s.Categories)+1 {
			return []string{msgInvalidOrTimeout}, true
		}
		if index == len(s.Categories)+1 {
			// Synthetic bones category, always listed last.
			s.Step = domain.StepAwaitingSpawnerCount
			return []string{msgSpawnerPrompt}, false
		}
		selected := s.Categories[index-1]
		s.Selected = &selected
		s.Step = domain.StepAwaitingFarmID
		return []string{farmListPrompt(selected)}, false

	case domain.StepAwaitingSpawnerCount:
		spawners, err := strconv.Atoi(input)
		if err != nil {
			return []string{msgInvalidOrTimeout}, true
		}
		s.BonesPerMin = calc.BonesPerMinute(spawners)
		s.Step = domain.StepAwaitingHourlyConfirmation
		return []string{fmt.Sprintf(
			"🦴 You will make **%s bones/minute**. Do you want to calculate per hour? (yes/no)",
			calc.FormatCount(s.BonesPerMin))}, false

	case domain.StepAwaitingHourlyConfirmation:
		// Anything other than yes/y means "no"; the session still ends
		// cleanly after the per-minute result.
		switch strings.ToLower(input) {
		case "yes", "y":
			perHour := calc.BonesPerHour(s.BonesPerMin)
			return []string{fmt.Sprintf("🕒 You will make **%s bones/hour**.", calc.FormatCount(perHour))}, true
		}
		return nil, true

	case domain.StepAwaitingFarmID:
		farm, ok := s.Selected.FindFarm(input)
		if !ok {
			return []string{msgInvalidFarmID}, true
		}
		s.Farm = &farm
		s.Step = domain.StepAwaitingModuleCount
		return []string{msgModulesPrompt}, false

	case domain.StepAwaitingModuleCount:
		modules, err := strconv.ParseFloat(input, 64)
		if err != nil {
			return []string{msgInvalidOrTimeout}, true
		}
		s.Modules = modules
		s.Step = domain.StepAwaitingMultiplier
		return []string{msgMultiplierPrompt}, false

	case domain.StepAwaitingMultiplier:
		multiplier, err := strconv.ParseFloat(input, 64)
		if err != nil {
			return []string{msgInvalidOrTimeout}, true
		}
		total := calc.Income(s.Farm.Income, s.Modules, multiplier)
		return []string{fmt.Sprintf("💰 Your farm will make **%s**.", calc.FormatIncome(total))}, true

	default:
		return []string{msgInvalidOrTimeout}, true
	}
}

// categoryPrompt lists every configured category plus the synthetic bones
// entry, numbered from 1.
func categoryPrompt(categories []domain.Category) string {
	var b strings.Builder
	b.WriteString("Choose a category by number:\n")
	for i, cat := range categories {
		fmt.Fprintf(&b, "%d: %s farms\n", i+1, cat.Name)
	}
	fmt.Fprintf(&b, "%d: %s\n", len(categories)+1, bonesCategoryLabel)
	return b.String()
}

func farmListPrompt(cat domain.Category) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Choose a farm from '%s' category:\n", cat.Name)
	for _, farm := range cat.Farms {
		fmt.Fprintf(&b, "%s: %s ($%sM/hr)\n", farm.ID, farm.Name, strconv.FormatFloat(farm.Income, 'g', -1, 64))
	}
	return b.String()
}
