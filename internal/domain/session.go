package domain

import (
	"time"

	"github.com/google/uuid"
)

// Step identifies which answer a calculator session is currently waiting for.
type Step int

const (
	StepAwaitingCategory Step = iota
	StepAwaitingSpawnerCount
	StepAwaitingHourlyConfirmation
	StepAwaitingFarmID
	StepAwaitingModuleCount
	StepAwaitingMultiplier
)

// String returns a log-friendly name for the step.
func (s Step) String() string {
	switch s {
	case StepAwaitingCategory:
		return "awaiting_category"
	case StepAwaitingSpawnerCount:
		return "awaiting_spawner_count"
	case StepAwaitingHourlyConfirmation:
		return "awaiting_hourly_confirmation"
	case StepAwaitingFarmID:
		return "awaiting_farm_id"
	case StepAwaitingModuleCount:
		return "awaiting_module_count"
	case StepAwaitingMultiplier:
		return "awaiting_multiplier"
	default:
		return "unknown"
	}
}

// Session holds the state of one in-flight calculator flow. A session is
// bound to a single (user, channel) pair and only messages from that pair
// may advance it.
type Session struct {
	ID        uuid.UUID
	UserID    string
	ChannelID string
	Step      Step

	// Categories is the catalog snapshot taken when the session started,
	// so numbering stays stable even if an admin edits the catalog mid-flow.
	Categories []Category

	Selected    *Category
	Farm        *FarmEntry
	Modules     float64
	BonesPerMin int

	CreatedAt time.Time
	Deadline  time.Time
}
