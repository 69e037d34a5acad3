// Package cooldown provides per-user rate limiting for chat commands.
package cooldown

import (
	"sync"
	"time"
)

// Tracker records the last invocation time per user for a rate-limited
// action. Records are overwritten on each allowed invocation and never
// evicted; the user population is small enough that growth is not a concern.
type Tracker struct {
	mu   sync.Mutex
	last map[string]time.Time
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{last: make(map[string]time.Time)}
}

// TryConsume reports whether the user may invoke the action at now, given
// the cooldown window. On success the user's record is reset to now. On
// rejection remaining holds the time left in the window, truncated to whole
// seconds.
func (t *Tracker) TryConsume(userID string, now time.Time, window time.Duration) (allowed bool, remaining time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if last, ok := t.last[userID]; ok {
		elapsed := now.Sub(last)
		if elapsed < window {
			return false, (window - elapsed).Truncate(time.Second)
		}
	}
	t.last[userID] = now
	return true, 0
}
