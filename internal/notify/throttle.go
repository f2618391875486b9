package notify

import (
	"sync"
	"time"
)

// Throttle rate-limits a per-(guild,user) direct notification to at most
// once per cooldown. Purely advisory: callers never treat a suppressed
// or failed notification as a tracking error.
type Throttle struct {
	cooldown time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last map[string]time.Time
}

func NewThrottle(cooldown time.Duration) *Throttle {
	return &Throttle{
		cooldown: cooldown,
		now:      time.Now,
		last:     make(map[string]time.Time),
	}
}

func key(guildID, userID string) string {
	return guildID + ":" + userID
}

// MayNotify reports whether the pair has no recorded notification or the
// cooldown has elapsed since the last one.
func (t *Throttle) MayNotify(guildID, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	last, ok := t.last[key(guildID, userID)]
	if !ok {
		return true
	}
	return t.now().Sub(last) >= t.cooldown
}

// RecordNotified stamps "now" for the pair.
func (t *Throttle) RecordNotified(guildID, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last[key(guildID, userID)] = t.now()
}
