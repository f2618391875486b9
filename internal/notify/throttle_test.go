package notify

import (
	"testing"
	"time"
)

func TestMayNotify_FirstTimeAllowed(t *testing.T) {
	th := NewThrottle(120 * time.Minute)
	if !th.MayNotify("guild-1", "user-1") {
		t.Fatal("expected first notification allowed")
	}
}

func TestMayNotify_SuppressedInsideCooldown(t *testing.T) {
	th := NewThrottle(120 * time.Minute)
	now := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	th.now = func() time.Time { return now }

	th.RecordNotified("guild-1", "user-1")
	now = now.Add(119 * time.Minute)
	if th.MayNotify("guild-1", "user-1") {
		t.Fatal("expected suppression inside the cooldown")
	}
	now = now.Add(time.Minute)
	if !th.MayNotify("guild-1", "user-1") {
		t.Fatal("expected allowance once the cooldown elapsed")
	}
}

func TestMayNotify_PairsAreIndependent(t *testing.T) {
	th := NewThrottle(120 * time.Minute)
	th.RecordNotified("guild-1", "user-1")
	if !th.MayNotify("guild-1", "user-2") {
		t.Fatal("expected other users unaffected")
	}
	if !th.MayNotify("guild-2", "user-1") {
		t.Fatal("expected other guilds unaffected")
	}
}
