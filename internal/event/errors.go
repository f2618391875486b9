package event

import "errors"

var (
	// ErrEventActive is returned when creating an event while the guild
	// already has one open.
	ErrEventActive = errors.New("an event is already active for this guild")

	// ErrNoActiveEvent is returned when stopping a guild with no open
	// event.
	ErrNoActiveEvent = errors.New("no active event for this guild")
)
