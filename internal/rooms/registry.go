package rooms

import (
	"context"

	"github.com/araucarialabs/presenca/internal/store"
)

// Registry is the persisted set of rooms marked for attendance tracking.
// All operations are idempotent; store failures propagate to the caller.
type Registry struct {
	store store.RoomStore
}

func NewRegistry(s store.RoomStore) *Registry {
	return &Registry{store: s}
}

func (r *Registry) Track(ctx context.Context, guildID, roomID string) error {
	return r.store.TrackRoom(ctx, guildID, roomID)
}

func (r *Registry) Untrack(ctx context.Context, guildID, roomID string) error {
	return r.store.UntrackRoom(ctx, guildID, roomID)
}

func (r *Registry) IsTracked(ctx context.Context, guildID, roomID string) (bool, error) {
	if roomID == "" {
		return false, nil
	}
	return r.store.IsTracked(ctx, guildID, roomID)
}

func (r *Registry) ListTracked(ctx context.Context, guildID string) ([]string, error) {
	return r.store.ListTrackedRooms(ctx, guildID)
}
