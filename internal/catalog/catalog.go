package catalog

import "context"

// Catalog is the narrow read interface the scheduling core consumes.
//
// The schedule/clip tables are owned by the CRUD web layer; the core only
// queries them. Implementations must return schedules in position order
// (position, then id) so that multiple schedules due in the same minute play
// in a deterministic sequence.
type Catalog interface {
	// ListEnabled returns all enabled schedules in stable playback order.
	ListEnabled(ctx context.Context) ([]Schedule, error)

	// ResolveClip resolves a clip reference to a playable asset.
	// Returns ErrNotFound when the reference is dangling.
	ResolveClip(ctx context.Context, id int64) (Clip, error)

	// ResolveChime resolves a chime (opening/closing bell pair) reference.
	ResolveChime(ctx context.Context, id int64) (Chime, error)
}
