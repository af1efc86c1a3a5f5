package catalog

import "context"

// Static is an in-memory Catalog used by tests and seeded dev setups.
type Static struct {
	Schedules []Schedule
	Clips     map[int64]Clip
	Chimes    map[int64]Chime
}

func (s *Static) ListEnabled(ctx context.Context) ([]Schedule, error) {
	_ = ctx
	out := make([]Schedule, 0, len(s.Schedules))
	for _, sc := range s.Schedules {
		if sc.Enabled {
			out = append(out, sc)
		}
	}
	return out, nil
}

func (s *Static) ResolveClip(ctx context.Context, id int64) (Clip, error) {
	_ = ctx
	if c, ok := s.Clips[id]; ok {
		return c, nil
	}
	return Clip{}, ErrNotFound
}

func (s *Static) ResolveChime(ctx context.Context, id int64) (Chime, error) {
	_ = ctx
	if c, ok := s.Chimes[id]; ok {
		return c, nil
	}
	return Chime{}, ErrNotFound
}
