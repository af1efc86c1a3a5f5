package scheduler

import (
	"context"
	"time"

	"schoolbell/internal/catalog"
	logx "schoolbell/pkg/logx"
)

// Matcher filters the schedule catalog down to the entries due at a given
// local time. Seconds are ignored: fire time has minute resolution.
type Matcher struct {
	catalog catalog.Catalog
	log     logx.Logger
}

func NewMatcher(cat catalog.Catalog, log logx.Logger) *Matcher {
	return &Matcher{catalog: cat, log: log}
}

// Due returns the enabled schedules whose fire time and weekday match now,
// in catalog order (position, then id). The catalog is re-read on every call
// so edits made through the web layer apply without a restart.
func (m *Matcher) Due(ctx context.Context, now time.Time) ([]catalog.Schedule, error) {
	scheds, err := m.catalog.ListEnabled(ctx)
	if err != nil {
		return nil, err
	}

	hour, minute := now.Hour(), now.Minute()
	weekday := now.Weekday()

	var due []catalog.Schedule
	for _, s := range scheds {
		if s.Hour != hour || s.Minute != minute {
			continue
		}
		if !s.Days.Has(weekday) {
			continue
		}
		due = append(due, s)
	}
	if len(due) > 0 {
		m.log.Debug("schedules due",
			logx.Int("count", len(due)),
			logx.Int("hour", hour), logx.Int("minute", minute),
			logx.String("weekday", weekday.String()))
	}
	return due, nil
}
