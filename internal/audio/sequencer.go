package audio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"schoolbell/internal/catalog"
	"schoolbell/internal/metrics"
	"schoolbell/internal/timevoice"
	logx "schoolbell/pkg/logx"
)

// Sequencer turns a due schedule into the ordered step list the player
// consumes: optional opening chime, optional spoken time, the main clip,
// optional closing chime.
//
// Optional steps degrade: a failed time-announcement lookup or a disabled
// chime is skipped with a warning and the main clip still plays. Only a
// dangling clip reference fails the whole schedule.
type Sequencer struct {
	catalog   catalog.Catalog
	teller    timevoice.Teller
	tellLimit time.Duration
	log       logx.Logger
	met       *metrics.Metrics
}

func NewSequencer(cat catalog.Catalog, teller timevoice.Teller, tellLimit time.Duration, log logx.Logger, met *metrics.Metrics) *Sequencer {
	if tellLimit <= 0 {
		tellLimit = 5 * time.Second
	}
	return &Sequencer{catalog: cat, teller: teller, tellLimit: tellLimit, log: log, met: met}
}

// Build assembles the playback sequence for one schedule at the given local
// time. The returned error means the schedule cannot play at all (missing
// clip); other due schedules are unaffected.
func (s *Sequencer) Build(ctx context.Context, sched catalog.Schedule, now time.Time) (Item, error) {
	item := Item{ScheduleID: sched.ID}

	var chime catalog.Chime
	haveChime := false
	if sched.ChimeID != 0 {
		ch, err := s.catalog.ResolveChime(ctx, sched.ChimeID)
		switch {
		case errors.Is(err, catalog.ErrNotFound):
			s.log.Warn("chime reference is dangling, skipping",
				logx.Int64("schedule", sched.ID), logx.Int64("chime", sched.ChimeID))
		case err != nil:
			s.log.Warn("chime lookup failed, skipping",
				logx.Int64("schedule", sched.ID), logx.Err(err))
		case ch.Enabled:
			chime = ch
			haveChime = true
		}
	}

	if haveChime && chime.OpeningPath != "" {
		item.Steps = append(item.Steps, Step{Kind: StepChimeOpen, Label: chime.Name, Path: chime.OpeningPath})
	}

	if sched.AnnounceTime && s.teller != nil {
		tctx, cancel := context.WithTimeout(ctx, s.tellLimit)
		paths, err := s.teller.TimeHandles(tctx, now.Hour(), now.Minute())
		cancel()
		if err != nil {
			// The announcement is an enhancement; its failure never blocks the bell.
			s.log.Warn("time announcement unavailable, playing clip only",
				logx.Int64("schedule", sched.ID),
				logx.Int("hour", now.Hour()), logx.Int("minute", now.Minute()),
				logx.Err(err))
			s.met.IncStepSkipped()
		} else {
			label := fmt.Sprintf("%02d:%02d", now.Hour(), now.Minute())
			for _, p := range paths {
				item.Steps = append(item.Steps, Step{Kind: StepSpokenTime, Label: label, Path: p})
			}
		}
	}

	clip, err := s.catalog.ResolveClip(ctx, sched.ClipID)
	if err != nil {
		return Item{}, fmt.Errorf("schedule %d: clip %d: %w", sched.ID, sched.ClipID, err)
	}
	item.Steps = append(item.Steps, Step{Kind: StepClip, Label: clip.Name, Path: clip.Path})

	if haveChime && chime.ClosingPath != "" {
		item.Steps = append(item.Steps, Step{Kind: StepChimeClose, Label: chime.Name, Path: chime.ClosingPath})
	}

	return item, nil
}
