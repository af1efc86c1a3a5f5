package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"schoolbell/internal/audio"
	"schoolbell/internal/catalog"
	"schoolbell/internal/metrics"
	"schoolbell/internal/store"
	logx "schoolbell/pkg/logx"
)

// Sequencer builds the ordered playback steps for one due schedule.
type Sequencer interface {
	Build(ctx context.Context, sched catalog.Schedule, now time.Time) (audio.Item, error)
}

// Player accepts an ordered batch for exclusive playback.
type Player interface {
	Enqueue(items []audio.Item) error
	Stop(ctx context.Context) error
}

type Config struct {
	// Timezone is the school's civil timezone, e.g. "Asia/Bangkok".
	// Empty means the host's local zone.
	Timezone string
}

// Orchestrator runs the minute loop: tick → ledger check → match → sequence
// → enqueue → checkpoint advance.
//
// Every step is fallible in isolation: one schedule's failure never blocks
// the others, and no tick's failure blocks the next tick.
type Orchestrator struct {
	ticker  *Ticker
	ledger  *Ledger
	matcher *Matcher
	seq     Sequencer
	player  Player
	store   store.Store
	loc     *time.Location
	log     logx.Logger
	met     *metrics.Metrics

	mu       sync.Mutex
	lastTick time.Time
	lastErr  string
}

func NewOrchestrator(cfg Config, clock clockwork.Clock, cat catalog.Catalog, seq Sequencer, player Player, st store.Store, log logx.Logger, met *metrics.Metrics) (*Orchestrator, error) {
	loc := time.Local
	if cfg.Timezone != "" {
		// A timezone-aware clock, not a fixed UTC offset: zone database
		// policy changes must be honored.
		l, err := time.LoadLocation(cfg.Timezone)
		if err != nil {
			return nil, fmt.Errorf("scheduler: bad timezone %q: %w", cfg.Timezone, err)
		}
		loc = l
	}
	return &Orchestrator{
		ticker:  NewTicker(clock, log),
		ledger:  NewLedger(st, log),
		matcher: NewMatcher(cat, log),
		seq:     seq,
		player:  player,
		store:   st,
		loc:     loc,
		log:     log,
		met:     met,
	}, nil
}

// Run drives the loop until ctx is canceled, then stops any active playback
// so no audio outlives the process.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.Info("orchestrator started", logx.String("tz", o.loc.String()))
	err := o.ticker.Run(ctx, func(now time.Time) {
		o.step(ctx, now.In(o.loc))
	})

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := o.player.Stop(stopCtx); serr != nil {
		o.log.Warn("stopping playback on shutdown failed", logx.Err(serr))
	}
	o.log.Info("orchestrator stopped")
	return err
}

// step performs one matching pass. Errors are recorded and logged, never
// propagated: the loop must survive everything.
func (o *Orchestrator) step(ctx context.Context, now time.Time) {
	o.met.IncTick()
	o.noteTick(now)

	minute := MinuteOf(now)

	run, err := o.ledger.ShouldRun(ctx, minute)
	if err != nil {
		o.fail("reading checkpoint", err)
		return
	}
	if !run {
		// Same-minute re-entry (restart inside the minute, clock step
		// backwards). A no-op, not an error.
		o.met.IncTickSkipped()
		o.log.Debug("minute already processed", logx.Int64("minute", minute))
		return
	}

	due, err := o.matcher.Due(ctx, now)
	if err != nil {
		// Ticks are minute-aligned, so there is no later retry within this
		// minute anyway. Fall through and advance to keep the ledger monotonic.
		o.fail("listing schedules", err)
	}

	var items []audio.Item
	var fired []int64
	for _, sched := range due {
		item, berr := o.seq.Build(ctx, sched, now)
		if berr != nil {
			o.log.Warn("schedule skipped", logx.Int64("schedule", sched.ID), logx.Err(berr))
			o.met.IncPlayback("skipped")
			o.recordEvent(ctx, store.Event{
				Component: "scheduler", Action: "playback_skipped",
				Target: fmt.Sprintf("schedule:%d", sched.ID), Error: berr.Error(),
			})
			continue
		}
		items = append(items, item)
		fired = append(fired, sched.ID)
	}

	if len(items) > 0 {
		if perr := o.player.Enqueue(items); perr != nil {
			if errors.Is(perr, audio.ErrBusy) {
				// Best-effort by design: audio must not fall behind the clock.
				o.log.Warn("due schedules dropped: playback in progress",
					logx.Int64("minute", minute), logx.Int("count", len(items)))
				o.met.IncPlayback("dropped")
			} else {
				o.fail("enqueueing playback", perr)
				o.met.IncPlayback("error")
			}
			fired = nil
		} else {
			for _, id := range fired {
				o.met.IncPlayback("fired")
				o.recordEvent(ctx, store.Event{
					Component: "scheduler", Action: "playback_fired",
					Target: fmt.Sprintf("schedule:%d", id), OK: true,
					Detail: now.Format("2006-01-02 15:04 Mon"),
				})
			}
		}
	}

	// Advance even after partial failure: a same-minute retry is a
	// duplicate, not a recovery.
	if err := o.ledger.Advance(ctx, minute, fired); err != nil {
		o.fail("advancing checkpoint", err)
	}
}

func (o *Orchestrator) recordEvent(ctx context.Context, e store.Event) {
	if o.store == nil {
		return
	}
	if err := o.store.AppendEvent(ctx, e); err != nil {
		o.log.Debug("event append failed", logx.Err(err))
	}
}

func (o *Orchestrator) fail(what string, err error) {
	o.log.Error(what+" failed", logx.Err(err))
	o.mu.Lock()
	o.lastErr = what + ": " + err.Error()
	o.mu.Unlock()
}

func (o *Orchestrator) noteTick(now time.Time) {
	o.mu.Lock()
	o.lastTick = now
	o.mu.Unlock()
}

// Status is the orchestrator's contribution to the /status payload.
type Status struct {
	LastTick       time.Time `json:"last_tick"`
	LastMinute     int64     `json:"last_minute"`
	FiredSchedules []int64   `json:"fired_schedules,omitempty"`
	LastError      string    `json:"last_error,omitempty"`
	Timezone       string    `json:"timezone"`
}

func (o *Orchestrator) Status(ctx context.Context) Status {
	o.mu.Lock()
	st := Status{LastTick: o.lastTick, LastError: o.lastErr, Timezone: o.loc.String()}
	o.mu.Unlock()

	if m, ok, err := o.ledger.LastMinute(ctx); err == nil && ok {
		st.LastMinute = m
	}
	if ids, err := o.ledger.FiredSchedules(ctx); err == nil {
		st.FiredSchedules = ids
	}
	return st
}
