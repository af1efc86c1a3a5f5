package audio

import (
	"context"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"schoolbell/internal/metrics"
	"schoolbell/internal/store"
	logx "schoolbell/pkg/logx"
)

const persistTimeout = 2 * time.Second

// Player owns the audio device and enforces the playback protocol:
// Idle → Announcing → Playing → Idle, with StoppingRequested reachable from
// any non-idle state.
//
// One session at a time: Enqueue while non-idle returns ErrBusy. Items in a
// batch (schedules due in the same minute) play strictly sequentially in the
// order given. Every state transition is persisted so observers see a live
// projection, and a restart starts from a clean Idle instead of a stale
// "playing" flag.
//
// Session tokens: each accepted batch gets a strictly increasing token.
// Worker goroutines only apply transitions while their token is current,
// which keeps a superseded session's late completions from corrupting state.
type Player struct {
	device Device
	store  store.Store
	log    logx.Logger
	met    *metrics.Metrics

	// Throttles "dropped while busy" warnings; a long clip plus dense
	// schedules would otherwise log the same line every minute.
	busyWarn *rate.Limiter

	mu         sync.Mutex
	state      State
	session    uint64
	scheduleID int64
	step       string
	stopCh     chan struct{}
	workerDone chan struct{}
}

func NewPlayer(device Device, st store.Store, log logx.Logger, met *metrics.Metrics) *Player {
	p := &Player{
		device:   device,
		store:    st,
		log:      log,
		met:      met,
		busyWarn: rate.NewLimiter(rate.Every(10*time.Minute), 3),
		state:    StateIdle,
	}
	// A previous process may have died mid-playback; start from a clean slate.
	p.persistLocked()
	return p
}

// Snapshot returns the current playback projection.
func (p *Player) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{State: p.state, Session: p.session, ScheduleID: p.scheduleID, Step: p.step}
}

// Enqueue accepts an ordered batch of schedule sequences for playback.
// It returns ErrBusy without side effects when a session is active.
func (p *Player) Enqueue(items []Item) error {
	if len(items) == 0 {
		return nil
	}

	p.mu.Lock()
	if p.state != StateIdle {
		st := p.state
		p.mu.Unlock()
		if p.busyWarn.Allow() {
			p.log.Warn("playback dropped: device busy",
				logx.String("state", string(st)),
				logx.Int("batch", len(items)))
		}
		return ErrBusy
	}

	p.session++
	session := p.session
	p.stopCh = make(chan struct{})
	p.workerDone = make(chan struct{})
	stopCh := p.stopCh
	workerDone := p.workerDone

	// Claim the device before unlocking so a concurrent Enqueue sees busy.
	first := items[0]
	p.scheduleID = first.ScheduleID
	p.state = stateForStep(firstStepKind(first))
	p.step = ""
	p.persistLocked()
	p.mu.Unlock()

	p.met.SetPlaybackActive(true)
	p.log.Info("playback session started",
		logx.Uint64("session", session),
		logx.Int("schedules", len(items)))

	go p.worker(session, items, stopCh, workerDone)
	return nil
}

func (p *Player) worker(session uint64, items []Item, stopCh chan struct{}, done chan struct{}) {
	defer close(done)
	defer p.finish(session)

	for _, item := range items {
		if !p.setCurrent(session, item.ScheduleID) {
			return
		}
		for _, step := range item.Steps {
			if !p.setStep(session, step) {
				return
			}

			devDone, err := p.device.Play(step.Path)
			if err != nil {
				p.log.Warn("step failed to start",
					logx.Int64("schedule", item.ScheduleID),
					logx.String("step", step.Kind.String()),
					logx.String("path", step.Path),
					logx.Err(err))
				p.met.IncStepSkipped()
				continue
			}

			select {
			case perr := <-devDone:
				if perr != nil && p.isCurrent(session) {
					p.log.Warn("step ended with error",
						logx.Int64("schedule", item.ScheduleID),
						logx.String("step", step.Kind.String()),
						logx.Err(perr))
				}
			case <-stopCh:
				_ = p.device.Stop()
				// Reap the killed process before leaving.
				select {
				case <-devDone:
				case <-time.After(2 * time.Second):
				}
				return
			}
		}
	}
}

// finish returns the machine to Idle, unless a newer session owns it.
func (p *Player) finish(session uint64) {
	p.mu.Lock()
	if p.session != session {
		p.mu.Unlock()
		return
	}
	p.state = StateIdle
	p.scheduleID = 0
	p.step = ""
	p.stopCh = nil
	p.workerDone = nil
	p.persistLocked()
	p.mu.Unlock()

	p.met.SetPlaybackActive(false)
	p.log.Info("playback session finished", logx.Uint64("session", session))
}

// Stop requests a hard stop and forces Idle once the worker acknowledges or
// the ctx deadline expires. Safe to call when idle.
func (p *Player) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.state == StateIdle {
		p.mu.Unlock()
		return nil
	}
	session := p.session
	p.state = StateStopping
	p.persistLocked()
	stopCh := p.stopCh
	p.stopCh = nil
	done := p.workerDone
	p.mu.Unlock()

	p.log.Info("playback stop requested", logx.Uint64("session", session))
	if stopCh != nil {
		close(stopCh)
	}
	// Hard stop regardless of where the worker is.
	_ = p.device.Stop()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			p.log.Warn("playback worker did not acknowledge stop in time", logx.Uint64("session", session))
		}
	}

	// Force Idle even on timeout; a stale worker is fenced by its session token.
	p.mu.Lock()
	if p.session == session && p.state != StateIdle {
		p.state = StateIdle
		p.scheduleID = 0
		p.step = ""
		p.workerDone = nil
		p.persistLocked()
	}
	p.mu.Unlock()
	p.met.SetPlaybackActive(false)
	return nil
}

// setCurrent records the active schedule; false when the session was superseded.
func (p *Player) setCurrent(session uint64, scheduleID int64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != session || p.state == StateStopping {
		return false
	}
	p.scheduleID = scheduleID
	p.persistLocked()
	return true
}

// setStep applies the state transition for a step; false when superseded.
func (p *Player) setStep(session uint64, step Step) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != session || p.state == StateStopping {
		return false
	}
	p.state = stateForStep(step.Kind)
	p.step = step.Kind.String()
	p.persistLocked()
	return true
}

func (p *Player) isCurrent(session uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session == session
}

// persistLocked writes the playback projection. Called with p.mu held.
// Store failures degrade to logging: playback must not depend on the
// projection being writable.
func (p *Player) persistLocked() {
	if p.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := p.store.Put(ctx, store.KeyPlaybackState, string(p.state)); err != nil {
		p.log.Warn("persisting playback state failed", logx.Err(err))
		return
	}
	_ = p.store.Put(ctx, store.KeyPlaybackSession, strconv.FormatUint(p.session, 10))
	if p.scheduleID != 0 {
		_ = p.store.Put(ctx, store.KeyPlaybackSchedule, strconv.FormatInt(p.scheduleID, 10))
	} else {
		_ = p.store.Delete(ctx, store.KeyPlaybackSchedule)
	}
}

func stateForStep(k StepKind) State {
	if k == StepSpokenTime {
		return StateAnnouncing
	}
	return StatePlaying
}

func firstStepKind(item Item) StepKind {
	if len(item.Steps) == 0 {
		return StepClip
	}
	return item.Steps[0].Kind
}
