package scheduler

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"schoolbell/internal/store"
	logx "schoolbell/pkg/logx"
)

// MinuteOf collapses a wall-clock instant to a discrete epoch minute.
// Epoch minutes are absolute, so comparisons are immune to DST and zone
// database changes.
func MinuteOf(t time.Time) int64 { return t.Unix() / 60 }

// Ledger is the idempotency guard for the matching pass.
//
// The checkpoint is the single source of truth: a matching pass for minute m
// runs only when m is strictly greater than the persisted checkpoint. The
// checkpoint advances after every pass, even a partially failed one — a
// retry within the same minute is a duplicate by definition, not a recovery.
type Ledger struct {
	store store.Store
	log   logx.Logger
}

func NewLedger(st store.Store, log logx.Logger) *Ledger {
	return &Ledger{store: st, log: log}
}

// ShouldRun reports whether the matching pass for nowMinute may run.
// A same-minute re-entry (overlapping invocation, crash-restart inside the
// minute) returns false; this is a no-op, not an error.
func (l *Ledger) ShouldRun(ctx context.Context, nowMinute int64) (bool, error) {
	last, ok, err := l.LastMinute(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		// First tick ever.
		return true, nil
	}
	return nowMinute > last, nil
}

// Advance records nowMinute as processed along with the schedules fired in it.
func (l *Ledger) Advance(ctx context.Context, nowMinute int64, fired []int64) error {
	if err := l.store.Put(ctx, store.KeyCheckpointLastMinute, strconv.FormatInt(nowMinute, 10)); err != nil {
		return err
	}
	if fired == nil {
		fired = []int64{}
	}
	b, err := json.Marshal(fired)
	if err != nil {
		return err
	}
	return l.store.Put(ctx, store.KeyCheckpointFired, string(b))
}

// LastMinute returns the persisted checkpoint, ok=false when no pass has
// ever completed.
func (l *Ledger) LastMinute(ctx context.Context) (int64, bool, error) {
	v, ok, err := l.store.Get(ctx, store.KeyCheckpointLastMinute)
	if err != nil || !ok {
		return 0, false, err
	}
	n, perr := strconv.ParseInt(v, 10, 64)
	if perr != nil {
		// A corrupt checkpoint is treated as absent; the next pass rewrites it.
		l.log.Warn("discarding corrupt checkpoint", logx.String("value", v), logx.Err(perr))
		return 0, false, nil
	}
	return n, true, nil
}

// FiredSchedules returns the ids fired in the checkpointed minute.
func (l *Ledger) FiredSchedules(ctx context.Context) ([]int64, error) {
	v, ok, err := l.store.Get(ctx, store.KeyCheckpointFired)
	if err != nil || !ok {
		return nil, err
	}
	var ids []int64
	if err := json.Unmarshal([]byte(v), &ids); err != nil {
		return nil, nil
	}
	return ids, nil
}
