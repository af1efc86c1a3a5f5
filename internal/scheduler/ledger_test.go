package scheduler

import (
	"context"
	"testing"
	"time"

	"schoolbell/internal/store"
	logx "schoolbell/pkg/logx"
)

func TestMinuteOf(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want int64
	}{
		{"epoch", time.Unix(0, 0), 0},
		{"mid minute truncates", time.Unix(125, 0), 2},
		{"zone irrelevant", time.Date(2026, 3, 2, 8, 30, 45, 0, time.FixedZone("ICT", 7*3600)), time.Date(2026, 3, 2, 1, 30, 0, 0, time.UTC).Unix() / 60},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MinuteOf(tc.at); got != tc.want {
				t.Fatalf("MinuteOf(%v) = %d, want %d", tc.at, got, tc.want)
			}
		})
	}
}

func TestLedgerSameMinuteReentry(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	l := NewLedger(st, logx.Nop())

	const m = int64(29555310) // an arbitrary epoch minute

	run, err := l.ShouldRun(ctx, m)
	if err != nil || !run {
		t.Fatalf("first pass: run=%v err=%v, want true nil", run, err)
	}
	if err := l.Advance(ctx, m, []int64{7, 9}); err != nil {
		t.Fatal(err)
	}

	// Same minute again: crash-restart or overlapping invocation.
	run, err = l.ShouldRun(ctx, m)
	if err != nil || run {
		t.Fatalf("re-entry: run=%v err=%v, want false nil", run, err)
	}

	// Clock stepped backwards: still no re-fire.
	run, _ = l.ShouldRun(ctx, m-1)
	if run {
		t.Fatal("earlier minute allowed to run after checkpoint advanced")
	}

	run, _ = l.ShouldRun(ctx, m+1)
	if !run {
		t.Fatal("next minute blocked")
	}

	ids, err := l.FiredSchedules(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != 7 || ids[1] != 9 {
		t.Fatalf("fired = %v, want [7 9]", ids)
	}
}

func TestLedgerSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := t.TempDir() + "/state.db"
	st, err := store.Open(store.Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}

	const m = int64(29555310)
	if err := NewLedger(st, logx.Nop()).Advance(ctx, m, []int64{3}); err != nil {
		t.Fatal(err)
	}
	if err := st.Close(); err != nil {
		t.Fatal(err)
	}

	st2, err := store.Open(store.Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st2.Close()

	l := NewLedger(st2, logx.Nop())
	run, err := l.ShouldRun(ctx, m)
	if err != nil {
		t.Fatal(err)
	}
	if run {
		t.Fatal("checkpoint lost across reopen: same minute allowed to re-fire")
	}
	ids, err := l.FiredSchedules(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 1 || ids[0] != 3 {
		t.Fatalf("fired = %v, want [3]", ids)
	}
}

func TestLedgerCorruptCheckpointTreatedAsAbsent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	if err := st.Put(ctx, store.KeyCheckpointLastMinute, "not-a-number"); err != nil {
		t.Fatal(err)
	}

	l := NewLedger(st, logx.Nop())
	run, err := l.ShouldRun(ctx, 42)
	if err != nil {
		t.Fatal(err)
	}
	if !run {
		t.Fatal("corrupt checkpoint blocked the pass")
	}
}

func TestLedgerAdvanceNilFired(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	l := NewLedger(st, logx.Nop())

	if err := l.Advance(ctx, 100, nil); err != nil {
		t.Fatal(err)
	}
	ids, err := l.FiredSchedules(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ids == nil || len(ids) != 0 {
		t.Fatalf("fired = %v, want empty non-nil list", ids)
	}
}
