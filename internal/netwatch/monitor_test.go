package netwatch

import (
	"context"
	"errors"
	"testing"

	"github.com/jonboulle/clockwork"

	"schoolbell/internal/store"
	logx "schoolbell/pkg/logx"
)

type fakeChecker struct {
	healthy bool
	ssid    string
}

func (f *fakeChecker) LinkUp(ctx context.Context) (bool, error) { return f.healthy, nil }
func (f *fakeChecker) InternetReachable(ctx context.Context) error {
	if f.healthy {
		return nil
	}
	return errors.New("dial tcp: timeout")
}
func (f *fakeChecker) CurrentSSID(ctx context.Context) string { return f.ssid }

type fakeController struct {
	apStarts   int
	apStops    int
	reconnects int
	startErr   error
	stopErr    error
}

func (f *fakeController) StartAccessPoint(ctx context.Context) error {
	f.apStarts++
	return f.startErr
}
func (f *fakeController) StopAccessPoint(ctx context.Context) error {
	f.apStops++
	return f.stopErr
}
func (f *fakeController) Reconnect(ctx context.Context) error {
	f.reconnects++
	return nil
}

func newTestMonitor(t *testing.T, cfg Config, chk *fakeChecker, ctl *fakeController) (*Monitor, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	m := NewMonitor(cfg, clockwork.NewFakeClock(), chk, ctl, st, logx.Nop(), nil)
	return m, st
}

func TestFallbackAfterThreshold(t *testing.T) {
	ctx := context.Background()
	chk := &fakeChecker{healthy: false}
	ctl := &fakeController{}
	m, st := newTestMonitor(t, Config{FailThreshold: 5, SuccessThreshold: 3}, chk, ctl)

	for i := 1; i <= 4; i++ {
		m.poll(ctx)
		if got := m.Mode(); got != ModeClient {
			t.Fatalf("after %d failures mode = %q, want client", i, got)
		}
	}
	if ctl.apStarts != 0 {
		t.Fatalf("access point started before threshold: %d starts", ctl.apStarts)
	}

	m.poll(ctx)
	if got := m.Mode(); got != ModeAccessPoint {
		t.Fatalf("after 5 failures mode = %q, want ap", got)
	}
	if ctl.apStarts != 1 {
		t.Fatalf("apStarts = %d, want 1", ctl.apStarts)
	}

	if v, ok, _ := st.Get(ctx, store.KeyNetworkMode); !ok || v != "ap" {
		t.Fatalf("persisted mode = %q ok=%v, want ap", v, ok)
	}
	if v, _, _ := st.Get(ctx, store.KeyNetworkFallbackCount); v != "1" {
		t.Fatalf("fallback count = %q, want 1", v)
	}
}

func TestSingleSuccessDoesNotRevert(t *testing.T) {
	ctx := context.Background()
	chk := &fakeChecker{healthy: false}
	ctl := &fakeController{}
	m, _ := newTestMonitor(t, Config{FailThreshold: 2, SuccessThreshold: 3}, chk, ctl)

	m.poll(ctx)
	m.poll(ctx)
	if m.Mode() != ModeAccessPoint {
		t.Fatalf("mode = %q, want ap", m.Mode())
	}

	chk.healthy = true
	m.poll(ctx)
	if m.Mode() != ModeAccessPoint {
		t.Fatal("single success reverted to client before streak threshold")
	}
	m.poll(ctx)
	if m.Mode() != ModeAccessPoint {
		t.Fatal("two successes reverted to client before streak threshold")
	}
	m.poll(ctx)
	if m.Mode() != ModeClient {
		t.Fatalf("after success streak mode = %q, want client", m.Mode())
	}
	if ctl.apStops != 1 {
		t.Fatalf("apStops = %d, want 1", ctl.apStops)
	}
	if ctl.reconnects == 0 {
		t.Fatal("no reconnect attempts made while in ap mode")
	}
}

func TestFailureResetsSuccessStreak(t *testing.T) {
	ctx := context.Background()
	chk := &fakeChecker{healthy: false}
	ctl := &fakeController{}
	m, st := newTestMonitor(t, Config{FailThreshold: 1, SuccessThreshold: 2}, chk, ctl)

	m.poll(ctx)
	if m.Mode() != ModeAccessPoint {
		t.Fatalf("mode = %q, want ap", m.Mode())
	}

	chk.healthy = true
	m.poll(ctx)
	chk.healthy = false
	m.poll(ctx) // streak broken
	chk.healthy = true
	m.poll(ctx)
	if m.Mode() != ModeAccessPoint {
		t.Fatal("reverted to client despite broken success streak")
	}
	if v, _, _ := st.Get(ctx, store.KeyNetworkSuccessCount); v != "1" {
		t.Fatalf("success count = %q, want 1", v)
	}

	m.poll(ctx)
	if m.Mode() != ModeClient {
		t.Fatalf("mode = %q, want client", m.Mode())
	}
}

func TestControllerFailureRetriedNextPoll(t *testing.T) {
	ctx := context.Background()
	chk := &fakeChecker{healthy: false}
	ctl := &fakeController{startErr: errors.New("nmcli: device busy")}
	m, _ := newTestMonitor(t, Config{FailThreshold: 2, SuccessThreshold: 3}, chk, ctl)

	m.poll(ctx)
	m.poll(ctx)
	if m.Mode() != ModeClient {
		t.Fatal("mode changed despite controller failure")
	}

	ctl.startErr = nil
	m.poll(ctx)
	if m.Mode() != ModeAccessPoint {
		t.Fatalf("mode = %q after controller recovered, want ap", m.Mode())
	}
	if ctl.apStarts != 2 {
		t.Fatalf("apStarts = %d, want 2 (one failed, one retried)", ctl.apStarts)
	}
}

func TestRestoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	if err := st.Put(ctx, store.KeyNetworkMode, "ap"); err != nil {
		t.Fatal(err)
	}
	if err := st.Put(ctx, store.KeyNetworkSuccessCount, "2"); err != nil {
		t.Fatal(err)
	}

	chk := &fakeChecker{healthy: true}
	ctl := &fakeController{}
	m := NewMonitor(Config{FailThreshold: 3, SuccessThreshold: 3}, clockwork.NewFakeClock(), chk, ctl, st, logx.Nop(), nil)
	m.restore(ctx)

	if m.Mode() != ModeAccessPoint {
		t.Fatalf("restored mode = %q, want ap", m.Mode())
	}
	// One more success completes the streak that was in progress before the
	// restart.
	m.poll(ctx)
	if m.Mode() != ModeClient {
		t.Fatalf("mode = %q, want client", m.Mode())
	}
}

func TestHealthyClientRecordsSSID(t *testing.T) {
	ctx := context.Background()
	chk := &fakeChecker{healthy: true, ssid: "school-lab"}
	ctl := &fakeController{}
	m, st := newTestMonitor(t, Config{}, chk, ctl)

	m.poll(ctx)
	if m.Mode() != ModeClient {
		t.Fatalf("mode = %q, want client", m.Mode())
	}
	if v, _, _ := st.Get(ctx, store.KeyNetworkLastSSID); v != "school-lab" {
		t.Fatalf("last ssid = %q, want school-lab", v)
	}
}
