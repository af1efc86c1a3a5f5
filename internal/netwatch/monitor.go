package netwatch

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"schoolbell/internal/metrics"
	"schoolbell/internal/store"
	logx "schoolbell/pkg/logx"
)

// Monitor is the network health state machine: Client ⇄ AccessPoint with
// hysteresis in both directions. A single bad (or good) sample never causes
// a transition; only a consecutive streak crossing the configured threshold
// does. Counters and mode survive restarts via the store.
type Monitor struct {
	cfg     Config
	clock   clockwork.Clock
	checker Checker
	ctrl    Controller
	store   store.Store
	log     logx.Logger
	met     *metrics.Metrics

	// probe failures are expected during an outage; don't flood the log.
	failWarn *rate.Limiter

	mu        sync.Mutex
	mode      Mode
	failures  int
	successes int
	lastErr   string
}

func NewMonitor(cfg Config, clock clockwork.Clock, checker Checker, ctrl Controller, st store.Store, log logx.Logger, met *metrics.Metrics) *Monitor {
	return &Monitor{
		cfg:      cfg.withDefaults(),
		clock:    clock,
		checker:  checker,
		ctrl:     ctrl,
		store:    st,
		log:      log,
		met:      met,
		failWarn: rate.NewLimiter(rate.Every(5*time.Minute), 3),
		mode:     ModeClient,
	}
}

// Run polls until ctx is canceled. The first poll happens after one interval,
// not immediately: give the OS a moment to settle after boot.
func (m *Monitor) Run(ctx context.Context) error {
	m.restore(ctx)
	m.log.Info("network monitor started",
		logx.Duration("interval", m.cfg.Interval),
		logx.Int("fail_threshold", m.cfg.FailThreshold),
		logx.Int("success_threshold", m.cfg.SuccessThreshold),
		logx.String("mode", string(m.Mode())))

	for {
		select {
		case <-ctx.Done():
			m.log.Info("network monitor stopped")
			return ctx.Err()
		case <-m.clock.After(m.cfg.Interval):
			m.poll(ctx)
		}
	}
}

// restore reloads persisted mode and counters so a restart mid-outage does
// not reset the hysteresis streak to zero.
func (m *Monitor) restore(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok, err := m.store.Get(ctx, store.KeyNetworkMode); err == nil && ok && Mode(v) == ModeAccessPoint {
		m.mode = ModeAccessPoint
	}
	if v, ok, err := m.store.Get(ctx, store.KeyNetworkFailCount); err == nil && ok {
		if n, perr := strconv.Atoi(v); perr == nil && n >= 0 {
			m.failures = n
		}
	}
	if v, ok, err := m.store.Get(ctx, store.KeyNetworkSuccessCount); err == nil && ok {
		if n, perr := strconv.Atoi(v); perr == nil && n >= 0 {
			m.successes = n
		}
	}
	m.met.SetMode(m.mode == ModeAccessPoint)
}

// poll takes one sample and applies the hysteresis rules. Never returns an
// error: a monitor failure must not propagate beyond a log line.
func (m *Monitor) poll(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
	healthy := m.probe(pctx)
	cancel()

	m.mu.Lock()
	mode := m.mode
	m.mu.Unlock()

	switch mode {
	case ModeClient:
		if healthy {
			m.resetFailures(ctx)
			if ssid := m.checker.CurrentSSID(ctx); ssid != "" {
				m.putQuiet(ctx, store.KeyNetworkLastSSID, ssid)
			}
			return
		}
		n := m.bumpFailures(ctx)
		m.met.IncProbeFailure()
		if m.failWarn.Allow() {
			m.log.Warn("network probe failed",
				logx.Int("consecutive", n), logx.Int("threshold", m.cfg.FailThreshold),
				logx.String("last_error", m.lastError()))
		}
		if n >= m.cfg.FailThreshold {
			m.toAccessPoint(ctx)
		}

	case ModeAccessPoint:
		// Try to rejoin the real network before probing; a failed attempt
		// just means we stay in AP mode for another interval.
		rctx, rcancel := context.WithTimeout(ctx, m.cfg.ProbeTimeout)
		if err := m.ctrl.Reconnect(rctx); err != nil {
			m.log.Debug("reconnect attempt failed", logx.Err(err))
		}
		rcancel()
		if !healthy {
			m.resetSuccesses(ctx)
			return
		}
		n := m.bumpSuccesses(ctx)
		m.log.Info("network recovering",
			logx.Int("consecutive", n), logx.Int("threshold", m.cfg.SuccessThreshold))
		if n >= m.cfg.SuccessThreshold {
			m.toClient(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) bool {
	up, err := m.checker.LinkUp(ctx)
	if err != nil {
		m.setLastError("link check: " + err.Error())
		return false
	}
	if !up {
		m.setLastError("no carrier")
		return false
	}
	if err := m.checker.InternetReachable(ctx); err != nil {
		m.setLastError("probe: " + err.Error())
		return false
	}
	m.setLastError("")
	return true
}

// toAccessPoint performs the Client → AccessPoint transition. A controller
// failure leaves the mode unchanged; the threshold is still met next poll,
// so the switch is retried until it sticks.
func (m *Monitor) toAccessPoint(ctx context.Context) {
	if err := m.ctrl.StartAccessPoint(ctx); err != nil {
		m.log.Error("starting access point failed", logx.Err(err))
		m.recordEvent(ctx, "ap_start_failed", false, err.Error())
		return
	}
	m.mu.Lock()
	m.mode = ModeAccessPoint
	m.successes = 0
	m.mu.Unlock()

	m.persistTransition(ctx, ModeAccessPoint)
	m.bumpFallbackCount(ctx)
	m.met.IncTransition(string(ModeAccessPoint))
	m.met.SetMode(true)
	m.log.Warn("network fallback: access point mode",
		logx.String("ssid", m.cfg.APSSID))
	m.recordEvent(ctx, "fallback_to_ap", true, "")
}

func (m *Monitor) toClient(ctx context.Context) {
	if err := m.ctrl.StopAccessPoint(ctx); err != nil {
		m.log.Error("stopping access point failed", logx.Err(err))
		m.recordEvent(ctx, "ap_stop_failed", false, err.Error())
		return
	}
	m.mu.Lock()
	m.mode = ModeClient
	m.failures = 0
	m.successes = 0
	m.mu.Unlock()

	m.persistTransition(ctx, ModeClient)
	m.putQuiet(ctx, store.KeyNetworkFailCount, "0")
	m.putQuiet(ctx, store.KeyNetworkSuccessCount, "0")
	m.met.IncTransition(string(ModeClient))
	m.met.SetMode(false)
	m.log.Info("network recovered: client mode")
	m.recordEvent(ctx, "recovered_to_client", true, "")
}

func (m *Monitor) bumpFailures(ctx context.Context) int {
	m.mu.Lock()
	m.failures++
	n := m.failures
	m.mu.Unlock()
	m.putQuiet(ctx, store.KeyNetworkFailCount, strconv.Itoa(n))
	return n
}

func (m *Monitor) resetFailures(ctx context.Context) {
	m.mu.Lock()
	changed := m.failures != 0
	m.failures = 0
	m.mu.Unlock()
	if changed {
		m.putQuiet(ctx, store.KeyNetworkFailCount, "0")
	}
}

func (m *Monitor) bumpSuccesses(ctx context.Context) int {
	m.mu.Lock()
	m.successes++
	n := m.successes
	m.mu.Unlock()
	m.putQuiet(ctx, store.KeyNetworkSuccessCount, strconv.Itoa(n))
	return n
}

func (m *Monitor) resetSuccesses(ctx context.Context) {
	m.mu.Lock()
	changed := m.successes != 0
	m.successes = 0
	m.mu.Unlock()
	if changed {
		m.putQuiet(ctx, store.KeyNetworkSuccessCount, "0")
	}
}

func (m *Monitor) bumpFallbackCount(ctx context.Context) {
	n := 0
	if v, ok, err := m.store.Get(ctx, store.KeyNetworkFallbackCount); err == nil && ok {
		if p, perr := strconv.Atoi(v); perr == nil {
			n = p
		}
	}
	m.putQuiet(ctx, store.KeyNetworkFallbackCount, strconv.Itoa(n+1))
}

func (m *Monitor) persistTransition(ctx context.Context, to Mode) {
	m.putQuiet(ctx, store.KeyNetworkMode, string(to))
	m.putQuiet(ctx, store.KeyNetworkLastTransition, m.clock.Now().Format(time.RFC3339))
}

// putQuiet writes a counter key; the store is the durability layer, not a
// hard dependency of the sampling loop, so failures degrade to a debug line.
func (m *Monitor) putQuiet(ctx context.Context, key, value string) {
	if err := m.store.Put(ctx, key, value); err != nil {
		m.log.Debug("persisting network state failed", logx.String("key", key), logx.Err(err))
	}
}

func (m *Monitor) recordEvent(ctx context.Context, action string, ok bool, errMsg string) {
	e := store.Event{Component: "netwatch", Action: action, Target: m.cfg.Interface, OK: ok, Error: errMsg}
	if err := m.store.AppendEvent(ctx, e); err != nil {
		m.log.Debug("event append failed", logx.Err(err))
	}
}

func (m *Monitor) setLastError(s string) {
	m.mu.Lock()
	m.lastErr = s
	m.mu.Unlock()
}

func (m *Monitor) lastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Mode returns the current posture.
func (m *Monitor) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Status is the monitor's contribution to the /status payload.
type Status struct {
	Mode      Mode   `json:"mode"`
	Failures  int    `json:"consecutive_failures"`
	Successes int    `json:"consecutive_successes"`
	LastError string `json:"last_error,omitempty"`
}

func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{Mode: m.mode, Failures: m.failures, Successes: m.successes, LastError: m.lastErr}
}
