package store

import (
	"errors"
	"time"
)

var (
	// ErrUnavailable is returned when the store handle has been closed.
	ErrUnavailable = errors.New("store unavailable")
)

// Config configures the persistent state store.
//
// Driver values:
//   - "sqlite": SQLite database file (default)
//   - "memory": volatile in-process store; useful for tests and dry runs,
//     but offers no restart safety and should never be used on a real device.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Well-known key namespaces. Each component owns its prefix exclusively;
// there is no cross-component write contention on shared keys.
const (
	KeyCheckpointLastMinute = "checkpoint.last_minute"
	KeyCheckpointFired      = "checkpoint.fired"

	KeyPlaybackState    = "playback.state"
	KeyPlaybackSession  = "playback.session"
	KeyPlaybackSchedule = "playback.schedule"

	KeyNetworkFailCount      = "network.fail_count"
	KeyNetworkMode           = "network.mode"
	KeyNetworkLastTransition = "network.last_transition"
	KeyNetworkSuccessCount   = "network.success_count"
	KeyNetworkFallbackCount  = "network.fallback_count"
	KeyNetworkLastSSID       = "network.last_ssid"
)

// Event records something the daemon did: a playback, a skipped step,
// a network mode transition. Keep it compact and schema-stable.
type Event struct {
	At        time.Time
	Component string
	Action    string
	Target    string
	OK        bool
	Error     string
	Detail    string
}
