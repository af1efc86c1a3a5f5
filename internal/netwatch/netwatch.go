// Package netwatch keeps an embedded device reachable: it polls network
// health and, when the uplink stays down, switches the host into a local
// access point so operators can still reach the web layer on-site.
package netwatch

import (
	"context"
	"time"
)

// Mode is the device's network posture.
type Mode string

const (
	// ModeClient means the device is (or should be) joined to the
	// configured wireless network.
	ModeClient Mode = "client"
	// ModeAccessPoint means the device serves its own fallback network.
	ModeAccessPoint Mode = "ap"
)

// Checker probes network health. Implementations must be cheap enough to run
// every poll interval and must respect ctx deadlines.
type Checker interface {
	// LinkUp reports whether the network interface has a carrier.
	LinkUp(ctx context.Context) (bool, error)
	// InternetReachable reports whether traffic actually flows upstream.
	// Only consulted when the link is up.
	InternetReachable(ctx context.Context) error
	// CurrentSSID returns the associated network name, empty when unknown.
	CurrentSSID(ctx context.Context) string
}

// Controller switches the host between client and access-point posture.
// Calls must be idempotent: the monitor retries a failed switch on the next
// poll without tracking whether the previous attempt half-completed.
type Controller interface {
	StartAccessPoint(ctx context.Context) error
	StopAccessPoint(ctx context.Context) error
	// Reconnect asks the OS to rejoin the configured client network.
	Reconnect(ctx context.Context) error
}

// Config tunes the monitor's hysteresis.
type Config struct {
	// Interval between health polls. Independent of, and typically shorter
	// than, the scheduler's minute tick.
	Interval time.Duration `json:"interval"`
	// FailThreshold is the number of consecutive failed polls before
	// falling back to access-point mode.
	FailThreshold int `json:"fail_threshold"`
	// SuccessThreshold is the number of consecutive successful probes,
	// while in access-point mode, before switching back to client mode.
	SuccessThreshold int `json:"success_threshold"`
	// ProbeTimeout bounds a single poll.
	ProbeTimeout time.Duration `json:"probe_timeout"`
	// ProbeAddr is the TCP address dialed to verify upstream reachability.
	ProbeAddr string `json:"probe_addr"`
	// Interface is the wireless interface under watch.
	Interface string `json:"interface"`
	// APSSID and APPassword configure the fallback network.
	APSSID     string `json:"ap_ssid"`
	APPassword string `json:"ap_password"`
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Interval <= 0 {
		out.Interval = 30 * time.Second
	}
	if out.FailThreshold <= 0 {
		out.FailThreshold = 3
	}
	if out.SuccessThreshold <= 0 {
		out.SuccessThreshold = 3
	}
	if out.ProbeTimeout <= 0 {
		out.ProbeTimeout = 5 * time.Second
	}
	if out.ProbeAddr == "" {
		out.ProbeAddr = "1.1.1.1:53"
	}
	if out.Interface == "" {
		out.Interface = "wlan0"
	}
	return out
}
