package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the daemon's on-disk configuration (YAML or JSON).
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Store     StoreConfig     `json:"store"`
	Catalog   CatalogConfig   `json:"catalog"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Audio     AudioConfig     `json:"audio"`
	Timevoice TimevoiceConfig `json:"timevoice,omitempty"`
	Netwatch  NetwatchConfig  `json:"netwatch,omitempty"`
	Status    StatusConfig    `json:"status,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StoreConfig controls the persistent state store. Unlike most sections it has
// no "disabled" form: the daemon refuses to start without durable checkpoints.
type StoreConfig struct {
	Driver      string `json:"driver,omitempty"` // default "sqlite"
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// CatalogConfig points at the schedule database maintained by the web layer.
type CatalogConfig struct {
	Path string `json:"path"`
}

type SchedulerConfig struct {
	// Timezone for schedule matching, e.g. "Asia/Bangkok".
	// Empty means the host's local zone.
	Timezone string `json:"timezone,omitempty"`
}

// AudioConfig controls the playback device.
type AudioConfig struct {
	// Command is the external player binary (default "aplay"). Args are
	// prepended before the clip path.
	Command string   `json:"command,omitempty"`
	Args    []string `json:"args,omitempty"`
	// AnnounceTimeout bounds the spoken-time lookup per schedule.
	AnnounceTimeout string `json:"announce_timeout,omitempty"`
}

// TimevoiceConfig points at the pre-recorded announcement sound bank.
type TimevoiceConfig struct {
	Dir string `json:"dir,omitempty"`
	Ext string `json:"ext,omitempty"` // default "wav"
}

type NetwatchConfig struct {
	Enabled          bool   `json:"enabled"`
	Interval         string `json:"interval,omitempty"`
	FailThreshold    int    `json:"fail_threshold,omitempty"`
	SuccessThreshold int    `json:"success_threshold,omitempty"`
	ProbeTimeout     string `json:"probe_timeout,omitempty"`
	ProbeAddr        string `json:"probe_addr,omitempty"`
	Interface        string `json:"interface,omitempty"`
	APSSID           string `json:"ap_ssid,omitempty"`
	APPassword       string `json:"ap_password,omitempty"`
}

// StatusConfig controls the operational HTTP server.
//
// Security note:
//   - Prefer binding to localhost (e.g. "127.0.0.1:8800"); the web layer
//     proxies from there.
type StatusConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:8800"
	Pprof   bool   `json:"pprof,omitempty"`

	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// Validate checks the parts that cannot be defaulted away.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Store.Path) == "" && !strings.EqualFold(c.Store.Driver, "memory") {
		return fmt.Errorf("store.path is required")
	}
	if strings.TrimSpace(c.Catalog.Path) == "" {
		return fmt.Errorf("catalog.path is required")
	}
	if tz := strings.TrimSpace(c.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: %w", err)
		}
	}
	if c.Netwatch.Enabled && strings.TrimSpace(c.Netwatch.APSSID) == "" {
		return fmt.Errorf("netwatch.ap_ssid is required when netwatch is enabled")
	}
	// Duration strings fail here rather than deep inside a component.
	for _, f := range []struct{ path, raw string }{
		{"store.busy_timeout", c.Store.BusyTimeout},
		{"audio.announce_timeout", c.Audio.AnnounceTimeout},
		{"netwatch.interval", c.Netwatch.Interval},
		{"netwatch.probe_timeout", c.Netwatch.ProbeTimeout},
		{"status.read_timeout", c.Status.ReadTimeout},
		{"status.write_timeout", c.Status.WriteTimeout},
		{"status.idle_timeout", c.Status.IdleTimeout},
	} {
		if _, err := ParseDurationField(f.path, f.raw); err != nil {
			return err
		}
	}
	return nil
}
