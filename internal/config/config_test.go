package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const validYAML = `
logging:
  level: info
  console: true
  file:
    enabled: false
    path: ""
store:
  path: /var/lib/belld/state.db
catalog:
  path: /var/lib/belld/catalog.db
scheduler:
  timezone: UTC
audio:
  command: aplay
  announce_timeout: 5s
netwatch:
  enabled: true
  interval: 30s
  fail_threshold: 5
  success_threshold: 3
  ap_ssid: belld-setup
status:
  enabled: true
  addr: 127.0.0.1:8800
`

func TestParseYAML(t *testing.T) {
	m := NewManager(writeConfig(t, "belld.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Store.Path != "/var/lib/belld/state.db" {
		t.Fatalf("store.path = %q", cfg.Store.Path)
	}
	if cfg.Netwatch.FailThreshold != 5 {
		t.Fatalf("netwatch.fail_threshold = %d, want 5", cfg.Netwatch.FailThreshold)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return the committed config")
	}
}

func TestParseRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "belld.yaml", validYAML+"\nbogus_section:\n  x: 1\n")
	if _, err := NewManager(path).Parse(); err == nil {
		t.Fatal("unknown top-level key accepted")
	}
}

func TestParseRejectsBadDuration(t *testing.T) {
	body := strings.Replace(validYAML, "interval: 30s", "interval: thirty", 1)
	if _, err := NewManager(writeConfig(t, "belld.yaml", body)).Parse(); err == nil {
		t.Fatal("invalid duration accepted")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		wantOK bool
	}{
		{"valid", func(c *Config) {}, true},
		{"missing store path", func(c *Config) { c.Store.Path = "" }, false},
		{"memory store needs no path", func(c *Config) { c.Store.Driver = "memory"; c.Store.Path = "" }, true},
		{"missing catalog path", func(c *Config) { c.Catalog.Path = "" }, false},
		{"bad timezone", func(c *Config) { c.Scheduler.Timezone = "Mars/Olympus" }, false},
		{"netwatch without ssid", func(c *Config) { c.Netwatch.APSSID = "" }, false},
		{"netwatch disabled without ssid", func(c *Config) { c.Netwatch.Enabled = false; c.Netwatch.APSSID = "" }, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &Config{
				Store:    StoreConfig{Path: "/tmp/state.db"},
				Catalog:  CatalogConfig{Path: "/tmp/catalog.db"},
				Netwatch: NetwatchConfig{Enabled: true, APSSID: "belld-setup"},
			}
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantOK && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tc.wantOK && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSummarizeChange(t *testing.T) {
	oldCfg := &Config{Store: StoreConfig{Path: "/a"}, Catalog: CatalogConfig{Path: "/c"}}
	newCfg := &Config{Store: StoreConfig{Path: "/b"}, Catalog: CatalogConfig{Path: "/c"},
		Netwatch: NetwatchConfig{Enabled: true}}

	got := SummarizeChange(oldCfg, newCfg)
	want := []string{"netwatch", "store"}
	if len(got) != len(want) {
		t.Fatalf("changed = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("changed = %v, want %v", got, want)
		}
	}

	if ch := SummarizeChange(newCfg, newCfg); len(ch) != 0 {
		t.Fatalf("identical configs reported changes: %v", ch)
	}
}

func TestSubscribePublish(t *testing.T) {
	m := NewManager(writeConfig(t, "belld.yaml", validYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatal(err)
	}

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	m.publish(cfg)
	select {
	case got := <-ch:
		if got != cfg {
			t.Fatal("subscriber got a different snapshot")
		}
	default:
		t.Fatal("nothing published")
	}
}
