package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"schoolbell/internal/config"
	logx "schoolbell/pkg/logx"
)

func TestApplyConfigSwapsLogging(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "belld.log")

	logs, _ := logx.New(logx.Config{Level: "info"})
	defer logs.Close()
	a := &App{logs: logs, log: logx.Nop()}

	next := &config.Config{}
	next.Logging.Level = "debug"
	next.Logging.File.Enabled = true
	next.Logging.File.Path = logFile

	a.applyConfig(&config.Config{}, next)

	logs.Logger().Debug("reload check")

	b, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(b), "reload check") {
		t.Fatalf("debug line missing from reconfigured log output: %q", b)
	}
}

func TestReloadLoopAppliesPublishedConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "belld.yaml")
	raw := "store:\n  path: " + filepath.Join(dir, "state.db") +
		"\ncatalog:\n  path: " + filepath.Join(dir, "alarm.db") + "\n"
	if err := os.WriteFile(cfgPath, []byte(raw), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	m := config.NewManager(cfgPath)
	base, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	logs, _ := logx.New(logx.Config{Level: "info"})
	defer logs.Close()
	a := &App{cfgm: m, logs: logs, log: logx.Nop()}

	sub := m.Subscribe(4)
	defer m.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.reloadLoop(ctx, sub)
	}()

	logFile := filepath.Join(dir, "belld.log")
	next := *base
	next.Logging.Level = "debug"
	next.Logging.File.Enabled = true
	next.Logging.File.Path = logFile
	sub <- &next

	// Apply opens the log file; wait for it to appear.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := os.Stat(logFile); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("published config never applied to logging")
		}
		time.Sleep(5 * time.Millisecond)
	}

	logs.Logger().Debug("post reload")
	b, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(b), "post reload") {
		t.Fatalf("log output not redirected after reload: %q", b)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reload loop did not exit on cancel")
	}
}

func TestValidateEnvironment(t *testing.T) {
	a := &App{}
	ctx := context.Background()

	if err := a.validateEnvironment(ctx, &config.Config{}); err != nil {
		t.Fatalf("empty config rejected: %v", err)
	}

	bad := &config.Config{}
	bad.Audio.Command = "belld-no-such-player"
	if err := a.validateEnvironment(ctx, bad); err == nil {
		t.Fatal("unresolvable player binary accepted")
	}

	miss := &config.Config{}
	miss.Timevoice.Dir = filepath.Join(t.TempDir(), "missing")
	if err := a.validateEnvironment(ctx, miss); err == nil {
		t.Fatal("missing voice bank directory accepted")
	}

	ok := &config.Config{}
	ok.Timevoice.Dir = t.TempDir()
	if err := a.validateEnvironment(ctx, ok); err != nil {
		t.Fatalf("existing voice bank directory rejected: %v", err)
	}
}
