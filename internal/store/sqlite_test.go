package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	logx "schoolbell/pkg/logx"
)

func TestSQLiteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(Config{Driver: "sqlite", Path: filepath.Join(dir, "state.db"), BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()

	if _, ok, err := st.Get(ctx, KeyCheckpointLastMinute); err != nil || ok {
		t.Fatalf("expected missing key, got ok=%v err=%v", ok, err)
	}

	if err := st.Put(ctx, KeyCheckpointLastMinute, "29876543"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, ok, err := st.Get(ctx, KeyCheckpointLastMinute)
	if err != nil || !ok {
		t.Fatalf("Get after Put: ok=%v err=%v", ok, err)
	}
	if v != "29876543" {
		t.Fatalf("value = %q, want 29876543", v)
	}

	// Overwrite must win.
	if err := st.Put(ctx, KeyCheckpointLastMinute, "29876544"); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	v, _, _ = st.Get(ctx, KeyCheckpointLastMinute)
	if v != "29876544" {
		t.Fatalf("value after overwrite = %q", v)
	}

	if err := st.Delete(ctx, KeyCheckpointLastMinute); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := st.Get(ctx, KeyCheckpointLastMinute); ok {
		t.Fatal("key still present after Delete")
	}
}

func TestSQLiteSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.db")
	ctx := context.Background()

	st, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := st.Put(ctx, KeyNetworkMode, "ap"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st2, err := Open(Config{Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer st2.Close()
	v, ok, err := st2.Get(ctx, KeyNetworkMode)
	if err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
	if v != "ap" {
		t.Fatalf("value after reopen = %q, want ap", v)
	}
}

func TestSQLiteAppendEvent(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(Config{Path: filepath.Join(dir, "state.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	err = st.AppendEvent(context.Background(), Event{
		Component: "netwatch",
		Action:    "mode_transition",
		Target:    "ap",
		OK:        true,
		Detail:    "fail_count=3",
	})
	if err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Put(ctx, "a", "1"); err != nil {
		t.Fatalf("Put: %v", err)
	}
	v, ok, _ := m.Get(ctx, "a")
	if !ok || v != "1" {
		t.Fatalf("Get = (%q,%v)", v, ok)
	}
	_ = m.AppendEvent(ctx, Event{Component: "test", Action: "x"})
	if len(m.Events()) != 1 {
		t.Fatalf("events = %d, want 1", len(m.Events()))
	}
	_ = m.Close()
	if _, _, err := m.Get(ctx, "a"); err == nil {
		t.Fatal("expected ErrUnavailable after Close")
	}
}
