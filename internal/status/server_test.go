package status

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"schoolbell/internal/audio"
	"schoolbell/internal/metrics"
	"schoolbell/internal/netwatch"
	"schoolbell/internal/scheduler"
	logx "schoolbell/pkg/logx"
)

func testServer() *Server {
	src := Sources{
		Playback: func() audio.Snapshot {
			return audio.Snapshot{State: audio.StatePlaying, Session: 7, ScheduleID: 3}
		},
		Network: func() netwatch.Status {
			return netwatch.Status{Mode: netwatch.ModeClient}
		},
		Scheduler: func(ctx context.Context) scheduler.Status {
			return scheduler.Status{LastMinute: 29555310, Timezone: "UTC"}
		},
	}
	return NewServer(Config{}, "run-123", src, metrics.New(), logx.Nop())
}

func TestStatusDocument(t *testing.T) {
	rec := httptest.NewRecorder()
	testServer().handleStatus(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("code = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content-type = %q", ct)
	}

	var doc struct {
		RunID    string `json:"run_id"`
		Playback struct {
			State      string `json:"state"`
			Session    uint64 `json:"session"`
			ScheduleID int64  `json:"schedule_id"`
		} `json:"playback"`
		Network struct {
			Mode string `json:"mode"`
		} `json:"network"`
		Scheduler struct {
			LastMinute int64  `json:"last_minute"`
			Timezone   string `json:"timezone"`
		} `json:"scheduler"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc.RunID != "run-123" {
		t.Fatalf("run_id = %q", doc.RunID)
	}
	if doc.Playback.State != "playing" || doc.Playback.ScheduleID != 3 {
		t.Fatalf("playback = %+v", doc.Playback)
	}
	if doc.Network.Mode != "client" {
		t.Fatalf("network.mode = %q", doc.Network.Mode)
	}
	if doc.Scheduler.LastMinute != 29555310 {
		t.Fatalf("scheduler.last_minute = %d", doc.Scheduler.LastMinute)
	}
}

func TestRoutes(t *testing.T) {
	mux := testServer().mux()

	for _, tc := range []struct {
		path string
		want int
	}{
		{"/healthz", http.StatusOK},
		{"/status", http.StatusOK},
		{"/metrics", http.StatusOK},
		{"/debug/pprof/", http.StatusNotFound}, // pprof disabled by default
	} {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		if rec.Code != tc.want {
			t.Fatalf("%s: code = %d, want %d", tc.path, rec.Code, tc.want)
		}
	}
}

func TestPprofRoutesWhenEnabled(t *testing.T) {
	s := NewServer(Config{Pprof: true}, "run", Sources{}, nil, logx.Nop())
	rec := httptest.NewRecorder()
	s.mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("pprof index code = %d", rec.Code)
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	cases := []struct {
		addr string
		want bool
	}{
		{"127.0.0.1:8800", true},
		{"localhost:8800", true},
		{"[::1]:8800", true},
		{":8800", true},
		{"0.0.0.0:8800", false},
		{"192.168.1.20:8800", false},
	}
	for _, tc := range cases {
		if got := isLoopbackAddr(tc.addr); got != tc.want {
			t.Fatalf("isLoopbackAddr(%q) = %v, want %v", tc.addr, got, tc.want)
		}
	}
}
