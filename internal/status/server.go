// Package status is the daemon's operational HTTP surface: liveness, a JSON
// status document the web layer polls, Prometheus metrics, and optional pprof.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	hpprof "net/http/pprof"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"schoolbell/internal/audio"
	"schoolbell/internal/metrics"
	"schoolbell/internal/netwatch"
	rtsup "schoolbell/internal/runtime/supervisor"
	"schoolbell/internal/scheduler"
	logx "schoolbell/pkg/logx"
)

type Config struct {
	Addr  string // default "127.0.0.1:8800"
	Pprof bool

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Sources are the live views the status document is assembled from.
// Nil members render as absent sections.
type Sources struct {
	Playback   func() audio.Snapshot
	Network    func() netwatch.Status
	Scheduler  func(ctx context.Context) scheduler.Status
	Supervisor func() rtsup.Snapshot
}

type Server struct {
	cfg     Config
	runID   string
	started time.Time
	src     Sources
	met     *metrics.Metrics
	log     logx.Logger
}

func NewServer(cfg Config, runID string, src Sources, met *metrics.Metrics, log logx.Logger) *Server {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:8800"
	}
	return &Server{cfg: cfg, runID: runID, started: time.Now(), src: src, met: met, log: log}
}

// Run serves until ctx is canceled. Intended to run under the app supervisor's
// restart loop, so a listen failure is returned rather than retried here.
func (s *Server) Run(ctx context.Context) error {
	if !isLoopbackAddr(s.cfg.Addr) {
		// No auth on this surface; off-host binds are an operator decision
		// worth a loud line.
		s.log.Warn("status server bound to non-loopback address", logx.String("addr", s.cfg.Addr))
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:      s.mux(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(cctx)
		cancel()
	}()

	s.log.Info("status server started", logx.String("addr", ln.Addr().String()), logx.Bool("pprof", s.cfg.Pprof))
	err = srv.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) || ctx.Err() != nil {
		s.log.Info("status server stopped")
		return ctx.Err()
	}
	return err
}

func (s *Server) mux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/status", s.handleStatus)

	if s.met != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(s.met.Registry, promhttp.HandlerOpts{}))
	}

	if s.cfg.Pprof {
		mux.HandleFunc("/debug/pprof/", hpprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", hpprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", hpprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", hpprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", hpprof.Trace)
	}

	return mux
}

// document is the /status payload. Field names are stable: the web layer's
// "now playing" indicator and network banner parse them.
type document struct {
	RunID    string `json:"run_id"`
	Uptime   string `json:"uptime"`
	Playback any    `json:"playback,omitempty"`
	Network  any    `json:"network,omitempty"`
	Schedule any    `json:"scheduler,omitempty"`
	Tasks    any    `json:"tasks,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	doc := document{
		RunID:  s.runID,
		Uptime: time.Since(s.started).Round(time.Second).String(),
	}
	if s.src.Playback != nil {
		doc.Playback = s.src.Playback()
	}
	if s.src.Network != nil {
		doc.Network = s.src.Network()
	}
	if s.src.Scheduler != nil {
		doc.Schedule = s.src.Scheduler(r.Context())
	}
	if s.src.Supervisor != nil {
		doc.Tasks = s.src.Supervisor()
	}

	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		s.log.Debug("status encode failed", logx.Err(err))
	}
}

func isLoopbackAddr(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		host = addr
	}
	if host == "" || strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
