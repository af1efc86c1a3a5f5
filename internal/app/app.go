// Package app is the composition root: it maps config onto components and
// runs them under one supervisor with ordered shutdown.
package app

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"schoolbell/internal/audio"
	"schoolbell/internal/catalog"
	"schoolbell/internal/config"
	"schoolbell/internal/metrics"
	"schoolbell/internal/netwatch"
	rtsup "schoolbell/internal/runtime/supervisor"
	"schoolbell/internal/scheduler"
	"schoolbell/internal/status"
	"schoolbell/internal/store"
	"schoolbell/internal/timevoice"
	logx "schoolbell/pkg/logx"
)

type Options struct {
	ConfigPath string
	// DisableNetwatch turns network monitoring off regardless of config
	// (the --no-netwatch flag; used on wired installs and in development).
	DisableNetwatch bool
}

type App struct {
	runID string

	cfgm *config.Manager
	sup  *rtsup.Supervisor

	log  logx.Logger
	logs *logx.Service
	met  *metrics.Metrics

	store   store.Store
	catalog *catalog.SQLite
	player  *audio.Player
	orch    *scheduler.Orchestrator
	monitor *netwatch.Monitor
	status  *status.Server

	netwatchOn bool
	statusOn   bool
}

func New(opts Options) (*App, error) {
	cfgm := config.NewManager(opts.ConfigPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logSvc, log := logx.New(mapLoggingConfig(cfg))
	runID := uuid.NewString()
	log = log.With(logx.String("run_id", runID))

	met := metrics.New()

	// Persistence is mandatory: without a durable checkpoint a crash could
	// re-fire bells, so an open failure aborts startup.
	busyTimeout, err := config.ParseDurationField("store.busy_timeout", cfg.Store.BusyTimeout)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(store.Config{
		Driver:      cfg.Store.Driver,
		Path:        cfg.Store.Path,
		BusyTimeout: busyTimeout,
	}, log.With(logx.String("comp", "store")))
	if err != nil {
		return nil, fmt.Errorf("opening state store: %w", err)
	}

	cat, err := catalog.OpenSQLite(catalog.SQLiteConfig{Path: cfg.Catalog.Path, BusyTimeout: busyTimeout})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("opening schedule catalog: %w", err)
	}

	device := audio.NewExecDevice(cfg.Audio.Command, cfg.Audio.Args, log.With(logx.String("comp", "device")))
	player := audio.NewPlayer(device, st, log.With(logx.String("comp", "player")), met)

	var teller timevoice.Teller
	if cfg.Timevoice.Dir != "" {
		teller = timevoice.NewSoundBank(cfg.Timevoice.Dir, cfg.Timevoice.Ext)
	}
	announceTimeout, err := config.ParseDurationOrDefault("audio.announce_timeout", cfg.Audio.AnnounceTimeout, 5*time.Second)
	if err != nil {
		_ = cat.Close()
		_ = st.Close()
		return nil, err
	}
	seq := audio.NewSequencer(cat, teller, announceTimeout, log.With(logx.String("comp", "sequencer")), met)

	clock := clockwork.NewRealClock()
	orch, err := scheduler.NewOrchestrator(scheduler.Config{Timezone: cfg.Scheduler.Timezone},
		clock, cat, seq, player, st, log.With(logx.String("comp", "scheduler")), met)
	if err != nil {
		_ = cat.Close()
		_ = st.Close()
		return nil, err
	}

	a := &App{
		runID:   runID,
		cfgm:    cfgm,
		log:     log.With(logx.String("comp", "app")),
		logs:    logSvc,
		met:     met,
		store:   st,
		catalog: cat,
		player:  player,
		orch:    orch,
	}

	a.netwatchOn = cfg.Netwatch.Enabled && !opts.DisableNetwatch
	if a.netwatchOn {
		ncfg, err := mapNetwatchConfig(cfg)
		if err != nil {
			_ = cat.Close()
			_ = st.Close()
			return nil, err
		}
		netLog := log.With(logx.String("comp", "netwatch"))
		osnet := netwatch.NewOSNetwork(ncfg, netLog)
		a.monitor = netwatch.NewMonitor(ncfg, clock, osnet, osnet, st, netLog, met)
	} else if cfg.Netwatch.Enabled {
		log.Info("network monitoring disabled by flag")
	}

	a.statusOn = cfg.Status.Enabled
	if a.statusOn {
		scfg, err := mapStatusConfig(cfg)
		if err != nil {
			_ = cat.Close()
			_ = st.Close()
			return nil, err
		}
		a.status = status.NewServer(scfg, runID, status.Sources{
			Playback: player.Snapshot,
			Network:  a.networkStatus,
			Scheduler: func(ctx context.Context) scheduler.Status {
				return orch.Status(ctx)
			},
			Supervisor: a.supervisorSnapshot,
		}, met, log.With(logx.String("comp", "status")))
	}

	return a, nil
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapNetwatchConfig(cfg *config.Config) (netwatch.Config, error) {
	interval, err := config.ParseDurationOrDefault("netwatch.interval", cfg.Netwatch.Interval, 30*time.Second)
	if err != nil {
		return netwatch.Config{}, err
	}
	probeTimeout, err := config.ParseDurationOrDefault("netwatch.probe_timeout", cfg.Netwatch.ProbeTimeout, 5*time.Second)
	if err != nil {
		return netwatch.Config{}, err
	}
	return netwatch.Config{
		Interval:         interval,
		FailThreshold:    cfg.Netwatch.FailThreshold,
		SuccessThreshold: cfg.Netwatch.SuccessThreshold,
		ProbeTimeout:     probeTimeout,
		ProbeAddr:        cfg.Netwatch.ProbeAddr,
		Interface:        cfg.Netwatch.Interface,
		APSSID:           cfg.Netwatch.APSSID,
		APPassword:       cfg.Netwatch.APPassword,
	}, nil
}

func mapStatusConfig(cfg *config.Config) (status.Config, error) {
	read, err := config.ParseDurationField("status.read_timeout", cfg.Status.ReadTimeout)
	if err != nil {
		return status.Config{}, err
	}
	write, err := config.ParseDurationField("status.write_timeout", cfg.Status.WriteTimeout)
	if err != nil {
		return status.Config{}, err
	}
	idle, err := config.ParseDurationField("status.idle_timeout", cfg.Status.IdleTimeout)
	if err != nil {
		return status.Config{}, err
	}
	return status.Config{
		Addr:         cfg.Status.Addr,
		Pprof:        cfg.Status.Pprof,
		ReadTimeout:  read,
		WriteTimeout: write,
		IdleTimeout:  idle,
	}, nil
}

func (a *App) networkStatus() netwatch.Status {
	if a.monitor == nil {
		return netwatch.Status{Mode: netwatch.ModeClient}
	}
	return a.monitor.Status()
}

func (a *App) supervisorSnapshot() rtsup.Snapshot {
	if a.sup == nil {
		return rtsup.Snapshot{}
	}
	return a.sup.TakeSnapshot()
}

// Start launches all services under a fresh supervisor bound to ctx.
func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.New(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	a.cfgm.SetLogger(a.log.With(logx.String("comp", "config")))
	// Transactional reload: environment checks the schema validation cannot
	// do. A reload pointing at a player binary or voice bank that is not on
	// this box is rejected before commit.
	a.cfgm.SetValidator(a.validateEnvironment)
	a.sup.Go0("config.watch", func(c context.Context) {
		_ = a.cfgm.Watch(c)
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})

	a.sup.Go("scheduler.run", a.orch.Run)

	if a.monitor != nil {
		a.sup.Go("netwatch.run", a.monitor.Run)
	}

	if a.status != nil {
		// The status server self-heals: the web layer polls it and a bind
		// race at boot (address still held by a dying predecessor) resolves
		// on retry.
		a.sup.GoRestart("status.serve", a.status.Run,
			rtsup.WithPublishFirstError(false),
			rtsup.WithRestartBackoff(500*time.Millisecond, 10*time.Second))
	}

	a.log.Info("belld started",
		logx.String("run_id", a.runID),
		logx.Bool("netwatch", a.monitor != nil),
		logx.Bool("status", a.status != nil))
	return nil
}

func (a *App) validateEnvironment(_ context.Context, cfg *config.Config) error {
	if cmd := strings.TrimSpace(cfg.Audio.Command); cmd != "" {
		if _, err := exec.LookPath(cmd); err != nil {
			return fmt.Errorf("audio.command: %w", err)
		}
	}
	if dir := strings.TrimSpace(cfg.Timevoice.Dir); dir != "" {
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("timevoice.dir: %w", err)
		}
	}
	return nil
}

// reloadLoop applies committed config changes to the running process.
// Logging swaps live; everything else is built once in New, so a change
// there gets a restart-required warning instead of a partial apply.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	last := a.cfgm.Get()
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: only the newest snapshot matters.
			for drained := false; !drained; {
				select {
				case newer, ok := <-sub:
					if !ok {
						drained = true
					} else if newer != nil {
						cfg = newer
					}
				default:
					drained = true
				}
			}
			if cfg == nil {
				continue
			}
			a.applyConfig(last, cfg)
			last = cfg
		}
	}
}

func (a *App) applyConfig(old, cfg *config.Config) {
	sections := config.SummarizeChange(old, cfg)
	if len(sections) == 0 {
		return
	}
	var deferred []string
	for _, s := range sections {
		if s == "logging" {
			a.logs.Apply(mapLoggingConfig(cfg))
			a.log.Info("logging reconfigured", logx.String("level", cfg.Logging.Level))
			continue
		}
		deferred = append(deferred, s)
	}
	if len(deferred) > 0 {
		a.log.Warn("config sections changed; restart required to take effect",
			logx.String("sections", strings.Join(deferred, ",")))
	}
}

// Done is closed when the supervisor context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Stop shuts everything down in order: ticks first, then playback, then the
// rest, then the storage handles. Bounded by ctx.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("belld stopping")

	if a.sup != nil {
		a.sup.Cancel()
	}

	// The orchestrator stops playback on its way out; this is the backstop
	// for a wedged worker. No bell may outlive the process.
	if a.player != nil {
		_ = a.player.Stop(ctx)
	}

	var err error
	if a.sup != nil {
		err = a.sup.Wait(ctx)
	}

	if a.catalog != nil {
		_ = a.catalog.Close()
	}
	if a.store != nil {
		_ = a.store.Close()
	}
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return err
}
