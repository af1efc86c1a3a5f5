// Package metrics holds the daemon's Prometheus instrumentation.
//
// A nil *Metrics is safe everywhere: components created without
// instrumentation (tests, dry runs) simply skip the counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Registry *prometheus.Registry

	TicksTotal         prometheus.Counter
	TicksSkipped       prometheus.Counter
	PlaybacksTotal     *prometheus.CounterVec
	StepsSkippedTotal  prometheus.Counter
	NetworkProbesFail  prometheus.Counter
	NetworkTransitions *prometheus.CounterVec
	NetworkMode        prometheus.Gauge
	PlaybackActive     prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "belld_ticks_total",
			Help: "Minute ticks processed by the orchestrator.",
		}),
		TicksSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "belld_ticks_skipped_total",
			Help: "Ticks skipped because the minute was already checkpointed.",
		}),
		PlaybacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "belld_playbacks_total",
			Help: "Schedule playback attempts by result.",
		}, []string{"result"}),
		StepsSkippedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "belld_steps_skipped_total",
			Help: "Playback steps skipped (failed time announcement, missing file).",
		}),
		NetworkProbesFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "belld_network_probe_failures_total",
			Help: "Failed link probes.",
		}),
		NetworkTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "belld_network_transitions_total",
			Help: "Network mode transitions by target mode.",
		}, []string{"to"}),
		NetworkMode: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "belld_network_mode",
			Help: "Current network mode (0 = client, 1 = access point).",
		}),
		PlaybackActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "belld_playback_active",
			Help: "Whether the audio device is currently busy.",
		}),
	}
	reg.MustRegister(
		m.TicksTotal, m.TicksSkipped, m.PlaybacksTotal, m.StepsSkippedTotal,
		m.NetworkProbesFail, m.NetworkTransitions, m.NetworkMode, m.PlaybackActive,
	)
	return m
}

func (m *Metrics) IncTick() {
	if m != nil {
		m.TicksTotal.Inc()
	}
}

func (m *Metrics) IncTickSkipped() {
	if m != nil {
		m.TicksSkipped.Inc()
	}
}

func (m *Metrics) IncPlayback(result string) {
	if m != nil {
		m.PlaybacksTotal.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) IncStepSkipped() {
	if m != nil {
		m.StepsSkippedTotal.Inc()
	}
}

func (m *Metrics) IncProbeFailure() {
	if m != nil {
		m.NetworkProbesFail.Inc()
	}
}

func (m *Metrics) IncTransition(to string) {
	if m != nil {
		m.NetworkTransitions.WithLabelValues(to).Inc()
	}
}

func (m *Metrics) SetMode(ap bool) {
	if m == nil {
		return
	}
	if ap {
		m.NetworkMode.Set(1)
	} else {
		m.NetworkMode.Set(0)
	}
}

func (m *Metrics) SetPlaybackActive(active bool) {
	if m == nil {
		return
	}
	if active {
		m.PlaybackActive.Set(1)
	} else {
		m.PlaybackActive.Set(0)
	}
}
