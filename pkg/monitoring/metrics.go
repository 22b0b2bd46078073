package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "duel"

// Metrics of the client session.
type Metrics struct {
	FramesIn     *prometheus.CounterVec
	FramesOut    *prometheus.CounterVec
	Malformed    prometheus.Counter
	Queued       prometheus.Gauge
	Reconnects   prometheus.Counter
	Disconnects  prometheus.Counter
	Resyncs      prometheus.Counter
	IceQueued    prometheus.Counter
	IceApplied   prometheus.Counter
	IceFailed    prometheus.Counter
	IceRestarts  prometheus.Counter
	LocalTimeout prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FramesIn: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "connection", Name: "frames_in_total",
			Help: "Inbound frames by event.",
		}, []string{"event"}),
		FramesOut: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "connection", Name: "frames_out_total",
			Help: "Outbound frames by event.",
		}, []string{"event"}),
		Malformed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "connection", Name: "malformed_frames_total",
			Help: "Dropped inbound frames that couldn't be parsed.",
		}),
		Queued: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "connection", Name: "queued_frames",
			Help: "Outbound frames waiting for an open connection.",
		}),
		Reconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "connection", Name: "reconnects_total",
			Help: "Scheduled reconnect attempts.",
		}),
		Disconnects: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "connection", Name: "terminal_disconnects_total",
			Help: "Times the reconnect attempts were exhausted.",
		}),
		Resyncs: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "game", Name: "resyncs_total",
			Help: "Full state resync requests.",
		}),
		LocalTimeout: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "game", Name: "local_timeouts_total",
			Help: "Games concluded by the local clock.",
		}),
		IceQueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "signaling", Name: "ice_queued_total",
			Help: "Remote ICE candidates held until a remote description.",
		}),
		IceApplied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "signaling", Name: "ice_applied_total",
			Help: "Remote ICE candidates applied.",
		}),
		IceFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "signaling", Name: "ice_failed_total",
			Help: "Remote ICE candidates that failed to apply.",
		}),
		IceRestarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "signaling", Name: "ice_restarts_total",
			Help: "Renegotiations with ICE restart.",
		}),
	}
}

// NewTestMetrics returns metrics on a throwaway registry.
func NewTestMetrics() *Metrics { return NewMetrics(prometheus.NewRegistry()) }
