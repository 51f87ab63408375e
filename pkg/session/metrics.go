package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	framesCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retroshell",
		Subsystem: "session",
		Name:      "frames_total",
		Help:      "Number of rendered frames.",
	}, []string{"sid"})
	savesCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retroshell",
		Subsystem: "session",
		Name:      "saves_total",
		Help:      "Number of state writes.",
	}, []string{"sid"})
	loadsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retroshell",
		Subsystem: "session",
		Name:      "loads_total",
		Help:      "Number of state restores.",
	}, []string{"sid"})
	eventsCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "retroshell",
		Subsystem: "session",
		Name:      "pad_events_total",
		Help:      "Number of handled pad events.",
	}, []string{"sid"})
	stateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "retroshell",
		Subsystem: "session",
		Name:      "lifecycle_state",
		Help:      "Current lifecycle state of the session.",
	}, []string{"sid"})
)

type metrics struct {
	frames prometheus.Counter
	saves  prometheus.Counter
	loads  prometheus.Counter
	events prometheus.Counter
	state  prometheus.Gauge
}

func newMetrics(sid string) *metrics {
	return &metrics{
		frames: framesCount.WithLabelValues(sid),
		saves:  savesCount.WithLabelValues(sid),
		loads:  loadsCount.WithLabelValues(sid),
		events: eventsCount.WithLabelValues(sid),
		state:  stateGauge.WithLabelValues(sid),
	}
}
