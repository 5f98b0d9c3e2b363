package thread

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts thread events and classified stops.
type Metrics struct {
	Events  *prometheus.CounterVec
	Stops   *prometheus.CounterVec
	Threads prometheus.Gauge
}

// NewMetrics creates the thread metrics and registers them with reg if it
// is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nativethread_events_total",
			Help: "Total number of events delivered to threads, by event kind",
		}, []string{"kind"}),
		Stops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "nativethread_stops_total",
			Help: "Total number of classified thread stops, by stop reason",
		}, []string{"reason"}),
		Threads: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nativethread_threads",
			Help: "Number of threads currently tracked",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.Events,
			m.Stops,
			m.Threads,
		)
	}
	return m
}
