package pagestream

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Truncation regimes, used as metric label values.
const (
	regimeCurrent  = "current"
	regimePrevious = "previous"
	regimeEvicted  = "evicted"
)

// Metrics holds the prometheus collectors shared by every stream that is
// configured with it. Series are labelled with Config.Name.
type Metrics struct {
	AppendedBytes *prometheus.CounterVec
	ShortWrites   *prometheus.CounterVec
	Pages         *prometheus.CounterVec
	Truncations   *prometheus.CounterVec
	Resets        *prometheus.CounterVec
	EvictedReads  *prometheus.CounterVec
	ExportedBytes *prometheus.CounterVec
	RetainedBytes *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AppendedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagestream",
			Name:      "appended_bytes_total",
			Help:      "Bytes appended to the stream.",
		}, []string{"stream"}),
		ShortWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagestream",
			Name:      "short_writes_total",
			Help:      "Appends that could not store every byte.",
		}, []string{"stream"}),
		Pages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagestream",
			Name:      "pages_total",
			Help:      "Page rotations.",
		}, []string{"stream"}),
		Truncations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagestream",
			Name:      "truncations_total",
			Help:      "Truncations by the generation the new head falls in.",
		}, []string{"stream", "regime"}),
		Resets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagestream",
			Name:      "resets_total",
			Help:      "Stream resets.",
		}, []string{"stream"}),
		EvictedReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagestream",
			Name:      "evicted_reads_total",
			Help:      "Reads and exports refused because the offset was evicted.",
		}, []string{"stream"}),
		ExportedBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pagestream",
			Name:      "exported_bytes_total",
			Help:      "Bytes written to sinks by WriteContents.",
		}, []string{"stream"}),
		RetainedBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pagestream",
			Name:      "retained_bytes",
			Help:      "Bytes between tail and head.",
		}, []string{"stream"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.AppendedBytes,
			m.ShortWrites,
			m.Pages,
			m.Truncations,
			m.Resets,
			m.EvictedReads,
			m.ExportedBytes,
			m.RetainedBytes,
		)
	}
	return m
}

// streamMetrics is Metrics bound to one stream name. All methods are no-ops
// on a nil receiver.
type streamMetrics struct {
	m    *Metrics
	name string
}

func (m *Metrics) forStream(name string) *streamMetrics {
	if m == nil {
		return nil
	}
	return &streamMetrics{m: m, name: name}
}

func (s *streamMetrics) appended(n int) {
	if s == nil {
		return
	}
	s.m.AppendedBytes.WithLabelValues(s.name).Add(float64(n))
}

func (s *streamMetrics) shortWrite() {
	if s == nil {
		return
	}
	s.m.ShortWrites.WithLabelValues(s.name).Inc()
}

func (s *streamMetrics) page() {
	if s == nil {
		return
	}
	s.m.Pages.WithLabelValues(s.name).Inc()
}

func (s *streamMetrics) truncated(regime string) {
	if s == nil {
		return
	}
	s.m.Truncations.WithLabelValues(s.name, regime).Inc()
}

func (s *streamMetrics) reset() {
	if s == nil {
		return
	}
	s.m.Resets.WithLabelValues(s.name).Inc()
}

func (s *streamMetrics) evicted() {
	if s == nil {
		return
	}
	s.m.EvictedReads.WithLabelValues(s.name).Inc()
}

func (s *streamMetrics) exported(n int64) {
	if s == nil {
		return
	}
	s.m.ExportedBytes.WithLabelValues(s.name).Add(float64(n))
}

func (s *streamMetrics) retained(tail, head int64) {
	if s == nil {
		return
	}
	s.m.RetainedBytes.WithLabelValues(s.name).Set(float64(head - tail))
}
