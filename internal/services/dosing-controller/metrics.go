package dosing_controller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics of the monitor loop. They are registered on the registerer given
// to NewMetrics so tests can use a private registry.
type Metrics struct {
	TicksTotal        prometheus.Counter
	TickSeconds       prometheus.Histogram
	EvaluationsTotal  *prometheus.CounterVec
	DispatchesTotal   *prometheus.CounterVec
	RotationsTotal    *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
	LastTickTimestamp prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TicksTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "pond_doser_ticks_total",
			Help: "Monitor ticks executed",
		}),
		TickSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "pond_doser_tick_seconds",
			Help:    "Time spent in one monitor tick",
			Buckets: prometheus.DefBuckets,
		}),
		EvaluationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pond_doser_evaluations_total",
			Help: "Rule evaluations by trigger",
		}, []string{"trigger"}),
		DispatchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pond_doser_dispatches_total",
			Help: "Dose commands by result",
		}, []string{"result"}),
		RotationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pond_doser_rotations_total",
			Help: "Rotations commanded by substance",
		}, []string{"substance"}),
		ErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "pond_doser_errors_total",
			Help: "Errors by component and reason",
		}, []string{"component", "reason"}),
		LastTickTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "pond_doser_last_tick_timestamp_seconds",
			Help: "Unix time of the last completed tick",
		}),
	}
}

func (m *Metrics) RecordError(component, reason string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(component, reason).Inc()
}

func (m *Metrics) RecordEvaluation(trigger string) {
	if m == nil {
		return
	}
	m.EvaluationsTotal.WithLabelValues(trigger).Inc()
}

func (m *Metrics) RecordDispatch(result string, dec Decision) {
	if m == nil {
		return
	}
	m.DispatchesTotal.WithLabelValues(result).Inc()
	if result != "ok" {
		return
	}
	for _, s := range dec.Dosed() {
		m.RotationsTotal.WithLabelValues(s.String()).Add(float64(dec.Rotations[s.Channel()]))
	}
}
