// Package metrics wires the derivation pipeline's observability counters
// to Prometheus, served over HTTP by utils/service/metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/trianglesphere/gonode/components/node/eth"
)

const namespace = "gonode"

// Metrics implements derive.Metrics (and is passed directly as
// driver's metrics, since the driver only layers a couple of debug log
// lines on top of the same signals).
type Metrics struct {
	registry *prometheus.Registry

	l1RefNumber *prometheus.GaugeVec
	l1RefTime   *prometheus.GaugeVec
	l2RefNumber *prometheus.GaugeVec
	l2RefTime   *prometheus.GaugeVec
	derivationIdle prometheus.Gauge
	pipelineResets prometheus.Counter
}

// NewMetrics registers the derivation pipeline's counters on a fresh
// registry and returns both.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		l1RefNumber: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "l1_ref_number",
			Help:      "Block number of the named L1 reference last recorded by the pipeline.",
		}, []string{"name"}),
		l1RefTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "l1_ref_time",
			Help:      "Timestamp of the named L1 reference last recorded by the pipeline.",
		}, []string{"name"}),
		l2RefNumber: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "l2_ref_number",
			Help:      "Block number of the named L2 reference last recorded by the pipeline.",
		}, []string{"name"}),
		l2RefTime: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "l2_ref_time",
			Help:      "Timestamp of the named L2 reference last recorded by the pipeline.",
		}, []string{"name"}),
		derivationIdle: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "derivation_idle",
			Help:      "1 if the derivation pipeline has no more work for its last step, 0 otherwise.",
		}),
		pipelineResets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_resets_total",
			Help:      "Number of times the derivation pipeline has been reset.",
		}),
	}
	registry.MustRegister(m.l1RefNumber, m.l1RefTime, m.l2RefNumber, m.l2RefTime, m.derivationIdle, m.pipelineResets)
	return m, registry
}

func (m *Metrics) RecordL1Ref(name string, ref eth.L1BlockRef) {
	m.l1RefNumber.WithLabelValues(name).Set(float64(ref.Number))
	m.l1RefTime.WithLabelValues(name).Set(float64(ref.Time))
}

func (m *Metrics) RecordL2Ref(name string, ref eth.L2BlockRef) {
	m.l2RefNumber.WithLabelValues(name).Set(float64(ref.Number))
	m.l2RefTime.WithLabelValues(name).Set(float64(ref.Time))
}

func (m *Metrics) SetDerivationIdle(idle bool) {
	if idle {
		m.derivationIdle.Set(1)
	} else {
		m.derivationIdle.Set(0)
	}
}

func (m *Metrics) RecordPipelineReset() {
	m.pipelineResets.Inc()
}
