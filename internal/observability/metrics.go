// v1
// internal/observability/metrics.go
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nrg-champ/telemetry-stream/internal/stream"
)

// Metrics implements the generator, transmitter and emitter observer hooks
// on top of Prometheus collectors.
type Metrics struct {
	samplesGenerated prometheus.Counter
	spikes           prometheus.Counter
	spikeMultiplier  prometheus.Histogram
	transmissions    *prometheus.CounterVec
	sendDuration     prometheus.Histogram
	mirrorPublishes  *prometheus.CounterVec
	state            prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		samplesGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_samples_generated_total",
			Help: "Total synthetic samples generated.",
		}),
		spikes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telemetry_spikes_total",
			Help: "Samples that received a correlated spike.",
		}),
		spikeMultiplier: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "telemetry_spike_multiplier",
			Help:    "Distribution of applied spike multipliers.",
			Buckets: prometheus.LinearBuckets(1.3, 0.1, 5),
		}),
		transmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_transmissions_total",
			Help: "POST attempts by result and HTTP status (0 when no response).",
		}, []string{"result", "status"}),
		sendDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "telemetry_send_duration_seconds",
			Help:    "Histogram of telemetry POST durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 13),
		}),
		mirrorPublishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telemetry_mirror_publishes_total",
			Help: "Mirror publishes by mirror and result.",
		}, []string{"mirror", "result"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "telemetry_stream_state",
			Help: "Emitter state (0 starting, 1 running, 2 stopped).",
		}),
	}
	reg.MustRegister(
		m.samplesGenerated,
		m.spikes,
		m.spikeMultiplier,
		m.transmissions,
		m.sendDuration,
		m.mirrorPublishes,
		m.state,
	)
	return m
}

func (m *Metrics) SampleGenerated() {
	if m == nil {
		return
	}
	m.samplesGenerated.Inc()
}

func (m *Metrics) SpikeApplied(multiplier float64) {
	if m == nil {
		return
	}
	m.spikes.Inc()
	m.spikeMultiplier.Observe(multiplier)
}

func (m *Metrics) Transmitted(ok bool, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.transmissions.WithLabelValues(result(ok), strconv.Itoa(status)).Inc()
	m.sendDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) StateChanged(s stream.State) {
	if m == nil {
		return
	}
	m.state.Set(float64(s))
}

func (m *Metrics) MirrorPublished(name string, ok bool) {
	if m == nil {
		return
	}
	m.mirrorPublishes.WithLabelValues(name, result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
