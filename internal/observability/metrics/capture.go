package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tphakala/rawrecord/internal/recorder"
)

// CaptureMetrics contains Prometheus metrics for the capture session and
// its file writer. It satisfies recorder.Metrics.
type CaptureMetrics struct {
	registry *prometheus.Registry

	flushesTotal         *prometheus.CounterVec
	flushedSamplesTotal  *prometheus.CounterVec
	flushDurationSeconds *prometheus.HistogramVec
	fileOperationsTotal  *prometheus.CounterVec
}

var _ recorder.Metrics = (*CaptureMetrics)(nil)

// NewCaptureMetrics creates and registers the capture metrics.
func NewCaptureMetrics(registry *prometheus.Registry) (*CaptureMetrics, error) {
	m := &CaptureMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *CaptureMetrics) initMetrics() {
	m.flushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rawrecord_flushes_total",
			Help: "Total number of ring buffer flushes to the capture file",
		},
		[]string{"kind", "status"}, // kind: half, leftover
	)

	m.flushedSamplesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rawrecord_flushed_samples_total",
			Help: "Total number of samples written to capture files",
		},
		[]string{"kind"},
	)

	m.flushDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rawrecord_flush_duration_seconds",
			Help:    "Time taken to write one flush",
			Buckets: prometheus.ExponentialBuckets(BucketStart100us, BucketFactor2, BucketCount14),
		},
		[]string{"kind"},
	)

	m.fileOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rawrecord_file_operations_total",
			Help: "Total number of capture file operations",
		},
		[]string{"operation", "status"}, // operation: open, truncate, close
	)
}

// Describe implements the Collector interface
func (m *CaptureMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.flushesTotal.Describe(ch)
	m.flushedSamplesTotal.Describe(ch)
	m.flushDurationSeconds.Describe(ch)
	m.fileOperationsTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *CaptureMetrics) Collect(ch chan<- prometheus.Metric) {
	m.flushesTotal.Collect(ch)
	m.flushedSamplesTotal.Collect(ch)
	m.flushDurationSeconds.Collect(ch)
	m.fileOperationsTotal.Collect(ch)
}

// RecordFlush records one write of samples to the capture file.
func (m *CaptureMetrics) RecordFlush(kind string, samples int, elapsed time.Duration, err error) {
	m.flushesTotal.WithLabelValues(kind, status(err)).Inc()
	m.flushDurationSeconds.WithLabelValues(kind).Observe(elapsed.Seconds())
	if err == nil {
		m.flushedSamplesTotal.WithLabelValues(kind).Add(float64(samples))
	}
}

// RecordFileOperation records a capture file operation outcome.
func (m *CaptureMetrics) RecordFileOperation(operation string, err error) {
	m.fileOperationsTotal.WithLabelValues(operation, status(err)).Inc()
}

// SessionSource is what ObserveSession reads from.
type SessionSource interface {
	Stats() recorder.Stats
}

// ObserveSession exports the counters of the current take as gauges read on
// every scrape. They reset when a new take starts.
func (m *CaptureMetrics) ObserveSession(s SessionSource) error {
	gauge := func(name, help string, value func(recorder.Stats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
			return value(s.Stats())
		})
	}

	collectors := []prometheus.Collector{
		gauge("rawrecord_take_samples", "Samples accepted in the current take",
			func(st recorder.Stats) float64 { return float64(st.SampleCount) }),
		gauge("rawrecord_take_bytes", "Bytes written in the current take",
			func(st recorder.Stats) float64 { return float64(st.ByteCount) }),
		gauge("rawrecord_take_overruns", "Blocks refused because the writer fell behind in the current take",
			func(st recorder.Stats) float64 { return float64(st.Overruns) }),
		gauge("rawrecord_take_dropped_samples", "Samples dropped in the current take",
			func(st recorder.Stats) float64 { return float64(st.DroppedSamples) }),
		gauge("rawrecord_recording", "1 while blocks are being accepted",
			func(st recorder.Stats) float64 { return boolValue(st.Recording) }),
		gauge("rawrecord_buffer_fill_ratio", "Fraction of the ring buffer waiting to be flushed",
			func(st recorder.Stats) float64 {
				if st.Capacity == 0 {
					return 0
				}
				return float64(st.Pending) / float64(st.Capacity)
			}),
	}

	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveFrames exports a running count of frames delivered by the capture device.
func (m *CaptureMetrics) ObserveFrames(frames func() uint64) error {
	return m.registry.Register(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Name: "rawrecord_device_frames_total",
		Help: "Frames delivered by the capture device",
	}, func() float64 { return float64(frames()) }))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
