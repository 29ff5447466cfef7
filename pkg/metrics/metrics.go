package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultLabel = "result"
	ReasonLabel = "reason"
)

// Recorder receives kernel lifecycle events.
type Recorder interface {
	KernelOpened()
	KernelClosed()
	Check(result, reason string, elapsed time.Duration)
	Reset()
	Cancel()
}

type metricsKernel struct{}

// NewMetricsKernel returns a Recorder backed by the package-level
// Prometheus collectors. Call RegisterKernel to expose them.
func NewMetricsKernel() Recorder {
	return metricsKernel{}
}

func (metricsKernel) KernelOpened() {
	kernelCount.Inc()
}

func (metricsKernel) KernelClosed() {
	kernelCount.Dec()
}

func (metricsKernel) Check(result, reason string, elapsed time.Duration) {
	checkCount.WithLabelValues(result, reason).Inc()
	checkDurationSummary.WithLabelValues(result).Observe(elapsed.Seconds())
}

func (metricsKernel) Reset() {
	resetCount.Inc()
}

func (metricsKernel) Cancel() {
	cancelCount.Inc()
}

type MetricsNil struct{}

func NewMetricsNil() Recorder {
	return &MetricsNil{}
}

func (*MetricsNil) KernelOpened() {}

func (*MetricsNil) KernelClosed() {}

func (*MetricsNil) Check(string, string, time.Duration) {}

func (*MetricsNil) Reset() {}

func (*MetricsNil) Cancel() {}

// To add new metrics:
// 1. Register new metrics in RegisterKernel() below.
// 2. Add a Recorder method and update it from the kernel.
var (
	kernelCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "satkernel_kernels",
			Help: "Number of open kernels",
		},
	)

	checkCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "satkernel_check_total",
			Help: "Monotonic count of satisfiability checks by result and failure reason",
		},
		[]string{ResultLabel, ReasonLabel},
	)

	checkDurationSummary = prometheus.NewSummaryVec(
		prometheus.SummaryOpts{
			Name:       "satkernel_check_duration_seconds",
			Help:       "The duration of a satisfiability check",
			Objectives: map[float64]float64{0.95: 0.05, 0.9: 0.01, 0.99: 0.001},
		},
		[]string{ResultLabel},
	)

	resetCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "satkernel_reset_total",
			Help: "Monotonic count of kernel resets",
		},
	)

	cancelCount = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "satkernel_cancel_total",
			Help: "Monotonic count of cancellation requests",
		},
	)
)

func RegisterKernel() {
	prometheus.MustRegister(kernelCount)
	prometheus.MustRegister(checkCount)
	prometheus.MustRegister(checkDurationSummary)
	prometheus.MustRegister(resetCount)
	prometheus.MustRegister(cancelCount)
}
