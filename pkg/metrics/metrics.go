// Package metrics provides Prometheus instrumentation for voxpack.
//
// The hot Get/Set path is never instrumented. What is counted are the
// comparatively rare events around it: arrays being created or rehydrated
// through the variant registry, deflation passes replacing or keeping an
// array, and cold compressed arrays being inflated again.
//
// # Basic Usage
//
//	collector := metrics.NewCollector("rows_deflator")
//	timer := metrics.NewTimer()
//	replacement := arr.Deflate(d)
//	collector.Deflation("rows", metrics.OutcomeReplaced, before, after, timer.Stop())
//
// Recording can be switched off process-wide with SetEnabled(false).
package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Creation paths for ArraysCreated.
const (
	PathEmpty       = "empty"
	PathData        = "data"
	PathConvert     = "convert"
	PathDeserialize = "deserialize"
)

// Deflation outcomes.
const (
	OutcomeReplaced = "replaced"
	OutcomeDeclined = "declined"
)

var enabled atomic.Bool

func init() { enabled.Store(true) }

// SetEnabled turns recording on or off for every collector.
func SetEnabled(on bool) { enabled.Store(on) }

// Enabled reports whether collectors record.
func Enabled() bool { return enabled.Load() }

var (
	// ArraysCreated counts arrays built through the registry.
	// Labels: tag (variant), path (empty/data/convert/deserialize)
	ArraysCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxpack_arrays_created_total",
			Help: "Total number of arrays created through the variant registry",
		},
		[]string{"tag", "path"},
	)

	// Deflations counts deflation attempts by strategy and outcome.
	Deflations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxpack_deflations_total",
			Help: "Total number of deflation attempts",
		},
		[]string{"strategy", "outcome"},
	)

	// DeflatedBytes tracks estimated memory before and after deflation.
	// Labels: strategy, stage (before/after)
	DeflatedBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxpack_deflated_bytes_total",
			Help: "Estimated array memory seen by deflation passes",
		},
		[]string{"strategy", "stage"},
	)

	// DeflateLatency tracks the time spent deflating one array.
	DeflateLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "voxpack_deflate_latency_nanoseconds",
			Help: "Deflation latency in nanoseconds",
			Buckets: []float64{
				1e3, // 1μs
				1e4, // 10μs
				1e5, // 100μs
				1e6, // 1ms
				1e7, // 10ms
				1e8, // 100ms
			},
		},
		[]string{"strategy"},
	)

	// Inflations counts compressed arrays expanded back to dense form.
	Inflations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voxpack_inflations_total",
			Help: "Total number of compressed arrays inflated on access",
		},
		[]string{"algorithm", "status"},
	)

	// Throughput tracks element operations per second measured by benchmarks.
	Throughput = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "voxpack_throughput_ops_per_second",
			Help: "Element operations per second",
		},
		[]string{"width", "op"},
	)
)

// Collector records metrics on behalf of one component.
type Collector struct {
	name      string
	startTime time.Time
	mu        sync.RWMutex
	counts    map[string]int64
}

// NewCollector creates a collector for a component.
func NewCollector(name string) *Collector {
	return &Collector{
		name:      name,
		startTime: time.Now(),
		counts:    make(map[string]int64),
	}
}

// Name returns the component name.
func (c *Collector) Name() string { return c.name }

// ArrayCreated records one array built for tag via path.
func (c *Collector) ArrayCreated(tag, path string) {
	if !Enabled() {
		return
	}
	ArraysCreated.WithLabelValues(tag, path).Inc()
	c.bump("arrays_created")
}

// Deflation records one deflation attempt.
func (c *Collector) Deflation(strategy, outcome string, before, after int, d time.Duration) {
	if !Enabled() {
		return
	}
	Deflations.WithLabelValues(strategy, outcome).Inc()
	DeflatedBytes.WithLabelValues(strategy, "before").Add(float64(before))
	DeflatedBytes.WithLabelValues(strategy, "after").Add(float64(after))
	DeflateLatency.WithLabelValues(strategy).Observe(float64(d.Nanoseconds()))
	c.bump("deflations_" + outcome)
}

// Inflation records a compressed array being expanded.
func (c *Collector) Inflation(algorithm string, err error) {
	if !Enabled() {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	Inflations.WithLabelValues(algorithm, status).Inc()
	c.bump("inflations_" + status)
}

// GetAll returns the collector's local counters together with its
// component name and uptime in seconds.
func (c *Collector) GetAll() map[string]interface{} {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := map[string]interface{}{
		"component": c.name,
		"uptime":    time.Since(c.startTime).Seconds(),
	}
	for k, v := range c.counts {
		out[k] = v
	}
	return out
}

// Count returns one local counter.
func (c *Collector) Count(name string) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.counts[name]
}

func (c *Collector) bump(name string) {
	c.mu.Lock()
	c.counts[name]++
	c.mu.Unlock()
}

// Timer measures one operation.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Stop returns the elapsed time since creation. It may be called repeatedly.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// ThroughputTracker computes operations per second over a window.
// Safe for concurrent use.
type ThroughputTracker struct {
	mu        sync.Mutex
	count     int64
	lastReset time.Time
	width     string
	op        string
}

// NewThroughputTracker creates a tracker for one width and operation.
func NewThroughputTracker(width, op string) *ThroughputTracker {
	return &ThroughputTracker{
		lastReset: time.Now(),
		width:     width,
		op:        op,
	}
}

// Increment adds n operations.
func (t *ThroughputTracker) Increment(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.count += n
}

// GetAndReset returns operations per second since the last reset, publishes
// it to the Throughput gauge and starts a new window.
func (t *ThroughputTracker) GetAndReset() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	elapsed := time.Since(t.lastReset).Seconds()
	if elapsed == 0 {
		return 0
	}

	throughput := float64(t.count) / elapsed

	t.count = 0
	t.lastReset = time.Now()

	if Enabled() {
		Throughput.WithLabelValues(t.width, t.op).Set(throughput)
	}

	return throughput
}
