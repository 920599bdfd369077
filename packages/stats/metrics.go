// Package stats aggregates latency and outcome counts for batches of
// hitfetch requests.
package stats

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Outcome classifies one finished request.
type Outcome int

const (
	Success Outcome = iota
	Failure         // non-2xx response
	NetworkError
	Timeout
	Aborted
)

// Metrics collects request outcomes and latencies. It is safe for
// concurrent use.
type Metrics struct {
	mu sync.Mutex

	total     atomic.Int64
	success   atomic.Int64
	failures  atomic.Int64
	network   atomic.Int64
	timeouts  atomic.Int64
	aborted   atomic.Int64
	histogram *hdrhistogram.Histogram

	hosts map[string]*hostMetrics

	startTime time.Time
	endTime   time.Time
}

type hostMetrics struct {
	total     int64
	errors    int64
	histogram *hdrhistogram.Histogram
}

// NewMetrics creates a new Metrics collector
func NewMetrics() *Metrics {
	return &Metrics{
		// 1us to 60s range, 3 significant digits
		histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
		hosts:     make(map[string]*hostMetrics),
	}
}

// Start marks the beginning of the batch
func (m *Metrics) Start() {
	m.mu.Lock()
	m.startTime = time.Now()
	m.mu.Unlock()
}

// Stop marks the end of the batch
func (m *Metrics) Stop() {
	m.mu.Lock()
	m.endTime = time.Now()
	m.mu.Unlock()
}

// Record records one request against host. Latency is recorded for every
// outcome except Aborted.
func (m *Metrics) Record(host string, duration time.Duration, outcome Outcome) {
	m.total.Add(1)
	switch outcome {
	case Success:
		m.success.Add(1)
	case Failure:
		m.failures.Add(1)
	case NetworkError:
		m.network.Add(1)
	case Timeout:
		m.timeouts.Add(1)
	case Aborted:
		m.aborted.Add(1)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	hm, ok := m.hosts[host]
	if !ok {
		hm = &hostMetrics{histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3)}
		m.hosts[host] = hm
	}
	hm.total++
	if outcome != Success {
		hm.errors++
	}

	if outcome == Aborted {
		return
	}
	latencyUs := clamp(duration.Microseconds())
	_ = m.histogram.RecordValue(latencyUs)
	_ = hm.histogram.RecordValue(latencyUs)
}

func clamp(us int64) int64 {
	if us < minLatencyUs {
		return minLatencyUs
	}
	if us > maxLatencyUs {
		return maxLatencyUs
	}
	return us
}

// Summary is the final report for a batch.
type Summary struct {
	Duration     time.Duration
	Total        int64
	Success      int64
	Failures     int64
	NetworkError int64
	Timeouts     int64
	Aborted      int64

	RPS         float64
	SuccessRate float64

	P50  time.Duration
	P95  time.Duration
	P99  time.Duration
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration

	Hosts []HostSummary
}

// HostSummary holds the breakdown for one host.
type HostSummary struct {
	Host   string
	Total  int64
	Errors int64
	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
}

// Errors counts every request that did not succeed.
func (s *Summary) Errors() int64 {
	return s.Total - s.Success
}

// GetSummary returns the metrics summary. Hosts are sorted by name.
func (m *Metrics) GetSummary() *Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	duration := m.endTime.Sub(m.startTime)
	if m.endTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	total := m.total.Load()
	success := m.success.Load()

	s := &Summary{
		Duration:     duration,
		Total:        total,
		Success:      success,
		Failures:     m.failures.Load(),
		NetworkError: m.network.Load(),
		Timeouts:     m.timeouts.Load(),
		Aborted:      m.aborted.Load(),
		P50:          us(m.histogram.ValueAtQuantile(50)),
		P95:          us(m.histogram.ValueAtQuantile(95)),
		P99:          us(m.histogram.ValueAtQuantile(99)),
		Min:          us(m.histogram.Min()),
		Max:          us(m.histogram.Max()),
		Mean:         time.Duration(m.histogram.Mean() * float64(time.Microsecond)),
	}
	if duration.Seconds() > 0 {
		s.RPS = float64(total) / duration.Seconds()
	}
	if total > 0 {
		s.SuccessRate = float64(success) / float64(total)
	}

	for host, hm := range m.hosts {
		s.Hosts = append(s.Hosts, HostSummary{
			Host:   host,
			Total:  hm.total,
			Errors: hm.errors,
			P50:    us(hm.histogram.ValueAtQuantile(50)),
			P95:    us(hm.histogram.ValueAtQuantile(95)),
			P99:    us(hm.histogram.ValueAtQuantile(99)),
		})
	}
	sort.Slice(s.Hosts, func(i, j int) bool { return s.Hosts[i].Host < s.Hosts[j].Host })

	return s
}

func us(v int64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
