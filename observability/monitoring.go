// Package observability tracks latency and outcome of backend calls.
// Every gateway attempt lands in a bounded per-class window, bucketed for
// percentile and success-rate reporting in both JSON and text exposition.
package observability

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Call classes recorded by the gateway.
const (
	ClassPresenceBatch = "presence_batch"
	ClassHistoryRead   = "history_read"
	ClassFiltersRead   = "filters_read"
	ClassMessageWrite  = "message_write"
	ClassMembership    = "membership_write"
	ClassRelationship  = "relationship_write"
)

type sample struct {
	durationMs   float64
	ok           bool
	shortCircuit bool
}

// Window is a bounded ring of call outcomes for one class.
type Window struct {
	capacity int
	samples  []sample
	next     int
	filled   bool
}

func newWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 500
	}
	return &Window{capacity: capacity, samples: make([]sample, capacity)}
}

func (w *Window) record(s sample) {
	w.samples[w.next] = s
	w.next++
	if w.next == w.capacity {
		w.next = 0
		w.filled = true
	}
}

func (w *Window) snapshot() []sample {
	if w.filled {
		out := make([]sample, w.capacity)
		copy(out, w.samples)
		return out
	}
	out := make([]sample, w.next)
	copy(out, w.samples[:w.next])
	return out
}

// Summary is the JSON digest of one call class.
type Summary struct {
	Count          int     `json:"count"`
	AvgMs          float64 `json:"avgMs"`
	P50Ms          float64 `json:"p50Ms"`
	P90Ms          float64 `json:"p90Ms"`
	P99Ms          float64 `json:"p99Ms"`
	SuccessRate    float64 `json:"successRate"`
	ShortCircuited int     `json:"shortCircuited"`
}

// ProcessStats mirrors what the heartbeat used to report: the relay's own
// memory and CPU footprint.
type ProcessStats struct {
	RSSBytes   uint64  `json:"rssBytes"`
	CPUPercent float64 `json:"cpuPercent"`
}

// Collector aggregates outcome windows per call class.
type Collector struct {
	mu      sync.RWMutex
	size    int
	windows map[string]*Window
}

func NewCollector(windowSize int) *Collector {
	return &Collector{size: windowSize, windows: make(map[string]*Window)}
}

func (c *Collector) window(class string) *Window {
	if w, ok := c.windows[class]; ok {
		return w
	}
	w := newWindow(c.size)
	c.windows[class] = w
	return w
}

// Record stores one settled attempt.
func (c *Collector) Record(class string, d time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window(class).record(sample{durationMs: float64(d.Microseconds()) / 1000, ok: ok})
}

// RecordShortCircuit stores a breaker short-circuit: ~0 latency, counted as a
// failure toward the success rate.
func (c *Collector) RecordShortCircuit(class string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.window(class).record(sample{shortCircuit: true})
}

// Summaries digests every class currently tracked.
func (c *Collector) Summaries() map[string]Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]Summary, len(c.windows))
	for class, w := range c.windows {
		out[class] = summarize(w.snapshot())
	}
	return out
}

// Summary digests one class.
func (c *Collector) Summary(class string) Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	w, ok := c.windows[class]
	if !ok {
		return Summary{}
	}
	return summarize(w.snapshot())
}

func summarize(samples []sample) Summary {
	s := Summary{Count: len(samples)}
	if s.Count == 0 {
		return s
	}
	durations := make([]float64, 0, len(samples))
	var sum float64
	var succeeded int
	for _, smp := range samples {
		if smp.shortCircuit {
			s.ShortCircuited++
		}
		if smp.ok {
			succeeded++
		}
		durations = append(durations, smp.durationMs)
		sum += smp.durationMs
	}
	sort.Float64s(durations)
	s.AvgMs = sum / float64(len(durations))
	s.P50Ms = percentile(durations, 0.50)
	s.P90Ms = percentile(durations, 0.90)
	s.P99Ms = percentile(durations, 0.99)
	s.SuccessRate = float64(succeeded) / float64(len(samples))
	return s
}

func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(q * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// RenderText produces the text exposition of every window: one counter pair
// and one latency gauge per quantile, per class.
func (c *Collector) RenderText() string {
	summaries := c.Summaries()
	classes := make([]string, 0, len(summaries))
	for class := range summaries {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	var b strings.Builder
	b.WriteString("# TYPE relay_backend_calls_total counter\n")
	for _, class := range classes {
		s := summaries[class]
		succeeded := int(s.SuccessRate * float64(s.Count))
		fmt.Fprintf(&b, "relay_backend_calls_total{class=%q,outcome=\"ok\"} %d\n", class, succeeded)
		fmt.Fprintf(&b, "relay_backend_calls_total{class=%q,outcome=\"error\"} %d\n", class, s.Count-succeeded)
		fmt.Fprintf(&b, "relay_backend_calls_total{class=%q,outcome=\"short_circuit\"} %d\n", class, s.ShortCircuited)
	}
	b.WriteString("# TYPE relay_backend_latency_ms gauge\n")
	for _, class := range classes {
		s := summaries[class]
		fmt.Fprintf(&b, "relay_backend_latency_ms{class=%q,quantile=\"0.5\"} %.3f\n", class, s.P50Ms)
		fmt.Fprintf(&b, "relay_backend_latency_ms{class=%q,quantile=\"0.9\"} %.3f\n", class, s.P90Ms)
		fmt.Fprintf(&b, "relay_backend_latency_ms{class=%q,quantile=\"0.99\"} %.3f\n", class, s.P99Ms)
	}
	return b.String()
}

// SelfStats retrieves the relay process memory and CPU usage.
func SelfStats() (ProcessStats, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return ProcessStats{}, err
	}
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return ProcessStats{}, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return ProcessStats{}, err
	}
	return ProcessStats{RSSBytes: memInfo.RSS, CPUPercent: cpuPercent}, nil
}
