package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCollector_Summary_Percentiles_And_Success_Rate(t *testing.T) {
	req := require.New(t)
	collector := NewCollector(100)

	// Given 9 fast successes and one slow failure
	for i := 0; i < 9; i++ {
		collector.Record(ClassHistoryRead, 10*time.Millisecond, true)
	}
	collector.Record(ClassHistoryRead, 100*time.Millisecond, false)

	summary := collector.Summary(ClassHistoryRead)

	req.Equal(10, summary.Count)
	req.InDelta(0.9, summary.SuccessRate, 0.001)
	req.InDelta(10, summary.P50Ms, 1)
	req.InDelta(100, summary.P99Ms, 1)
	req.Greater(summary.AvgMs, summary.P50Ms)
}

func TestCollector_Window_Is_Bounded(t *testing.T) {
	req := require.New(t)
	collector := NewCollector(5)

	// When more samples land than the window holds
	for i := 0; i < 20; i++ {
		collector.Record(ClassMessageWrite, time.Millisecond, true)
	}

	req.Equal(5, collector.Summary(ClassMessageWrite).Count)
}

func TestCollector_Short_Circuits_Count_As_Failures(t *testing.T) {
	req := require.New(t)
	collector := NewCollector(10)

	collector.Record(ClassMessageWrite, time.Millisecond, true)
	collector.RecordShortCircuit(ClassMessageWrite)

	summary := collector.Summary(ClassMessageWrite)
	req.Equal(2, summary.Count)
	req.Equal(1, summary.ShortCircuited)
	req.InDelta(0.5, summary.SuccessRate, 0.001)
}

func TestCollector_Unknown_Class_Is_Empty(t *testing.T) {
	req := require.New(t)
	collector := NewCollector(10)

	req.Equal(Summary{}, collector.Summary("never-recorded"))
}

func TestCollector_RenderText(t *testing.T) {
	req := require.New(t)
	collector := NewCollector(10)
	collector.Record(ClassFiltersRead, 5*time.Millisecond, true)
	collector.RecordShortCircuit(ClassMessageWrite)

	text := collector.RenderText()

	req.Contains(text, "# TYPE relay_backend_calls_total counter")
	req.Contains(text, `relay_backend_calls_total{class="filters_read",outcome="ok"} 1`)
	req.Contains(text, `relay_backend_calls_total{class="message_write",outcome="short_circuit"} 1`)
	req.Contains(text, "# TYPE relay_backend_latency_ms gauge")
	req.True(strings.Contains(text, `relay_backend_latency_ms{class="filters_read",quantile="0.5"}`))
}
