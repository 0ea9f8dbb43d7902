package goGuard

import (
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricLoginSuccess)

	if got := m.Value(MetricLoginSuccess); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if snap := m.Snapshot(); len(snap.Counters) != 0 {
		t.Fatalf("expected empty snapshot, got %v", snap.Counters)
	}
}

func TestMetricsNilIsSafe(t *testing.T) {
	var m *Metrics
	m.Inc(MetricLogout)
	m.Observe(MetricLoginLatency, time.Second)
	if m.Value(MetricLogout) != 0 || m.Enabled() {
		t.Fatalf("nil metrics recorded a value")
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricBanBlocked)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricBanBlocked); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBuckets(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true, EnableLatencyHistograms: true})

	observations := []time.Duration{
		20 * time.Millisecond,
		50 * time.Millisecond,
		90 * time.Millisecond,
		250 * time.Millisecond,
		400 * time.Millisecond,
		time.Second,
		2 * time.Second,
		5 * time.Second,
	}
	for _, d := range observations {
		m.Observe(MetricLoginLatency, d)
	}
	// Counters without a histogram are ignored.
	m.Observe(MetricLogout, time.Millisecond)

	buckets := m.Snapshot().Histograms[MetricLoginLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	for i, n := range buckets {
		if n != 1 {
			t.Fatalf("bucket %d: expected 1, got %d", i, n)
		}
	}
}

func TestMetricsSnapshotOmitsHistogramWhenDisabled(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Observe(MetricLoginLatency, time.Millisecond)
	m.Inc(MetricTokenIssued)

	snap := m.Snapshot()
	if _, ok := snap.Histograms[MetricLoginLatency]; ok {
		t.Fatalf("histogram present without latency enabled")
	}
	if snap.Counters[MetricTokenIssued] != 1 {
		t.Fatalf("expected token issued counter 1, got %d", snap.Counters[MetricTokenIssued])
	}
	if _, ok := snap.Counters[MetricLoginLatency]; ok {
		t.Fatalf("latency id leaked into counters")
	}
}
