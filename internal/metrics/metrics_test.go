package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestDisabledMetricsIgnoreWrites(t *testing.T) {
	m := New(Config{})
	m.Inc(LoginSuccess)
	if m.Value(LoginSuccess) != 0 {
		t.Fatal("disabled metrics must not count")
	}
	if len(m.Snapshot().Counters) != 0 {
		t.Fatal("disabled snapshot must be empty")
	}

	var nilMetrics *Metrics
	nilMetrics.Inc(LoginSuccess)
	nilMetrics.Observe(time.Second)
}

func TestConcurrentInc(t *testing.T) {
	m := New(Config{Enabled: true})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				m.Inc(RateLimitHit)
			}
		}()
	}
	wg.Wait()
	if got := m.Value(RateLimitHit); got != 5000 {
		t.Fatalf("expected 5000, got %d", got)
	}
}

func TestLatencyBuckets(t *testing.T) {
	m := New(Config{Enabled: true, EnableLatencyHistograms: true})
	m.Observe(2 * time.Millisecond)
	m.Observe(30 * time.Millisecond)
	m.Observe(2 * time.Second)

	snap := m.Snapshot()
	got := snap.Histograms[FlowLatency]
	if len(got) != 8 || got[0] != 1 || got[3] != 1 || got[7] != 1 {
		t.Fatalf("unexpected buckets: %v", got)
	}
	if _, ok := snap.Counters[FlowLatency]; ok {
		t.Fatal("histogram ID must not appear among counters")
	}
	cum := Cumulative(got)
	if cum[7] != 3 || cum[0] != 1 {
		t.Fatalf("unexpected cumulative: %v", cum)
	}
}

func TestEveryCounterHasDef(t *testing.T) {
	seen := map[ID]bool{}
	for _, d := range CounterDefs {
		if seen[d.ID] {
			t.Fatalf("duplicate def for %d", d.ID)
		}
		seen[d.ID] = true
	}
	for id := ID(0); id < idCount; id++ {
		if id == FlowLatency {
			continue
		}
		if !seen[id] {
			t.Fatalf("counter %d has no def", id)
		}
	}
}
