package metrics

import (
	"sync/atomic"
	"time"
)

// ID names one counter slot.
type ID uint16

const (
	RegisterSuccess ID = iota
	RegisterDuplicate
	VerifySuccess
	VerifyFailure
	ResendSuccess
	LoginSuccess
	LoginFailure
	LoginUnverified
	LoginThrottled
	RefreshSuccess
	RefreshFailure
	Logout
	ResetRequest
	ResetRequestSkipped
	ResetConfirmSuccess
	ResetConfirmFailure
	ChallengeRequired
	ChallengeFailed
	ChallengePassed
	RateLimitHit
	BlockedRejected
	DispatchFailure
	// FlowLatency is the only histogram-backed ID.
	FlowLatency
	idCount
)

const (
	bucketCount   = 8
	cacheLineSize = 64
)

type histogram struct {
	buckets [bucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Config toggles collection.
type Config struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// Metrics is a fixed set of atomic counters plus one latency histogram. The
// write path never allocates or locks. A nil *Metrics ignores writes.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [idCount]paddedCounter
	latency       histogram
}

// Snapshot is a point-in-time copy. Histogram buckets are non-cumulative.
type Snapshot struct {
	Counters   map[ID]uint64
	Histograms map[ID][]uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) Inc(id ID) {
	if m == nil || !m.enabled || id >= idCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a flow duration when latency histograms are on.
func (m *Metrics) Observe(d time.Duration) {
	if m == nil || !m.enableLatency {
		return
	}
	atomic.AddUint64(&m.latency.buckets[bucketIndex(d)], 1)
}

func (m *Metrics) Value(id ID) uint64 {
	if m == nil || id >= idCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{Counters: map[ID]uint64{}, Histograms: map[ID][]uint64{}}
	if m == nil || !m.enabled {
		return s
	}

	for id := ID(0); id < idCount; id++ {
		if id == FlowLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}
	if m.enableLatency {
		buckets := make([]uint64, bucketCount)
		for i := range buckets {
			buckets[i] = atomic.LoadUint64(&m.latency.buckets[i])
		}
		s.Histograms[FlowLatency] = buckets
	}
	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()
	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
