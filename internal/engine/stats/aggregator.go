// Package stats keeps the cumulative and rolling traffic statistics of the
// pipeline.
package stats

import (
	"NetSentinel/internal/model"
	"sync"
	"time"
)

// UnknownAddress is the bucket used for records without an address.
const UnknownAddress = "unknown"

// Snapshot is a point-in-time copy of the aggregator state.
type Snapshot struct {
	TotalPackets     uint64            `json:"total_packets"`
	TotalBytes       uint64            `json:"total_bytes"`
	PerProtocol      map[string]uint64 `json:"packets_per_protocol"`
	PerSource        map[string]uint64 `json:"packets_per_source_ip"`
	PerDestination   map[string]uint64 `json:"packets_per_destination_ip"`
	PacketsPerSecond float64           `json:"packets_per_second"`
}

// Aggregator accumulates statistics from feature records. All methods are
// safe for concurrent use.
type Aggregator struct {
	window time.Duration

	mu             sync.Mutex
	totalPackets   uint64
	totalBytes     uint64
	perProtocol    map[string]uint64
	perSource      map[string]uint64
	perDestination map[string]uint64

	// timestamps is the rolling log used for packets-per-second, oldest first.
	timestamps []int64
	head       int
	latest     int64
}

// NewAggregator creates an Aggregator computing packets-per-second over window.
func NewAggregator(window time.Duration) *Aggregator {
	if window <= 0 {
		window = 10 * time.Second
	}
	return &Aggregator{
		window:         window,
		perProtocol:    make(map[string]uint64),
		perSource:      make(map[string]uint64),
		perDestination: make(map[string]uint64),
	}
}

// Window returns the rolling window length.
func (a *Aggregator) Window() time.Duration {
	return a.window
}

// Update records one feature record.
func (a *Aggregator) Update(rec *model.FeatureRecord) {
	ts := rec.Timestamp.UnixNano()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.totalPackets++
	if rec.Length > 0 {
		a.totalBytes += uint64(rec.Length)
	}
	a.perProtocol[rec.Protocol.String()]++
	a.perSource[addrKey(rec.SrcIP.IsValid(), rec.SrcIP.String)]++
	a.perDestination[addrKey(rec.DstIP.IsValid(), rec.DstIP.String)]++

	if ts > a.latest {
		a.latest = ts
	}
	// A late record that is already outside the window would never count.
	if ts > a.cutoff() {
		a.timestamps = append(a.timestamps, ts)
	}
	a.prune()
}

// Snapshot returns a copy of the current statistics.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	return Snapshot{
		TotalPackets:     a.totalPackets,
		TotalBytes:       a.totalBytes,
		PerProtocol:      copyCounts(a.perProtocol),
		PerSource:        copyCounts(a.perSource),
		PerDestination:   copyCounts(a.perDestination),
		PacketsPerSecond: a.ppsLocked(),
	}
}

// PacketsPerSecond returns the rolling rate that Snapshot would report,
// without copying the counters.
func (a *Aggregator) PacketsPerSecond() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ppsLocked()
}

func (a *Aggregator) ppsLocked() float64 {
	a.prune()
	n := len(a.timestamps) - a.head
	if n == 0 {
		return 0
	}
	return float64(n) / a.window.Seconds()
}

func (a *Aggregator) cutoff() int64 {
	return a.latest - a.window.Nanoseconds()
}

// prune drops timestamps at or before latest-window.
func (a *Aggregator) prune() {
	cutoff := a.cutoff()
	for a.head < len(a.timestamps) && a.timestamps[a.head] <= cutoff {
		a.head++
	}
	if a.head == len(a.timestamps) {
		a.timestamps = a.timestamps[:0]
		a.head = 0
	} else if a.head > 1024 && a.head*2 >= len(a.timestamps) {
		n := copy(a.timestamps, a.timestamps[a.head:])
		a.timestamps = a.timestamps[:n]
		a.head = 0
	}
}

func addrKey(valid bool, str func() string) string {
	if !valid {
		return UnknownAddress
	}
	return str()
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
