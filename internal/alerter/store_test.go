package alerter

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/model"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var base = time.Unix(1700000000, 0)

func newStore(t *testing.T, cooldown time.Duration, maxHistory int) *Store {
	t.Helper()
	s, err := NewStore(config.AlertsConfig{Cooldown: cooldown, MaxHistory: maxHistory}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func finding(kind, src string, ts time.Time) model.Finding {
	return model.Finding{Kind: kind, SourceKey: src, Timestamp: ts, Details: map[string]any{"n": 1}}
}

func TestProcess_DedupWithinCooldown(t *testing.T) {
	s := newStore(t, 10*time.Second, 100)

	s.Process([]model.Finding{
		finding(model.KindPortScan, "10.0.0.1", base),
		finding(model.KindPortScan, "10.0.0.1", base.Add(9999*time.Millisecond)),
	})
	assert.Equal(t, uint64(1), s.Snapshot().TotalAlerts)

	s.Process([]model.Finding{finding(model.KindPortScan, "10.0.0.1", base.Add(10*time.Second))})
	snap := s.Snapshot()
	assert.Equal(t, uint64(2), snap.TotalAlerts)
	assert.Equal(t, map[string]uint64{model.KindPortScan: 2}, snap.ByKind)
}

func TestProcess_DifferentKeysNeverDedup(t *testing.T) {
	s := newStore(t, time.Minute, 100)
	s.Process([]model.Finding{
		finding(model.KindPortScan, "10.0.0.1", base),
		finding(model.KindPortScan, "10.0.0.2", base),
		finding(model.KindHighTraffic, "10.0.0.1", base),
		finding(model.KindHighTraffic, "", base),
		finding(model.KindHighTraffic, "", base.Add(time.Second)),
	})
	snap := s.Snapshot()
	assert.Equal(t, uint64(4), snap.TotalAlerts)
	assert.Equal(t, map[string]uint64{model.KindPortScan: 2, model.KindHighTraffic: 2}, snap.ByKind)
}

func TestProcess_PurgesStaleDedupEntries(t *testing.T) {
	s := newStore(t, 10*time.Second, 100)
	s.Process([]model.Finding{finding(model.KindPortScan, "10.0.0.1", base)})
	s.Process([]model.Finding{finding(model.KindPortScan, "10.0.0.2", base.Add(time.Minute))})

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Len(t, s.lastAt, 1)
	_, ok := s.lastAt[dedupKey{kind: model.KindPortScan, source: "10.0.0.2"}]
	assert.True(t, ok)
}

func TestProcess_Enrichment(t *testing.T) {
	s, err := NewStore(config.AlertsConfig{
		Cooldown:   time.Second,
		MaxHistory: 10,
		Severity:   map[string]string{"HIGH_TRAFFIC": "critical"},
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	s.Process([]model.Finding{
		finding(model.KindPortScan, "10.0.0.1", base),
		finding(model.KindHighTraffic, "", base),
		finding("DNS_TUNNEL", "10.0.0.1", base),
	})

	recent := s.Snapshot().Recent
	require.Len(t, recent, 3)
	assert.Equal(t, model.SeverityHigh, recent[0].Severity)
	assert.Equal(t, model.SeverityCritical, recent[1].Severity)
	assert.Equal(t, DefaultSeverity, recent[2].Severity)

	ids := map[string]bool{}
	for _, a := range recent {
		assert.NotEmpty(t, a.ID)
		ids[a.ID] = true
		assert.True(t, a.Timestamp.Equal(base))
		assert.Equal(t, 1, a.Details["n"])
	}
	assert.Len(t, ids, 3)
}

func TestProcess_BoundedHistory(t *testing.T) {
	s := newStore(t, 0, 5)
	for i := 0; i < 12; i++ {
		s.Process([]model.Finding{finding(model.KindPortScan, fmt.Sprintf("10.0.0.%d", i), base)})
	}

	snap := s.Snapshot()
	assert.Equal(t, uint64(12), snap.TotalAlerts)
	require.Len(t, snap.Recent, 5)
	for i, a := range snap.Recent {
		assert.Equal(t, fmt.Sprintf("10.0.0.%d", i+7), a.SourceKey)
	}
}

func TestSnapshot_IsCopy(t *testing.T) {
	s := newStore(t, time.Second, 5)
	s.Process([]model.Finding{finding(model.KindPortScan, "10.0.0.1", base)})

	snap := s.Snapshot()
	snap.Recent[0].SourceKey = "tampered"
	snap.Recent[0].Details["n"] = 99
	snap.ByKind[model.KindPortScan] = 99

	again := s.Snapshot()
	assert.Equal(t, "10.0.0.1", again.Recent[0].SourceKey)
	assert.Equal(t, 1, again.Recent[0].Details["n"])
	assert.Equal(t, uint64(1), again.ByKind[model.KindPortScan])
}

func TestListeners(t *testing.T) {
	s := newStore(t, 10*time.Second, 10)

	var got1, got2 []model.Alert
	id1 := s.AddListener(func(a model.Alert) { got1 = append(got1, a) })
	s.AddListener(func(a model.Alert) { got2 = append(got2, a) })
	assert.Equal(t, 2, s.ListenerCount())

	s.Process([]model.Finding{
		finding(model.KindPortScan, "10.0.0.1", base),
		finding(model.KindPortScan, "10.0.0.1", base.Add(time.Second)), // suppressed
	})
	require.Len(t, got1, 1)
	require.Len(t, got2, 1)
	assert.Equal(t, got1[0].ID, got2[0].ID)

	s.RemoveListener(id1)
	s.RemoveListener(id1)
	s.Process([]model.Finding{finding(model.KindPortScan, "10.0.0.2", base)})
	assert.Len(t, got1, 1)
	assert.Len(t, got2, 2)
}

func TestListeners_PanicIsIsolated(t *testing.T) {
	s := newStore(t, 10*time.Second, 10)

	var calls int
	s.AddListener(func(model.Alert) { panic("listener failure") })
	s.AddListener(func(model.Alert) { calls++ })

	s.Process([]model.Finding{
		finding(model.KindPortScan, "10.0.0.1", base),
		finding(model.KindPortScan, "10.0.0.2", base),
	})
	assert.Equal(t, 2, calls)
	assert.Equal(t, uint64(2), s.Snapshot().TotalAlerts)
}

func TestListener_CanReadStore(t *testing.T) {
	s := newStore(t, 10*time.Second, 10)
	var seen uint64
	s.AddListener(func(model.Alert) { seen = s.Snapshot().TotalAlerts })

	s.Process([]model.Finding{finding(model.KindPortScan, "10.0.0.1", base)})
	assert.Equal(t, uint64(1), seen)
}

func TestConcurrentProcessAndSnapshot(t *testing.T) {
	s := newStore(t, 0, 50)
	const n = 2000

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			s.Process([]model.Finding{finding(model.KindPortScan, "10.0.0.1", base.Add(time.Duration(i)))})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			snap := s.Snapshot()
			assert.LessOrEqual(t, len(snap.Recent), 50)
			assert.Equal(t, snap.TotalAlerts, snap.ByKind[model.KindPortScan])
		}
	}()
	wg.Wait()
	assert.Equal(t, uint64(n), s.Snapshot().TotalAlerts)
}

func TestNewStore_Validation(t *testing.T) {
	_, err := NewStore(config.AlertsConfig{MaxHistory: 0}, nil)
	assert.Error(t, err)
	_, err = NewStore(config.AlertsConfig{MaxHistory: 1, Severity: map[string]string{"X": "urgent"}}, nil)
	assert.Error(t, err)
}
