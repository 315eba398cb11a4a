package processor

import (
	"NetSentinel/internal/alerter"
	"NetSentinel/internal/config"
	"NetSentinel/internal/detection"
	"NetSentinel/internal/detection/impl/hightraffic"
	"NetSentinel/internal/detection/impl/portscan"
	"NetSentinel/internal/engine/stats"
	"NetSentinel/internal/model"
	"NetSentinel/internal/queue"
	"errors"
	"net/netip"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var base = time.Unix(1700000000, 0)

// fakeExtractor reads the record to produce from the frame payload index.
type fakeExtractor struct {
	records []*model.FeatureRecord
}

func (f *fakeExtractor) Extract(frame model.RawFrame) (*model.FeatureRecord, error) {
	i := int(frame.Data[0])
	if i >= len(f.records) || f.records[i] == nil {
		return nil, errors.New("cannot decode")
	}
	return f.records[i], nil
}

type recordingMetrics struct {
	mu   sync.Mutex
	seen []*model.FeatureRecord
}

func (r *recordingMetrics) Update(rec *model.FeatureRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, rec)
}

func (r *recordingMetrics) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.seen)
}

type nopAnalyzer struct{}

func (nopAnalyzer) Analyze(*model.FeatureRecord) []model.Finding { return nil }

type panicOnPort struct{ port uint16 }

func (p panicOnPort) Analyze(rec *model.FeatureRecord) []model.Finding {
	if rec.DstPort == p.port {
		panic("detector bug")
	}
	return nil
}

type nopSink struct{}

func (nopSink) Process([]model.Finding) {}

func tcp(src string, port uint16, ts time.Time) *model.FeatureRecord {
	return &model.FeatureRecord{
		Timestamp: ts,
		SrcIP:     netip.MustParseAddr(src),
		DstIP:     netip.MustParseAddr("192.168.0.10"),
		Protocol:  model.ProtocolTCP,
		SrcPort:   40000,
		DstPort:   port,
		Length:    60,
	}
}

func frameFor(i int) model.RawFrame {
	return model.RawFrame{Timestamp: base, Data: []byte{byte(i)}}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestProcessor_SkipsFailedUnitsAndContinues(t *testing.T) {
	q := queue.New[model.RawFrame](10)
	ex := &fakeExtractor{records: []*model.FeatureRecord{
		tcp("10.0.0.1", 1, base),
		nil,
		tcp("10.0.0.1", 3, base),
	}}
	metrics := &recordingMetrics{}
	p := New(q, ex, metrics, nopAnalyzer{}, nopSink{}, 20*time.Millisecond, zaptest.NewLogger(t))

	p.Start()
	defer p.Stop()
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Put(frameFor(i), false, 0))
	}

	waitFor(t, func() bool { return p.Processed()+p.Failed() == 3 })
	assert.Equal(t, uint64(2), p.Processed())
	assert.Equal(t, uint64(1), p.Failed())
	require.Equal(t, 2, metrics.count())
	assert.Equal(t, uint16(1), metrics.seen[0].DstPort)
	assert.Equal(t, uint16(3), metrics.seen[1].DstPort)
}

func TestProcessor_RecoversFromPanics(t *testing.T) {
	q := queue.New[model.RawFrame](10)
	ex := &fakeExtractor{records: []*model.FeatureRecord{
		tcp("10.0.0.1", 1, base),
		tcp("10.0.0.1", 666, base),
		tcp("10.0.0.1", 2, base),
	}}
	metrics := &recordingMetrics{}
	p := New(q, ex, metrics, panicOnPort{port: 666}, nopSink{}, 20*time.Millisecond, zaptest.NewLogger(t))

	p.Start()
	defer p.Stop()
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Put(frameFor(i), false, 0))
	}

	waitFor(t, func() bool { return p.Processed()+p.Failed() == 3 })
	assert.Equal(t, uint64(2), p.Processed())
	assert.True(t, p.IsAlive())
}

func TestProcessor_Lifecycle(t *testing.T) {
	q := queue.New[model.RawFrame](1)
	p := New(q, &fakeExtractor{}, &recordingMetrics{}, nopAnalyzer{}, nopSink{}, 10*time.Millisecond, zaptest.NewLogger(t))

	assert.False(t, p.IsAlive())
	p.Stop() // stop before start is a no-op

	p.Start()
	p.Start() // second start is a no-op
	assert.True(t, p.IsAlive())

	start := time.Now()
	p.Stop()
	assert.False(t, p.IsAlive())
	assert.Less(t, time.Since(start), time.Second)

	p.Stop()

	// The loop can be started again after a stop.
	p.Start()
	assert.True(t, p.IsAlive())
	p.Stop()
	assert.False(t, p.IsAlive())
}

func pipeline(t *testing.T, threshold int, window time.Duration, records []*model.FeatureRecord) (*alerter.Store, *Processor, *queue.BoundedQueue[model.RawFrame]) {
	t.Helper()
	logger := zaptest.NewLogger(t)

	agg := stats.NewAggregator(10 * time.Second)
	ps, err := portscan.New(threshold, window)
	require.NoError(t, err)
	ht, err := hightraffic.New(agg, 50, 5)
	require.NoError(t, err)
	store, err := alerter.NewStore(config.AlertsConfig{Cooldown: 10 * time.Second, MaxHistory: 100}, logger)
	require.NoError(t, err)

	q := queue.New[model.RawFrame](10)
	p := New(q, &fakeExtractor{records: records}, agg, detection.NewManager(logger, ps, ht), store, 20*time.Millisecond, logger)
	return store, p, q
}

func TestPipeline_SlowScanDoesNotAlert(t *testing.T) {
	var records []*model.FeatureRecord
	for port := 1; port <= 20; port++ {
		records = append(records, tcp("10.0.0.1", uint16(port), base.Add(time.Duration(port)*time.Second)))
	}
	store, p, q := pipeline(t, 20, 10*time.Second, records)

	p.Start()
	defer p.Stop()
	for i := range records {
		require.NoError(t, q.Put(frameFor(i), true, time.Second))
	}

	waitFor(t, func() bool { return p.Processed() == 20 })
	assert.Zero(t, store.Snapshot().TotalAlerts)
}

func TestPipeline_FastScanAlertsOnce(t *testing.T) {
	var records []*model.FeatureRecord
	for port := 1; port <= 30; port++ {
		records = append(records, tcp("10.0.0.1", uint16(port), base.Add(time.Duration(port)*10*time.Millisecond)))
	}
	store, p, q := pipeline(t, 20, 10*time.Second, records)

	var mu sync.Mutex
	var pushed []model.Alert
	store.AddListener(func(a model.Alert) {
		mu.Lock()
		defer mu.Unlock()
		pushed = append(pushed, a)
	})

	p.Start()
	defer p.Stop()
	for i := range records {
		require.NoError(t, q.Put(frameFor(i), true, time.Second))
	}

	waitFor(t, func() bool { return p.Processed() == 30 })
	snap := store.Snapshot()
	require.Equal(t, uint64(1), snap.TotalAlerts)
	assert.Equal(t, model.KindPortScan, snap.Recent[0].Kind)
	assert.Equal(t, "10.0.0.1", snap.Recent[0].SourceKey)
	assert.Equal(t, 20, snap.Recent[0].Details["unique_ports"])

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, pushed, 1)
	assert.Equal(t, snap.Recent[0].ID, pushed[0].ID)
}
