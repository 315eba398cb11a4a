package detection

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/factory"
	"NetSentinel/internal/model"
	"NetSentinel/internal/telemetry"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type scripted struct {
	name string
	out  []model.Finding
	seen int
}

func (s *scripted) Name() string { return s.name }

func (s *scripted) Analyze(*model.FeatureRecord) []model.Finding {
	s.seen++
	return s.out
}

type panicking struct{}

func (panicking) Name() string { return "panicking" }

func (panicking) Analyze(*model.FeatureRecord) []model.Finding { panic("boom") }

type constRate float64

func (c constRate) PacketsPerSecond() float64 { return float64(c) }

func rec() *model.FeatureRecord {
	return &model.FeatureRecord{Timestamp: time.Unix(1700000000, 0)}
}

func TestManager_NoDetectors(t *testing.T) {
	m := NewManager(zaptest.NewLogger(t))
	assert.Empty(t, m.Analyze(rec()))
}

func TestManager_ConcatenatesInOrder(t *testing.T) {
	a := &scripted{name: "a", out: []model.Finding{{Kind: "A1"}, {Kind: "A2"}}}
	b := &scripted{name: "b"}
	c := &scripted{name: "c", out: []model.Finding{{Kind: "C1"}}}
	m := NewManager(zaptest.NewLogger(t), a, b, c)

	out := m.Analyze(rec())
	require.Len(t, out, 3)
	assert.Equal(t, "A1", out[0].Kind)
	assert.Equal(t, "A2", out[1].Kind)
	assert.Equal(t, "C1", out[2].Kind)
	assert.Equal(t, []int{1, 1, 1}, []int{a.seen, b.seen, c.seen})
	assert.Equal(t, []string{"a", "b", "c"}, m.Names())
}

func TestManager_PanickingDetectorIsIsolated(t *testing.T) {
	after := &scripted{name: "after", out: []model.Finding{{Kind: "OK"}}}
	m := NewManager(zaptest.NewLogger(t), panicking{}, after)

	before := testutil.ToFloat64(telemetry.DetectorFailures.WithLabelValues("panicking"))
	out := m.Analyze(rec())
	out = append(out, m.Analyze(rec())...)

	require.Len(t, out, 2)
	assert.Equal(t, 2, after.seen)
	assert.Equal(t, before+2, testutil.ToFloat64(telemetry.DetectorFailures.WithLabelValues("panicking")))
}

func TestNewFromConfig_BuildsRegisteredDetectors(t *testing.T) {
	cfg := config.Default().Detection
	m, err := NewFromConfig(&cfg, factory.Deps{Rates: constRate(0)}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"port_scan", "high_traffic"}, m.Names())
}

func TestNewFromConfig_UnknownDetector(t *testing.T) {
	cfg := config.Default().Detection
	cfg.Detectors = []string{"port_scan", "dns_tunnel"}
	_, err := NewFromConfig(&cfg, factory.Deps{Rates: constRate(0)}, nil)
	assert.ErrorIs(t, err, factory.ErrUnknownDetector)
}
