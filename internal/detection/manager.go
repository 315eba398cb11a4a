// Package detection fans feature records out to the configured detectors.
package detection

import (
	"NetSentinel/internal/config"
	_ "NetSentinel/internal/detection/impl/hightraffic" // Registers the high_traffic detector
	_ "NetSentinel/internal/detection/impl/portscan"    // Registers the port_scan detector
	"NetSentinel/internal/factory"
	"NetSentinel/internal/model"
	"NetSentinel/internal/telemetry"
	"fmt"

	"go.uber.org/zap"
)

// Manager owns an ordered, fixed list of detectors.
type Manager struct {
	detectors []model.Detector
	logger    *zap.Logger
}

// NewManager creates a Manager over the given detectors, in order.
func NewManager(logger *zap.Logger, detectors ...model.Detector) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		detectors: append([]model.Detector(nil), detectors...),
		logger:    logger,
	}
}

// NewFromConfig builds the detectors named in cfg through the factory registry.
func NewFromConfig(cfg *config.DetectionConfig, deps factory.Deps, logger *zap.Logger) (*Manager, error) {
	detectors, err := factory.Create(cfg, deps)
	if err != nil {
		return nil, fmt.Errorf("failed to create detectors: %w", err)
	}
	m := NewManager(logger, detectors...)
	m.logger.Info("Detection manager initialized", zap.Strings("detectors", m.Names()))
	return m, nil
}

// Analyze runs rec through every detector and concatenates their findings in
// registration order. A detector that panics is logged and skipped for this
// record only.
func (m *Manager) Analyze(rec *model.FeatureRecord) []model.Finding {
	var findings []model.Finding
	for _, d := range m.detectors {
		findings = append(findings, m.analyzeOne(d, rec)...)
	}
	return findings
}

func (m *Manager) analyzeOne(d model.Detector, rec *model.FeatureRecord) (out []model.Finding) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.DetectorFailures.WithLabelValues(d.Name()).Inc()
			m.logger.Error("Detector panicked", zap.String("detector", d.Name()), zap.Any("panic", r))
			out = nil
		}
	}()
	return d.Analyze(rec)
}

// Names returns the detector names in registration order.
func (m *Manager) Names() []string {
	names := make([]string, len(m.detectors))
	for i, d := range m.detectors {
		names[i] = d.Name()
	}
	return names
}
