// Package hightraffic detects sustained packet rates above a threshold.
package hightraffic

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/factory"
	"NetSentinel/internal/model"
	"errors"
	"fmt"
)

// Name is the registry name of this detector.
const Name = "high_traffic"

func init() {
	factory.RegisterDetector(Name, func(cfg *config.DetectionConfig, deps factory.Deps) (model.Detector, error) {
		return New(deps.Rates, cfg.HighTraffic.Threshold, cfg.HighTraffic.Window)
	})
}

// Detector emits a finding once the packet rate has exceeded threshold for
// window consecutive calls, then starts counting again from zero.
type Detector struct {
	rates       model.RateSource
	threshold   float64
	window      int
	consecutive int
}

// New creates a high-traffic detector reading the live rate from rates.
func New(rates model.RateSource, threshold float64, window int) (*Detector, error) {
	if rates == nil {
		return nil, errors.New("high traffic detector requires a rate source")
	}
	if window <= 0 {
		return nil, fmt.Errorf("high traffic window must be positive, got %d", window)
	}
	return &Detector{rates: rates, threshold: threshold, window: window}, nil
}

// Name implements model.Detector.
func (d *Detector) Name() string { return Name }

// Analyze implements model.Detector.
func (d *Detector) Analyze(rec *model.FeatureRecord) []model.Finding {
	pps := d.rates.PacketsPerSecond()
	if pps <= d.threshold {
		d.consecutive = 0
		return nil
	}

	d.consecutive++
	if d.consecutive < d.window {
		return nil
	}
	d.consecutive = 0

	return []model.Finding{{
		Kind:      model.KindHighTraffic,
		Timestamp: rec.Timestamp,
		Details: map[string]any{
			"current_pps": pps,
			"threshold":   d.threshold,
		},
	}}
}
