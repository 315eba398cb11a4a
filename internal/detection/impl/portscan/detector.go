// Package portscan detects sources touching many distinct destination ports
// within a sliding time window.
package portscan

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/factory"
	"NetSentinel/internal/model"
	"fmt"
	"time"
)

// Name is the registry name of this detector.
const Name = "port_scan"

// sweepEvery is the number of Analyze calls between idle-source sweeps.
const sweepEvery = 1024

func init() {
	factory.RegisterDetector(Name, func(cfg *config.DetectionConfig, _ factory.Deps) (model.Detector, error) {
		return New(cfg.PortScan.Threshold, cfg.PortScan.Window)
	})
}

type observation struct {
	port uint16
	ts   time.Time
}

// Detector flags a source once it has contacted at least threshold distinct
// destination ports within window. After an alert the source is quiet for one
// window. It is not safe for concurrent use.
type Detector struct {
	threshold int
	window    time.Duration

	history   map[string][]observation
	lastAlert map[string]time.Time
	seen      map[uint16]struct{}
	calls     int
}

// New creates a port-scan detector.
func New(threshold int, window time.Duration) (*Detector, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("port scan threshold must be positive, got %d", threshold)
	}
	if window <= 0 {
		return nil, fmt.Errorf("port scan window must be positive, got %s", window)
	}
	return &Detector{
		threshold: threshold,
		window:    window,
		history:   make(map[string][]observation),
		lastAlert: make(map[string]time.Time),
		seen:      make(map[uint16]struct{}),
	}, nil
}

// Name implements model.Detector.
func (d *Detector) Name() string { return Name }

// Analyze implements model.Detector.
func (d *Detector) Analyze(rec *model.FeatureRecord) []model.Finding {
	src, ok := rec.SourceKey()
	if !ok || !rec.HasPorts() {
		return nil
	}

	d.calls++
	if d.calls%sweepEvery == 0 {
		d.sweep(rec.Timestamp)
	}

	cutoff := rec.Timestamp.Add(-d.window)
	entries := append(d.history[src], observation{port: rec.DstPort, ts: rec.Timestamp})
	kept := entries[:0]
	for _, o := range entries {
		if o.ts.After(cutoff) {
			kept = append(kept, o)
		}
	}
	d.history[src] = kept

	clear(d.seen)
	for _, o := range kept {
		d.seen[o.port] = struct{}{}
	}
	unique := len(d.seen)
	if unique < d.threshold {
		return nil
	}

	if last, ok := d.lastAlert[src]; ok && rec.Timestamp.Sub(last) < d.window {
		return nil
	}
	d.lastAlert[src] = rec.Timestamp

	return []model.Finding{{
		Kind:      model.KindPortScan,
		SourceKey: src,
		Timestamp: rec.Timestamp,
		Details: map[string]any{
			"unique_ports":   unique,
			"window_seconds": d.window.Seconds(),
		},
	}}
}

// Tracked returns the number of sources currently held in memory.
func (d *Detector) Tracked() int {
	return len(d.history)
}

// sweep forgets sources with no observation inside the window and no active
// cooldown. Forgetting them does not change any future result.
func (d *Detector) sweep(now time.Time) {
	cutoff := now.Add(-d.window)
	for src, entries := range d.history {
		active := false
		for _, o := range entries {
			if o.ts.After(cutoff) {
				active = true
				break
			}
		}
		if active {
			continue
		}
		if last, ok := d.lastAlert[src]; ok && now.Sub(last) < d.window {
			continue
		}
		delete(d.history, src)
		delete(d.lastAlert, src)
	}
}
