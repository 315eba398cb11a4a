// Package alerter deduplicates detector findings into alerts, keeps a bounded
// history of them and notifies listeners of every accepted alert.
package alerter

import (
	"NetSentinel/internal/config"
	"NetSentinel/internal/model"
	"NetSentinel/internal/telemetry"
	"fmt"
	"maps"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSeverity is assigned to kinds missing from the severity table.
const DefaultSeverity = model.SeverityMedium

// Listener receives each accepted alert. It is called synchronously from
// Process and must hand the alert off without blocking.
type Listener func(model.Alert)

// ListenerID identifies a registered listener for removal.
type ListenerID uint64

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	TotalAlerts uint64            `json:"total_alerts"`
	Recent      []model.Alert     `json:"recent_alerts"`
	ByKind      map[string]uint64 `json:"alerts_by_type"`
}

type dedupKey struct {
	kind   string
	source string
}

// Store is the alert store. All methods are safe for concurrent use.
type Store struct {
	cooldown time.Duration
	severity map[string]model.Severity
	logger   *zap.Logger

	mu     sync.Mutex
	ring   []model.Alert
	next   int
	filled bool
	total  uint64
	byKind map[string]uint64
	lastAt map[dedupKey]time.Time
	newID  func() string

	lmu       sync.RWMutex
	listeners map[ListenerID]Listener
	nextLID   ListenerID
}

// DefaultSeverities returns the built-in kind to severity table.
func DefaultSeverities() map[string]model.Severity {
	return map[string]model.Severity{
		model.KindPortScan: model.SeverityHigh,
	}
}

// NewStore creates a Store. Entries of cfg.Severity override the defaults.
func NewStore(cfg config.AlertsConfig, logger *zap.Logger) (*Store, error) {
	if cfg.MaxHistory <= 0 {
		return nil, fmt.Errorf("max history must be positive, got %d", cfg.MaxHistory)
	}
	if cfg.Cooldown < 0 {
		return nil, fmt.Errorf("cooldown must not be negative, got %s", cfg.Cooldown)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	severity := DefaultSeverities()
	for kind, level := range cfg.Severity {
		sev := model.Severity(strings.ToUpper(level))
		if sev.Rank() == 0 {
			return nil, fmt.Errorf("unknown severity %q for kind %s", level, kind)
		}
		severity[kind] = sev
	}

	return &Store{
		cooldown:  cfg.Cooldown,
		severity:  severity,
		logger:    logger,
		ring:      make([]model.Alert, cfg.MaxHistory),
		byKind:    make(map[string]uint64),
		lastAt:    make(map[dedupKey]time.Time),
		newID:     uuid.NewString,
		listeners: make(map[ListenerID]Listener),
	}, nil
}

// Process ingests findings in order. Duplicates of a (kind, source) pair
// within the cooldown are dropped; every accepted alert is stored and then
// passed to each listener.
func (s *Store) Process(findings []model.Finding) {
	for i := range findings {
		alert, ok := s.accept(&findings[i])
		if !ok {
			continue
		}
		s.notify(alert)
	}
}

func (s *Store) accept(f *model.Finding) (model.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stale dedup entries are purged relative to the incoming finding.
	cutoff := f.Timestamp.Add(-s.cooldown)
	for k, last := range s.lastAt {
		if last.Before(cutoff) {
			delete(s.lastAt, k)
		}
	}

	key := dedupKey{kind: f.Kind, source: f.SourceKey}
	if last, ok := s.lastAt[key]; ok && f.Timestamp.Sub(last) < s.cooldown {
		telemetry.AlertsSuppressed.WithLabelValues(f.Kind).Inc()
		s.logger.Debug("Duplicate finding suppressed",
			zap.String("kind", f.Kind), zap.String("source", f.SourceKey))
		return model.Alert{}, false
	}
	s.lastAt[key] = f.Timestamp

	alert := model.Alert{
		ID:        s.newID(),
		Kind:      f.Kind,
		SourceKey: f.SourceKey,
		Severity:  s.severityOf(f.Kind),
		Timestamp: f.Timestamp,
		Details:   maps.Clone(f.Details),
	}

	s.ring[s.next] = alert
	s.next++
	if s.next == len(s.ring) {
		s.next = 0
		s.filled = true
	}
	s.total++
	s.byKind[f.Kind]++

	telemetry.AlertsAccepted.WithLabelValues(f.Kind).Inc()
	s.logger.Info("Alert stored",
		zap.String("id", alert.ID),
		zap.String("kind", alert.Kind),
		zap.String("source", alert.SourceKey),
		zap.String("severity", string(alert.Severity)),
		zap.Any("details", alert.Details))
	return alert, true
}

func (s *Store) severityOf(kind string) model.Severity {
	if sev, ok := s.severity[kind]; ok {
		return sev
	}
	return DefaultSeverity
}

// notify calls every listener with alert. A panicking listener is logged and
// does not affect the others.
func (s *Store) notify(alert model.Alert) {
	s.lmu.RLock()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.lmu.RUnlock()

	for _, l := range listeners {
		s.callListener(l, alert)
	}
}

func (s *Store) callListener(l Listener, alert model.Alert) {
	defer func() {
		if r := recover(); r != nil {
			telemetry.ListenerFailures.Inc()
			s.logger.Error("Alert listener panicked", zap.String("alert_id", alert.ID), zap.Any("panic", r))
		}
	}()
	l(alert)
}

// AddListener registers l and returns its handle.
func (s *Store) AddListener(l Listener) ListenerID {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.nextLID++
	s.listeners[s.nextLID] = l
	return s.nextLID
}

// RemoveListener unregisters the listener with the given handle. Unknown
// handles are ignored.
func (s *Store) RemoveListener(id ListenerID) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	delete(s.listeners, id)
}

// ListenerCount returns the number of registered listeners.
func (s *Store) ListenerCount() int {
	s.lmu.RLock()
	defer s.lmu.RUnlock()
	return len(s.listeners)
}

// Snapshot returns the cumulative totals and the retained alerts, oldest first.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recent []model.Alert
	if s.filled {
		recent = make([]model.Alert, 0, len(s.ring))
		recent = append(recent, s.ring[s.next:]...)
		recent = append(recent, s.ring[:s.next]...)
	} else {
		recent = make([]model.Alert, s.next)
		copy(recent, s.ring[:s.next])
	}
	for i := range recent {
		recent[i].Details = maps.Clone(recent[i].Details)
	}

	return Snapshot{
		TotalAlerts: s.total,
		Recent:      recent,
		ByKind:      maps.Clone(s.byKind),
	}
}
