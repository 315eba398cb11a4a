package model

import "time"

// Finding kinds emitted by the built-in detectors.
const (
	KindPortScan    = "PORT_SCAN"
	KindHighTraffic = "HIGH_TRAFFIC"
)

// Finding is an unconfirmed detector output, before deduplication and enrichment.
type Finding struct {
	Kind string
	// SourceKey identifies the entity the finding concerns; empty when there is none.
	SourceKey string
	Timestamp time.Time
	Details   map[string]any
}

// Severity classifies a stored alert.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Rank orders severities; unknown values rank lowest.
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return 0
	}
}

// Alert is a deduplicated, enriched finding. Stored alerts are never modified,
// and holders of an Alert must treat Details as read-only.
type Alert struct {
	ID        string         `json:"id"`
	Kind      string         `json:"type"`
	SourceKey string         `json:"source_ip,omitempty"`
	Severity  Severity       `json:"severity"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}
