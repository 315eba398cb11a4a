package model

// Detector inspects one FeatureRecord at a time and returns zero or more findings.
// Implementations may keep internal state but must not log, block, or perform I/O.
type Detector interface {
	Name() string
	Analyze(rec *FeatureRecord) []Finding
}

// Extractor turns a raw frame into a FeatureRecord. It is stateless and may
// fail for an individual frame without side effects.
type Extractor interface {
	Extract(frame RawFrame) (*FeatureRecord, error)
}

// RateSource exposes the live packets-per-second reading.
type RateSource interface {
	PacketsPerSecond() float64
}
